package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"libris/internal/activity"
)

// Redis persists queue state in Redis so deferred records survive restarts
// and host replacement in distributed deployments.
type Redis struct {
	client *redis.Client
	prefix string
}

var _ activity.Storage = (*Redis)(nil)

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "libris:storage:"}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
