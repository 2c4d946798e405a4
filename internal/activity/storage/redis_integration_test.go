//go:build integration

package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/activity/storage"
	"libris/pkg/testutil/containers"
)

func TestRedisStorage(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	store := storage.NewRedis(rc.Client)

	// Missing key reads as empty without error.
	got, err := store.Get(ctx, "libris.activity.pending")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Set(ctx, "libris.activity.pending", `[{"record":{}}]`))
	got, err = store.Get(ctx, "libris.activity.pending")
	require.NoError(t, err)
	assert.Equal(t, `[{"record":{}}]`, got)

	require.NoError(t, store.Delete(ctx, "libris.activity.pending"))
	got, err = store.Get(ctx, "libris.activity.pending")
	require.NoError(t, err)
	assert.Empty(t, got)
}
