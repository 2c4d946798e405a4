//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/activity"
	"libris/internal/activity/store/postgres"
	"libris/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, pg.URL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := postgres.New(pool)
	require.NoError(t, store.Migrate(ctx))

	dest := activity.UserDestination("user-1")
	require.NoError(t, store.Append(ctx, dest, activity.Fields{
		"type":      "book_view",
		"timestamp": activity.ServerTimestamp,
		"userId":    "user-1",
		"bookId":    "book-1",
	}))
	require.NoError(t, store.Append(ctx, dest, activity.Fields{
		"type":   "book_search",
		"userId": "user-1",
		"query":  "dune",
	}))

	docs, err := store.List(ctx, dest, 10)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	// Newest first, and the server assigned the timestamp.
	assert.Equal(t, "book_search", docs[0]["type"])
	assert.Equal(t, "book_view", docs[1]["type"])
	assert.NotEmpty(t, docs[1]["timestamp"])
	assert.NotEqual(t, activity.ServerTimestamp, docs[1]["timestamp"])

	// Destinations are isolated.
	other, err := store.List(ctx, activity.UserDestination("user-2"), 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}
