package catalog_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/catalog"
)

func newService(t *testing.T) (*catalog.Service, *catalog.MemoryStore) {
	t.Helper()
	store := catalog.NewMemoryStore()
	return catalog.NewService(store, slog.New(slog.DiscardHandler)), store
}

func TestAddBookValidates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.AddBook(ctx, catalog.NewBook{Author: "Author", Category: "fiction", Copies: 1})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)

	_, err = svc.AddBook(ctx, catalog.NewBook{Title: "Title", Author: "Author", Category: "fiction"})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)
}

func TestAddBookStartsFullyAvailable(t *testing.T) {
	svc, _ := newService(t)

	book, err := svc.AddBook(context.Background(), catalog.NewBook{Title: "Dune", Author: "Frank Herbert", Category: "scifi", ISBN: "9780441013593", Year: 1965, Copies: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, book.ID)
	assert.Equal(t, 3, book.Copies)
	assert.Equal(t, 3, book.Available)

	got, err := svc.GetBook(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.Title, got.Title)
}

func TestSearchFilters(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	dune, err := svc.AddBook(ctx, catalog.NewBook{Title: "Dune", Author: "Frank Herbert", Category: "scifi", Copies: 1})
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, catalog.NewBook{Title: "Emma", Author: "Jane Austen", Category: "classics", Copies: 2})
	require.NoError(t, err)

	books, err := svc.Search(ctx, catalog.Filter{Query: "herbert"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)

	books, err = svc.Search(ctx, catalog.Filter{Category: "classics"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Emma", books[0].Title)

	// Dune's single copy leaves the shelf; AvailableOnly must drop it.
	require.NoError(t, store.AdjustAvailability(ctx, dune.ID, -1))
	books, err = svc.Search(ctx, catalog.Filter{AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Emma", books[0].Title)
}

func TestCheckoutExhaustsCopies(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	book, err := svc.AddBook(ctx, catalog.NewBook{Title: "Dune", Author: "Frank Herbert", Category: "scifi", Copies: 1})
	require.NoError(t, err)

	require.NoError(t, svc.Checkout(ctx, book.ID))
	assert.ErrorIs(t, svc.Checkout(ctx, book.ID), catalog.ErrNoCopies)

	require.NoError(t, svc.Checkin(ctx, book.ID))
	assert.ErrorIs(t, svc.Checkin(ctx, book.ID), catalog.ErrNoCopies)
}

func TestGetBookNotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.GetBook(context.Background(), "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}
