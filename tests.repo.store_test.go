package main

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behavior every Store driver must share.
//
//nolint:funlen
func runStoreContract(t *testing.T, store Store[Book]) {
	ctx := context.Background()
	var first, second Book

	t.Run("Create Book", func(t *testing.T) {
		// ensures the store assigns a prefixed identity.
		var err error
		first, err = store.Create(ctx, Book{Name: "Alpha", Author: "a:1", StockCount: 1, Types: NewBookTypes(BookTypePhysical)})
		require.NoError(t, err)
		assert.Equal(t, "b:000001", first.ID)
		second, err = store.Create(ctx, Book{Name: "Beta", Author: "a:2", Types: NewBookTypes(BookTypeDigital)})
		require.NoError(t, err)
		assert.Equal(t, "b:000002", second.ID)
	})

	t.Run("Create Duplicate Book", func(t *testing.T) {
		// ensures unique fields are enforced on insertion.
		_, err := store.Create(ctx, Book{Name: "Alpha"})
		dup, ok := AsDuplicateKey(err)
		require.True(t, ok)
		assert.Equal(t, BookFieldName, dup.Field)
		assert.True(t, errors.Is(err, ErrDuplicateKey))
	})

	t.Run("Find Existent Book", func(t *testing.T) {
		book, err := store.FindOne(ctx, ByID(first.ID), "")
		require.NoError(t, err)
		assert.Equal(t, first.Name, book.Name)
		assert.Equal(t, first.Types, book.Types)

		book, err = store.FindOne(ctx, Where(Eq(BookFieldAuthor, "a:2")), "")
		require.NoError(t, err)
		assert.Equal(t, second.ID, book.ID)
	})

	t.Run("Find NonExistent Book", func(t *testing.T) {
		_, err := store.FindOne(ctx, ByID("b:999999"), "")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, DefaultNotFoundMessage, err.Error())

		_, err = store.FindOne(ctx, ByID("b:999999"), "Book with given id not found.")
		assert.Equal(t, "Book with given id not found.", err.Error())

		_, err = store.FindOne(ctx, ByID("b:999999"), "No book at 100% of %d.")
		assert.Equal(t, "No book at 100% of %d.", err.Error())
	})

	t.Run("Update Existent Book", func(t *testing.T) {
		book, err := store.FindOneAndUpdate(ctx, ByID(first.ID), func(b Book) (Book, error) {
			b.Description = "updated"
			return b, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "updated", book.Description)
		assert.Equal(t, first.ID, book.ID)

		stored, err := store.FindOne(ctx, ByID(first.ID), "")
		require.NoError(t, err)
		assert.Equal(t, "updated", stored.Description)
	})

	t.Run("Update Aborted By Patch", func(t *testing.T) {
		// ensures nothing is written when the patch fails.
		_, err := store.FindOneAndUpdate(ctx, ByID(first.ID), func(b Book) (Book, error) {
			b.Description = "never"
			return b, InvalidState("nope")
		})
		assert.True(t, errors.Is(err, ErrInvalidState))
		stored, err := store.FindOne(ctx, ByID(first.ID), "")
		require.NoError(t, err)
		assert.Equal(t, "updated", stored.Description)
	})

	t.Run("Update Into Duplicate", func(t *testing.T) {
		_, err := store.FindOneAndUpdate(ctx, ByID(second.ID), func(b Book) (Book, error) {
			b.Name = "Alpha"
			return b, nil
		})
		_, ok := AsDuplicateKey(err)
		assert.True(t, ok)
	})

	t.Run("Update NonExistent Book", func(t *testing.T) {
		_, err := store.FindOneAndUpdate(ctx, ByID(first.ID).And(Gte(BookFieldStockCount, 5)), func(b Book) (Book, error) {
			return b, nil
		})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("Get Paginated Books", func(t *testing.T) {
		_, err := store.Create(ctx, Book{Name: "Gamma", Author: "a:1"})
		require.NoError(t, err)

		page, err := store.FindAllPaginated(ctx, PageParams{Page: 1, PageSize: 2}, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, page.TotalItems)
		assert.Equal(t, 2, page.TotalPages)
		require.Len(t, page.Data, 2)
		assert.Equal(t, "Alpha", page.Data[0].Name)
		assert.Equal(t, "Beta", page.Data[1].Name)

		page, err = store.FindAllPaginated(ctx, PageParams{Page: 1, PageSize: 10}, Where(Eq(BookFieldAuthor, "a:1")))
		require.NoError(t, err)
		assert.Equal(t, 2, page.TotalItems)
	})

	t.Run("Conditional Decrement Under Contention", func(t *testing.T) {
		// ensures the stock never goes below zero.
		book, err := store.Create(ctx, Book{Name: "Contended", StockCount: 3, Types: NewBookTypes(BookTypePhysical)})
		require.NoError(t, err)
		filter := ByID(book.ID).And(Gte(BookFieldStockCount, 1))

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.FindOneAndUpdate(ctx, filter, func(b Book) (Book, error) {
					b.StockCount--
					return b, nil
				})
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		stored, err := store.FindOne(ctx, ByID(book.ID), "")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stored.StockCount, 0)
		assert.LessOrEqual(t, succeeded, 3)
		assert.Equal(t, 3, stored.StockCount+succeeded)
	})

	t.Run("Remove Books", func(t *testing.T) {
		n, err := store.Remove(ctx, ByID(first.ID).And(Gte(BookFieldStockCount, 10)))
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = store.Remove(ctx, ByID(first.ID))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = store.Remove(ctx, ByID(first.ID))
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		_, err = store.FindOne(ctx, ByID(first.ID), "")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}
