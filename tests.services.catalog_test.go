package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCatalogAuthors ensures authors can be created, updated and listed.
func TestCatalogAuthors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	birthDay := time.Date(1952, 3, 11, 0, 0, 0, 0, time.UTC)

	author, err := env.catalog.CreateAuthor(ctx, AuthorInput{Name: strPtr(" Douglas Adams "), BirthDay: &birthDay})
	require.NoError(t, err)
	assert.Equal(t, "Douglas Adams", author.Name)
	assert.Equal(t, "1952-03-11", NewAuthorView(author).BirthDay)

	t.Run("missing name", func(t *testing.T) {
		_, err := env.catalog.CreateAuthor(ctx, AuthorInput{Name: strPtr("  ")})
		assert.True(t, errors.Is(err, ErrInvalidFormat))
	})

	t.Run("partial update", func(t *testing.T) {
		updated, err := env.catalog.UpdateAuthor(ctx, author.ID, AuthorInput{Name: strPtr("D. Adams")})
		require.NoError(t, err)
		assert.Equal(t, "D. Adams", updated.Name)
		assert.True(t, birthDay.Equal(updated.BirthDay))
	})

	t.Run("unknown author", func(t *testing.T) {
		_, err := env.catalog.UpdateAuthor(ctx, "a:unknown", AuthorInput{Name: strPtr("x")})
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, "Author with given id not found.", err.Error())

		_, err = env.catalog.FindAuthor(ctx, "a:unknown")
		assert.Equal(t, "Author with given id not found.", err.Error())
	})

	t.Run("list", func(t *testing.T) {
		page, err := env.catalog.ListAuthors(ctx, PageParams{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.TotalItems)
	})
}

// TestCatalogCreateBook ensures the format rules are enforced on creation.
//
//nolint:funlen
func TestCatalogCreateBook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author, err := env.catalog.CreateAuthor(ctx, AuthorInput{Name: strPtr("Ursula K. Le Guin")})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   CreateBookInput
		kind error
	}{
		{
			name: "unknown author",
			in:   CreateBookInput{Name: "A", AuthorID: "a:unknown", Types: []BookType{BookTypePhysical}, StockCount: intPtr(1)},
			kind: ErrNotFound,
		},
		{
			name: "no types",
			in:   CreateBookInput{Name: "B", AuthorID: author.ID},
			kind: ErrInvalidFormat,
		},
		{
			name: "unknown type",
			in:   CreateBookInput{Name: "C", AuthorID: author.ID, Types: []BookType{"audio"}},
			kind: ErrInvalidFormat,
		},
		{
			name: "digital without file",
			in:   CreateBookInput{Name: "D", AuthorID: author.ID, Types: []BookType{BookTypeDigital}},
			kind: ErrInvalidFormat,
		},
		{
			name: "physical without stock",
			in:   CreateBookInput{Name: "E", AuthorID: author.ID, Types: []BookType{BookTypePhysical}},
			kind: ErrInvalidStock,
		},
		{
			name: "physical with zero stock",
			in:   CreateBookInput{Name: "F", AuthorID: author.ID, Types: []BookType{BookTypePhysical}, StockCount: intPtr(0)},
			kind: ErrInvalidStock,
		},
		{
			name: "digital with negative stock",
			in:   CreateBookInput{Name: "G", AuthorID: author.ID, Types: []BookType{BookTypeDigital}, FileURL: "/g.pdf", StockCount: intPtr(-1)},
			kind: ErrInvalidStock,
		},
	}
	for _, tc := range tests {
		t.Run("should fail: "+tc.name, func(t *testing.T) {
			_, err := env.catalog.CreateBook(ctx, tc.in)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)
		})
	}

	t.Run("should pass: physical and digital", func(t *testing.T) {
		book, err := env.catalog.CreateBook(ctx, CreateBookInput{
			Name:       "The Dispossessed",
			AuthorID:   author.ID,
			Types:      []BookType{BookTypeDigital, BookTypePhysical, BookTypeDigital},
			StockCount: intPtr(2),
			FileURL:    "/files/dispossessed.pdf",
		})
		require.NoError(t, err)
		assert.Equal(t, BookTypes{BookTypePhysical, BookTypeDigital}, book.Types)
		assert.Equal(t, 2, book.StockCount)
		assert.Equal(t, author.ID, book.Author)
		assert.Equal(t, env.clock.Now(), book.CreatedAt)
		assert.True(t, NewBookView(book).Available)
	})

	t.Run("should fail: duplicate name", func(t *testing.T) {
		_, err := env.catalog.CreateBook(ctx, CreateBookInput{
			Name:     "The Dispossessed",
			AuthorID: author.ID,
			Types:    []BookType{BookTypeDigital},
			FileURL:  "/files/other.pdf",
		})
		assert.True(t, errors.Is(err, ErrConflict))
		assert.Equal(t, "Book with name(The Dispossessed) already exists.", err.Error())
	})
}

// TestCatalogUpdateFormats ensures format changes are checked against the stored book.
func TestCatalogUpdateFormats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.seedBook(t, "Solaris", 1, BookTypePhysical)

	t.Run("digital without file", func(t *testing.T) {
		_, err := env.catalog.UpdateFormats(ctx, book.ID, UpdateBookTypesInput{Types: []BookType{BookTypeDigital}})
		assert.True(t, errors.Is(err, ErrInvalidFormat))
		assert.Equal(t, "Cannot set digital type when no file is uploaded. Please upload a file first.", err.Error())
	})

	t.Run("attach file adds digital", func(t *testing.T) {
		updated, err := env.catalog.AttachFile(ctx, book.ID, "/files/solaris.pdf")
		require.NoError(t, err)
		assert.True(t, updated.Types.Has(BookTypeDigital))
		assert.True(t, updated.Types.Has(BookTypePhysical))
	})

	t.Run("digital only keeps stock", func(t *testing.T) {
		updated, err := env.catalog.UpdateFormats(ctx, book.ID, UpdateBookTypesInput{Types: []BookType{BookTypeDigital}})
		require.NoError(t, err)
		assert.Equal(t, BookTypes{BookTypeDigital}, updated.Types)
		assert.False(t, NewBookView(updated).Available)
	})

	t.Run("physical needs stock", func(t *testing.T) {
		_, err := env.catalog.UpdateFormats(ctx, book.ID, UpdateBookTypesInput{Types: []BookType{BookTypePhysical}, StockCount: intPtr(0)})
		require.NoError(t, err)
		_, err = env.catalog.UpdateFormats(ctx, book.ID, UpdateBookTypesInput{Types: []BookType{BookTypePhysical}})
		assert.True(t, errors.Is(err, ErrInvalidStock))

		updated, err := env.catalog.UpdateFormats(ctx, book.ID, UpdateBookTypesInput{Types: []BookType{BookTypePhysical}, StockCount: intPtr(4)})
		require.NoError(t, err)
		assert.Equal(t, 4, updated.StockCount)
	})

	t.Run("attach cover", func(t *testing.T) {
		updated, err := env.catalog.AttachCover(ctx, book.ID, "/covers/solaris.png")
		require.NoError(t, err)
		assert.Equal(t, "/covers/solaris.png", updated.CoverImage)
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := env.catalog.AttachCover(ctx, "b:unknown", "/x.png")
		assert.Equal(t, "Book with given id not found.", err.Error())
	})
}

// TestCatalogStock ensures stock updates respect the format and the remaining copies.
func TestCatalogStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	physical := env.seedBook(t, "Dune", 1, BookTypePhysical)
	digital := env.seedBook(t, "Neuromancer", 0, BookTypeDigital)

	book, err := env.catalog.DecrementStock(ctx, physical.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, book.StockCount)

	_, err = env.catalog.DecrementStock(ctx, physical.ID)
	assert.True(t, errors.Is(err, ErrOutOfStock))

	_, err = env.catalog.DecrementStock(ctx, digital.ID)
	assert.True(t, errors.Is(err, ErrInvalidFormat))

	_, err = env.catalog.DecrementStock(ctx, "b:unknown")
	assert.True(t, errors.Is(err, ErrNotFound))

	book, err = env.catalog.IncrementStock(ctx, physical.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, book.StockCount)
}

// TestCatalogListAndDelete ensures searching, author listing and deletion.
func TestCatalogListAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dune := env.seedBook(t, "Dune", 1, BookTypePhysical)
	env.seedBook(t, "Hyperion", 2, BookTypePhysical)

	_, err := env.catalog.UpdateBook(ctx, dune.ID, UpdateBookInput{Description: strPtr("Desert planet saga")})
	require.NoError(t, err)

	page, err := env.catalog.ListBooks(ctx, PageParams{}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalItems)

	page, err = env.catalog.ListBooks(ctx, PageParams{}, "DESERT")
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalItems)
	assert.Equal(t, dune.ID, page.Data[0].ID)

	page, err = env.catalog.ListBooksByAuthor(ctx, dune.Author, PageParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalItems)

	_, err = env.catalog.ListBooksByAuthor(ctx, "a:unknown", PageParams{})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = env.catalog.UpdateBook(ctx, dune.ID, UpdateBookInput{Name: strPtr("Hyperion")})
	assert.True(t, errors.Is(err, ErrConflict))

	require.NoError(t, env.catalog.DeleteBook(ctx, dune.ID))
	err = env.catalog.DeleteBook(ctx, dune.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}
