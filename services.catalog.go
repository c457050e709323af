package main

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

const (
	msgAuthorNotFound = "Author with given id not found."
	msgBookNotFound   = "Book with given id not found."
)

// CatalogServiceProvider manages books and authors.
type CatalogServiceProvider interface {
	CreateAuthor(ctx context.Context, in AuthorInput) (Author, error)
	UpdateAuthor(ctx context.Context, id string, in AuthorInput) (Author, error)
	FindAuthor(ctx context.Context, id string) (Author, error)
	ListAuthors(ctx context.Context, params PageParams) (Page[Author], error)

	CreateBook(ctx context.Context, in CreateBookInput) (Book, error)
	UpdateBook(ctx context.Context, id string, in UpdateBookInput) (Book, error)
	AttachFile(ctx context.Context, id string, path string) (Book, error)
	AttachCover(ctx context.Context, id string, path string) (Book, error)
	UpdateFormats(ctx context.Context, id string, in UpdateBookTypesInput) (Book, error)
	FindBook(ctx context.Context, id string) (Book, error)
	ListBooks(ctx context.Context, params PageParams, query string) (Page[Book], error)
	ListBooksByAuthor(ctx context.Context, authorID string, params PageParams) (Page[Book], error)
	DeleteBook(ctx context.Context, id string) error
}

// StockKeeper is the narrow catalog capability granted to the loan ledger.
type StockKeeper interface {
	FindBook(ctx context.Context, id string) (Book, error)
	DecrementStock(ctx context.Context, id string) (Book, error)
	IncrementStock(ctx context.Context, id string) (Book, error)
}

var (
	_ CatalogServiceProvider = (*CatalogService)(nil)
	_ StockKeeper            = (*CatalogService)(nil)
)

type CatalogService struct {
	logger  *zap.Logger
	clock   Clocker
	authors Store[Author]
	books   Store[Book]
}

func NewCatalogService(logger *zap.Logger, clock Clocker, authors Store[Author], books Store[Book]) *CatalogService {
	return &CatalogService{
		logger:  logger,
		clock:   clock,
		authors: authors,
		books:   books,
	}
}

func (cs *CatalogService) CreateAuthor(ctx context.Context, in AuthorInput) (Author, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return Author{}, InvalidFormat("Author name is required.")
	}
	now := cs.clock.Now()
	author := Author{Name: strings.TrimSpace(*in.Name), CreatedAt: now, UpdatedAt: now}
	if in.BirthDay != nil {
		author.BirthDay = *in.BirthDay
	}
	return cs.authors.Create(ctx, author)
}

func (cs *CatalogService) UpdateAuthor(ctx context.Context, id string, in AuthorInput) (Author, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return Author{}, InvalidFormat("Author name cannot be empty.")
	}
	author, err := cs.authors.FindOneAndUpdate(ctx, ByID(id), func(a Author) (Author, error) {
		if in.Name != nil {
			a.Name = strings.TrimSpace(*in.Name)
		}
		if in.BirthDay != nil {
			a.BirthDay = *in.BirthDay
		}
		a.UpdatedAt = cs.clock.Now()
		return a, nil
	})
	return author, notFoundAs(err, msgAuthorNotFound)
}

func (cs *CatalogService) FindAuthor(ctx context.Context, id string) (Author, error) {
	return cs.authors.FindOne(ctx, ByID(id), msgAuthorNotFound)
}

func (cs *CatalogService) ListAuthors(ctx context.Context, params PageParams) (Page[Author], error) {
	return cs.authors.FindAllPaginated(ctx, params, nil)
}

// CreateBook validates the format invariants then persists the book
// against an existing author.
func (cs *CatalogService) CreateBook(ctx context.Context, in CreateBookInput) (Book, error) {
	author, err := cs.FindAuthor(ctx, in.AuthorID)
	if err != nil {
		return Book{}, err
	}

	types, err := parseBookTypes(in.Types)
	if err != nil {
		return Book{}, err
	}
	if types.Has(BookTypeDigital) && in.FileURL == "" {
		return Book{}, InvalidFormat("File URL is required for digital books.")
	}
	if types.Has(BookTypePhysical) && (in.StockCount == nil || *in.StockCount <= 0) {
		return Book{}, InvalidStock("Stock count must be greater than 0 for physical books.")
	}
	stock := 0
	if in.StockCount != nil {
		if *in.StockCount < 0 {
			return Book{}, InvalidStock("Stock count cannot be negative.")
		}
		stock = *in.StockCount
	}

	now := cs.clock.Now()
	book, err := cs.books.Create(ctx, Book{
		Name:        in.Name,
		Description: in.Description,
		Author:      author.ID,
		StockCount:  stock,
		Types:       types,
		FileURL:     in.FileURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Book{}, cs.bookConflict(err, in.Name)
	}
	return book, nil
}

// UpdateBook changes the descriptive fields of a book. Formats and stock
// have their own operations.
func (cs *CatalogService) UpdateBook(ctx context.Context, id string, in UpdateBookInput) (Book, error) {
	if in.AuthorID != nil {
		if _, err := cs.FindAuthor(ctx, *in.AuthorID); err != nil {
			return Book{}, err
		}
	}
	book, err := cs.updateBook(ctx, id, func(b Book) (Book, error) {
		if in.Name != nil {
			b.Name = *in.Name
		}
		if in.Description != nil {
			b.Description = *in.Description
		}
		if in.AuthorID != nil {
			b.Author = *in.AuthorID
		}
		return b, nil
	})
	if err != nil && in.Name != nil {
		return Book{}, cs.bookConflict(err, *in.Name)
	}
	return book, err
}

// AttachFile records the digital file and makes the book available as digital.
func (cs *CatalogService) AttachFile(ctx context.Context, id string, path string) (Book, error) {
	return cs.updateBook(ctx, id, func(b Book) (Book, error) {
		b.FileURL = path
		b.Types = b.Types.With(BookTypeDigital)
		return b, nil
	})
}

func (cs *CatalogService) AttachCover(ctx context.Context, id string, path string) (Book, error) {
	return cs.updateBook(ctx, id, func(b Book) (Book, error) {
		b.CoverImage = path
		return b, nil
	})
}

// UpdateFormats replaces the format set, checked against the stored book
// inside the same atomic update.
func (cs *CatalogService) UpdateFormats(ctx context.Context, id string, in UpdateBookTypesInput) (Book, error) {
	types, err := parseBookTypes(in.Types)
	if err != nil {
		return Book{}, err
	}
	if in.StockCount != nil && *in.StockCount < 0 {
		return Book{}, InvalidStock("Stock count cannot be negative.")
	}
	return cs.updateBook(ctx, id, func(b Book) (Book, error) {
		if types.Has(BookTypeDigital) && b.FileURL == "" {
			return b, InvalidFormat("Cannot set digital type when no file is uploaded. Please upload a file first.")
		}
		if types.Has(BookTypePhysical) && in.StockCount == nil && b.StockCount == 0 {
			return b, InvalidStock("Stock count must be provided when adding physical type.")
		}
		b.Types = types
		if in.StockCount != nil {
			b.StockCount = *in.StockCount
		}
		return b, nil
	})
}

// DecrementStock takes one physical copy out of the stock. It only succeeds
// while the book is physical and has at least one copy left.
func (cs *CatalogService) DecrementStock(ctx context.Context, id string) (Book, error) {
	filter := ByID(id).And(Has(BookFieldTypes, string(BookTypePhysical)), Gte(BookFieldStockCount, 1))
	book, err := cs.books.FindOneAndUpdate(ctx, filter, func(b Book) (Book, error) {
		b.StockCount--
		b.UpdatedAt = cs.clock.Now()
		return b, nil
	})
	if err == nil || !errors.Is(err, ErrNotFound) {
		return book, err
	}

	current, err := cs.FindBook(ctx, id)
	if err != nil {
		return Book{}, err
	}
	if !current.Types.Has(BookTypePhysical) {
		return current, InvalidFormat("Only physical books can be borrowed.")
	}
	return current, OutOfStock("Book out of stock.")
}

func (cs *CatalogService) IncrementStock(ctx context.Context, id string) (Book, error) {
	return cs.updateBook(ctx, id, func(b Book) (Book, error) {
		b.StockCount++
		return b, nil
	})
}

func (cs *CatalogService) FindBook(ctx context.Context, id string) (Book, error) {
	return cs.books.FindOne(ctx, ByID(id), msgBookNotFound)
}

// ListBooks pages over the books whose name or description contains query.
func (cs *CatalogService) ListBooks(ctx context.Context, params PageParams, query string) (Page[Book], error) {
	var filter Filter
	if query = strings.TrimSpace(query); query != "" {
		filter = Where(Or(Like(BookFieldName, query), Like(BookFieldDescription, query)))
	}
	return cs.books.FindAllPaginated(ctx, params, filter)
}

func (cs *CatalogService) ListBooksByAuthor(ctx context.Context, authorID string, params PageParams) (Page[Book], error) {
	if _, err := cs.FindAuthor(ctx, authorID); err != nil {
		return Page[Book]{}, err
	}
	return cs.books.FindAllPaginated(ctx, params, Where(Eq(BookFieldAuthor, authorID)))
}

// DeleteBook removes the book. Open loans referencing it are not checked.
func (cs *CatalogService) DeleteBook(ctx context.Context, id string) error {
	n, err := cs.books.Remove(ctx, ByID(id))
	if err != nil {
		return err
	}
	if n == 0 {
		return NotFound(msgBookNotFound)
	}
	return nil
}

func (cs *CatalogService) updateBook(ctx context.Context, id string, patch Patch[Book]) (Book, error) {
	book, err := cs.books.FindOneAndUpdate(ctx, ByID(id), func(b Book) (Book, error) {
		b, err := patch(b)
		b.UpdatedAt = cs.clock.Now()
		return b, err
	})
	return book, notFoundAs(err, msgBookNotFound)
}

func (cs *CatalogService) bookConflict(err error, name string) error {
	if dup, ok := AsDuplicateKey(err); ok {
		cs.logger.Debug("catalog: duplicate book", zap.String("field", dup.Field), zap.Any("value", dup.Value))
		return Conflict("Book with name(%s) already exists.", name)
	}
	return err
}

// parseBookTypes turns the requested formats into a non-empty normalized set.
func parseBookTypes(types []BookType) (BookTypes, error) {
	for _, t := range types {
		if !t.IsValid() {
			return nil, InvalidFormat("Unknown book type(%s).", t)
		}
	}
	set := NewBookTypes(types...)
	if len(set) == 0 {
		return nil, InvalidFormat("At least one book type is required.")
	}
	return set, nil
}
