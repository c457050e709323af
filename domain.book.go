package main

import (
	"time"
)

// BookType is a format a book is available in.
type BookType string

const (
	BookTypePhysical BookType = "physical"
	BookTypeDigital  BookType = "digital"
)

// bookTypesOrder is the order formats are persisted in.
var bookTypesOrder = []BookType{BookTypePhysical, BookTypeDigital}

// IsValid reports whether t is a known format.
func (t BookType) IsValid() bool {
	return t == BookTypePhysical || t == BookTypeDigital
}

// BookTypes is a set of formats persisted as an ordered list.
type BookTypes []BookType

// NewBookTypes builds a normalized set from the given formats. Unknown
// formats and duplicates are dropped.
func NewBookTypes(types ...BookType) BookTypes {
	set := BookTypes{}
	for _, known := range bookTypesOrder {
		for _, t := range types {
			if t == known {
				set = append(set, known)
				break
			}
		}
	}
	return set
}

// Has reports whether the set contains t.
func (bt BookTypes) Has(t BookType) bool {
	for _, v := range bt {
		if v == t {
			return true
		}
	}
	return false
}

// With returns the union of the set and t.
func (bt BookTypes) With(t BookType) BookTypes {
	return NewBookTypes(append(append(BookTypes{}, bt...), t)...)
}

func (bt BookTypes) strings() []string {
	out := make([]string, 0, len(bt))
	for _, t := range bt {
		out = append(out, string(t))
	}
	return out
}

var _ Document[Book] = Book{} // ensure Book can be kept in a Store.

// Book represents a book entity.
type Book struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	StockCount  int       `json:"stockCount"`
	Types       BookTypes `json:"types"`
	FileURL     string    `json:"fileUrl,omitempty"`
	CoverImage  string    `json:"coverImage,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Book fields usable in filters.
const (
	BookFieldName        = "name"
	BookFieldDescription = "description"
	BookFieldAuthor      = "author"
	BookFieldStockCount  = "stockCount"
	BookFieldTypes       = "types"
)

func (b Book) Key() string { return b.ID }

func (b Book) WithKey(id string) Book {
	b.ID = id
	return b
}

func (b Book) Lookup(field string) (interface{}, bool) {
	switch field {
	case IDField:
		return b.ID, true
	case BookFieldName:
		return b.Name, true
	case BookFieldDescription:
		return b.Description, true
	case BookFieldAuthor:
		return b.Author, true
	case BookFieldStockCount:
		return b.StockCount, true
	case BookFieldTypes:
		return b.Types.strings(), true
	case "fileUrl":
		return b.FileURL, true
	}
	return nil, false
}

// IsLendable reports whether a physical copy is available right now.
func (b Book) IsLendable() bool {
	return b.Types.Has(BookTypePhysical) && b.StockCount >= 1
}

// BookView is the public representation of a book.
type BookView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Author      string     `json:"author"`
	StockCount  int        `json:"stockCount"`
	Types       []BookType `json:"types"`
	FileURL     string     `json:"fileUrl,omitempty"`
	CoverImage  string     `json:"coverImage,omitempty"`
	Available   bool       `json:"available"`
}

// NewBookView projects a book to its public view.
func NewBookView(b Book) BookView {
	types := make([]BookType, 0, len(b.Types))
	types = append(types, b.Types...)
	return BookView{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		Author:      b.Author,
		StockCount:  b.StockCount,
		Types:       types,
		FileURL:     b.FileURL,
		CoverImage:  b.CoverImage,
		Available:   b.IsLendable(),
	}
}

// CreateBookInput holds the already validated data of a new book.
// A nil StockCount means the caller did not provide one.
type CreateBookInput struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	AuthorID    string     `json:"authorId"`
	StockCount  *int       `json:"stockCount"`
	Types       []BookType `json:"types"`
	FileURL     string     `json:"fileUrl"`
}

// UpdateBookInput holds the descriptive fields of a book that may change.
// Nil fields are left untouched.
type UpdateBookInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	AuthorID    *string `json:"authorId"`
}

// UpdateBookTypesInput holds a new format set and an optional stock count.
type UpdateBookTypesInput struct {
	Types      []BookType `json:"types"`
	StockCount *int       `json:"stockCount"`
}
