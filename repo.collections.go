package main

import "errors"

// Persisted collections. Names are used as redis hash keys, bolt buckets and sqlite tables.
var (
	AuthorsCollection     = Collection{Name: "authors", IDPrefix: "a"}
	BooksCollection       = Collection{Name: "books", IDPrefix: "b", Unique: []string{BookFieldName}}
	BorrowersCollection   = Collection{Name: "borrowers", IDPrefix: "br", Unique: []string{BorrowerFieldName, BorrowerFieldUser}}
	LoansCollection       = Collection{Name: "loans", IDPrefix: "l"}
	StockEventsCollection = Collection{Name: "stock_events", IDPrefix: "se"}
)

// DomainCollections lists the collections kept by the configured storage driver.
func DomainCollections() []Collection {
	return []Collection{AuthorsCollection, BooksCollection, BorrowersCollection, LoansCollection}
}

func collectionNames(colls ...Collection) []string {
	names := make([]string, 0, len(colls))
	for _, c := range colls {
		names = append(names, c.Name)
	}
	return names
}

// notFoundAs replaces the generic store miss with a caller-facing message.
// Any other failure is returned as is.
func notFoundAs(err error, format string, args ...interface{}) error {
	var derr *Error
	if errors.As(err, &derr) && derr.Kind == ErrNotFound && derr.Message == DefaultNotFoundMessage {
		return NotFound(format, args...)
	}
	return err
}
