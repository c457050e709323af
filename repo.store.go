package main

import (
	"context"
	"errors"
	"reflect"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

// codec serializes every persisted document and queued event.
var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// errTxAborted is returned by drivers when an optimistic transaction kept
// failing because of concurrent writers.
var errTxAborted = errors.New("storage: transaction aborted after too many conflicts")

// DefaultNotFoundMessage is used when callers do not provide their own.
const DefaultNotFoundMessage = "Document not found."

// Document is implemented by every entity kept in a Store. Implementations
// use value receivers so that a Store can hold plain structs.
type Document[T any] interface {
	Lookuper
	Key() string
	WithKey(id string) T
}

// Patch receives the currently stored document and returns its new version.
// Returning an error aborts the update without writing anything.
type Patch[T any] func(current T) (T, error)

// Store defines the generic operations available on one entity collection.
type Store[T Document[T]] interface {
	Create(ctx context.Context, doc T) (T, error)
	FindOne(ctx context.Context, filter Filter, notFoundMessage string) (T, error)
	FindOneAndUpdate(ctx context.Context, filter Filter, patch Patch[T]) (T, error)
	Remove(ctx context.Context, filter Filter) (int, error)
	FindAllPaginated(ctx context.Context, params PageParams, filter Filter) (Page[T], error)
}

// Collection describes how a given entity type is persisted.
type Collection struct {
	Name     string
	IDPrefix string
	Unique   []string
}

func encodeDocument[T any](doc T) ([]byte, error) {
	return codec.Marshal(doc)
}

func decodeDocument[T any](data []byte) (T, error) {
	var doc T
	err := codec.Unmarshal(data, &doc)
	return doc, err
}

func sortByKey[T Document[T]](docs []T) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Key() < docs[j].Key()
	})
}

// matchAll returns, in key order, the documents satisfying the filter.
func matchAll[T Document[T]](docs []T, filter Filter) []T {
	sortByKey(docs)
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		if filter.Match(doc) {
			out = append(out, doc)
		}
	}
	return out
}

func firstMatch[T Document[T]](docs []T, filter Filter) (T, bool) {
	matches := matchAll(docs, filter)
	if len(matches) == 0 {
		var zero T
		return zero, false
	}
	return matches[0], true
}

// checkUnique verifies that candidate does not share any unique field value
// with another document of the collection. Zero values never collide.
func checkUnique[T Document[T]](coll Collection, existing []T, candidate T) error {
	for _, field := range coll.Unique {
		value, ok := candidate.Lookup(field)
		if !ok || isZero(value) {
			continue
		}
		for _, doc := range existing {
			if doc.Key() == candidate.Key() {
				continue
			}
			if other, ok := doc.Lookup(field); ok && equal(other, value) {
				return &DuplicateKeyError{Collection: coll.Name, Field: field, Value: value}
			}
		}
	}
	return nil
}

func isZero(v interface{}) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}
