package main

import (
	"context"
	"fmt"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

// boltStore keeps one collection inside a bolt bucket. Bolt allows a single
// writer at a time so every write transaction is atomic by construction.
type boltStore[T Document[T]] struct {
	logger *zap.Logger
	client *bolt.DB
	coll   Collection
	ids    UIDHandler
}

// GetBoltDBClient setup the database and the buckets then provides a ready to use client.
func GetBoltDBClient(config *Config, buckets ...string) (*bolt.DB, error) {
	db, err := bolt.Open(config.BoltDB.FilePath, 0o600, &bolt.Options{Timeout: config.BoltDB.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, errB := tx.CreateBucketIfNotExists([]byte(name)); errB != nil {
				return fmt.Errorf("failed to create %s bucket: %v", name, errB)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set up buckets: %v", err)
	}
	return db, nil
}

// NewBoltStore provides an instance of bolt-based document storage.
// The collection bucket must have been created by GetBoltDBClient.
func NewBoltStore[T Document[T]](logger *zap.Logger, client *bolt.DB, coll Collection, ids UIDHandler) Store[T] {
	return &boltStore[T]{
		logger: logger,
		client: client,
		coll:   coll,
		ids:    ids,
	}
}

// Create inserts a new document into boltdb store.
func (bs *boltStore[T]) Create(_ context.Context, doc T) (T, error) {
	doc = doc.WithKey(bs.ids.Generate(bs.coll.IDPrefix))
	data, err := encodeDocument(doc)
	if err != nil {
		return doc, err
	}
	err = bs.client.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bs.coll.Name))
		if len(bs.coll.Unique) > 0 {
			existing, err := bs.readAll(b)
			if err != nil {
				return err
			}
			if err = checkUnique(bs.coll, existing, doc); err != nil {
				return err
			}
		}
		return b.Put([]byte(doc.Key()), data)
	})
	return doc, err
}

// FindOne retrieves the first document matching the filter.
func (bs *boltStore[T]) FindOne(_ context.Context, filter Filter, notFoundMessage string) (T, error) {
	var doc T
	var found bool
	err := bs.client.View(func(tx *bolt.Tx) error {
		docs, err := bs.candidates(tx.Bucket([]byte(bs.coll.Name)), filter)
		if err != nil {
			return err
		}
		doc, found = firstMatch(docs, filter)
		return nil
	})
	if err != nil {
		return doc, err
	}
	if !found {
		bs.logger.Warn("document not found", zap.String("collection", bs.coll.Name), zap.Int("filter.size", len(filter)))
		return doc, NotFound("%s", messageOrDefault(notFoundMessage))
	}
	return doc, nil
}

// FindOneAndUpdate applies the patch on the first matching document within one write transaction.
func (bs *boltStore[T]) FindOneAndUpdate(_ context.Context, filter Filter, patch Patch[T]) (T, error) {
	var updated T
	err := bs.client.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bs.coll.Name))
		docs, err := bs.candidates(b, filter)
		if err != nil {
			return err
		}
		current, ok := firstMatch(docs, filter)
		if !ok {
			return NotFound(DefaultNotFoundMessage)
		}
		next, err := patch(current)
		if err != nil {
			return err
		}
		next = next.WithKey(current.Key())
		if len(bs.coll.Unique) > 0 {
			existing, err := bs.readAll(b)
			if err != nil {
				return err
			}
			if err = checkUnique(bs.coll, existing, next); err != nil {
				return err
			}
		}
		data, err := encodeDocument(next)
		if err != nil {
			return err
		}
		if err = b.Put([]byte(next.Key()), data); err != nil {
			return err
		}
		updated = next
		return nil
	})
	return updated, err
}

// Remove deletes at most one document matching the filter from boltdb store.
func (bs *boltStore[T]) Remove(_ context.Context, filter Filter) (int, error) {
	var deleted int
	err := bs.client.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bs.coll.Name))
		docs, err := bs.candidates(b, filter)
		if err != nil {
			return err
		}
		doc, ok := firstMatch(docs, filter)
		if !ok {
			return nil
		}
		if err = b.Delete([]byte(doc.Key())); err != nil {
			return err
		}
		deleted = 1
		return nil
	})
	return deleted, err
}

// FindAllPaginated counts and slices the matching documents inside one read transaction.
func (bs *boltStore[T]) FindAllPaginated(_ context.Context, params PageParams, filter Filter) (Page[T], error) {
	// initialize a readable transaction.
	tx, err := bs.client.Begin(false)
	if err != nil {
		return Page[T]{}, err
	}
	defer tx.Rollback()

	docs, err := bs.readAll(tx.Bucket([]byte(bs.coll.Name)))
	if err != nil {
		return Page[T]{}, err
	}
	return Paginate(matchAll(docs, filter), params), nil
}

func (bs *boltStore[T]) candidates(b *bolt.Bucket, filter Filter) ([]T, error) {
	id, ok := filter.ID()
	if !ok {
		return bs.readAll(b)
	}
	raw := b.Get([]byte(id))
	if raw == nil {
		return nil, nil
	}
	doc, err := decodeDocument[T](raw)
	if err != nil {
		return nil, err
	}
	return []T{doc}, nil
}

func (bs *boltStore[T]) readAll(b *bolt.Bucket) ([]T, error) {
	docs := []T{}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		doc, err := decodeDocument[T](v)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
