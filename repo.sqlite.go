package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // register the sqlite3 dialect
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

const dialectSQLite = "sqlite3"

// sqlExecutor is the subset of methods shared by *sql.DB and *sql.Tx.
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// sqliteStore keeps one collection as a two-columns table (id, doc). The
// database is used through a single connection and immediate transactions
// so that writers never interleave.
type sqliteStore[T Document[T]] struct {
	logger  *zap.Logger
	client  *sql.DB
	coll    Collection
	ids     UIDHandler
	builder goqu.DialectWrapper
}

// GetSQLiteClient opens the database file, creates the collection tables
// and provides a ready to use client.
func GetSQLiteClient(config *Config, tables ...string) (*sql.DB, error) {
	if dir := filepath.Dir(config.SQLite.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database folder: %v", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_txlock=immediate",
		config.SQLite.FilePath, config.SQLite.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	db.SetMaxOpenConns(1)

	for _, name := range tables {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (id TEXT PRIMARY KEY, doc TEXT NOT NULL)`, name)
		if _, err = db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s table: %v", name, err)
		}
	}
	return db, nil
}

// NewSQLiteStore provides an instance of sqlite-based document storage.
func NewSQLiteStore[T Document[T]](logger *zap.Logger, client *sql.DB, coll Collection, ids UIDHandler) Store[T] {
	return &sqliteStore[T]{
		logger:  logger,
		client:  client,
		coll:    coll,
		ids:     ids,
		builder: goqu.Dialect(dialectSQLite),
	}
}

// Create inserts a new document row.
func (ss *sqliteStore[T]) Create(ctx context.Context, doc T) (T, error) {
	doc = doc.WithKey(ss.ids.Generate(ss.coll.IDPrefix))
	data, err := encodeDocument(doc)
	if err != nil {
		return doc, err
	}
	query, args, err := ss.builder.Insert(ss.coll.Name).
		Rows(goqu.Record{"id": doc.Key(), "doc": string(data)}).
		Prepared(true).ToSQL()
	if err != nil {
		return doc, err
	}
	err = ss.withTx(ctx, func(tx *sql.Tx) error {
		if len(ss.coll.Unique) > 0 {
			existing, err := ss.readAll(ctx, tx)
			if err != nil {
				return err
			}
			if err = checkUnique(ss.coll, existing, doc); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	return doc, err
}

// FindOne retrieves the first document matching the filter.
func (ss *sqliteStore[T]) FindOne(ctx context.Context, filter Filter, notFoundMessage string) (T, error) {
	docs, err := ss.candidates(ctx, ss.client, filter)
	if err != nil {
		var zero T
		return zero, err
	}
	doc, ok := firstMatch(docs, filter)
	if !ok {
		ss.logger.Warn("document not found", zap.String("collection", ss.coll.Name), zap.Int("filter.size", len(filter)))
		return doc, NotFound("%s", messageOrDefault(notFoundMessage))
	}
	return doc, nil
}

// FindOneAndUpdate applies the patch on the first matching document within one immediate transaction.
func (ss *sqliteStore[T]) FindOneAndUpdate(ctx context.Context, filter Filter, patch Patch[T]) (T, error) {
	var updated T
	err := ss.withTx(ctx, func(tx *sql.Tx) error {
		docs, err := ss.candidates(ctx, tx, filter)
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
		if len(ss.coll.Unique) > 0 {
			existing, err := ss.readAll(ctx, tx)
			if err != nil {
				return err
			}
			if err = checkUnique(ss.coll, existing, next); err != nil {
				return err
			}
		}
		data, err := encodeDocument(next)
		if err != nil {
			return err
		}
		query, args, err := ss.builder.Update(ss.coll.Name).
			Set(goqu.Record{"doc": string(data)}).
			Where(goqu.C("id").Eq(next.Key())).
			Prepared(true).ToSQL()
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		updated = next
		return nil
	})
	return updated, err
}

// Remove deletes at most one document matching the filter.
func (ss *sqliteStore[T]) Remove(ctx context.Context, filter Filter) (int, error) {
	var deleted int
	err := ss.withTx(ctx, func(tx *sql.Tx) error {
		docs, err := ss.candidates(ctx, tx, filter)
		if err != nil {
			return err
		}
		doc, ok := firstMatch(docs, filter)
		if !ok {
			return nil
		}
		query, args, err := ss.builder.Delete(ss.coll.Name).
			Where(goqu.C("id").Eq(doc.Key())).
			Prepared(true).ToSQL()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = int(n)
		return err
	})
	return deleted, err
}

// FindAllPaginated counts and slices the matching documents read by a single query.
func (ss *sqliteStore[T]) FindAllPaginated(ctx context.Context, params PageParams, filter Filter) (Page[T], error) {
	docs, err := ss.readAll(ctx, ss.client)
	if err != nil {
		return Page[T]{}, err
	}
	return Paginate(matchAll(docs, filter), params), nil
}

func (ss *sqliteStore[T]) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := ss.client.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			ss.logger.Error("sqlite rollback failed", zap.String("collection", ss.coll.Name), zap.Error(rerr))
		}
		return err
	}
	return tx.Commit()
}

func (ss *sqliteStore[T]) candidates(ctx context.Context, ex sqlExecutor, filter Filter) ([]T, error) {
	id, ok := filter.ID()
	if !ok {
		return ss.readAll(ctx, ex)
	}
	query, args, err := ss.builder.From(ss.coll.Name).
		Select("doc").
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	return ss.query(ctx, ex, query, args...)
}

func (ss *sqliteStore[T]) readAll(ctx context.Context, ex sqlExecutor) ([]T, error) {
	query, args, err := ss.builder.From(ss.coll.Name).
		Select("doc").
		Order(goqu.C("id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	return ss.query(ctx, ex, query, args...)
}

func (ss *sqliteStore[T]) query(ctx context.Context, ex sqlExecutor, query string, args ...interface{}) ([]T, error) {
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []T{}
	for rows.Next() {
		var raw string
		if err = rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := decodeDocument[T]([]byte(raw))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
