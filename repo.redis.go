package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// maxTxRetries bounds the optimistic WATCH/MULTI attempts of a single write.
const maxTxRetries = 32

// hashReader is the subset of commands shared by *redis.Client and *redis.Tx.
type hashReader interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HVals(ctx context.Context, key string) *redis.StringSliceCmd
}

// redisStore keeps one collection inside a single redis hash. Writes run
// inside WATCH/MULTI transactions on that hash so that the read, the
// checks and the write of an update happen as one unit.
type redisStore[T Document[T]] struct {
	logger *zap.Logger
	client *redis.Client
	coll   Collection
	ids    UIDHandler
}

// NewRedisStore provides an instance of redis-based document storage.
func NewRedisStore[T Document[T]](logger *zap.Logger, client *redis.Client, coll Collection, ids UIDHandler) Store[T] {
	return &redisStore[T]{
		logger: logger,
		client: client,
		coll:   coll,
		ids:    ids,
	}
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  config.Redis.PoolTimeout,
		Password:     config.Redis.Password,
		Username:     config.Redis.Username,
		DB:           config.Redis.DatabaseIndex,
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// Create inserts a new document under a freshly generated identity.
func (rs *redisStore[T]) Create(ctx context.Context, doc T) (T, error) {
	doc = doc.WithKey(rs.ids.Generate(rs.coll.IDPrefix))
	data, err := encodeDocument(doc)
	if err != nil {
		return doc, err
	}
	err = rs.transact(ctx, func(tx *redis.Tx) error {
		if len(rs.coll.Unique) > 0 {
			existing, err := rs.readAll(ctx, tx)
			if err != nil {
				return err
			}
			if err = checkUnique(rs.coll, existing, doc); err != nil {
				return err
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, rs.coll.Name, doc.Key(), data)
			return nil
		})
		return err
	})
	return doc, err
}

// FindOne retrieves the first document matching the filter.
func (rs *redisStore[T]) FindOne(ctx context.Context, filter Filter, notFoundMessage string) (T, error) {
	docs, err := rs.candidates(ctx, rs.client, filter)
	if err != nil {
		var zero T
		return zero, err
	}
	doc, ok := firstMatch(docs, filter)
	if !ok {
		rs.logger.Warn("document not found", zap.String("collection", rs.coll.Name), zap.Int("filter.size", len(filter)))
		return doc, NotFound("%s", messageOrDefault(notFoundMessage))
	}
	return doc, nil
}

// FindOneAndUpdate applies the patch on the first matching document and stores the result.
func (rs *redisStore[T]) FindOneAndUpdate(ctx context.Context, filter Filter, patch Patch[T]) (T, error) {
	var updated T
	err := rs.transact(ctx, func(tx *redis.Tx) error {
		docs, err := rs.candidates(ctx, tx, filter)
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
		if len(rs.coll.Unique) > 0 {
			existing, err := rs.readAll(ctx, tx)
			if err != nil {
				return err
			}
			if err = checkUnique(rs.coll, existing, next); err != nil {
				return err
			}
		}
		data, err := encodeDocument(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, rs.coll.Name, next.Key(), data)
			return nil
		})
		if err == nil {
			updated = next
		}
		return err
	})
	return updated, err
}

// Remove deletes at most one document matching the filter.
func (rs *redisStore[T]) Remove(ctx context.Context, filter Filter) (int, error) {
	var deleted int
	err := rs.transact(ctx, func(tx *redis.Tx) error {
		deleted = 0
		docs, err := rs.candidates(ctx, tx, filter)
		if err != nil {
			return err
		}
		doc, ok := firstMatch(docs, filter)
		if !ok {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, rs.coll.Name, doc.Key())
			return nil
		})
		if err == nil {
			deleted = 1
		}
		return err
	})
	return deleted, err
}

// FindAllPaginated counts and slices the matching documents from a single HVALS snapshot.
func (rs *redisStore[T]) FindAllPaginated(ctx context.Context, params PageParams, filter Filter) (Page[T], error) {
	docs, err := rs.readAll(ctx, rs.client)
	if err != nil {
		return Page[T]{}, err
	}
	return Paginate(matchAll(docs, filter), params), nil
}

// transact runs fn inside an optimistic transaction watching the collection
// hash and retries it when a concurrent writer touched the hash meanwhile.
func (rs *redisStore[T]) transact(ctx context.Context, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := rs.client.Watch(ctx, fn, rs.coll.Name)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		rs.logger.Debug("redis transaction conflict, retrying", zap.String("collection", rs.coll.Name), zap.Int("attempt", i+1))
	}
	return errTxAborted
}

func (rs *redisStore[T]) candidates(ctx context.Context, r hashReader, filter Filter) ([]T, error) {
	id, ok := filter.ID()
	if !ok {
		return rs.readAll(ctx, r)
	}
	raw, err := r.HGet(ctx, rs.coll.Name, id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument[T]([]byte(raw))
	if err != nil {
		return nil, err
	}
	return []T{doc}, nil
}

func (rs *redisStore[T]) readAll(ctx context.Context, r hashReader) ([]T, error) {
	values, err := r.HVals(ctx, rs.coll.Name).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]T, 0, len(values))
	for _, raw := range values {
		doc, err := decodeDocument[T]([]byte(raw))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func messageOrDefault(message string) string {
	if message == "" {
		return DefaultNotFoundMessage
	}
	return message
}
