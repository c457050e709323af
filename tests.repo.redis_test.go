package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startRedisDockerContainer(t *testing.T) (string, func()) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("Failed to start Dockertest: %+v", err)
	}

	err = pool.Client.Ping()
	if err != nil {
		t.Fatalf("Could not connect to Docker: %+v", err)
	}

	resource, err := pool.Run("redis", "7.0.10-alpine", nil)
	if err != nil {
		t.Fatalf("Failed to start redis: %+v", err)
	}

	// build address the container is listening on
	addr := net.JoinHostPort("localhost", resource.GetPort("6379/tcp"))

	// ensure to wait for the container to be ready
	err = pool.Retry(func() error {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		return client.Ping(context.Background()).Err()
	})
	if err != nil {
		t.Fatalf("Failed to ping Redis: %+v", err)
	}

	destroyFunc := func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Failed to purge resource: %+v", err)
		}
	}

	return addr, destroyFunc
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("redis store tests need docker")
	}
	addr, destroyFunc := startRedisDockerContainer(t)
	defer destroyFunc()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	t.Run("store contract", func(t *testing.T) {
		runStoreContract(t, NewRedisStore[Book](zap.NewNop(), client, BooksCollection, &SequenceUIDHandler{}))
	})

	t.Run("queue push and pop", func(t *testing.T) {
		q := NewRedisQueue(client)
		ctx := context.Background()
		event := StockEvent{Book: "b:1", Loan: "l:1", Delta: -1, Reason: StockLend, At: NewMockClocker().Now()}
		require.NoError(t, q.Push(ctx, DefaultStockEventsQueue, event))

		qid, got, err := q.Pop(ctx, DefaultStockEventsQueue)
		require.NoError(t, err)
		assert.Equal(t, DefaultStockEventsQueue, qid)
		assert.Equal(t, event.Book, got.Book)
		assert.Equal(t, event.Reason, got.Reason)
		assert.True(t, event.At.Equal(got.At))
	})

	t.Run("journal consumer", func(t *testing.T) {
		// ensures queued events end up in the journal until the context is done.
		q := NewRedisQueue(client)
		journal := NewBoltStore[StockEvent](zap.NewNop(), newTestBoltDB(t), StockEventsCollection, NewIDsHandler())
		auditor := NewQueueAuditor(q, "test.stock.events")
		require.NoError(t, auditor.Record(context.Background(), StockEvent{Book: "b:7", Reason: StockReturn, Delta: 1}))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- NewJournalConsumer(zap.NewNop(), q, journal).Consume(ctx, "test.stock.events") }()

		assert.Eventually(t, func() bool {
			page, err := journal.FindAllPaginated(context.Background(), PageParams{}, Where(Eq("book", "b:7")))
			return err == nil && page.TotalItems == 1
		}, 5*time.Second, 50*time.Millisecond)
		cancel()
		assert.NoError(t, <-done)
	})
}
