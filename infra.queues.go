package main

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStockEventsQueue is the redis list stock events go through.
const DefaultStockEventsQueue = "stock.events"

// popTimeout bounds a single blocking pop so consumers notice cancellation.
const popTimeout = 2 * time.Second

// ErrQueueEmpty is returned by Pop when no event arrived in time.
var ErrQueueEmpty = errors.New("queue: no event available")

// Ensure *redisQueue implements Queuer.
var _ Queuer = (*redisQueue)(nil)

// Queuer describes a queue of stock events.
type Queuer interface {
	Push(ctx context.Context, qid string, event StockEvent) error
	Pop(ctx context.Context, qids ...string) (string, StockEvent, error)
}

// redisQueue represents a queue which implements the Queuer interface.
type redisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) Queuer {
	return &redisQueue{client: client}
}

// Push enqueues an event onto the queue identified by qid.
func (q *redisQueue) Push(ctx context.Context, qid string, event StockEvent) error {
	data, err := codec.Marshal(event)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, qid, data).Err()
}

// Pop waits for an event on one of the queues for a limited time.
func (q *redisQueue) Pop(ctx context.Context, qids ...string) (string, StockEvent, error) {
	var event StockEvent
	infos, err := q.client.BLPop(ctx, popTimeout, qids...).Result()
	if errors.Is(err, redis.Nil) {
		return "", event, ErrQueueEmpty
	}
	if err != nil {
		return "", event, err
	}
	if err = codec.Unmarshal([]byte(infos[1]), &event); err != nil {
		return infos[0], event, err
	}
	return infos[0], event, nil
}

// Auditor receives the stock events raised by the loan ledger.
type Auditor interface {
	Record(ctx context.Context, event StockEvent) error
}

var (
	_ Auditor = (*queueAuditor)(nil)
	_ Auditor = (*journalAuditor)(nil)
)

type queueAuditor struct {
	queue Queuer
	qid   string
}

// NewQueueAuditor hands events over to the queue for asynchronous journaling.
func NewQueueAuditor(queue Queuer, qid string) Auditor {
	return &queueAuditor{queue: queue, qid: qid}
}

func (qa *queueAuditor) Record(ctx context.Context, event StockEvent) error {
	return qa.queue.Push(ctx, qa.qid, event)
}

type journalAuditor struct {
	journal Store[StockEvent]
}

// NewJournalAuditor writes events straight into the journal.
func NewJournalAuditor(journal Store[StockEvent]) Auditor {
	return &journalAuditor{journal: journal}
}

func (ja *journalAuditor) Record(ctx context.Context, event StockEvent) error {
	_, err := ja.journal.Create(ctx, event)
	return err
}
