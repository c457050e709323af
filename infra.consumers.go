package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// popRetryDelay spaces out pop attempts while the queue is failing.
const popRetryDelay = time.Second

type Consumer interface {
	Consume(ctx context.Context, qids ...string) error
}

// journalConsumer moves queued stock events into the audit journal.
type journalConsumer struct {
	logger  *zap.Logger
	queue   Queuer
	journal Store[StockEvent]
}

func NewJournalConsumer(logger *zap.Logger, q Queuer, journal Store[StockEvent]) Consumer {
	return &journalConsumer{logger, q, journal}
}

// Consume runs until ctx is done.
func (jc *journalConsumer) Consume(ctx context.Context, qids ...string) error {
	for {
		qid, event, err := jc.queue.Pop(ctx, qids...)
		if err != nil && ctx.Err() != nil {
			jc.logger.Info("consumer: queue pop call: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}

		if errors.Is(err, ErrQueueEmpty) {
			continue
		}

		if err != nil {
			jc.logger.Error("consumer: error on queue pop call", zap.String("qid", qid), zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(popRetryDelay):
			}
			continue
		}

		stored, err := jc.journal.Create(ctx, event)
		if err != nil {
			jc.logger.Error("consumer: failed to journal stock event", zap.String("qid", qid), zap.Any("event", event), zap.Error(err))
			continue
		}

		if event.Reason == StockMismatch {
			jc.logger.Warn("consumer: stock mismatch journaled",
				zap.String("id", stored.ID),
				zap.String("book", stored.Book),
				zap.String("loan", stored.Loan),
				zap.String("note", stored.Note),
			)
		}
	}
}
