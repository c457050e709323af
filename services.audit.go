package main

import (
	"context"
)

// AuditServiceProvider reads the stock audit journal.
type AuditServiceProvider interface {
	ListStockEvents(ctx context.Context, bookID string, params PageParams) (Page[StockEvent], error)
}

type AuditService struct {
	journal Store[StockEvent]
	catalog StockKeeper
}

func NewAuditService(journal Store[StockEvent], catalog StockKeeper) AuditServiceProvider {
	return &AuditService{journal: journal, catalog: catalog}
}

// ListStockEvents pages over the events of an existing book, oldest first.
func (as *AuditService) ListStockEvents(ctx context.Context, bookID string, params PageParams) (Page[StockEvent], error) {
	if _, err := as.catalog.FindBook(ctx, bookID); err != nil {
		return Page[StockEvent]{}, err
	}
	return as.journal.FindAllPaginated(ctx, params, Where(Eq("book", bookID)))
}
