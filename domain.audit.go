package main

import "time"

// StockReason tells why a book stock was adjusted.
type StockReason string

const (
	StockLend       StockReason = "lend"
	StockReturn     StockReason = "return"
	StockRecall     StockReason = "recall"
	StockRemove     StockReason = "remove"
	StockCompensate StockReason = "compensate"
	// StockMismatch flags a loan whose stock side effect could not be applied.
	StockMismatch StockReason = "mismatch"
)

var _ Document[StockEvent] = StockEvent{} // ensure StockEvent can be kept in a Store.

// StockEvent is one entry of the stock audit journal.
type StockEvent struct {
	ID     string      `json:"id"`
	Book   string      `json:"book"`
	Loan   string      `json:"loan"`
	Delta  int         `json:"delta"`
	Reason StockReason `json:"reason"`
	Note   string      `json:"note,omitempty"`
	At     time.Time   `json:"at"`
}

func (e StockEvent) Key() string { return e.ID }

func (e StockEvent) WithKey(id string) StockEvent {
	e.ID = id
	return e
}

func (e StockEvent) Lookup(field string) (interface{}, bool) {
	switch field {
	case IDField:
		return e.ID, true
	case "book":
		return e.Book, true
	case "loan":
		return e.Loan, true
	case "reason":
		return string(e.Reason), true
	}
	return nil, false
}
