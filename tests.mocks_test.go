package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

// This file contains mocks definitions needed to perform unit tests.

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock. This
// equals to `Sun, 02 Jul 2023 00:00:00 UTC` in time.RFC1123 format.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDHandler.
type MockUIDHandler struct {
	MockedUID string
	Valid     bool
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string, valid bool) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id, Valid: valid}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}

// IsValid mocks IsValid behavior by providing configured status.
func (muid *MockUIDHandler) IsValid(_, _ string) bool {
	return muid.Valid
}

// SequenceUIDHandler hands out increasing ids so listings order is known.
type SequenceUIDHandler struct {
	next uint64
}

func (s *SequenceUIDHandler) Generate(prefix string) string {
	return fmt.Sprintf("%s:%06d", prefix, atomic.AddUint64(&s.next, 1))
}

func (s *SequenceUIDHandler) IsValid(id, prefix string) bool {
	return len(id) > len(prefix)+1 && id[:len(prefix)+1] == prefix+":"
}

// MockAuditor keeps every recorded stock event in memory.
type MockAuditor struct {
	mu     sync.Mutex
	events []StockEvent
	err    error
}

func (ma *MockAuditor) Record(_ context.Context, event StockEvent) error {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.events = append(ma.events, event)
	return ma.err
}

// Reasons returns the reasons of the recorded events in order.
func (ma *MockAuditor) Reasons() []StockReason {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	out := make([]StockReason, 0, len(ma.events))
	for _, e := range ma.events {
		out = append(out, e.Reason)
	}
	return out
}

// MockQueuer is an in-memory Queuer backed by a channel.
type MockQueuer struct {
	events chan StockEvent
}

func NewMockQueuer(size int) *MockQueuer {
	return &MockQueuer{events: make(chan StockEvent, size)}
}

func (mq *MockQueuer) Push(_ context.Context, _ string, event StockEvent) error {
	mq.events <- event
	return nil
}

func (mq *MockQueuer) Pop(ctx context.Context, qids ...string) (string, StockEvent, error) {
	select {
	case <-ctx.Done():
		return "", StockEvent{}, ctx.Err()
	case e := <-mq.events:
		return qids[0], e, nil
	}
}

// MockStockKeeper wraps a real StockKeeper and may fail its stock updates.
type MockStockKeeper struct {
	StockKeeper
	DecrementErr error
	IncrementErr error
}

func (m *MockStockKeeper) DecrementStock(ctx context.Context, id string) (Book, error) {
	if m.DecrementErr != nil {
		return Book{}, m.DecrementErr
	}
	return m.StockKeeper.DecrementStock(ctx, id)
}

func (m *MockStockKeeper) IncrementStock(ctx context.Context, id string) (Book, error) {
	if m.IncrementErr != nil {
		return Book{}, m.IncrementErr
	}
	return m.StockKeeper.IncrementStock(ctx, id)
}

// newTestBoltDB opens a boltdb file with every collection bucket ready.
func newTestBoltDB(t *testing.T) *bolt.DB {
	t.Helper()
	config := &Config{BoltDB: BoltDBConfig{FilePath: filepath.Join(t.TempDir(), "lending.db"), Timeout: time.Second}}
	db, err := GetBoltDBClient(config, collectionNames(append(DomainCollections(), StockEventsCollection)...)...)
	if err != nil {
		t.Fatalf("failed to open boltdb: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testEnv holds the services wired on a fresh boltdb file.
type testEnv struct {
	clock     *MockClocker
	catalog   *CatalogService
	borrowers *BorrowerService
	loans     *LoanService
	auditor   *MockAuditor
	journal   Store[StockEvent]
	stock     *MockStockKeeper
	loanStore Store[Loan]
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestBoltDB(t)
	logger := zap.NewNop()
	ids := NewIDsHandler()
	clock := NewMockClocker()
	catalog := NewCatalogService(logger, clock,
		NewBoltStore[Author](logger, db, AuthorsCollection, ids),
		NewBoltStore[Book](logger, db, BooksCollection, ids),
	)
	borrowers := NewBorrowerService(logger, clock, NewBoltStore[Borrower](logger, db, BorrowersCollection, ids))
	loanStore := NewBoltStore[Loan](logger, db, LoansCollection, ids)
	stock := &MockStockKeeper{StockKeeper: catalog}
	auditor := &MockAuditor{}
	return &testEnv{
		clock:     clock,
		catalog:   catalog,
		borrowers: borrowers,
		loans:     NewLoanService(logger, clock, loanStore, stock, borrowers, auditor),
		auditor:   auditor,
		journal:   NewBoltStore[StockEvent](logger, db, StockEventsCollection, ids),
		stock:     stock,
		loanStore: loanStore,
	}
}

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

// seedBook creates an author and a book with the given formats and stock.
func (env *testEnv) seedBook(t *testing.T, name string, stock int, types ...BookType) Book {
	t.Helper()
	ctx := context.Background()
	author, err := env.catalog.CreateAuthor(ctx, AuthorInput{Name: strPtr("Author of " + name)})
	if err != nil {
		t.Fatalf("failed to seed author: %v", err)
	}
	in := CreateBookInput{Name: name, AuthorID: author.ID, Types: types}
	if stock > 0 {
		in.StockCount = intPtr(stock)
	}
	for _, bt := range types {
		if bt == BookTypeDigital {
			in.FileURL = "/files/" + name + ".pdf"
		}
	}
	book, err := env.catalog.CreateBook(ctx, in)
	if err != nil {
		t.Fatalf("failed to seed book: %v", err)
	}
	return book
}

func (env *testEnv) seedBorrower(t *testing.T, name string) Borrower {
	t.Helper()
	b, err := env.borrowers.CreateBorrower(context.Background(), name)
	if err != nil {
		t.Fatalf("failed to seed borrower: %v", err)
	}
	return b
}
