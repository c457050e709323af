package main

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	msgLoanNotFound      = "Loan with given id not found."
	msgNoBorrowerForUser = "No borrower profile found for this user."
)

// LoanServiceProvider drives the loan lifecycle and keeps the stock of the
// lent books in line with it.
type LoanServiceProvider interface {
	CreateLoan(ctx context.Context, borrowerID, bookID string) (Loan, error)
	Borrow(ctx context.Context, user User, bookID string) (Loan, error)
	ReturnBook(ctx context.Context, id string) (Loan, error)
	RecallBook(ctx context.Context, id string, role Role) (Loan, error)
	RemoveLoan(ctx context.Context, id string) error
	FindOne(ctx context.Context, id string) (Loan, error)
	FindAll(ctx context.Context, params PageParams) (Page[Loan], error)
	FindByBorrower(ctx context.Context, borrowerID string, params PageParams) (Page[Loan], error)
	FindHistoryForUser(ctx context.Context, userID string, params PageParams) (Page[Loan], error)
}

var _ LoanServiceProvider = (*LoanService)(nil)

type LoanService struct {
	logger    *zap.Logger
	clock     Clocker
	loans     Store[Loan]
	catalog   StockKeeper
	borrowers BorrowerServiceProvider
	auditor   Auditor
}

func NewLoanService(logger *zap.Logger, clock Clocker, loans Store[Loan], catalog StockKeeper, borrowers BorrowerServiceProvider, auditor Auditor) *LoanService {
	return &LoanService{
		logger:    logger,
		clock:     clock,
		loans:     loans,
		catalog:   catalog,
		borrowers: borrowers,
		auditor:   auditor,
	}
}

// CreateLoan lends one physical copy of the book to the borrower. The loan
// is stored before the stock is taken so that a failure in between never
// leaves a decremented stock without a loan. When the copy could not be
// taken the loan is removed again.
func (ls *LoanService) CreateLoan(ctx context.Context, borrowerID, bookID string) (Loan, error) {
	var (
		borrower Borrower
		book     Book
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, ok, err := ls.borrowers.FindByID(gctx, borrowerID)
		if err != nil {
			return err
		}
		if !ok {
			return NotFound(msgBorrowerNotFound)
		}
		borrower = b
		return nil
	})
	g.Go(func() error {
		b, err := ls.catalog.FindBook(gctx, bookID)
		book = b
		return err
	})
	if err := g.Wait(); err != nil {
		return Loan{}, err
	}

	if !book.Types.Has(BookTypePhysical) {
		return Loan{}, InvalidFormat("Only physical books can be borrowed.")
	}
	if book.StockCount < 1 {
		return Loan{}, OutOfStock("Book out of stock.")
	}

	loan, err := ls.loans.Create(ctx, Loan{
		Borrower: borrower.ID,
		Book:     book.ID,
		LoanDate: ls.clock.Now(),
		Status:   LoanLent,
	})
	if err != nil {
		return Loan{}, err
	}

	if _, err = ls.catalog.DecrementStock(ctx, book.ID); err != nil {
		ls.compensate(ctx, loan, err)
		return Loan{}, err
	}
	ls.record(ctx, loan, -1, StockLend, "")
	return loan, nil
}

// Borrow lends the book to the borrower profile of the user, registering
// the profile on first use.
func (ls *LoanService) Borrow(ctx context.Context, user User, bookID string) (Loan, error) {
	borrower, err := ls.borrowers.RegisterOrGet(ctx, user)
	if err != nil {
		return Loan{}, err
	}
	return ls.CreateLoan(ctx, borrower.ID, bookID)
}

func (ls *LoanService) ReturnBook(ctx context.Context, id string) (Loan, error) {
	return ls.close(ctx, id, ClosedByReturn, "Only active loans can be returned.")
}

// RecallBook ends an active loan on behalf of a librarian.
func (ls *LoanService) RecallBook(ctx context.Context, id string, role Role) (Loan, error) {
	if role != RoleLibrarian {
		return Loan{}, Forbidden("Only librarians can recall books.")
	}
	return ls.close(ctx, id, ClosedByRecall, "Only active loans can be recalled.")
}

// RemoveLoan deletes the loan. The copy goes back to the stock only when
// the loan was still active.
func (ls *LoanService) RemoveLoan(ctx context.Context, id string) error {
	loan, err := ls.FindOne(ctx, id)
	if err != nil {
		return err
	}

	n, err := ls.loans.Remove(ctx, ByID(id).And(Eq(LoanFieldStatus, LoanLent)))
	if err != nil {
		return err
	}
	if n == 1 {
		ls.refund(ctx, loan, StockRemove)
		return nil
	}

	n, err = ls.loans.Remove(ctx, ByID(id))
	if err != nil {
		return err
	}
	if n == 0 {
		return NotFound(msgLoanNotFound)
	}
	return nil
}

func (ls *LoanService) FindOne(ctx context.Context, id string) (Loan, error) {
	return ls.loans.FindOne(ctx, ByID(id), msgLoanNotFound)
}

func (ls *LoanService) FindAll(ctx context.Context, params PageParams) (Page[Loan], error) {
	return ls.loans.FindAllPaginated(ctx, params, nil)
}

func (ls *LoanService) FindByBorrower(ctx context.Context, borrowerID string, params PageParams) (Page[Loan], error) {
	return ls.loans.FindAllPaginated(ctx, params, Where(Eq(LoanFieldBorrower, borrowerID)))
}

func (ls *LoanService) FindHistoryForUser(ctx context.Context, userID string, params PageParams) (Page[Loan], error) {
	borrower, ok, err := ls.borrowers.FindByUserID(ctx, userID)
	if err != nil {
		return Page[Loan]{}, err
	}
	if !ok {
		return Page[Loan]{}, NotFound(msgNoBorrowerForUser)
	}
	return ls.FindByBorrower(ctx, borrower.ID, params)
}

// close moves an active loan out of LENT in one atomic update, then puts
// the copy back into the stock.
func (ls *LoanService) close(ctx context.Context, id string, by LoanClosure, inactive string) (Loan, error) {
	loan, err := ls.loans.FindOneAndUpdate(ctx, ByID(id), func(l Loan) (Loan, error) {
		if l.Status.IsTerminal() {
			return l, InvalidState("%s", inactive)
		}
		return l.close(by, ls.clock.Now()), nil
	})
	if err != nil {
		return Loan{}, notFoundAs(err, msgLoanNotFound)
	}

	reason := StockReturn
	if by == ClosedByRecall {
		reason = StockRecall
	}
	ls.refund(ctx, loan, reason)
	return loan, nil
}

// refund gives the copy of a closed loan back. The loan state change has
// already happened so a failure here is flagged, not returned.
func (ls *LoanService) refund(ctx context.Context, loan Loan, reason StockReason) {
	if _, err := ls.catalog.IncrementStock(context.WithoutCancel(ctx), loan.Book); err != nil {
		ls.logger.Error("loans: failed to put copy back into stock",
			zap.String("loan", loan.ID),
			zap.String("book", loan.Book),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
		ls.record(ctx, loan, 0, StockMismatch, "increment failed: "+err.Error())
		return
	}
	ls.record(ctx, loan, 1, reason, "")
}

// compensate removes a loan whose copy could not be taken from the stock.
func (ls *LoanService) compensate(ctx context.Context, loan Loan, cause error) {
	var derr *Error
	if !errors.As(cause, &derr) {
		ls.logger.Warn("loans: stock decrement failed", zap.String("loan", loan.ID), zap.Error(cause))
	}
	if _, err := ls.loans.Remove(context.WithoutCancel(ctx), ByID(loan.ID)); err != nil {
		ls.logger.Error("loans: failed to remove loan without stock",
			zap.String("loan", loan.ID),
			zap.String("book", loan.Book),
			zap.Error(err),
		)
		ls.record(ctx, loan, 0, StockMismatch, "compensation failed: "+err.Error())
		return
	}
	ls.record(ctx, loan, 0, StockCompensate, cause.Error())
}

// record publishes a stock event. Auditing is best effort.
func (ls *LoanService) record(ctx context.Context, loan Loan, delta int, reason StockReason, note string) {
	event := StockEvent{
		Book:   loan.Book,
		Loan:   loan.ID,
		Delta:  delta,
		Reason: reason,
		Note:   note,
		At:     ls.clock.Now(),
	}
	if err := ls.auditor.Record(context.WithoutCancel(ctx), event); err != nil {
		ls.logger.Error("loans: failed to record stock event",
			zap.String("loan", loan.ID),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
	}
}
