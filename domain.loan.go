package main

import "time"

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanLent     LoanStatus = "LENT"
	LoanReturned LoanStatus = "RETURNED"
	LoanRecalled LoanStatus = "RECALLED"
)

// IsTerminal reports whether no further return or recall is allowed.
func (s LoanStatus) IsTerminal() bool {
	return s == LoanReturned || s == LoanRecalled
}

// LoanClosure tells which path moved a loan out of LENT.
type LoanClosure string

const (
	ClosedByReturn LoanClosure = "return"
	ClosedByRecall LoanClosure = "recall"
)

var _ Document[Loan] = Loan{} // ensure Loan can be kept in a Store.

// Loan binds one book to one borrower until it is returned or recalled.
type Loan struct {
	ID         string      `json:"id"`
	Borrower   string      `json:"borrower"`
	Book       string      `json:"book"`
	LoanDate   time.Time   `json:"loanDate"`
	ReturnDate *time.Time  `json:"returnDate,omitempty"`
	Status     LoanStatus  `json:"status"`
	ClosedBy   LoanClosure `json:"closedBy,omitempty"`
}

const (
	LoanFieldBorrower = "borrower"
	LoanFieldBook     = "book"
	LoanFieldStatus   = "status"
)

func (l Loan) Key() string { return l.ID }

func (l Loan) WithKey(id string) Loan {
	l.ID = id
	return l
}

func (l Loan) Lookup(field string) (interface{}, bool) {
	switch field {
	case IDField:
		return l.ID, true
	case LoanFieldBorrower:
		return l.Borrower, true
	case LoanFieldBook:
		return l.Book, true
	case LoanFieldStatus:
		return string(l.Status), true
	}
	return nil, false
}

// close moves a LENT loan to its terminal shape. The status persisted for
// both paths is RETURNED, the path itself is kept in ClosedBy.
func (l Loan) close(by LoanClosure, at time.Time) Loan {
	l.Status = LoanReturned
	l.ClosedBy = by
	l.ReturnDate = &at
	return l
}

// LoanView is the public representation of a loan.
type LoanView struct {
	ID         string      `json:"id"`
	Borrower   string      `json:"borrower"`
	Book       string      `json:"book"`
	LoanDate   time.Time   `json:"loanDate"`
	ReturnDate *time.Time  `json:"returnDate"`
	Status     LoanStatus  `json:"status"`
	ClosedBy   LoanClosure `json:"closedBy,omitempty"`
}

// NewLoanView projects a loan to its public view.
func NewLoanView(l Loan) LoanView {
	return LoanView{
		ID:         l.ID,
		Borrower:   l.Borrower,
		Book:       l.Book,
		LoanDate:   l.LoanDate,
		ReturnDate: l.ReturnDate,
		Status:     l.Status,
		ClosedBy:   l.ClosedBy,
	}
}
