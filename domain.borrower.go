package main

import "time"

// Role is the role of a system user as asserted by the identity layer.
type Role string

const (
	RoleReader    Role = "reader"
	RoleLibrarian Role = "librarian"
)

// User is a system user account as handed over by the identity layer.
type User struct {
	ID   string
	Name string
	Role Role
}

var _ Document[Borrower] = Borrower{} // ensure Borrower can be kept in a Store.

// Borrower is a library-facing profile, optionally linked to one system user.
type Borrower struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserID    string    `json:"user,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	BorrowerFieldName = "name"
	BorrowerFieldUser = "user"
)

func (b Borrower) Key() string { return b.ID }

func (b Borrower) WithKey(id string) Borrower {
	b.ID = id
	return b
}

func (b Borrower) Lookup(field string) (interface{}, bool) {
	switch field {
	case IDField:
		return b.ID, true
	case BorrowerFieldName:
		return b.Name, true
	case BorrowerFieldUser:
		return b.UserID, true
	}
	return nil, false
}

// BorrowerView is the public representation of a borrower.
type BorrowerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	User string `json:"user,omitempty"`
}

// NewBorrowerView projects a borrower to its public view.
func NewBorrowerView(b Borrower) BorrowerView {
	return BorrowerView{ID: b.ID, Name: b.Name, User: b.UserID}
}
