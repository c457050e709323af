package main

import "time"

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

var _ Document[Author] = Author{} // ensure Author can be kept in a Store.

// Author represents an author entity.
type Author struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BirthDay  time.Time `json:"birthDay"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a Author) Key() string { return a.ID }

func (a Author) WithKey(id string) Author {
	a.ID = id
	return a
}

func (a Author) Lookup(field string) (interface{}, bool) {
	switch field {
	case IDField:
		return a.ID, true
	case "name":
		return a.Name, true
	}
	return nil, false
}

// AuthorView is the public representation of an author.
type AuthorView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	BirthDay string `json:"birthDay,omitempty"`
}

// NewAuthorView projects an author to its public view.
func NewAuthorView(a Author) AuthorView {
	v := AuthorView{ID: a.ID, Name: a.Name}
	if !a.BirthDay.IsZero() {
		v.BirthDay = a.BirthDay.Format(DateLayout)
	}
	return v
}

// AuthorInput holds the data to create or update an author.
// Nil fields are left untouched on update.
type AuthorInput struct {
	Name     *string    `json:"name"`
	BirthDay *time.Time `json:"-"`
}
