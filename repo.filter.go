package main

import (
	"reflect"
	"regexp"
)

// IDField is the field name every document exposes its identity under.
const IDField = "id"

// Lookuper exposes the named fields of a document to filters.
type Lookuper interface {
	Lookup(field string) (interface{}, bool)
}

// Condition is a single predicate over the fields of a document.
type Condition interface {
	Match(doc Lookuper) bool
}

// Filter is a conjunction of conditions. An empty filter matches everything.
type Filter []Condition

// Match reports whether the document satisfies every condition.
func (f Filter) Match(doc Lookuper) bool {
	for _, c := range f {
		if !c.Match(doc) {
			return false
		}
	}
	return true
}

// ID returns the identity the filter pins, if any. Stores use it
// to read a single key instead of scanning the whole collection.
func (f Filter) ID() (string, bool) {
	for _, c := range f {
		if eq, ok := c.(eqCondition); ok && eq.field == IDField {
			if id, ok := eq.value.(string); ok {
				return id, true
			}
		}
	}
	return "", false
}

// And returns a new filter holding the conditions of both.
func (f Filter) And(conds ...Condition) Filter {
	out := make(Filter, 0, len(f)+len(conds))
	out = append(out, f...)
	return append(out, conds...)
}

// ByID matches the document with the given identity.
func ByID(id string) Filter {
	return Filter{Eq(IDField, id)}
}

// Where builds a filter from the given conditions.
func Where(conds ...Condition) Filter {
	return Filter(conds)
}

type eqCondition struct {
	field string
	value interface{}
}

// Eq matches documents whose field equals value.
func Eq(field string, value interface{}) Condition {
	return eqCondition{field: field, value: value}
}

func (c eqCondition) Match(doc Lookuper) bool {
	v, ok := doc.Lookup(c.field)
	return ok && equal(v, c.value)
}

type inCondition struct {
	field  string
	values []interface{}
}

// In matches documents whose field equals one of values.
func In(field string, values ...interface{}) Condition {
	return inCondition{field: field, values: values}
}

func (c inCondition) Match(doc Lookuper) bool {
	v, ok := doc.Lookup(c.field)
	if !ok {
		return false
	}
	for _, want := range c.values {
		if equal(v, want) {
			return true
		}
	}
	return false
}

type hasCondition struct {
	field string
	value string
}

// Has matches documents whose set-valued field contains value.
func Has(field string, value string) Condition {
	return hasCondition{field: field, value: value}
}

func (c hasCondition) Match(doc Lookuper) bool {
	v, ok := doc.Lookup(c.field)
	if !ok {
		return false
	}
	set, ok := v.([]string)
	if !ok {
		return false
	}
	for _, s := range set {
		if s == c.value {
			return true
		}
	}
	return false
}

type gteCondition struct {
	field string
	min   int
}

// Gte matches documents whose integer field is at least min.
func Gte(field string, min int) Condition {
	return gteCondition{field: field, min: min}
}

func (c gteCondition) Match(doc Lookuper) bool {
	v, ok := doc.Lookup(c.field)
	if !ok {
		return false
	}
	n, ok := v.(int)
	return ok && n >= c.min
}

type likeCondition struct {
	field string
	re    *regexp.Regexp
}

// Like matches documents whose string field contains text, ignoring case.
func Like(field string, text string) Condition {
	return likeCondition{field: field, re: regexp.MustCompile("(?i)" + regexp.QuoteMeta(text))}
}

func (c likeCondition) Match(doc Lookuper) bool {
	v, ok := doc.Lookup(c.field)
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && c.re.MatchString(s)
}

type orCondition []Condition

// Or matches documents satisfying at least one of conds.
func Or(conds ...Condition) Condition {
	return orCondition(conds)
}

func (c orCondition) Match(doc Lookuper) bool {
	for _, cond := range c {
		if cond.Match(doc) {
			return true
		}
	}
	return false
}

func equal(a, b interface{}) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == nil || tb == nil {
		return ta == tb
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	// named string types (statuses, formats) compare by their text.
	if va.Kind() == reflect.String && vb.Kind() == reflect.String {
		return va.String() == vb.String()
	}
	if !ta.Comparable() || !tb.Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}
