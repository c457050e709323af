package main

import (
	"bytes"
	"strings"
	"sync"

	"github.com/gofrs/uuid"
)

var _ UIDHandler = (*IDsHandler)(nil) // ensure IDsHandler implements UIDHandler.

// UIDHandler generates and checks prefixed identities like `b:<uuid>`.
type UIDHandler interface {
	Generate(prefix string) string
	IsValid(id string, prefix string) bool
}

// IDsHandler implements the UIDHandler interface on top of time ordered
// uuids. Identities it hands out are strictly increasing, so key order is
// creation order even within the same millisecond.
type IDsHandler struct {
	mu   sync.Mutex
	last uuid.UUID
}

// NewIDsHandler returns a ready to use IDsHandler.
func NewIDsHandler() *IDsHandler {
	return &IDsHandler{}
}

// Generate provides a unique sortable identifier carrying the given prefix.
func (idh *IDsHandler) Generate(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.Must(uuid.NewV4())
	}

	idh.mu.Lock()
	if bytes.Compare(id[:], idh.last[:]) <= 0 {
		id = successor(idh.last)
	}
	idh.last = id
	idh.mu.Unlock()

	return prefix + ":" + id.String()
}

// successor increments the random tail of id. Version and variant bits
// live in bytes 6 and 8 and are left untouched.
func successor(id uuid.UUID) uuid.UUID {
	for i := len(id) - 1; i > 8; i-- {
		id[i]++
		if id[i] != 0 {
			break
		}
	}
	return id
}

// IsValid checks that id carries the prefix followed by a valid uuid.
func (idh *IDsHandler) IsValid(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix+":")
	if !ok {
		return false
	}
	return uuid.FromStringOrNil(rest) != uuid.Nil
}
