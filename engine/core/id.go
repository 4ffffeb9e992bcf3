package core

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is the opaque identifier type used for documents, sessions, and
// analysis requests.
type ID string

func (i ID) String() string {
	return string(i)
}

func (i ID) IsZero() bool {
	return i == ""
}

// NewID generates a new random ID.
func NewID() (ID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return ID(id.String()), nil
}

// MustNewID generates a new ID, panicking on failure. Use where ID
// generation cannot reasonably fail.
func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

// ParseID validates that the given string is a well-formed ID.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("id cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(s), nil
}

// NewDocumentID generates a prefixed document identifier.
func NewDocumentID() string {
	return "doc_" + MustNewID().String()
}

// NewRequestID generates a prefixed analysis request identifier.
func NewRequestID() string {
	return "req_" + MustNewID().String()
}

// NewSessionID generates a chat session identifier.
func NewSessionID() string {
	return MustNewID().String()
}
