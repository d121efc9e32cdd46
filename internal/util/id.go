// Package util provides identifier, numbering and clock helpers for plantops.
package util

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// IDGenerator produces time-ordered UUIDv7 identifiers.
type IDGenerator struct{}

// NewIDGenerator creates a new ID generator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// NewID generates a new UUIDv7 identifier from this generator.
func (g *IDGenerator) NewID() string {
	return NewID()
}

// NewID generates a new UUIDv7 identifier. UUIDv7 keeps primary keys
// roughly insertion ordered, which ledger history relies on for ties.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// ParseID validates and normalizes a UUID string.
func ParseID(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid ID format: %w", err)
	}
	return id.String(), nil
}

// FormatDocumentNumber renders a sequence as PREFIX-000001.
func FormatDocumentNumber(prefix string, seq int) string {
	return fmt.Sprintf("%s-%06d", prefix, seq)
}

// ParseDocumentNumber extracts the sequence from a number produced by
// FormatDocumentNumber with the same prefix.
func ParseDocumentNumber(prefix, number string) (int, error) {
	rest, ok := strings.CutPrefix(number, prefix+"-")
	if !ok {
		return 0, fmt.Errorf("document number %q lacks prefix %q", number, prefix)
	}
	var seq int
	if _, err := fmt.Sscanf(rest, "%d", &seq); err != nil {
		return 0, fmt.Errorf("invalid document number %q: %w", number, err)
	}
	return seq, nil
}
