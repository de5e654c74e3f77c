package ladder

import (
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator produces unique audit-event IDs.
// Implemented by UUIDv7Generator (production) and testutil.SequenceGenerator (tests).
type IDGenerator interface {
	Generate() (string, error)
}

// UUIDv7Generator generates time-sortable UUIDv7 event IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, so event IDs sort
// by creation time, which keeps the audit trail readable in ad-hoc queries.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// It fails only when the system random source does.
func (UUIDv7Generator) Generate() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate event id: %w", err)
	}
	return id.String(), nil
}
