package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/ladder/internal/ledger"
)

// createTestStore creates a new on-disk store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestMatch creates a match value with minimal required fields.
func createTestMatch(id ledger.MatchID, p1, p2 ledger.ParticipantID) ledger.Match {
	return ledger.Match{
		ID:      id,
		Players: [2]ledger.ParticipantID{p1, p2},
		State:   ledger.StateOpen,
	}
}

// resolvedMatch returns m resolved in favour of winner.
func resolvedMatch(m ledger.Match, winner ledger.ParticipantID) ledger.Match {
	m.State = ledger.StateResolved
	m.Winner = winner
	return m
}
