package ledger

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ParticipantID is the stable identity of a participant as supplied by the
// chat platform. The ledger never interprets it.
type ParticipantID int64

// MatchID identifies a match. IDs are issued in strictly increasing order
// and are never reused.
type MatchID int64

// FirstMatchID is the ID issued to the first match of a fresh ledger.
const FirstMatchID MatchID = 1

// MatchState is the lifecycle state of a match.
type MatchState int

const (
	// StateOpen means the match is waiting for a result report.
	StateOpen MatchState = iota + 1
	// StateResolved means the match has a recorded winner.
	StateResolved
)

// String returns the persisted name of the state.
func (s MatchState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("MatchState(%d)", int(s))
	}
}

// ParseMatchState is the inverse of MatchState.String.
func ParseMatchState(s string) (MatchState, error) {
	switch s {
	case "open":
		return StateOpen, nil
	case "resolved":
		return StateResolved, nil
	default:
		return 0, fmt.Errorf("unknown match state %q", s)
	}
}

// Outcome is a result as reported by one of the players.
type Outcome int

const (
	// Win means the reporter won.
	Win Outcome = iota + 1
	// Loss means the reporter lost.
	Loss
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "w"
	case Loss:
		return "l"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ParseOutcome accepts "w", "win", "l" and "loss" in any case and any
// Unicode compatibility form (full-width letters included).
func ParseOutcome(token string) (Outcome, error) {
	switch strings.ToLower(norm.NFKC.String(strings.TrimSpace(token))) {
	case "w", "win":
		return Win, nil
	case "l", "loss":
		return Loss, nil
	default:
		return 0, NewInvalidInputError(fmt.Sprintf("invalid outcome %q: expected w or l", token))
	}
}

// Match is a two-player match.
//
// INVARIANTS:
//   - Players[0] != Players[1]
//   - Winner is one of Players iff State == StateResolved, zero otherwise
type Match struct {
	ID      MatchID
	Players [2]ParticipantID
	State   MatchState
	Winner  ParticipantID
}

// Has reports whether p plays in the match.
func (m Match) Has(p ParticipantID) bool {
	return m.Players[0] == p || m.Players[1] == p
}

// Opponent returns the other player. p must be a player of the match.
func (m Match) Opponent(p ParticipantID) ParticipantID {
	if m.Players[0] == p {
		return m.Players[1]
	}
	return m.Players[0]
}

// Resolved reports whether the match has a recorded winner.
func (m Match) Resolved() bool {
	return m.State == StateResolved
}

// Loser returns the losing player of a resolved match.
func (m Match) Loser() ParticipantID {
	return m.Opponent(m.Winner)
}

// Record is the aggregated win/loss count of one participant.
type Record struct {
	Participant ParticipantID
	Wins        int
	Losses      int
}

// Played returns the number of resolved matches the participant took part in.
func (r Record) Played() int {
	return r.Wins + r.Losses
}
