package ledger

import (
	"errors"
	"fmt"
	"sort"
)

// MatchLedger is the authoritative record of matches and their resolution
// state. Every transition that changes a match outcome updates StatsLedger
// in the same call.
type MatchLedger struct {
	matches  map[MatchID]Match
	next     MatchID // next ID to issue; greater than every ID ever issued
	resolved int     // number of matches in StateResolved
	stats    *StatsLedger
	t        *tracker
}

func newMatchLedger(stats *StatsLedger, t *tracker) *MatchLedger {
	return &MatchLedger{
		matches: make(map[MatchID]Match),
		next:    FirstMatchID,
		stats:   stats,
		t:       t,
	}
}

// Create opens a new match between p1 and p2 under the next match ID.
func (l *MatchLedger) Create(p1, p2 ParticipantID) (Match, error) {
	if p1 == p2 {
		return Match{}, NewInvalidPairingError(p1)
	}

	id := l.next
	l.next++

	m := Match{
		ID:      id,
		Players: [2]ParticipantID{p1, p2},
		State:   StateOpen,
	}
	l.put(m)
	return m, nil
}

// Resolve records the result reported by reporter. A Win makes the reporter
// the winner; a Loss makes the opponent the winner.
func (l *MatchLedger) Resolve(id MatchID, reporter ParticipantID, outcome Outcome) (Match, error) {
	m, ok := l.matches[id]
	if !ok {
		return Match{}, NewNotFoundError(id)
	}
	if !m.Has(reporter) {
		return Match{}, NewNotParticipantError(id, reporter)
	}
	if m.Resolved() {
		return Match{}, NewAlreadyResolvedError(m)
	}

	var winner ParticipantID
	switch outcome {
	case Win:
		winner = reporter
	case Loss:
		winner = m.Opponent(reporter)
	default:
		return Match{}, NewInvalidInputError(fmt.Sprintf("invalid outcome %d", outcome))
	}

	m.State = StateResolved
	m.Winner = winner
	l.resolved++
	l.put(m)
	l.stats.Apply(winner, m.Loser())

	return m, nil
}

// Get returns the match with the given ID.
func (l *MatchLedger) Get(id MatchID) (Match, error) {
	m, ok := l.matches[id]
	if !ok {
		return Match{}, NewNotFoundError(id)
	}
	return m, nil
}

// Delete removes a match. If the match was resolved its stats delta is
// reversed first. Returns the match as it was before removal.
func (l *MatchLedger) Delete(id MatchID) (Match, error) {
	m, ok := l.matches[id]
	if !ok {
		return Match{}, NewNotFoundError(id)
	}

	if m.Resolved() {
		if err := l.stats.Reverse(m.Winner, m.Loser()); err != nil {
			return Match{}, withMatch(err, m.ID)
		}
		l.resolved--
	}

	l.t.noteMatch(id, m, true)
	delete(l.matches, id)
	return m, nil
}

// OverrideWinner sets the winner of a match, resolving it if it was open.
//
// A resolved match with a different winner has its previous stats delta
// reversed before the new one is applied. Overriding with the current winner
// changes nothing.
func (l *MatchLedger) OverrideWinner(id MatchID, newWinner ParticipantID) (Match, error) {
	m, ok := l.matches[id]
	if !ok {
		return Match{}, NewNotFoundError(id)
	}
	if !m.Has(newWinner) {
		return Match{}, NewNotParticipantError(id, newWinner)
	}

	if m.Resolved() {
		if m.Winner == newWinner {
			return m, nil
		}
		if err := l.stats.Reverse(m.Winner, m.Loser()); err != nil {
			return Match{}, withMatch(err, m.ID)
		}
	} else {
		l.resolved++
	}

	m.State = StateResolved
	m.Winner = newWinner
	l.put(m)
	l.stats.Apply(newWinner, m.Loser())

	return m, nil
}

// Open returns all unresolved matches in ascending ID order.
func (l *MatchLedger) Open() []Match {
	var out []Match
	for _, m := range l.matches {
		if !m.Resolved() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every match in ascending ID order.
func (l *MatchLedger) All() []Match {
	out := make([]Match, 0, len(l.matches))
	for _, m := range l.matches {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of matches in the ledger.
func (l *MatchLedger) Len() int {
	return len(l.matches)
}

// ResolvedCount returns the number of resolved matches.
func (l *MatchLedger) ResolvedCount() int {
	return l.resolved
}

// NextID returns the ID the next Create will issue.
func (l *MatchLedger) NextID() MatchID {
	return l.next
}

// resetAll removes every match and rewinds the counter to FirstMatchID.
func (l *MatchLedger) resetAll() {
	for id, m := range l.matches {
		l.t.noteMatch(id, m, true)
	}
	clear(l.matches)
	l.resolved = 0
	l.next = FirstMatchID
}

// put stores m, journaling its before-image.
func (l *MatchLedger) put(m Match) {
	prev, ok := l.matches[m.ID]
	l.t.noteMatch(m.ID, prev, ok)
	l.matches[m.ID] = m
}

// withMatch stamps a ledger error with the match it concerns.
func withMatch(err error, id MatchID) error {
	var le *Error
	if errors.As(err, &le) {
		le.MatchID = id
		if le.Details == nil {
			le.Details = make(map[string]string)
		}
		le.Details["match_id"] = fmt.Sprintf("%d", id)
	}
	return err
}
