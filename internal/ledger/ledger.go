package ledger

import (
	"errors"
	"fmt"
	"sort"
)

// ErrTxnActive is returned by Begin when a journal is already open.
var ErrTxnActive = errors.New("ledger: transaction already active")

// ErrNoTxn is returned by Commit and Rollback without a matching Begin.
var ErrNoTxn = errors.New("ledger: no active transaction")

// Ledger owns a MatchLedger and the StatsLedger it drives, plus the journal
// that makes a group of mutations reversible.
//
// Usage:
//
//	if err := l.Begin(); err != nil { ... }
//	m, err := l.Matches.Resolve(id, reporter, outcome)
//	if err != nil { l.Rollback(); ... }
//	if err := persist(l.Changes()); err != nil { l.Rollback(); ... }
//	l.Commit()
//
// Mutations made outside Begin/Commit are applied but not journaled.
type Ledger struct {
	Matches *MatchLedger
	Stats   *StatsLedger
	t       *tracker
}

// New creates an empty ledger whose counter starts at FirstMatchID.
func New() *Ledger {
	t := &tracker{}
	stats := newStatsLedger(t)
	return &Ledger{
		Matches: newMatchLedger(stats, t),
		Stats:   stats,
		t:       t,
	}
}

// Begin opens a journal. Every match, stats record and counter touched until
// Commit or Rollback has its before-image recorded.
func (l *Ledger) Begin() error {
	if l.t.j != nil {
		return ErrTxnActive
	}
	l.t.j = &journal{
		matches:  make(map[MatchID]matchImage),
		stats:    make(map[ParticipantID]statsImage),
		next:     l.Matches.next,
		resolved: l.Matches.resolved,
		wins:     l.Stats.wins,
		losses:   l.Stats.losses,
	}
	return nil
}

// Active reports whether a journal is open.
func (l *Ledger) Active() bool {
	return l.t.j != nil
}

// Commit discards the journal, keeping every mutation made since Begin.
func (l *Ledger) Commit() error {
	if l.t.j == nil {
		return ErrNoTxn
	}
	l.t.j = nil
	return nil
}

// Rollback restores every before-image recorded since Begin and closes the
// journal.
func (l *Ledger) Rollback() error {
	j := l.t.j
	if j == nil {
		return ErrNoTxn
	}
	l.t.j = nil

	for id, img := range j.matches {
		if img.present {
			l.Matches.matches[id] = img.match
		} else {
			delete(l.Matches.matches, id)
		}
	}
	for p, img := range j.stats {
		if img.present {
			l.Stats.records[p] = img.record
		} else {
			delete(l.Stats.records, p)
		}
	}
	l.Matches.next = j.next
	l.Matches.resolved = j.resolved
	l.Stats.wins = j.wins
	l.Stats.losses = j.losses
	return nil
}

// ResetAll clears every match and record and rewinds the match-ID counter
// to FirstMatchID.
func (l *Ledger) ResetAll() {
	l.Matches.resetAll()
	l.Stats.ResetAll()
	if l.t.j != nil {
		l.t.j.reset = true
	}
}

// Changeset is the durable effect of the mutations in the open journal.
type Changeset struct {
	// Reset means every persisted match and record must be removed before
	// the rest of the changeset is applied.
	Reset bool

	// Upserts are matches created or updated, ascending by ID.
	Upserts []Match

	// Deletes are matches removed, ascending.
	Deletes []MatchID

	// Stats are the current records of every participant touched, ascending.
	Stats []Record

	// NextID is the counter value after the mutations.
	NextID MatchID
}

// Empty reports whether the changeset carries no mutation.
func (c Changeset) Empty() bool {
	return !c.Reset && len(c.Upserts) == 0 && len(c.Deletes) == 0 && len(c.Stats) == 0
}

// Changes returns the changeset of the open journal. It returns an empty
// changeset (with the current NextID) when no journal is open.
func (l *Ledger) Changes() Changeset {
	cs := Changeset{NextID: l.Matches.next}
	j := l.t.j
	if j == nil {
		return cs
	}
	cs.Reset = j.reset

	for id, img := range j.matches {
		if m, ok := l.Matches.matches[id]; ok {
			cs.Upserts = append(cs.Upserts, m)
		} else if img.present && !j.reset {
			cs.Deletes = append(cs.Deletes, id)
		}
	}
	for p := range j.stats {
		if r, ok := l.Stats.records[p]; ok {
			cs.Stats = append(cs.Stats, r)
		}
	}

	sort.Slice(cs.Upserts, func(i, k int) bool { return cs.Upserts[i].ID < cs.Upserts[k].ID })
	sort.Slice(cs.Deletes, func(i, k int) bool { return cs.Deletes[i] < cs.Deletes[k] })
	sort.Slice(cs.Stats, func(i, k int) bool { return cs.Stats[i].Participant < cs.Stats[k].Participant })
	return cs
}

// CheckConservation verifies sum(wins) == sum(losses) == resolved matches.
func (l *Ledger) CheckConservation() error {
	wins, losses := l.Stats.Totals()
	resolved := l.Matches.ResolvedCount()
	if wins == losses && wins == resolved {
		return nil
	}
	return NewConsistencyFault("conservation law violated", map[string]string{
		"total_wins":   fmt.Sprintf("%d", wins),
		"total_losses": fmt.Sprintf("%d", losses),
		"resolved":     fmt.Sprintf("%d", resolved),
	})
}

// Snapshot is the persisted state of a ledger.
type Snapshot struct {
	Matches []Match
	Stats   []Record
	NextID  MatchID
}

// Snapshot returns the full current state.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		Matches: l.Matches.All(),
		Stats:   l.Stats.ListSorted(),
		NextID:  l.Matches.next,
	}
}

// Restore builds a ledger from a persisted snapshot, validating every
// invariant. Any violation is a CodeConsistencyFault.
func Restore(s Snapshot) (*Ledger, error) {
	l := New()

	next := s.NextID
	if next < FirstMatchID {
		next = FirstMatchID
	}

	for _, m := range s.Matches {
		if err := validateMatch(m); err != nil {
			return nil, err
		}
		if m.ID >= next {
			return nil, NewConsistencyFault("match ID not below persisted counter", map[string]string{
				"match_id": fmt.Sprintf("%d", m.ID),
				"next_id":  fmt.Sprintf("%d", next),
			})
		}
		if _, dup := l.Matches.matches[m.ID]; dup {
			return nil, NewConsistencyFault("duplicate match ID", map[string]string{
				"match_id": fmt.Sprintf("%d", m.ID),
			})
		}
		l.Matches.matches[m.ID] = m
		if m.Resolved() {
			l.Matches.resolved++
		}
	}
	l.Matches.next = next

	for _, r := range s.Stats {
		if r.Wins < 0 || r.Losses < 0 {
			return nil, NewConsistencyFault("negative stats record", map[string]string{
				"participant": fmt.Sprintf("%d", r.Participant),
				"wins":        fmt.Sprintf("%d", r.Wins),
				"losses":      fmt.Sprintf("%d", r.Losses),
			})
		}
		l.Stats.load(r)
	}

	if err := l.CheckConservation(); err != nil {
		return nil, err
	}
	return l, nil
}

func validateMatch(m Match) error {
	details := map[string]string{
		"match_id": fmt.Sprintf("%d", m.ID),
		"player1":  fmt.Sprintf("%d", m.Players[0]),
		"player2":  fmt.Sprintf("%d", m.Players[1]),
		"state":    m.State.String(),
		"winner":   fmt.Sprintf("%d", m.Winner),
	}
	switch {
	case m.ID < FirstMatchID:
		return NewConsistencyFault("invalid match ID", details)
	case m.Players[0] == m.Players[1]:
		return NewConsistencyFault("match pairs a participant with themselves", details)
	case m.State == StateResolved && !m.Has(m.Winner):
		return NewConsistencyFault("winner is not a player of the match", details)
	case m.State == StateOpen && m.Winner != 0:
		return NewConsistencyFault("open match has a winner", details)
	case m.State != StateOpen && m.State != StateResolved:
		return NewConsistencyFault("unknown match state", details)
	}
	return nil
}

type matchImage struct {
	match   Match
	present bool
}

type statsImage struct {
	record  Record
	present bool
}

// journal holds the first before-image of everything touched since Begin.
type journal struct {
	matches  map[MatchID]matchImage
	stats    map[ParticipantID]statsImage
	next     MatchID
	resolved int
	wins     int
	losses   int
	reset    bool
}

// tracker is shared by MatchLedger and StatsLedger so both journal into the
// same open transaction.
type tracker struct {
	j *journal
}

func (t *tracker) noteMatch(id MatchID, before Match, present bool) {
	if t.j == nil {
		return
	}
	if _, seen := t.j.matches[id]; seen {
		return
	}
	t.j.matches[id] = matchImage{match: before, present: present}
}

func (t *tracker) noteStats(p ParticipantID, before Record, present bool) {
	if t.j == nil {
		return
	}
	if _, seen := t.j.stats[p]; seen {
		return
	}
	t.j.stats[p] = statsImage{record: before, present: present}
}
