package ledger

import (
	"fmt"
	"sort"
)

// StatsLedger aggregates per-participant win/loss counters.
//
// Records are only mutated through Apply and Reverse, which MatchLedger
// calls on match transitions. Apply(w, l) followed by Reverse(w, l) restores
// both records exactly.
type StatsLedger struct {
	records map[ParticipantID]Record
	wins    int // running sum of Wins over all records
	losses  int // running sum of Losses over all records
	t       *tracker
}

func newStatsLedger(t *tracker) *StatsLedger {
	return &StatsLedger{
		records: make(map[ParticipantID]Record),
		t:       t,
	}
}

// Apply credits a win to winner and a loss to loser, creating zeroed
// records on first reference.
func (s *StatsLedger) Apply(winner, loser ParticipantID) {
	w := s.touch(winner)
	w.Wins++
	s.records[winner] = w

	l := s.touch(loser)
	l.Losses++
	s.records[loser] = l

	s.wins++
	s.losses++
}

// Reverse undoes a previous Apply(winner, loser).
//
// Counters are clamped at zero. A decrement below zero means the pairing
// was never applied or was already reversed; Reverse still clamps and then
// returns a CodeConsistencyFault error so the caller can abort and report it.
func (s *StatsLedger) Reverse(winner, loser ParticipantID) error {
	w := s.touch(winner)
	l := s.touch(loser)

	var fault bool
	if w.Wins > 0 {
		w.Wins--
		s.wins--
	} else {
		fault = true
	}
	if l.Losses > 0 {
		l.Losses--
		s.losses--
	} else {
		fault = true
	}

	s.records[winner] = w
	s.records[loser] = l

	if fault {
		return NewConsistencyFault("stats reversal would go below zero", map[string]string{
			"winner":       fmt.Sprintf("%d", winner),
			"winner_wins":  fmt.Sprintf("%d", w.Wins),
			"loser":        fmt.Sprintf("%d", loser),
			"loser_losses": fmt.Sprintf("%d", l.Losses),
		})
	}
	return nil
}

// Get returns the record of p, (0,0) for unknown participants.
func (s *StatsLedger) Get(p ParticipantID) Record {
	if r, ok := s.records[p]; ok {
		return r
	}
	return Record{Participant: p}
}

// ListSorted returns all records ordered by wins descending, ties broken by
// ascending participant ID.
func (s *StatsLedger) ListSorted() []Record {
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].Participant < out[j].Participant
	})
	return out
}

// Totals returns the sum of wins and the sum of losses over all records.
func (s *StatsLedger) Totals() (wins, losses int) {
	return s.wins, s.losses
}

// Len returns the number of records.
func (s *StatsLedger) Len() int {
	return len(s.records)
}

// ResetAll removes every record.
func (s *StatsLedger) ResetAll() {
	for p, r := range s.records {
		s.t.noteStats(p, r, true)
	}
	clear(s.records)
	s.wins = 0
	s.losses = 0
}

// touch journals the before-image of p and returns its current record.
func (s *StatsLedger) touch(p ParticipantID) Record {
	r, ok := s.records[p]
	s.t.noteStats(p, r, ok)
	if !ok {
		r = Record{Participant: p}
	}
	return r
}

// load installs a persisted record without journaling.
func (s *StatsLedger) load(r Record) {
	s.records[r.Participant] = r
	s.wins += r.Wins
	s.losses += r.Losses
}
