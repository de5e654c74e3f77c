package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/ladder/internal/ledger"
)

// Load reads the full persisted ledger state.
// Results are ordered deterministically: matches by id, stats by participant.
//
// Load does not validate invariants; ledger.Restore does.
func (s *Store) Load(ctx context.Context) (ledger.Snapshot, error) {
	var snap ledger.Snapshot

	next, err := s.NextMatchID(ctx)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	snap.NextID = next

	snap.Matches, err = s.readMatches(ctx)
	if err != nil {
		return ledger.Snapshot{}, err
	}

	snap.Stats, err = s.readStats(ctx)
	if err != nil {
		return ledger.Snapshot{}, err
	}

	return snap, nil
}

// NextMatchID returns the persisted counter value.
func (s *Store) NextMatchID(ctx context.Context) (ledger.MatchID, error) {
	var next int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'next_match_id'`).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.FirstMatchID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	return ledger.MatchID(next), nil
}

func (s *Store) readMatches(ctx context.Context) ([]ledger.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player1, player2, state, winner
		FROM matches
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var matches []ledger.Match
	for rows.Next() {
		var (
			id, p1, p2 int64
			state      string
			winner     sql.NullInt64
		)
		if err := rows.Scan(&id, &p1, &p2, &state, &winner); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		st, err := ledger.ParseMatchState(state)
		if err != nil {
			return nil, fmt.Errorf("match %d: %w", id, err)
		}
		matches = append(matches, ledger.Match{
			ID:      ledger.MatchID(id),
			Players: [2]ledger.ParticipantID{ledger.ParticipantID(p1), ledger.ParticipantID(p2)},
			State:   st,
			Winner:  ledger.ParticipantID(winner.Int64),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

func (s *Store) readStats(ctx context.Context) ([]ledger.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT participant, wins, losses
		FROM stats
		ORDER BY participant ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var (
			p            int64
			wins, losses int
		)
		if err := rows.Scan(&p, &wins, &losses); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		records = append(records, ledger.Record{
			Participant: ledger.ParticipantID(p),
			Wins:        wins,
			Losses:      losses,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return records, nil
}

// Events returns the audit trail of a match in commit order.
// Returns an empty slice (not nil) if the match has no events.
func (s *Store) Events(ctx context.Context, matchID ledger.MatchID) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, match_id, kind, actor, winner
		FROM events
		WHERE match_id = ?
		ORDER BY seq ASC
	`, int64(matchID))
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			ev           Event
			match, actor int64
			kind         string
			winner       sql.NullInt64
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &match, &kind, &actor, &winner); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.MatchID = ledger.MatchID(match)
		ev.Kind = EventKind(kind)
		ev.Actor = ledger.ParticipantID(actor)
		ev.Winner = ledger.ParticipantID(winner.Int64)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
