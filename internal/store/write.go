package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/ladder/internal/ledger"
)

// EventKind names an entry in the audit trail.
type EventKind string

const (
	EventCreated    EventKind = "created"
	EventResolved   EventKind = "resolved"
	EventOverridden EventKind = "overridden"
	EventDeleted    EventKind = "deleted"
	EventReset      EventKind = "reset"
)

// Event is one audit-trail entry. Seq is assigned by the store on insert.
type Event struct {
	Seq     int64
	ID      string
	MatchID ledger.MatchID
	Kind    EventKind
	Actor   ledger.ParticipantID
	Winner  ledger.ParticipantID // zero when the event carries no winner
}

// Commit makes a ledger changeset durable together with its audit events,
// in a single transaction. Either everything is written or nothing is.
//
// Order inside the transaction:
//  1. Reset: delete every match, record and event
//  2. Delete removed matches
//  3. Upsert created/updated matches
//  4. Upsert touched stats records
//  5. Write next_match_id
//  6. Append events
func (s *Store) Commit(ctx context.Context, cs ledger.Changeset, events []Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if cs.Reset {
		for _, table := range []string{"matches", "stats", "events"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("commit: reset %s: %w", table, err)
			}
		}
	}

	for _, id := range cs.Deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE id = ?`, int64(id)); err != nil {
			return fmt.Errorf("commit: delete match %d: %w", id, err)
		}
	}

	for _, m := range cs.Upserts {
		if err := upsertMatch(ctx, tx, m); err != nil {
			return err
		}
	}

	for _, r := range cs.Stats {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stats (participant, wins, losses)
			VALUES (?, ?, ?)
			ON CONFLICT(participant) DO UPDATE SET wins = excluded.wins, losses = excluded.losses
		`, int64(r.Participant), r.Wins, r.Losses)
		if err != nil {
			return fmt.Errorf("commit: upsert stats %d: %w", r.Participant, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('next_match_id', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, int64(cs.NextID))
	if err != nil {
		return fmt.Errorf("commit: write counter: %w", err)
	}

	for _, ev := range events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (id, match_id, kind, actor, winner)
			VALUES (?, ?, ?, ?, ?)
		`, ev.ID, int64(ev.MatchID), string(ev.Kind), int64(ev.Actor), nullableID(ev.Winner))
		if err != nil {
			return fmt.Errorf("commit: append event %s: %w", ev.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func upsertMatch(ctx context.Context, tx *sql.Tx, m ledger.Match) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO matches (id, player1, player2, state, winner)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, winner = excluded.winner
	`,
		int64(m.ID),
		int64(m.Players[0]),
		int64(m.Players[1]),
		m.State.String(),
		nullableID(m.Winner),
	)
	if err != nil {
		return fmt.Errorf("commit: upsert match %d: %w", m.ID, err)
	}
	return nil
}

func nullableID(p ledger.ParticipantID) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(p), Valid: p != 0}
}
