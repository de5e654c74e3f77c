package ladder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/ladder/internal/ledger"
	"github.com/roach88/ladder/internal/store"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("ladder: service closed")

// Store is the persistence contract the service depends on.
// *store.Store implements it.
type Store interface {
	Load(ctx context.Context) (ledger.Snapshot, error)
	Commit(ctx context.Context, cs ledger.Changeset, events []store.Event) error
	Events(ctx context.Context, matchID ledger.MatchID) ([]store.Event, error)
}

// Caller identifies who issued a command and whether the chat boundary
// granted them admin rights.
type Caller struct {
	ID    ledger.ParticipantID
	Admin bool
}

// JoinOutcome is the result of Join. Match is set when the join completed a
// pair and a new match was opened.
type JoinOutcome struct {
	Result ledger.JoinResult
	Match  *ledger.Match
}

// Service is the single writer over the queue, match ledger and stats ledger.
//
// Thread-safety: all methods are safe for concurrent use; they are
// serialized by an internal mutex.
type Service struct {
	mu     sync.Mutex
	store  Store
	ledger *ledger.Ledger
	queue  *ledger.PairingQueue
	ids    IDGenerator
	closed bool

	commitTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithCommitTimeout bounds every store commit. Expiry is reported as a
// retryable CodePersistenceFailure and leaves state unchanged.
//
// Default: 0 (no bound beyond the caller's context).
func WithCommitTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.commitTimeout = d
	}
}

// WithIDGenerator sets the audit-event ID generator.
//
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) {
		s.ids = g
	}
}

// Open loads persisted state from st and returns a ready service.
//
// The loaded snapshot is validated (IDs below the counter, winners inside
// their match, the conservation law). A violation is a
// CodeConsistencyFault and the service is not started.
func Open(ctx context.Context, st Store, opts ...Option) (*Service, error) {
	snap, err := st.Load(ctx)
	if err != nil {
		return nil, ledger.NewPersistenceError(fmt.Errorf("load: %w", err))
	}

	l, err := ledger.Restore(snap)
	if err != nil {
		logFault("open", err)
		return nil, err
	}

	s := &Service{
		store:  st,
		ledger: l,
		queue:  ledger.NewPairingQueue(),
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}

	wins, _ := l.Stats.Totals()
	slog.Info("ladder opened",
		"matches", l.Matches.Len(),
		"open_matches", len(l.Matches.Open()),
		"participants", l.Stats.Len(),
		"total_wins", wins,
		"next_match_id", l.Matches.NextID(),
	)
	return s, nil
}

// Close stops the service. Subsequent calls return ErrClosed.
// Close does not close the underlying store.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	slog.Info("ladder closed")
	return nil
}

// Join adds p to the pairing queue. If the join completes a pair, a match
// is opened for the two longest-waiting participants and returned in the
// outcome. Joining while already queued changes nothing.
func (s *Service) Join(ctx context.Context, p ledger.ParticipantID) (JoinOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return JoinOutcome{}, err
	}

	var out JoinOutcome
	err := s.mutate(ctx, "join", func() ([]store.Event, error) {
		out.Result = s.queue.Join(p)
		if out.Result == ledger.AlreadyQueued {
			return nil, nil
		}
		pair, ok := s.queue.TryExtractPair()
		if !ok {
			return nil, nil
		}
		m, err := s.ledger.Matches.Create(pair[0], pair[1])
		if err != nil {
			return nil, err
		}
		out.Match = &m
		return []store.Event{{MatchID: m.ID, Kind: store.EventCreated, Actor: p}}, nil
	})
	if err != nil {
		return JoinOutcome{}, err
	}

	if out.Match != nil {
		slog.Info("match created",
			"match_id", out.Match.ID,
			"player1", out.Match.Players[0],
			"player2", out.Match.Players[1],
		)
	} else {
		slog.Debug("queue join", "participant", p, "result", out.Result.String())
	}
	return out, nil
}

// Leave removes p from the pairing queue. It reports false when p was not
// queued.
func (s *Service) Leave(ctx context.Context, p ledger.ParticipantID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return false, err
	}

	left := s.queue.Leave(p)
	slog.Debug("queue leave", "participant", p, "left", left)
	return left, nil
}

// Report records the outcome of match id as reported by p.
func (s *Service) Report(ctx context.Context, id ledger.MatchID, p ledger.ParticipantID, outcome ledger.Outcome) (ledger.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return ledger.Match{}, err
	}

	var m ledger.Match
	err := s.mutate(ctx, "report", func() ([]store.Event, error) {
		var err error
		m, err = s.ledger.Matches.Resolve(id, p, outcome)
		if err != nil {
			return nil, err
		}
		return []store.Event{{MatchID: m.ID, Kind: store.EventResolved, Actor: p, Winner: m.Winner}}, nil
	})
	if err != nil {
		return ledger.Match{}, err
	}

	slog.Info("match resolved",
		"match_id", m.ID,
		"reporter", p,
		"outcome", outcome.String(),
		"winner", m.Winner,
	)
	return m, nil
}

// DeleteMatch removes match id, reversing its stats delta if it was
// resolved. Returns the match as it was before removal. Admin only.
func (s *Service) DeleteMatch(ctx context.Context, id ledger.MatchID, caller Caller) (ledger.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return ledger.Match{}, err
	}
	if !caller.Admin {
		return ledger.Match{}, ledger.NewUnauthorizedError(caller.ID, "delete match")
	}

	var m ledger.Match
	err := s.mutate(ctx, "delete_match", func() ([]store.Event, error) {
		var err error
		m, err = s.ledger.Matches.Delete(id)
		if err != nil {
			return nil, err
		}
		return []store.Event{{MatchID: m.ID, Kind: store.EventDeleted, Actor: caller.ID, Winner: m.Winner}}, nil
	})
	if err != nil {
		return ledger.Match{}, err
	}

	slog.Info("match deleted",
		"match_id", m.ID,
		"admin", caller.ID,
		"was_resolved", m.Resolved(),
		"winner", m.Winner,
	)
	return m, nil
}

// OverrideWinner sets the winner of match id, resolving it if it was open.
// Admin only.
func (s *Service) OverrideWinner(ctx context.Context, id ledger.MatchID, newWinner ledger.ParticipantID, caller Caller) (ledger.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return ledger.Match{}, err
	}
	if !caller.Admin {
		return ledger.Match{}, ledger.NewUnauthorizedError(caller.ID, "override winner")
	}

	var before, after ledger.Match
	err := s.mutate(ctx, "override_winner", func() ([]store.Event, error) {
		var err error
		if before, err = s.ledger.Matches.Get(id); err != nil {
			return nil, err
		}
		if after, err = s.ledger.Matches.OverrideWinner(id, newWinner); err != nil {
			return nil, err
		}
		if before.Resolved() && before.Winner == newWinner {
			return nil, nil
		}
		return []store.Event{{MatchID: id, Kind: store.EventOverridden, Actor: caller.ID, Winner: newWinner}}, nil
	})
	if err != nil {
		return ledger.Match{}, err
	}

	slog.Info("match winner overridden",
		"match_id", id,
		"admin", caller.ID,
		"previous_winner", before.Winner,
		"winner", after.Winner,
	)
	return after, nil
}

// ResetAll clears every match, stats record and queued participant and
// rewinds the match-ID counter. Admin only.
func (s *Service) ResetAll(ctx context.Context, caller Caller) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return err
	}
	if !caller.Admin {
		return ledger.NewUnauthorizedError(caller.ID, "reset all")
	}

	err := s.mutate(ctx, "reset_all", func() ([]store.Event, error) {
		s.ledger.ResetAll()
		s.queue.Clear()
		return []store.Event{{Kind: store.EventReset, Actor: caller.ID}}, nil
	})
	if err != nil {
		return err
	}

	slog.Warn("ladder reset", "admin", caller.ID)
	return nil
}

// Stats returns the record of p; (0, 0) if p never played.
func (s *Service) Stats(ctx context.Context, p ledger.ParticipantID) (ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return ledger.Record{}, err
	}
	return s.ledger.Stats.Get(p), nil
}

// Leaderboard returns every record sorted by wins descending, then
// participant ascending.
func (s *Service) Leaderboard(ctx context.Context) ([]ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	return s.ledger.Stats.ListSorted(), nil
}

// Match returns match id.
func (s *Service) Match(ctx context.Context, id ledger.MatchID) (ledger.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return ledger.Match{}, err
	}
	return s.ledger.Matches.Get(id)
}

// OpenMatches returns unresolved matches in ascending ID order.
func (s *Service) OpenMatches(ctx context.Context) ([]ledger.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	return s.ledger.Matches.Open(), nil
}

// Waiting returns the queued participants, longest-waiting first.
func (s *Service) Waiting(ctx context.Context) ([]ledger.ParticipantID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	return s.queue.Waiting(), nil
}

// History returns the audit trail of match id, including matches that have
// since been deleted. Unknown IDs with no trail are CodeNotFound.
func (s *Service) History(ctx context.Context, id ledger.MatchID) ([]store.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx); err != nil {
		return nil, err
	}

	events, err := s.store.Events(ctx, id)
	if err != nil {
		return nil, ledger.NewPersistenceError(fmt.Errorf("read history: %w", err))
	}
	if len(events) == 0 {
		if _, err := s.ledger.Matches.Get(id); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// enter checks that the service can accept a command. Caller holds s.mu.
func (s *Service) enter(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// mutate runs fn inside a ledger journal and commits the resulting
// changeset together with the events fn returns. Any failure (from fn, the
// conservation check or the store) rolls back the journal and the queue.
//
// Nothing is written when fn leaves the ledger untouched and returns no
// events. Caller holds s.mu.
func (s *Service) mutate(ctx context.Context, op string, fn func() ([]store.Event, error)) error {
	if err := s.ledger.Begin(); err != nil {
		return err
	}
	waiting := s.queue.Waiting()

	abort := func() {
		if err := s.ledger.Rollback(); err != nil {
			slog.Error("ledger rollback failed", "op", op, "error", err)
		}
		s.queue.Restore(waiting)
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic during ledger change, state rolled back", "op", op, "panic", r)
			abort()
			panic(r)
		}
	}()

	events, err := fn()
	if err == nil {
		err = s.ledger.CheckConservation()
	}
	if err != nil {
		abort()
		if ledger.IsConsistencyFault(err) {
			logFault(op, err)
		}
		return err
	}

	cs := s.ledger.Changes()
	if cs.Empty() && len(events) == 0 {
		return s.ledger.Commit()
	}

	for i := range events {
		id, err := s.ids.Generate()
		if err != nil {
			abort()
			slog.Error("event id generation failed, state rolled back", "op", op, "error", err)
			return ledger.NewPersistenceError(err)
		}
		events[i].ID = id
	}

	commitCtx := ctx
	if s.commitTimeout > 0 {
		var cancel context.CancelFunc
		commitCtx, cancel = context.WithTimeout(ctx, s.commitTimeout)
		defer cancel()
	}

	if err := s.store.Commit(commitCtx, cs, events); err != nil {
		abort()
		slog.Warn("commit failed, state rolled back",
			"op", op,
			"upserts", len(cs.Upserts),
			"deletes", len(cs.Deletes),
			"stats", len(cs.Stats),
			"error", err,
		)
		return ledger.NewPersistenceError(err)
	}

	slog.Debug("changeset committed",
		"op", op,
		"reset", cs.Reset,
		"upserts", len(cs.Upserts),
		"deletes", len(cs.Deletes),
		"stats", len(cs.Stats),
		"events", len(events),
		"next_match_id", cs.NextID,
	)
	return s.ledger.Commit()
}

// logFault reports a broken invariant with every detail the error carries.
func logFault(op string, err error) {
	var lerr *ledger.Error
	if !errors.As(err, &lerr) {
		slog.Error("ledger consistency fault", "op", op, "error", err)
		return
	}

	attrs := []any{
		"op", op,
		"code", string(lerr.Code),
		"message", lerr.Message,
	}
	if lerr.MatchID != 0 {
		attrs = append(attrs, "match_id", lerr.MatchID)
	}
	if lerr.Participant != 0 {
		attrs = append(attrs, "participant", lerr.Participant)
	}
	keys := make([]string, 0, len(lerr.Details))
	for k := range lerr.Details {
		if (k == "match_id" && lerr.MatchID != 0) || (k == "participant" && lerr.Participant != 0) {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		attrs = append(attrs, k, lerr.Details[k])
	}
	slog.Error("ledger consistency fault", attrs...)
}
