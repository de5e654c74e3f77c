package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/ladder/internal/chat"
	"github.com/roach88/ladder/internal/ladder"
	"github.com/roach88/ladder/internal/ledger"
	"github.com/roach88/ladder/internal/store"
	"github.com/roach88/ladder/internal/testutil"
)

// Harness is the scenario execution engine. It drives a real ladder
// service through the chat dispatcher, with deterministic event IDs.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	service  *ladder.Service
	chat     *chat.Dispatcher
	parser   *chat.Parser
	names    *chat.NameBook
	ids      *testutil.SequenceGenerator
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and open the ladder over it
// 2. Send setup messages
// 3. Send flow messages, validating expect clauses and recording the transcript
// 4. Capture the final state and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	directory := chat.StaticDirectory{}
	for name, p := range scenario.Participants {
		directory[ledger.ParticipantID(p.ID)] = name
	}

	h := &Harness{
		scenario: scenario,
		store:    st,
		parser:   chat.NewParser(scenario.Prefix),
		names:    chat.NewNameBook(directory),
		ids:      testutil.NewSequenceGenerator("ev"),
	}
	if err := h.start(ctx); err != nil {
		return nil, err
	}
	defer func() { h.service.Close() }()

	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	state, err := h.captureState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture final state: %w", err)
	}
	result.State = state

	actx := &AssertionContext{
		Ctx:          ctx,
		Service:      h.service,
		Participants: scenario.Participants,
	}
	for _, errMsg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// start opens a ladder service over the harness store.
func (h *Harness) start(ctx context.Context) error {
	svc, err := ladder.Open(ctx, h.store, ladder.WithIDGenerator(h.ids))
	if err != nil {
		return fmt.Errorf("failed to open ladder: %w", err)
	}
	h.service = svc
	h.chat = chat.NewDispatcher(svc, h.parser, h.names)
	return nil
}

// restart replaces the service with a new one loaded from the store.
// The event ID sequence carries over, as it would for UUIDs.
func (h *Harness) restart(ctx context.Context) error {
	if err := h.service.Close(); err != nil {
		return fmt.Errorf("failed to close ladder: %w", err)
	}
	return h.start(ctx)
}

func (h *Harness) send(ctx context.Context, step Step) (chat.Reply, bool, error) {
	p := h.scenario.Participants[step.From]
	return h.chat.Handle(ctx, chat.Message{
		Author: ledger.ParticipantID(p.ID),
		Name:   step.From,
		Admin:  p.Admin,
		Text:   step.Say,
	})
}

// executeSetup sends all setup messages. Replies are not checked, but a
// failure outside the ledger aborts the run.
func (h *Harness) executeSetup(ctx context.Context, setup []Step) error {
	for i, step := range setup {
		if _, _, err := h.send(ctx, step); err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
	}
	return nil
}

// executeFlow sends all flow messages and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		if step.Restart {
			if err := h.restart(ctx); err != nil {
				return fmt.Errorf("flow step %d: %w", i, err)
			}
			result.AddRestart()
			continue
		}

		reply, handled, err := h.send(ctx, step)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}
		result.AddTurn(Turn{
			From:    step.From,
			Say:     step.Say,
			Handled: handled,
			Reply:   reply.Text,
			Code:    string(reply.Code),
		})

		if step.Expect != nil {
			for _, msg := range checkExpect(step, reply, handled) {
				result.AddError(fmt.Sprintf("flow[%d] %s %q: %s", i, step.From, step.Say, msg))
			}
		}
	}
	return nil
}

// checkExpect compares a reply with its expect clause.
func checkExpect(step Step, reply chat.Reply, handled bool) []string {
	e := step.Expect
	if e.Ignored {
		if handled {
			return []string{fmt.Sprintf("expected no reply, got %q", reply.Text)}
		}
		return nil
	}
	if !handled {
		return []string{"expected a reply, got none"}
	}

	var errs []string
	if got := string(reply.Code); got != e.Code {
		switch {
		case e.Code == "":
			errs = append(errs, fmt.Sprintf("expected success, got %s: %q", got, reply.Text))
		case got == "":
			errs = append(errs, fmt.Sprintf("expected %s, got success: %q", e.Code, reply.Text))
		default:
			errs = append(errs, fmt.Sprintf("expected %s, got %s", e.Code, got))
		}
	}
	if e.Reply != "" && reply.Text != e.Reply {
		errs = append(errs, fmt.Sprintf("expected reply %q, got %q", e.Reply, reply.Text))
	}
	if e.Contains != "" && !strings.Contains(reply.Text, e.Contains) {
		errs = append(errs, fmt.Sprintf("expected reply containing %q, got %q", e.Contains, reply.Text))
	}
	return errs
}

// captureState reads the final ladder state and the full audit trail.
func (h *Harness) captureState(ctx context.Context) (FinalState, error) {
	state := FinalState{
		Leaderboard: []string{},
		Waiting:     []string{},
		OpenMatches: []string{},
		Events:      []EventLine{},
	}

	board, err := h.service.Leaderboard(ctx)
	if err != nil {
		return state, err
	}
	for _, r := range board {
		state.Leaderboard = append(state.Leaderboard,
			fmt.Sprintf("%s: %d wins, %d losses", h.name(r.Participant), r.Wins, r.Losses))
	}

	waiting, err := h.service.Waiting(ctx)
	if err != nil {
		return state, err
	}
	for _, p := range waiting {
		state.Waiting = append(state.Waiting, h.name(p))
	}

	open, err := h.service.OpenMatches(ctx)
	if err != nil {
		return state, err
	}
	for _, m := range open {
		state.OpenMatches = append(state.OpenMatches,
			fmt.Sprintf("%d: %s vs %s", m.ID, h.name(m.Players[0]), h.name(m.Players[1])))
	}

	// Deleted matches keep their trail, so walk every ID ever issued.
	next, err := h.store.NextMatchID(ctx)
	if err != nil {
		return state, err
	}
	var events []store.Event
	for id := ledger.MatchID(0); id < next; id++ {
		evs, err := h.store.Events(ctx, id)
		if err != nil {
			return state, err
		}
		events = append(events, evs...)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })

	for _, ev := range events {
		line := EventLine{
			Seq:     ev.Seq,
			ID:      ev.ID,
			MatchID: int64(ev.MatchID),
			Kind:    string(ev.Kind),
			Actor:   h.name(ev.Actor),
		}
		if ev.Winner != 0 {
			line.Winner = h.name(ev.Winner)
		}
		state.Events = append(state.Events, line)
	}
	return state, nil
}

func (h *Harness) name(p ledger.ParticipantID) string {
	return chat.DisplayName(h.names, p)
}
