package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/ladder/internal/ladder"
	"github.com/roach88/ladder/internal/ledger"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext provides the ladder state that assertions inspect.
type AssertionContext struct {
	Ctx          context.Context
	Service      *ladder.Service
	Participants map[string]Participant
}

func (a *AssertionContext) id(name string) ledger.ParticipantID {
	return ledger.ParticipantID(a.Participants[name].ID)
}

// nameOf maps a participant back to its scenario name, or the mention form
// for participants the scenario does not declare.
func (a *AssertionContext) nameOf(p ledger.ParticipantID) string {
	for name, part := range a.Participants {
		if ledger.ParticipantID(part.ID) == p {
			return name
		}
	}
	return fmt.Sprintf("<@%d>", p)
}

func (a *AssertionContext) namesOf(ps []ledger.ParticipantID) []string {
	names := make([]string, 0, len(ps))
	for _, p := range ps {
		names = append(names, a.nameOf(p))
	}
	return names
}

// assertStats checks a participant's exact record.
func assertStats(actx *AssertionContext, assertion Assertion) error {
	rec, err := actx.Service.Stats(actx.Ctx, actx.id(assertion.Participant))
	if err != nil {
		return err
	}
	if rec.Wins != assertion.Wins || rec.Losses != assertion.Losses {
		return &AssertionError{
			Type:     AssertStats,
			Expected: fmt.Sprintf("%s: %d wins, %d losses", assertion.Participant, assertion.Wins, assertion.Losses),
			Actual:   fmt.Sprintf("%s: %d wins, %d losses", assertion.Participant, rec.Wins, rec.Losses),
		}
	}
	return nil
}

// assertMatch checks the state and winner of a match, or its absence.
func assertMatch(actx *AssertionContext, assertion Assertion) error {
	id := ledger.MatchID(assertion.MatchID)
	m, err := actx.Service.Match(actx.Ctx, id)

	if assertion.Absent {
		if err == nil {
			return &AssertionError{
				Type:     AssertMatch,
				Expected: fmt.Sprintf("match %d absent", id),
				Actual:   fmt.Sprintf("match %d is %s", id, m.State),
			}
		}
		if ledger.IsNotFound(err) {
			return nil
		}
		return err
	}

	if ledger.IsNotFound(err) {
		return &AssertionError{
			Type:     AssertMatch,
			Expected: fmt.Sprintf("match %d %s", id, assertion.State),
			Actual:   fmt.Sprintf("match %d not found", id),
		}
	}
	if err != nil {
		return err
	}

	expected := fmt.Sprintf("match %d %s", id, assertion.State)
	if assertion.Winner != "" {
		expected += " won by " + assertion.Winner
	}
	actual := fmt.Sprintf("match %d %s", id, m.State)
	if m.Resolved() && assertion.Winner != "" {
		actual += " won by " + actx.nameOf(m.Winner)
	}
	if expected != actual {
		return &AssertionError{Type: AssertMatch, Expected: expected, Actual: actual}
	}
	return nil
}

// assertQueue checks the waiting list, longest-waiting first.
func assertQueue(actx *AssertionContext, assertion Assertion) error {
	waiting, err := actx.Service.Waiting(actx.Ctx)
	if err != nil {
		return err
	}
	got := actx.namesOf(waiting)
	want := assertion.Waiting
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertQueue,
			Expected: fmt.Sprintf("waiting %v", want),
			Actual:   fmt.Sprintf("waiting %v", got),
		}
	}
	return nil
}

// assertHistory checks the kinds of a match's audit trail, in order.
func assertHistory(actx *AssertionContext, assertion Assertion) error {
	id := ledger.MatchID(assertion.MatchID)
	events, err := actx.Service.History(actx.Ctx, id)
	if err != nil && !ledger.IsNotFound(err) {
		return err
	}

	kinds := make([]string, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, string(ev.Kind))
	}
	if !slices.Equal(kinds, assertion.Kinds) {
		return &AssertionError{
			Type:     AssertHistory,
			Expected: fmt.Sprintf("match %d history %v", id, assertion.Kinds),
			Actual:   fmt.Sprintf("match %d history %v", id, kinds),
		}
	}
	return nil
}

// assertLeaderboard checks leaderboard order.
func assertLeaderboard(actx *AssertionContext, assertion Assertion) error {
	board, err := actx.Service.Leaderboard(actx.Ctx)
	if err != nil {
		return err
	}
	ps := make([]ledger.ParticipantID, 0, len(board))
	for _, r := range board {
		ps = append(ps, r.Participant)
	}
	got := actx.namesOf(ps)
	want := assertion.Order
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertLeaderboard,
			Expected: fmt.Sprintf("order %v", want),
			Actual:   fmt.Sprintf("order %v", got),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the ladder.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		if actx == nil || actx.Service == nil {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %s requires a ladder service", i, assertion.Type))
			continue
		}

		switch assertion.Type {
		case AssertStats:
			err = assertStats(actx, assertion)
		case AssertMatch:
			err = assertMatch(actx, assertion)
		case AssertQueue:
			err = assertQueue(actx, assertion)
		case AssertHistory:
			err = assertHistory(actx, assertion)
		case AssertLeaderboard:
			err = assertLeaderboard(actx, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
