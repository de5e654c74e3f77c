package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render formats a scenario result as a plain-text transcript followed by
// the final ladder state and audit trail. The output is deterministic for
// a given scenario.
func Render(name string, result *Result) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario: %s\n", name)
	b.WriteString("transcript:\n")
	for _, turn := range result.Transcript {
		if turn.Restart {
			b.WriteString("  -- restart --\n")
			continue
		}
		fmt.Fprintf(&b, "  [%d] %s: %s\n", turn.Step, turn.From, turn.Say)
		switch {
		case !turn.Handled:
			b.WriteString("      (no reply)\n")
		case turn.Code != "":
			writeIndented(&b, turn.Code+": "+turn.Reply)
		default:
			writeIndented(&b, turn.Reply)
		}
	}

	writeSection(&b, "leaderboard", result.State.Leaderboard)
	writeSection(&b, "open matches", result.State.OpenMatches)
	writeSection(&b, "queue", result.State.Waiting)

	events := make([]string, 0, len(result.State.Events))
	for _, ev := range result.State.Events {
		line := fmt.Sprintf("%d %s match %d %s by %s", ev.Seq, ev.ID, ev.MatchID, ev.Kind, ev.Actor)
		if ev.Winner != "" {
			line += ", winner " + ev.Winner
		}
		events = append(events, line)
	}
	writeSection(&b, "events", events)

	return []byte(b.String())
}

func writeIndented(b *strings.Builder, text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(b, "      %s\n", line)
	}
}

func writeSection(b *strings.Builder, title string, lines []string) {
	fmt.Fprintf(b, "%s:\n", title)
	if len(lines) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for _, line := range lines {
		fmt.Fprintf(b, "  %s\n", line)
	}
}

// RunWithGolden executes a scenario and compares its rendered transcript
// against a golden file stored in testdata/golden/{scenario.Name}.golden.
// Expect and assertion failures are reported through t.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	for _, msg := range result.Errors {
		t.Errorf("scenario %s: %s", scenario.Name, msg)
	}

	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Render(scenarioName, result))
}
