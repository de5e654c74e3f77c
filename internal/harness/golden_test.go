package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// its transcript with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -run TestScenarios -update
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err, "failed to load scenario from %s", path)
			assert.Equal(t, name, scenario.Name, "scenario name should match file name")

			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestRender_Format(t *testing.T) {
	result := NewResult()
	result.AddTurn(Turn{From: "alice", Say: "!q", Handled: true, Reply: "one\ntwo"})
	result.AddRestart()
	result.AddTurn(Turn{From: "alice", Say: "hi"})
	result.AddTurn(Turn{From: "bob", Say: "!report 9 w", Handled: true, Code: "NOT_FOUND", Reply: "Match ID 9 not found."})
	result.State = FinalState{
		Leaderboard: []string{"alice: 1 wins, 0 losses"},
		Events: []EventLine{
			{Seq: 4, ID: "ev-0004", MatchID: 2, Kind: "resolved", Actor: "bob", Winner: "alice"},
			{Seq: 5, ID: "ev-0005", MatchID: 0, Kind: "reset", Actor: "mod"},
		},
	}

	want := `scenario: demo
transcript:
  [1] alice: !q
      one
      two
  -- restart --
  [2] alice: hi
      (no reply)
  [3] bob: !report 9 w
      NOT_FOUND: Match ID 9 not found.
leaderboard:
  alice: 1 wins, 0 losses
open matches:
  (none)
queue:
  (none)
events:
  4 ev-0004 match 2 resolved by bob, winner alice
  5 ev-0005 match 0 reset by mod
`
	assert.Equal(t, want, string(Render("demo", result)))
}
