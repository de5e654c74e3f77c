package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ladder/internal/ledger"
)

// Scenario defines a conversation test. Participants send chat messages in
// order; each reply may be checked, and assertions validate the ladder
// state once the flow has finished.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Prefix is the command prefix. Defaults to "!".
	Prefix string `yaml:"prefix,omitempty"`

	// Participants maps display names to platform identities. Steps and
	// assertions refer to participants by these names.
	Participants map[string]Participant `yaml:"participants"`

	// Setup contains messages sent before the flow. Their replies are not
	// checked and they do not appear in the transcript.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the main conversation.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final ladder state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Participant is a chat member taking part in a scenario.
type Participant struct {
	ID    int64 `yaml:"id"`
	Admin bool  `yaml:"admin,omitempty"`
}

// Step is either one chat message or a restart of the ladder service.
type Step struct {
	// From names the sending participant.
	From string `yaml:"from,omitempty"`

	// Say is the message text.
	Say string `yaml:"say,omitempty"`

	// Restart closes the service and opens a new one over the same store,
	// dropping everything that is not persisted.
	Restart bool `yaml:"restart,omitempty"`

	// Expect validates the reply. If nil, the reply is not checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected reply to a message.
type Expect struct {
	// Reply is the exact reply text.
	Reply string `yaml:"reply,omitempty"`

	// Contains is a substring the reply must include.
	Contains string `yaml:"contains,omitempty"`

	// Code is the expected rejection code, e.g. "NOT_FOUND". Empty means
	// the command must succeed.
	Code string `yaml:"code,omitempty"`

	// Ignored expects the message to get no reply at all.
	Ignored bool `yaml:"ignored,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "stats": participant has exactly wins/losses
	// - "match": match_id exists with state (and winner), or is absent
	// - "queue": the waiting list equals waiting, in order
	// - "history": the audit trail of match_id has exactly these kinds
	// - "leaderboard": the leaderboard lists exactly these participants, in order
	Type string `yaml:"type"`

	// Participant names the participant (used by stats).
	Participant string `yaml:"participant,omitempty"`

	// Wins and Losses are the expected record (used by stats).
	Wins   int `yaml:"wins,omitempty"`
	Losses int `yaml:"losses,omitempty"`

	// MatchID identifies the match (used by match and history).
	MatchID int64 `yaml:"match_id,omitempty"`

	// State is "open" or "resolved" (used by match).
	State string `yaml:"state,omitempty"`

	// Winner names the expected winner (used by match).
	Winner string `yaml:"winner,omitempty"`

	// Absent expects the match not to exist (used by match).
	Absent bool `yaml:"absent,omitempty"`

	// Waiting lists participant names (used by queue).
	Waiting []string `yaml:"waiting,omitempty"`

	// Kinds lists event kinds, e.g. created, resolved (used by history).
	Kinds []string `yaml:"kinds,omitempty"`

	// Order lists participant names (used by leaderboard).
	Order []string `yaml:"order,omitempty"`
}

// Assertion type constants.
const (
	AssertStats       = "stats"
	AssertMatch       = "match"
	AssertQueue       = "queue"
	AssertHistory     = "history"
	AssertLeaderboard = "leaderboard"
)

var knownCodes = map[string]bool{
	string(ledger.CodeNotFound):           true,
	string(ledger.CodeNotParticipant):     true,
	string(ledger.CodeInvalidInput):       true,
	string(ledger.CodeAlreadyResolved):    true,
	string(ledger.CodeUnauthorized):       true,
	string(ledger.CodePersistenceFailure): true,
	string(ledger.CodeConsistencyFault):   true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Participants) == 0 {
		return fmt.Errorf("participants map is required and must be non-empty")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	seen := make(map[int64]string, len(s.Participants))
	for name, p := range s.Participants {
		if p.ID <= 0 {
			return fmt.Errorf("participants.%s: id must be positive", name)
		}
		if other, ok := seen[p.ID]; ok {
			return fmt.Errorf("participants.%s: id %d already used by %s", name, p.ID, other)
		}
		seen[p.ID] = name
	}

	for i, step := range s.Setup {
		if step.Restart || step.Expect != nil {
			return fmt.Errorf("setup[%d]: only from and say are allowed", i)
		}
		if err := s.validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	for i, step := range s.Flow {
		if err := s.validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := s.validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scenario) validateStep(step Step) error {
	if step.Restart {
		if step.From != "" || step.Say != "" || step.Expect != nil {
			return fmt.Errorf("restart step cannot carry a message")
		}
		return nil
	}

	if step.From == "" {
		return fmt.Errorf("from is required")
	}
	if _, ok := s.Participants[step.From]; !ok {
		return fmt.Errorf("unknown participant %q", step.From)
	}

	if e := step.Expect; e != nil {
		if e.Code != "" && !knownCodes[e.Code] {
			return fmt.Errorf("expect: unknown code %q", e.Code)
		}
		if e.Ignored && (e.Reply != "" || e.Contains != "" || e.Code != "") {
			return fmt.Errorf("expect: ignored cannot be combined with reply, contains or code")
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func (s *Scenario) validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	names := []string{}
	switch a.Type {
	case AssertStats:
		if a.Participant == "" {
			return fmt.Errorf("assertions[%d]: participant is required for stats", index)
		}
		if a.Wins < 0 || a.Losses < 0 {
			return fmt.Errorf("assertions[%d]: wins and losses must be non-negative", index)
		}
		names = append(names, a.Participant)
	case AssertMatch:
		if a.MatchID <= 0 {
			return fmt.Errorf("assertions[%d]: match_id is required for match", index)
		}
		if a.Absent {
			if a.State != "" || a.Winner != "" {
				return fmt.Errorf("assertions[%d]: absent cannot be combined with state or winner", index)
			}
			break
		}
		state, err := ledger.ParseMatchState(a.State)
		if err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if state == ledger.StateOpen && a.Winner != "" {
			return fmt.Errorf("assertions[%d]: an open match has no winner", index)
		}
		if a.Winner != "" {
			names = append(names, a.Winner)
		}
	case AssertQueue:
		names = append(names, a.Waiting...)
	case AssertHistory:
		if a.MatchID < 0 {
			return fmt.Errorf("assertions[%d]: match_id must be non-negative for history", index)
		}
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for history", index)
		}
	case AssertLeaderboard:
		names = append(names, a.Order...)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	for _, name := range names {
		if _, ok := s.Participants[name]; !ok {
			return fmt.Errorf("assertions[%d]: unknown participant %q", index, name)
		}
	}
	return nil
}
