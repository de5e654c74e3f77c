package harness

// Turn is one entry of the conversation transcript.
type Turn struct {
	// Step is the 1-based message number; zero for restarts.
	Step int `json:"step,omitempty"`

	// Restart marks a service restart.
	Restart bool `json:"restart,omitempty"`

	From    string `json:"from,omitempty"`
	Say     string `json:"say,omitempty"`
	Handled bool   `json:"handled"`
	Reply   string `json:"reply,omitempty"`
	Code    string `json:"code,omitempty"`
}

// EventLine is one audit event, with participants shown by name.
type EventLine struct {
	Seq     int64  `json:"seq"`
	ID      string `json:"id"`
	MatchID int64  `json:"match_id"`
	Kind    string `json:"kind"`
	Actor   string `json:"actor"`
	Winner  string `json:"winner,omitempty"`
}

// FinalState is the ladder state captured after the flow.
type FinalState struct {
	Leaderboard []string    `json:"leaderboard"`
	Waiting     []string    `json:"waiting"`
	OpenMatches []string    `json:"open_matches"`
	Events      []EventLine `json:"events"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Transcript contains every flow message and its reply in order.
	Transcript []Turn `json:"transcript"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the ladder state once the flow has finished.
	State FinalState `json:"state"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Transcript: []Turn{},
		Errors:     []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTurn appends a message and its reply to the transcript.
func (r *Result) AddTurn(t Turn) {
	t.Step = r.messages() + 1
	r.Transcript = append(r.Transcript, t)
}

// AddRestart appends a restart marker to the transcript.
func (r *Result) AddRestart() {
	r.Transcript = append(r.Transcript, Turn{Restart: true})
}

func (r *Result) messages() int {
	n := 0
	for _, t := range r.Transcript {
		if !t.Restart {
			n++
		}
	}
	return n
}
