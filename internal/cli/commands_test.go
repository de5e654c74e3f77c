package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command from an empty working directory, so no
// stray .env is read.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(t, context.Background(), stdin, args...)
}

func executeContext(t *testing.T, ctx context.Context, stdin string, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	chdir(t, t.TempDir())
	return filepath.Join(t.TempDir(), "ladder.db")
}

const conversation = `!q
/as 2 bob
!q
hello
/as 1 alice
!report 1 w
/as 9 mod admin
!delete_match 1
/as 5
!report 7 w
`

func TestConsole_Conversation(t *testing.T) {
	db := tempDB(t)

	stdout, _, err := execute(t, conversation, "console", "--db", db, "--as", "1", "--name", "alice")
	require.NoError(t, err)

	want := strings.Join([]string{
		"alice has joined the queue.",
		"bob has joined the queue.\nMatch created! alice vs bob. Match ID: 1",
		"Match ID 1 result confirmed: alice wins.",
		"Match ID 1 has been deleted. alice's win has been removed.",
		"[NOT_FOUND] Match ID 7 not found.",
	}, "\n") + "\n"
	assert.Equal(t, want, stdout)

	t.Run("stats", func(t *testing.T) {
		stdout, _, err := execute(t, "", "stats", "1", "--db", db)
		require.NoError(t, err)
		assert.Equal(t, "<@1>: 0 wins, 0 losses\n", stdout)
	})

	t.Run("leaderboard", func(t *testing.T) {
		stdout, _, err := execute(t, "", "leaderboard", "--db", db)
		require.NoError(t, err)
		assert.Equal(t, "1. <@1>: 0 wins, 0 losses\n2. <@2>: 0 wins, 0 losses\n", stdout)
	})

	t.Run("history", func(t *testing.T) {
		stdout, _, err := execute(t, "", "history", "1", "--db", db)
		require.NoError(t, err)
		assert.Equal(t, strings.Join([]string{
			"Match ID 1:",
			"  1 created by <@2>",
			"  2 resolved by <@1>, winner <@1>",
			"  3 deleted by <@9>, winner <@1>",
		}, "\n")+"\n", stdout)
	})

	t.Run("history of unknown match", func(t *testing.T) {
		stdout, _, err := execute(t, "", "history", "8", "--db", db)
		require.NoError(t, err)
		assert.Equal(t, "Match ID 8:\n  (no recorded changes)\n", stdout)
	})
}

func TestConsole_JSON(t *testing.T) {
	db := tempDB(t)

	stdout, _, err := execute(t, "!q\n!report 3 w\n", "console", "--db", db, "--as", "4", "--format", "json")
	require.NoError(t, err)

	dec := json.NewDecoder(strings.NewReader(stdout))
	var replies []consoleReply
	for dec.More() {
		var resp struct {
			Status string       `json:"status"`
			Data   consoleReply `json:"data"`
		}
		require.NoError(t, dec.Decode(&resp))
		assert.Equal(t, "ok", resp.Status)
		replies = append(replies, resp.Data)
	}

	require.Len(t, replies, 2)
	assert.Equal(t, consoleReply{Participant: 4, Command: "q", Reply: "<@4> has joined the queue."}, replies[0])
	assert.Equal(t, "report", replies[1].Command)
	assert.Equal(t, "NOT_FOUND", replies[1].Code)
}

func TestConsole_RequiresParticipant(t *testing.T) {
	db := tempDB(t)

	_, _, err := execute(t, "", "console", "--db", db)
	require.Error(t, err)

	_, _, err = execute(t, "", "console", "--db", db, "--as", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConsole_BadIdentityLine(t *testing.T) {
	db := tempDB(t)

	stdout, _, err := execute(t, "/as bob\n!q\n", "console", "--db", db, "--as", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Error [INVALID_INPUT]")
	assert.Contains(t, stdout, "<@1> has joined the queue.")
}

func TestParseIdentity(t *testing.T) {
	msg, err := parseIdentity("9 mod admin")
	require.NoError(t, err)
	assert.EqualValues(t, 9, msg.Author)
	assert.Equal(t, "mod", msg.Name)
	assert.True(t, msg.Admin)

	msg, err = parseIdentity("<@3>")
	require.NoError(t, err)
	assert.EqualValues(t, 3, msg.Author)
	assert.False(t, msg.Admin)

	for _, bad := range []string{"", "x", "1 a b c"} {
		_, err := parseIdentity(bad)
		assert.Error(t, err, bad)
	}
}

func TestConfigFile_NamesAndAdmins(t *testing.T) {
	db := tempDB(t)
	cfgPath := filepath.Join(t.TempDir(), "ladder.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
prefix: "?"
admins: [7]
names: {
	"1": "alice"
	"2": "bob"
}
`), 0o644))

	stdin := "?q\n/as 2\n?q\n/as 7\n?alter_winner 1 2\n"
	stdout, _, err := execute(t, stdin, "console", "--config", cfgPath, "--db", db, "--as", "1")
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"alice has joined the queue.",
		"bob has joined the queue.\nMatch created! alice vs bob. Match ID: 1",
		"Match ID 1 result has been updated: bob is now the winner.",
	}, "\n")+"\n", stdout)

	stdout, _, err = execute(t, "", "leaderboard", "--config", cfgPath, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "1. bob: 1 wins, 0 losses\n2. alice: 0 wins, 1 losses\n", stdout)
}

func TestQuery_JSONAndErrors(t *testing.T) {
	db := tempDB(t)

	stdout, _, err := execute(t, "", "leaderboard", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No match records found.\n", stdout)

	stdout, _, err = execute(t, "", "stats", "<@12>", "--db", db, "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Status string       `json:"status"`
		Data   recordOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, recordOutput{ParticipantID: 12, Name: "<@12>"}, resp.Data)

	stdout, _, err = execute(t, "", "stats", "nobody", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [INVALID_INPUT]")

	_, _, err = execute(t, "", "history", "abc", "--db", db)
	require.Error(t, err)
}

func scenarioDirs(t *testing.T) (string, string) {
	t.Helper()
	scenarios, err := filepath.Abs(filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err)
	golden, err := filepath.Abs(filepath.Join("..", "harness", "testdata", "golden"))
	require.NoError(t, err)
	return scenarios, golden
}

func TestTestCommand_Scenarios(t *testing.T) {
	scenarios, golden := scenarioDirs(t)
	chdir(t, t.TempDir())

	stdout, _, err := execute(t, "", "test", scenarios, "--golden", golden)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "✓ basic_match")
	assert.Contains(t, stdout, "Test Summary: 4 passed, 0 failed, 4 total")
}

func TestTestCommand_FilterAndJSON(t *testing.T) {
	scenarios, _ := scenarioDirs(t)
	chdir(t, t.TempDir())

	stdout, _, err := execute(t, "", "test", scenarios, "--filter", "reset*", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "reset", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_UpdateGolden(t *testing.T) {
	scenarios, _ := scenarioDirs(t)
	chdir(t, t.TempDir())
	out := filepath.Join(t.TempDir(), "golden")

	_, _, err := execute(t, "", "test", filepath.Join(scenarios, "corrections.yaml"), "--golden", out, "--update")
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(out, "corrections.golden"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(written, []byte("scenario: corrections\n")))

	_, _, err = execute(t, "", "test", filepath.Join(scenarios, "corrections.yaml"), "--golden", out)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(out, "corrections.golden"), []byte("stale\n"), 0o644))
	stdout, _, err := execute(t, "", "test", filepath.Join(scenarios, "corrections.yaml"), "--golden", out)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "transcript does not match golden file")
}

func TestTestCommand_Errors(t *testing.T) {
	chdir(t, t.TempDir())

	_, _, err := execute(t, "", "test", ".", "--update")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--update requires --golden")

	_, _, err = execute(t, "", "test", "missing/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	stdout, _, err := execute(t, "", "test", ".")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", stdout)
}

// syncBuffer lets the test read logs while the server goroutine writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var readyAddr = regexp.MustCompile(`msg="ladder ready" address=(\S+)`)

func TestServe_HealthzAndShutdown(t *testing.T) {
	db := tempDB(t)
	logs := &syncBuffer{}

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(logs)
	cmd.SetArgs([]string{"serve", "--db", db, "--listen", "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	var addr string
	require.Eventually(t, func() bool {
		m := readyAddr.FindStringSubmatch(logs.String())
		if m == nil {
			return false
		}
		addr = m[1]
		return true
	}, 5*time.Second, 10*time.Millisecond, "server never became ready: %s", logs.String())

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServe_BadListenAddress(t *testing.T) {
	db := tempDB(t)

	_, _, err := execute(t, "", "serve", "--db", db, "--listen", "not an address")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
