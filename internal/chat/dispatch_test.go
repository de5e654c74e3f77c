package chat

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ladder/internal/ladder"
	"github.com/roach88/ladder/internal/ledger"
	"github.com/roach88/ladder/internal/store"
	"github.com/roach88/ladder/internal/testutil"
)

func setupDispatcher(t *testing.T) (*Dispatcher, *ladder.Service) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc, err := ladder.Open(context.Background(), st, ladder.WithIDGenerator(testutil.NewSequenceGenerator("ev")))
	require.NoError(t, err)

	names := NewNameBook(StaticDirectory{3: "carol"})
	return NewDispatcher(svc, NewParser("!"), names), svc
}

var (
	alice = Message{Author: 1, Name: "alice"}
	bob   = Message{Author: 2, Name: "bob"}
	mod   = Message{Author: 9, Name: "mod", Admin: true}
)

func say(t *testing.T, d *Dispatcher, from Message, text string) Reply {
	t.Helper()
	from.Text = text
	reply, handled, err := d.Handle(context.Background(), from)
	require.NoError(t, err)
	require.True(t, handled, "command %q not handled", text)
	return reply
}

func TestDispatcher_Conversation(t *testing.T) {
	d, _ := setupDispatcher(t)

	assert.Equal(t, "alice has joined the queue.", say(t, d, alice, "!q").Text)
	assert.Equal(t, "alice, you are already in the queue.", say(t, d, alice, "!q").Text)
	assert.Equal(t, "bob has joined the queue.\nMatch created! alice vs bob. Match ID: 1", say(t, d, bob, "!q").Text)

	assert.Equal(t, "Match ID 1 result confirmed: bob wins.", say(t, d, alice, "!report 1 l").Text)
	assert.Equal(t, "bob, your record: 1 wins, 0 losses.", say(t, d, bob, "!stats").Text)

	assert.Equal(t, "Match ID 1 result has been updated: alice is now the winner.", say(t, d, mod, "!alter_winner 1 <@1>").Text)
	assert.Equal(t, "Leaderboard:\nalice: 1 wins, 0 losses\nbob: 0 wins, 1 losses", say(t, d, mod, "!leaderboards").Text)

	assert.Equal(t, "Match ID 1 has been deleted. alice's win has been removed.", say(t, d, mod, "!delete_match 1").Text)
	assert.Equal(t, "alice, you have no recorded matches yet.", say(t, d, alice, "!stats").Text)
	assert.Equal(t, "Leaderboard:\nalice: 0 wins, 0 losses\nbob: 0 wins, 0 losses", say(t, d, mod, "!leaderboards").Text)

	assert.Equal(t, "All match data and user statistics have been reset.", say(t, d, mod, "!reset_data").Text)
	assert.Equal(t, "No match records found.", say(t, d, mod, "!leaderboards").Text)
	assert.Equal(t, "alice, you have no recorded matches yet.", say(t, d, alice, "!stats").Text)
}

func TestDispatcher_RejectedCommands(t *testing.T) {
	d, _ := setupDispatcher(t)
	say(t, d, alice, "!q")
	say(t, d, bob, "!q")

	tests := []struct {
		name string
		from Message
		text string
		code ledger.ErrorCode
		want string
	}{
		{"unknown match", alice, "!report 7 w", ledger.CodeNotFound, "Match ID 7 not found."},
		{"outsider report", Message{Author: 3}, "!report 1 w", ledger.CodeNotParticipant, "You are not part of Match ID 1."},
		{"bad outcome", alice, "!report 1 draw", ledger.CodeInvalidInput, `Invalid result. Please report with "w" for win or "l" for loss.`},
		{"missing args", alice, "!report 1", ledger.CodeInvalidInput, "Usage: !report <match_id> <w/l>"},
		{"bad match id", alice, "!report one w", ledger.CodeInvalidInput, `Invalid input: invalid match ID "one".`},
		{"non-admin delete", alice, "!delete_match 1", ledger.CodeUnauthorized, "alice, only admins can use !delete_match."},
		{"non-admin reset", bob, "!reset_data", ledger.CodeUnauthorized, "bob, only admins can use !reset_data."},
		{"outsider winner", mod, "!alter_winner 1 3", ledger.CodeNotParticipant, "carol is not part of Match ID 1."},
		{"unknown winner name", mod, "!alter_winner 1 44", ledger.CodeNotParticipant, "<@44> is not part of Match ID 1."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := say(t, d, tt.from, tt.text)
			assert.Equal(t, tt.code, reply.Code)
			assert.False(t, reply.OK())
			assert.Equal(t, tt.want, reply.Text)
		})
	}

	say(t, d, alice, "!report 1 w")
	reply := say(t, d, bob, "!report 1 w")
	assert.Equal(t, ledger.CodeAlreadyResolved, reply.Code)
	assert.Equal(t, "Match ID 1 has already been reported.", reply.Text)
}

func TestDispatcher_DeleteOpenMatch(t *testing.T) {
	d, svc := setupDispatcher(t)
	say(t, d, alice, "!q")
	say(t, d, bob, "!q")

	reply := say(t, d, mod, "!delete_match 1")
	assert.True(t, reply.OK())
	assert.Equal(t, "Match ID 1 has been deleted. No result had been recorded.", reply.Text)

	board, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	assert.Empty(t, board)
}

func TestDispatcher_LeaveAndUnknown(t *testing.T) {
	d, _ := setupDispatcher(t)

	assert.Equal(t, "alice, you are not currently in the queue.", say(t, d, alice, "!leave").Text)
	say(t, d, alice, "!join")
	assert.Equal(t, "alice has left the queue.", say(t, d, alice, "!leave").Text)

	for _, text := range []string{"!dance", "hello there", ""} {
		msg := alice
		msg.Text = text
		_, handled, err := d.Handle(context.Background(), msg)
		require.NoError(t, err)
		assert.False(t, handled, text)
	}
}

func TestDispatcher_UnnamedParticipantsUseMentions(t *testing.T) {
	d, _ := setupDispatcher(t)

	say(t, d, Message{Author: 11}, "!q")
	reply := say(t, d, Message{Author: 12}, "!q")
	assert.Equal(t, "<@12> has joined the queue.\nMatch created! <@11> vs <@12>. Match ID: 1", reply.Text)
}

func TestDispatcher_CommandsList(t *testing.T) {
	d, _ := setupDispatcher(t)

	text := say(t, d, alice, "!help").Text
	assert.True(t, strings.HasPrefix(text, "Here are the available commands:\n"))
	assert.Contains(t, text, "**!report <match_id> <w/l>**")
	assert.Len(t, strings.Split(text, "\n"), 10)
}

func TestDispatcher_ClosedServiceIsAnError(t *testing.T) {
	d, svc := setupDispatcher(t)
	require.NoError(t, svc.Close())

	msg := alice
	msg.Text = "!q"
	_, handled, err := d.Handle(context.Background(), msg)
	assert.True(t, handled)
	assert.ErrorIs(t, err, ladder.ErrClosed)
}

func TestDispatcher_GrantAdmin(t *testing.T) {
	d, _ := setupDispatcher(t)
	say(t, d, alice, "!q")
	say(t, d, bob, "!q")

	assert.Equal(t, ledger.CodeUnauthorized, say(t, d, alice, "!delete_match 1").Code)

	d.GrantAdmin(alice.Author)
	reply := say(t, d, alice, "!delete_match 1")
	assert.True(t, reply.OK(), reply.Text)
}
