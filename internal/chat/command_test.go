package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Parse(t *testing.T) {
	p := NewParser("!")

	tests := []struct {
		name string
		text string
		want Command
		ok   bool
	}{
		{"bare command", "!q", Command{Name: CmdQueue, Args: []string{}}, true},
		{"args kept", "!report 3 W", Command{Name: CmdReport, Args: []string{"3", "W"}}, true},
		{"upper-case name", "!STATS", Command{Name: CmdStats, Args: []string{}}, true},
		{"surrounding space", "   !leave  ", Command{Name: CmdLeave, Args: []string{}}, true},
		{"alias join", "!join", Command{Name: CmdQueue, Args: []string{}}, true},
		{"alias leaderboard", "!leaderboard", Command{Name: CmdLeaderboards, Args: []string{}}, true},
		{"alias help", "!help", Command{Name: CmdCommands, Args: []string{}}, true},
		{"full-width", "！ｑ", Command{Name: CmdQueue, Args: []string{}}, true},
		{"no prefix", "q", Command{}, false},
		{"prefix only", "!", Command{}, false},
		{"plain chat", "good game everyone", Command{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Parse(tt.text)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want.Name, got.Name)
				assert.ElementsMatch(t, tt.want.Args, got.Args)
			}
		})
	}
}

func TestParser_CustomPrefix(t *testing.T) {
	p := NewParser("ladder ")
	assert.Equal(t, "ladder", p.Prefix())

	cmd, ok := p.Parse("ladder report 2 l")
	require.True(t, ok)
	assert.Equal(t, CmdReport, cmd.Name)
	assert.Equal(t, []string{"2", "l"}, cmd.Args)

	_, ok = p.Parse("!q")
	assert.False(t, ok)
}

func TestParser_EmptyPrefixDefaults(t *testing.T) {
	p := NewParser("  ")
	assert.Equal(t, DefaultPrefix, p.Prefix())
}
