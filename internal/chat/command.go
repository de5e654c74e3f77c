package chat

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultPrefix is the command prefix used when none is configured.
const DefaultPrefix = "!"

// Command names understood by the dispatcher.
const (
	CmdQueue        = "q"
	CmdLeave        = "leave"
	CmdReport       = "report"
	CmdStats        = "stats"
	CmdDeleteMatch  = "delete_match"
	CmdAlterWinner  = "alter_winner"
	CmdLeaderboards = "leaderboards"
	CmdResetData    = "reset_data"
	CmdCommands     = "commands"
)

var aliases = map[string]string{
	"queue":       CmdQueue,
	"join":        CmdQueue,
	"leaderboard": CmdLeaderboards,
	"help":        CmdCommands,
}

// Command is a parsed chat command.
type Command struct {
	// Name is the canonical command name (aliases resolved), lower case.
	Name string

	// Args are the whitespace-separated arguments, NFKC-normalized but with
	// case preserved.
	Args []string
}

// Parser turns message text into commands.
type Parser struct {
	prefix string
}

// NewParser creates a parser for the given prefix. An empty prefix falls
// back to DefaultPrefix.
func NewParser(prefix string) *Parser {
	prefix = norm.NFKC.String(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Parser{prefix: prefix}
}

// Prefix returns the configured command prefix.
func (p *Parser) Prefix() string {
	return p.prefix
}

// Parse extracts a command from text. It reports false for text that does
// not start with the prefix or has no command word after it.
//
// Text is NFKC-normalized first, so full-width forms such as "！ｑ" parse the
// same as "!q".
func (p *Parser) Parse(text string) (Command, bool) {
	text = strings.TrimSpace(norm.NFKC.String(text))
	if !strings.HasPrefix(text, p.prefix) {
		return Command{}, false
	}

	fields := strings.Fields(strings.TrimPrefix(text, p.prefix))
	if len(fields) == 0 {
		return Command{}, false
	}

	name := strings.ToLower(fields[0])
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	return Command{Name: name, Args: fields[1:]}, true
}
