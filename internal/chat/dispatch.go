package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/ladder/internal/ladder"
	"github.com/roach88/ladder/internal/ledger"
)

// Ladder is the subset of ladder.Service the dispatcher drives.
type Ladder interface {
	Join(ctx context.Context, p ledger.ParticipantID) (ladder.JoinOutcome, error)
	Leave(ctx context.Context, p ledger.ParticipantID) (bool, error)
	Report(ctx context.Context, id ledger.MatchID, p ledger.ParticipantID, outcome ledger.Outcome) (ledger.Match, error)
	Stats(ctx context.Context, p ledger.ParticipantID) (ledger.Record, error)
	DeleteMatch(ctx context.Context, id ledger.MatchID, caller ladder.Caller) (ledger.Match, error)
	OverrideWinner(ctx context.Context, id ledger.MatchID, newWinner ledger.ParticipantID, caller ladder.Caller) (ledger.Match, error)
	Leaderboard(ctx context.Context) ([]ledger.Record, error)
	ResetAll(ctx context.Context, caller ladder.Caller) error
}

// Message is one inbound chat message. Author and Admin are supplied by the
// platform boundary and trusted as-is.
type Message struct {
	Author ledger.ParticipantID
	Name   string
	Admin  bool
	Text   string
}

// Reply is the response to a handled command. Code is empty on success and
// carries the ledger error code when the command was rejected.
type Reply struct {
	Command string
	Text    string
	Code    ledger.ErrorCode
}

// OK reports whether the command succeeded.
func (r Reply) OK() bool {
	return r.Code == ""
}

// Dispatcher routes parsed commands to the ladder and formats replies.
type Dispatcher struct {
	ladder Ladder
	parser *Parser
	names  Directory
	admins map[ledger.ParticipantID]bool
}

// NewDispatcher creates a dispatcher. names may be nil, in which case
// participants are shown in mention form.
func NewDispatcher(l Ladder, parser *Parser, names Directory) *Dispatcher {
	if parser == nil {
		parser = NewParser(DefaultPrefix)
	}
	return &Dispatcher{ladder: l, parser: parser, names: names, admins: make(map[ledger.ParticipantID]bool)}
}

// GrantAdmin treats messages from ids as admin messages regardless of the
// flag set by the platform. Call before the dispatcher is shared.
func (d *Dispatcher) GrantAdmin(ids ...ledger.ParticipantID) {
	for _, id := range ids {
		d.admins[id] = true
	}
}

// Handle processes one message. It reports false when the text is not a
// known command; such messages get no reply.
//
// Rejected commands (bad input, unknown match, missing permission, failed
// write) are not errors: they produce a Reply with Code set. The returned
// error is reserved for failures outside the ledger, such as a closed
// service or a cancelled context.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) (Reply, bool, error) {
	cmd, ok := d.parser.Parse(msg.Text)
	if !ok {
		return Reply{}, false, nil
	}

	if l, ok := d.names.(Learner); ok {
		l.Learn(msg.Author, msg.Name)
	}

	var (
		text string
		err  error
	)
	switch cmd.Name {
	case CmdQueue:
		text, err = d.queue(ctx, msg)
	case CmdLeave:
		text, err = d.leave(ctx, msg)
	case CmdReport:
		text, err = d.report(ctx, msg, cmd.Args)
	case CmdStats:
		text, err = d.stats(ctx, msg)
	case CmdDeleteMatch:
		text, err = d.deleteMatch(ctx, msg, cmd.Args)
	case CmdAlterWinner:
		text, err = d.alterWinner(ctx, msg, cmd.Args)
	case CmdLeaderboards:
		text, err = d.leaderboards(ctx)
	case CmdResetData:
		text, err = d.resetData(ctx, msg)
	case CmdCommands:
		text = d.commands()
	default:
		slog.Debug("unknown chat command", "command", cmd.Name, "participant", msg.Author)
		return Reply{}, false, nil
	}

	if err != nil {
		var lerr *ledger.Error
		if !errors.As(err, &lerr) {
			return Reply{}, true, err
		}
		slog.Debug("chat command rejected",
			"command", cmd.Name,
			"participant", msg.Author,
			"code", string(lerr.Code),
			"error", lerr.Message,
		)
		return Reply{Command: cmd.Name, Text: d.describe(cmd.Name, msg, lerr), Code: lerr.Code}, true, nil
	}
	return Reply{Command: cmd.Name, Text: text}, true, nil
}

func (d *Dispatcher) queue(ctx context.Context, msg Message) (string, error) {
	out, err := d.ladder.Join(ctx, msg.Author)
	if err != nil {
		return "", err
	}

	name := d.name(msg.Author)
	var b strings.Builder
	if out.Result == ledger.AlreadyQueued {
		fmt.Fprintf(&b, "%s, you are already in the queue.", name)
	} else {
		fmt.Fprintf(&b, "%s has joined the queue.", name)
	}
	if m := out.Match; m != nil {
		fmt.Fprintf(&b, "\nMatch created! %s vs %s. Match ID: %d",
			d.name(m.Players[0]), d.name(m.Players[1]), m.ID)
	}
	return b.String(), nil
}

func (d *Dispatcher) leave(ctx context.Context, msg Message) (string, error) {
	left, err := d.ladder.Leave(ctx, msg.Author)
	if err != nil {
		return "", err
	}
	if !left {
		return fmt.Sprintf("%s, you are not currently in the queue.", d.name(msg.Author)), nil
	}
	return fmt.Sprintf("%s has left the queue.", d.name(msg.Author)), nil
}

func (d *Dispatcher) report(ctx context.Context, msg Message, args []string) (string, error) {
	if len(args) != 2 {
		return "", usageError(CmdReport)
	}
	id, err := ParseMatchID(args[0])
	if err != nil {
		return "", err
	}
	outcome, err := ledger.ParseOutcome(args[1])
	if err != nil {
		return "", invalidOutcomeError(id)
	}

	m, err := d.ladder.Report(ctx, id, msg.Author, outcome)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Match ID %d result confirmed: %s wins.", m.ID, d.name(m.Winner)), nil
}

func (d *Dispatcher) stats(ctx context.Context, msg Message) (string, error) {
	r, err := d.ladder.Stats(ctx, msg.Author)
	if err != nil {
		return "", err
	}
	if r.Played() == 0 {
		return fmt.Sprintf("%s, you have no recorded matches yet.", d.name(msg.Author)), nil
	}
	return fmt.Sprintf("%s, your record: %d wins, %d losses.", d.name(msg.Author), r.Wins, r.Losses), nil
}

func (d *Dispatcher) deleteMatch(ctx context.Context, msg Message, args []string) (string, error) {
	if len(args) != 1 {
		return "", usageError(CmdDeleteMatch)
	}
	id, err := ParseMatchID(args[0])
	if err != nil {
		return "", err
	}

	m, err := d.ladder.DeleteMatch(ctx, id, d.caller(msg))
	if err != nil {
		return "", err
	}
	if !m.Resolved() {
		return fmt.Sprintf("Match ID %d has been deleted. No result had been recorded.", m.ID), nil
	}
	return fmt.Sprintf("Match ID %d has been deleted. %s's win has been removed.", m.ID, d.name(m.Winner)), nil
}

func (d *Dispatcher) alterWinner(ctx context.Context, msg Message, args []string) (string, error) {
	if len(args) != 2 {
		return "", usageError(CmdAlterWinner)
	}
	id, err := ParseMatchID(args[0])
	if err != nil {
		return "", err
	}
	winner, err := ParseParticipant(args[1])
	if err != nil {
		return "", err
	}

	m, err := d.ladder.OverrideWinner(ctx, id, winner, d.caller(msg))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Match ID %d result has been updated: %s is now the winner.", m.ID, d.name(m.Winner)), nil
}

func (d *Dispatcher) leaderboards(ctx context.Context) (string, error) {
	records, err := d.ladder.Leaderboard(ctx)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "No match records found.", nil
	}

	lines := make([]string, 0, len(records)+1)
	lines = append(lines, "Leaderboard:")
	for _, r := range records {
		lines = append(lines, fmt.Sprintf("%s: %d wins, %d losses", d.name(r.Participant), r.Wins, r.Losses))
	}
	return strings.Join(lines, "\n"), nil
}

func (d *Dispatcher) resetData(ctx context.Context, msg Message) (string, error) {
	if err := d.ladder.ResetAll(ctx, d.caller(msg)); err != nil {
		return "", err
	}
	return "All match data and user statistics have been reset.", nil
}

func (d *Dispatcher) commands() string {
	p := d.parser.Prefix()
	lines := []string{
		"Here are the available commands:",
		fmt.Sprintf("**%sq**: Join the queue and wait to be matched.", p),
		fmt.Sprintf("**%sleave**: Leave the queue if you are currently in it.", p),
		fmt.Sprintf("**%sreport <match_id> <w/l>**: Report the result of a match.", p),
		fmt.Sprintf("**%sstats**: View your win/loss record.", p),
		fmt.Sprintf("**%sdelete_match <match_id>**: Delete a specific match (admin use).", p),
		fmt.Sprintf("**%salter_winner <match_id> @new_winner**: Change the winner of a specific match (admin use).", p),
		fmt.Sprintf("**%sleaderboards**: View the current leaderboard.", p),
		fmt.Sprintf("**%sreset_data**: Reset all match data and user statistics (admin use).", p),
		fmt.Sprintf("**%scommands**: Display this list of commands.", p),
	}
	return strings.Join(lines, "\n")
}

// describe turns a rejected command into the reply shown in chat.
func (d *Dispatcher) describe(cmd string, msg Message, err *ledger.Error) string {
	switch err.Code {
	case ledger.CodeNotFound:
		return fmt.Sprintf("Match ID %d not found.", err.MatchID)
	case ledger.CodeNotParticipant:
		if cmd == CmdReport {
			return fmt.Sprintf("You are not part of Match ID %d.", err.MatchID)
		}
		return fmt.Sprintf("%s is not part of Match ID %d.", d.name(err.Participant), err.MatchID)
	case ledger.CodeAlreadyResolved:
		return fmt.Sprintf("Match ID %d has already been reported.", err.MatchID)
	case ledger.CodeUnauthorized:
		return fmt.Sprintf("%s, only admins can use %s%s.", d.name(msg.Author), d.parser.Prefix(), cmd)
	case ledger.CodeInvalidInput:
		if usage, ok := err.Details["usage"]; ok {
			return "Usage: " + d.parser.Prefix() + usage
		}
		if _, ok := err.Details["outcome"]; ok {
			return `Invalid result. Please report with "w" for win or "l" for loss.`
		}
		return "Invalid input: " + err.Message + "."
	case ledger.CodePersistenceFailure:
		return "That change could not be saved, so nothing was changed. Please try again."
	case ledger.CodeConsistencyFault:
		return "That change was rejected because the ledger is inconsistent. An admin should check the logs."
	default:
		return err.Message
	}
}

func (d *Dispatcher) name(p ledger.ParticipantID) string {
	return DisplayName(d.names, p)
}

func (d *Dispatcher) caller(msg Message) ladder.Caller {
	return ladder.Caller{ID: msg.Author, Admin: msg.Admin || d.admins[msg.Author]}
}

var usages = map[string]string{
	CmdReport:      "report <match_id> <w/l>",
	CmdDeleteMatch: "delete_match <match_id>",
	CmdAlterWinner: "alter_winner <match_id> @new_winner",
}

func usageError(cmd string) *ledger.Error {
	err := ledger.NewInvalidInputError("wrong number of arguments")
	err.Details = map[string]string{"usage": usages[cmd]}
	return err
}

func invalidOutcomeError(id ledger.MatchID) *ledger.Error {
	err := ledger.NewInvalidInputError("invalid outcome")
	err.MatchID = id
	err.Details = map[string]string{"outcome": "w|l"}
	return err
}
