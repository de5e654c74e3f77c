package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ladder/internal/chat"
	"github.com/roach88/ladder/internal/ledger"
)

// ConsoleOptions holds flags for the console command.
type ConsoleOptions struct {
	*RootOptions
	As    int64
	Name  string
	Admin bool
}

// consoleReply is the JSON form of one reply.
type consoleReply struct {
	Participant int64  `json:"participant"`
	Command     string `json:"command"`
	Reply       string `json:"reply"`
	Code        string `json:"code,omitempty"`
}

// NewConsoleCommand creates the console command.
func NewConsoleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConsoleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Chat with the ladder from the terminal",
		Long: `Read chat messages from stdin, one per line, and print the replies.

Messages are sent as the participant given by --as. A line of the form
"/as <id> [name] [admin]" switches to another participant, so a whole
conversation can be replayed from a file. Lines that are not commands
get no reply.

Example:
  ladder console --as 42 --name alice
  ladder console --as 1 --db /tmp/ladder.db --format json < conversation.txt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.As, "as", 0, "participant ID to send messages as (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name of the participant")
	cmd.Flags().BoolVar(&opts.Admin, "admin", false, "send messages as an admin")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}

func runConsole(opts *ConsoleOptions, cmd *cobra.Command) error {
	if opts.As <= 0 {
		return NewExitError(ExitCommandError, "--as must be a positive participant ID")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	formatter := newFormatter(opts.RootOptions, cmd)
	d := a.dispatcher()
	author := chat.Message{Author: ledger.ParticipantID(opts.As), Name: opts.Name, Admin: opts.Admin}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "/as ") {
			next, err := parseIdentity(strings.TrimPrefix(line, "/as "))
			if err != nil {
				if err := formatter.Error(string(ledger.CodeInvalidInput), err.Error(), nil); err != nil {
					return err
				}
				continue
			}
			author = next
			formatter.VerboseLog("now speaking as %s", chat.Mention(author.Author))
			continue
		}

		msg := author
		msg.Text = line
		reply, handled, err := d.Handle(ctx, msg)
		if err != nil {
			return WrapExitError(ExitFailure, "command failed", err)
		}
		if !handled {
			continue
		}

		text := reply.Text
		if !reply.OK() {
			text = fmt.Sprintf("[%s] %s", reply.Code, reply.Text)
		}
		if err := formatter.Success(text, consoleReply{
			Participant: int64(msg.Author),
			Command:     reply.Command,
			Reply:       reply.Text,
			Code:        string(reply.Code),
		}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to read input", err)
	}
	return nil
}

// parseIdentity parses "<id> [name] [admin]".
func parseIdentity(s string) (chat.Message, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 3 {
		return chat.Message{}, fmt.Errorf("usage: /as <id> [name] [admin]")
	}
	id, err := chat.ParseParticipant(fields[0])
	if err != nil {
		return chat.Message{}, err
	}

	msg := chat.Message{Author: id}
	for _, f := range fields[1:] {
		if f == "admin" {
			msg.Admin = true
			continue
		}
		msg.Name = f
	}
	return msg, nil
}
