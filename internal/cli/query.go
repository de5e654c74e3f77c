package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ladder/internal/chat"
	"github.com/roach88/ladder/internal/ledger"
	"github.com/roach88/ladder/internal/store"
)

type recordOutput struct {
	ParticipantID int64  `json:"participant_id"`
	Name          string `json:"name"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
}

type eventOutput struct {
	Seq    int64  `json:"seq"`
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Actor  int64  `json:"actor"`
	Winner int64  `json:"winner,omitempty"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <participant>",
		Short: "Show the win/loss record of a participant",
		Long: `Show the win/loss record of a participant.

The participant is a numeric ID or a mention such as <@42>.

Example:
  ladder stats 42 --db ./ladder.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			p, err := chat.ParseParticipant(args[0])
			if err != nil {
				return formatter.Failure(err)
			}

			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			rec, err := a.service.Stats(cmd.Context(), p)
			if err != nil {
				return formatter.Failure(err)
			}
			out := toRecordOutput(a, rec)
			return formatter.Success(fmt.Sprintf("%s: %d wins, %d losses", out.Name, out.Wins, out.Losses), out)
		},
	}
}

// NewLeaderboardCommand creates the leaderboard command.
func NewLeaderboardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show every record, most wins first",
		Long: `Show every record sorted by wins descending, ties broken by
ascending participant ID.

Example:
  ladder leaderboard --db ./ladder.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			records, err := a.service.Leaderboard(cmd.Context())
			if err != nil {
				return formatter.Failure(err)
			}

			out := make([]recordOutput, 0, len(records))
			lines := make([]string, 0, len(records))
			for i, rec := range records {
				r := toRecordOutput(a, rec)
				out = append(out, r)
				lines = append(lines, fmt.Sprintf("%d. %s: %d wins, %d losses", i+1, r.Name, r.Wins, r.Losses))
			}
			if len(lines) == 0 {
				lines = append(lines, "No match records found.")
			}
			return formatter.Success(strings.Join(lines, "\n"), out)
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <match_id>",
		Short: "Show the audit trail of a match",
		Long: `Show every recorded change to a match in commit order, including
matches that have since been deleted.

Example:
  ladder history 7 --db ./ladder.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			id, err := chat.ParseMatchID(args[0])
			if err != nil {
				return formatter.Failure(err)
			}

			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			events, err := a.service.History(cmd.Context(), id)
			if err != nil {
				return formatter.Failure(err)
			}

			out := make([]eventOutput, 0, len(events))
			lines := []string{fmt.Sprintf("Match ID %d:", id)}
			for _, ev := range events {
				out = append(out, toEventOutput(ev))
				line := fmt.Sprintf("  %d %s by %s", ev.Seq, ev.Kind, chat.DisplayName(a.names, ev.Actor))
				if ev.Winner != 0 {
					line += ", winner " + chat.DisplayName(a.names, ev.Winner)
				}
				lines = append(lines, line)
			}
			if len(events) == 0 {
				lines = append(lines, "  (no recorded changes)")
			}
			return formatter.Success(strings.Join(lines, "\n"), out)
		},
	}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func toRecordOutput(a *app, rec ledger.Record) recordOutput {
	return recordOutput{
		ParticipantID: int64(rec.Participant),
		Name:          chat.DisplayName(a.names, rec.Participant),
		Wins:          rec.Wins,
		Losses:        rec.Losses,
	}
}

func toEventOutput(ev store.Event) eventOutput {
	return eventOutput{
		Seq:    ev.Seq,
		ID:     ev.ID,
		Kind:   string(ev.Kind),
		Actor:  int64(ev.Actor),
		Winner: int64(ev.Winner),
	}
}
