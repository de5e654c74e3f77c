package cli

import (
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/ladder/internal/httpapi"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat webhook and JSON API",
		Long: `Open the ladder database and serve HTTP until interrupted.

The chat platform integration posts every message to /v1/messages and
relays the reply. Read-only JSON endpoints expose the leaderboard,
records, matches and their audit trail.

Example:
  ladder serve --db ./ladder.db --listen 127.0.0.1:8080
  ladder serve --config ladder.cue --log-format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	listen := a.cfg.Listen
	if opts.Listen != "" {
		listen = opts.Listen
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Ladder:         a.service,
		Dispatcher:     a.dispatcher(),
		Names:          a.names,
		Health:         a.store,
		AllowedOrigins: a.cfg.AllowedOrigins,
	})

	slog.Info("ladder ready",
		"address", ln.Addr().String(),
		"database", a.cfg.Database,
		"prefix", a.cfg.Prefix,
		"admins", len(a.cfg.Admins),
	)
	if err := httpapi.Serve(ctx, ln, router); err != nil {
		return WrapExitError(ExitFailure, "server failed", err)
	}
	return nil
}
