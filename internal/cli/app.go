package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/roach88/ladder/internal/chat"
	"github.com/roach88/ladder/internal/config"
	"github.com/roach88/ladder/internal/ladder"
	"github.com/roach88/ladder/internal/ledger"
	"github.com/roach88/ladder/internal/store"
)

// app is an open ladder with everything a command needs around it.
type app struct {
	cfg     config.Config
	store   *store.Store
	service *ladder.Service
	names   *chat.NameBook
}

// loadConfig resolves configuration and applies the global flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(config.Options{File: opts.Config})
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}
	return cfg, nil
}

// setupLogging installs the default slog logger on w.
func setupLogging(w io.Writer, cfg config.Config, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

// openApp loads configuration, opens the store and restores the ladder.
// The caller must call close.
func openApp(ctx context.Context, opts *RootOptions, logs io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	setupLogging(logs, cfg, opts.Verbose)

	slog.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	svc, err := ladder.Open(ctx, st, ladder.WithCommitTimeout(cfg.CommitTimeout))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitFailure, "failed to load ladder", err)
	}

	directory := chat.StaticDirectory{}
	for id, name := range cfg.Names {
		directory[ledger.ParticipantID(id)] = name
	}

	return &app{
		cfg:     cfg,
		store:   st,
		service: svc,
		names:   chat.NewNameBook(directory),
	}, nil
}

// dispatcher builds a chat dispatcher with the configured prefix and admins.
func (a *app) dispatcher() *chat.Dispatcher {
	d := chat.NewDispatcher(a.service, chat.NewParser(a.cfg.Prefix), a.names)
	for _, id := range a.cfg.Admins {
		d.GrantAdmin(ledger.ParticipantID(id))
	}
	return d
}

func (a *app) close() {
	if err := a.service.Close(); err != nil {
		slog.Error("failed to close ladder", "error", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}
