package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed schema.cue
var schemaCUE string

// Config is the resolved runtime configuration.
//
// Precedence, lowest first: Default, the CUE config file, the .env file,
// the process environment. Command-line flags are applied on top by the
// CLI.
type Config struct {
	Database       string           `env:"LADDER_DB"`
	Listen         string           `env:"LADDER_LISTEN"`
	Prefix         string           `env:"LADDER_PREFIX"`
	Admins         []int64          `env:"LADDER_ADMINS" envSeparator:","`
	CommitTimeout  time.Duration    `env:"LADDER_COMMIT_TIMEOUT"`
	LogFormat      string           `env:"LADDER_LOG_FORMAT"`
	AllowedOrigins []string         `env:"LADDER_CORS_ORIGINS" envSeparator:","`
	Names          map[int64]string // display names; config file only
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:      "ladder.db",
		Listen:        "127.0.0.1:8080",
		Prefix:        "!",
		CommitTimeout: 5 * time.Second,
		LogFormat:     "text",
	}
}

// Options controls where Load looks for configuration.
type Options struct {
	// File is a CUE config file. Empty skips it.
	File string

	// DotEnv is a .env file. Empty means ".env" in the working directory,
	// which is skipped silently when absent; an explicit path must exist.
	DotEnv string
}

// Load resolves the configuration from defaults, file and environment.
func Load(opts Options) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		if err := loadFile(opts.File, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := loadDotEnv(opts.DotEnv); err != nil {
		return Config{}, err
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that the sources cannot check themselves.
func (c Config) Validate() error {
	var errs []error
	if c.Database == "" {
		errs = append(errs, errors.New("database must not be empty"))
	}
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	if c.Prefix == "" {
		errs = append(errs, errors.New("command prefix must not be empty"))
	}
	if c.CommitTimeout < 0 {
		errs = append(errs, fmt.Errorf("commit timeout must not be negative, got %s", c.CommitTimeout))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}
	for _, id := range c.Admins {
		if id <= 0 {
			errs = append(errs, fmt.Errorf("admin ID must be positive, got %d", id))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// fileConfig mirrors #Config in schema.cue.
type fileConfig struct {
	Database      *string           `json:"database"`
	Listen        *string           `json:"listen"`
	Prefix        *string           `json:"prefix"`
	Admins        []int64           `json:"admins"`
	CommitTimeout *string           `json:"commit_timeout"`
	LogFormat     *string           `json:"log_format"`
	CORSOrigins   []string          `json:"cors_origins"`
	Names         map[string]string `json:"names"`
}

// loadFile validates a CUE config file against the embedded schema and
// overlays the fields it sets onto cfg.
func loadFile(path string, cfg *Config) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.CompileBytes(src, cue.Filename(path))
	if err := value.Err(); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := unified.Decode(&fc); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return fc.apply(cfg)
}

func (fc fileConfig) apply(cfg *Config) error {
	if fc.Database != nil {
		cfg.Database = *fc.Database
	}
	if fc.Listen != nil {
		cfg.Listen = *fc.Listen
	}
	if fc.Prefix != nil {
		cfg.Prefix = *fc.Prefix
	}
	if fc.Admins != nil {
		cfg.Admins = fc.Admins
	}
	if fc.CommitTimeout != nil {
		d, err := time.ParseDuration(*fc.CommitTimeout)
		if err != nil {
			return fmt.Errorf("commit_timeout: %w", err)
		}
		cfg.CommitTimeout = d
	}
	if fc.LogFormat != nil {
		cfg.LogFormat = *fc.LogFormat
	}
	if fc.CORSOrigins != nil {
		cfg.AllowedOrigins = fc.CORSOrigins
	}
	if len(fc.Names) > 0 {
		cfg.Names = make(map[int64]string, len(fc.Names))
		for k, name := range fc.Names {
			id, err := strconv.ParseInt(k, 10, 64)
			if err != nil {
				return fmt.Errorf("names: invalid participant ID %q", k)
			}
			cfg.Names[id] = name
		}
	}
	return nil
}

// loadDotEnv exports variables from a .env file without overriding
// variables already set in the environment.
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	err := godotenv.Load(path)
	if err == nil {
		slog.Debug("loaded env file", "path", path)
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}
