package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// isolate runs the test from an empty directory so no stray .env is read.
func isolate(t *testing.T) {
	t.Helper()
	chdir(t, t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_CUEFile(t *testing.T) {
	isolate(t)
	path := writeFile(t, "ladder.cue", `
database: "/var/lib/ladder/ladder.db"
prefix: "?"
admins: [900, 901]
commit_timeout: "250ms"
log_format: "json"
cors_origins: ["https://ladder.example"]
names: {
	"1": "alice"
	"2": "bob"
}
`)

	cfg, err := Load(Options{File: path})
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ladder/ladder.db", cfg.Database)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen, "unset fields keep defaults")
	assert.Equal(t, "?", cfg.Prefix)
	assert.Equal(t, []int64{900, 901}, cfg.Admins)
	assert.Equal(t, 250*time.Millisecond, cfg.CommitTimeout)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"https://ladder.example"}, cfg.AllowedOrigins)
	assert.Equal(t, map[int64]string{1: "alice", 2: "bob"}, cfg.Names)
}

func TestLoad_CUEFileRejectedBySchema(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", `databse: "x.db"`},
		{"bad log format", `log_format: "xml"`},
		{"negative admin", `admins: [-1]`},
		{"bad duration", `commit_timeout: "soon"`},
		{"prefix with space", `prefix: "! "`},
		{"non-numeric name key", `names: { bob: "bob" }`},
		{"syntax error", `database: `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "ladder.cue", tt.src)
			_, err := Load(Options{File: path})
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	isolate(t)

	_, err := Load(Options{File: filepath.Join(t.TempDir(), "absent.cue")})
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeFile(t, "ladder.cue", `
database: "file.db"
admins: [1]
`)
	t.Setenv("LADDER_DB", "env.db")
	t.Setenv("LADDER_ADMINS", "7,8")
	t.Setenv("LADDER_COMMIT_TIMEOUT", "2s")

	cfg, err := Load(Options{File: path})
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database)
	assert.Equal(t, []int64{7, 8}, cfg.Admins)
	assert.Equal(t, 2*time.Second, cfg.CommitTimeout)
}

func TestLoad_DotEnv(t *testing.T) {
	isolate(t)
	t.Cleanup(func() {
		os.Unsetenv("LADDER_LISTEN")
		os.Unsetenv("LADDER_PREFIX")
	})
	// Already-set variables win over the .env file.
	t.Setenv("LADDER_PREFIX", "$")

	path := writeFile(t, "ladder.env", "LADDER_LISTEN=0.0.0.0:9000\nLADDER_PREFIX=%\n")

	cfg, err := Load(Options{DotEnv: path})
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, "$", cfg.Prefix)
}

func TestLoad_ExplicitDotEnvMustExist(t *testing.T) {
	isolate(t)

	_, err := Load(Options{DotEnv: filepath.Join(t.TempDir(), "missing.env")})
	assert.Error(t, err)
}

func TestLoad_InvalidEnv(t *testing.T) {
	isolate(t)
	t.Setenv("LADDER_COMMIT_TIMEOUT", "forever")

	_, err := Load(Options{})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.LogFormat = "yaml"
	cfg.CommitTimeout = -time.Second
	cfg.Admins = []int64{0}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log format")
	assert.Contains(t, err.Error(), "commit timeout")
	assert.Contains(t, err.Error(), "admin ID")
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
