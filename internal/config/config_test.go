package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 2*time.Second, cfg.Task.Grace)
	require.Equal(t, 50, cfg.Task.TailLines)
	require.Equal(t, "VAST_API_KEY", cfg.Provider.APIKeyEnv)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad server port", func(c *Config) { c.Server.Port = 0 }},
		{"bad ssh port", func(c *Config) { c.SSH.Port = 70000 }},
		{"empty ssh user", func(c *Config) { c.SSH.User = "" }},
		{"negative grace", func(c *Config) { c.Task.Grace = -time.Second }},
		{"negative tail", func(c *Config) { c.Task.TailLines = -1 }},
		{"audit enabled without path", func(c *Config) { c.Audit.Enabled = true; c.Audit.Path = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: 0.0.0.0
  port: 9090
ssh:
  user: ubuntu
  exec_timeout: 45s
task:
  grace: 5s
rules:
  label_prefix: exp
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	require.Equal(t, "ubuntu", cfg.SSH.User)
	require.Equal(t, 45*time.Second, cfg.SSH.ExecTimeout)
	require.Equal(t, 5*time.Second, cfg.Task.Grace)
	require.Equal(t, "exp", cfg.Rules.LabelPrefix)

	// Unset values keep defaults.
	require.Equal(t, 50, cfg.Task.TailLines)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("RIG_SERVER_PORT", "8181")
	t.Setenv("RIG_LOGGING_LEVEL", "debug")

	cfg, err := LoadDefault()
	require.NoError(t, err)
	require.Equal(t, 8181, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("VAST_API_KEY", "secret-key")
	cfg := DefaultConfig()
	require.Equal(t, "secret-key", cfg.Provider.APIKey())

	cfg.Provider.APIKeyEnv = ""
	require.Equal(t, "", cfg.Provider.APIKey())
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".ssh", "id_ed25519"), expandTilde("~/.ssh/id_ed25519"))
	require.Equal(t, home, expandTilde("~"))
	require.Equal(t, "/abs/path", expandTilde("/abs/path"))
	require.Equal(t, "", expandTilde(""))
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Global.DataDir = filepath.Join(dir, "data")
	cfg.Global.ConfigDir = filepath.Join(dir, "config")
	cfg.Audit.Path = filepath.Join(dir, "data", "audit", "audit.db")

	require.NoError(t, cfg.EnsureDirectories())
	require.DirExists(t, filepath.Join(dir, "data"))
	require.DirExists(t, filepath.Join(dir, "config"))
	require.DirExists(t, filepath.Join(dir, "data", "audit"))
}

func TestLoadBadConfigFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
}
