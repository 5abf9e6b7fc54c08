// Package config provides configuration loading for rig.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the complete rig configuration.
type Config struct {
	Global   GlobalConfig   `mapstructure:"global" yaml:"global"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	SSH      SSHConfig      `mapstructure:"ssh" yaml:"ssh"`
	Task     TaskConfig     `mapstructure:"task" yaml:"task"`
	Rules    RulesConfig    `mapstructure:"rules" yaml:"rules"`
	Audit    AuditConfig    `mapstructure:"audit" yaml:"audit"`
}

// GlobalConfig contains paths shared by daemon and CLI.
type GlobalConfig struct {
	// DataDir is where rig stores local state (audit journal).
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// ConfigDir is where rig looks for configuration.
	ConfigDir string `mapstructure:"config_dir" yaml:"config_dir"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level        string `mapstructure:"level" yaml:"level"`
	Format       string `mapstructure:"format" yaml:"format"`
	File         string `mapstructure:"file" yaml:"file"`
	EnableCaller bool   `mapstructure:"enable_caller" yaml:"enable_caller"`
}

// ServerConfig contains the daemon's listen settings.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Addr returns the daemon listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ProviderConfig configures the GPU rental provider client. The API key is
// taken from the environment, never stored in the config file.
type ProviderConfig struct {
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string        `mapstructure:"api_key_env" yaml:"api_key_env"`
	ServerURL string        `mapstructure:"server_url" yaml:"server_url"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// APIKey resolves the provider API key from the environment.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// SSHConfig contains defaults for SSH connections to instances.
type SSHConfig struct {
	KeyPath        string        `mapstructure:"key_path" yaml:"key_path"`
	PublicKeyPath  string        `mapstructure:"public_key_path" yaml:"public_key_path"`
	User           string        `mapstructure:"user" yaml:"user"`
	Port           int           `mapstructure:"port" yaml:"port"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	ExecTimeout    time.Duration `mapstructure:"exec_timeout" yaml:"exec_timeout"`
}

// TaskConfig contains defaults for remote background tasks.
type TaskConfig struct {
	// Grace is how long Kill waits between TERM and KILL.
	Grace time.Duration `mapstructure:"grace" yaml:"grace"`
	// TailLines is the default status log tail length.
	TailLines int `mapstructure:"tail_lines" yaml:"tail_lines"`
}

// RulesConfig configures post-creation automation.
type RulesConfig struct {
	AutoAttachSSH bool          `mapstructure:"auto_attach_ssh" yaml:"auto_attach_ssh"`
	AutoLabel     bool          `mapstructure:"auto_label" yaml:"auto_label"`
	LabelPrefix   string        `mapstructure:"label_prefix" yaml:"label_prefix"`
	WaitForReady  bool          `mapstructure:"wait_for_ready" yaml:"wait_for_ready"`
	ReadyTimeout  time.Duration `mapstructure:"ready_timeout" yaml:"ready_timeout"`
}

// AuditConfig configures the local operation journal.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local", "share", "rig")
	configDir := filepath.Join(homeDir, ".config", "rig")

	return &Config{
		Global: GlobalConfig{
			DataDir:   dataDir,
			ConfigDir: configDir,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 7070,
		},
		Provider: ProviderConfig{
			APIKeyEnv: "VAST_API_KEY",
			ServerURL: "https://console.vast.ai",
			Timeout:   30 * time.Second,
		},
		SSH: SSHConfig{
			KeyPath:        filepath.Join(homeDir, ".ssh", "id_rsa"),
			PublicKeyPath:  filepath.Join(homeDir, ".ssh", "id_rsa.pub"),
			User:           "root",
			Port:           22,
			ConnectTimeout: 30 * time.Second,
			ExecTimeout:    30 * time.Second,
		},
		Task: TaskConfig{
			Grace:     2 * time.Second,
			TailLines: 50,
		},
		Rules: RulesConfig{
			AutoAttachSSH: true,
			AutoLabel:     true,
			LabelPrefix:   "rig",
			WaitForReady:  false,
			ReadyTimeout:  5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    filepath.Join(dataDir, "audit.db"),
		},
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled", "":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json", "":
	default:
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		return fmt.Errorf("invalid ssh port: %d", c.SSH.Port)
	}
	if c.SSH.User == "" {
		return fmt.Errorf("ssh user must not be empty")
	}
	if c.Task.Grace < 0 {
		return fmt.Errorf("task grace must not be negative")
	}
	if c.Task.TailLines < 0 {
		return fmt.Errorf("task tail_lines must not be negative")
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		return fmt.Errorf("audit path required when audit is enabled")
	}
	return nil
}

// EnsureDirectories creates the directories rig needs at runtime.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Global.DataDir, c.Global.ConfigDir}
	if c.Audit.Enabled {
		dirs = append(dirs, filepath.Dir(c.Audit.Path))
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
