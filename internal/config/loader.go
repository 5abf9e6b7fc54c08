package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		// Config file is optional, only error if explicitly specified
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandPaths expands ~ in all path-related config fields.
func expandPaths(cfg *Config) {
	cfg.Global.DataDir = expandTilde(cfg.Global.DataDir)
	cfg.Global.ConfigDir = expandTilde(cfg.Global.ConfigDir)
	cfg.Logging.File = expandTilde(cfg.Logging.File)
	cfg.SSH.KeyPath = expandTilde(cfg.SSH.KeyPath)
	cfg.SSH.PublicKeyPath = expandTilde(cfg.SSH.PublicKeyPath)
	cfg.Audit.Path = expandTilde(cfg.Audit.Path)
}

// setupViper configures Viper with defaults and environment bindings.
func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "rig"))
	}

	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "rig"))
	}

	v.AddConfigPath(".")

	v.SetEnvPrefix("RIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.setDefaults(cfg)
	bindEnvVars(v)

	v.AutomaticEnv()
}

// setDefaults sets all default values in Viper.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	v.SetDefault("global.data_dir", cfg.Global.DataDir)
	v.SetDefault("global.config_dir", cfg.Global.ConfigDir)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)

	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)

	v.SetDefault("provider.api_key_env", cfg.Provider.APIKeyEnv)
	v.SetDefault("provider.server_url", cfg.Provider.ServerURL)
	v.SetDefault("provider.timeout", cfg.Provider.Timeout)

	v.SetDefault("ssh.key_path", cfg.SSH.KeyPath)
	v.SetDefault("ssh.public_key_path", cfg.SSH.PublicKeyPath)
	v.SetDefault("ssh.user", cfg.SSH.User)
	v.SetDefault("ssh.port", cfg.SSH.Port)
	v.SetDefault("ssh.connect_timeout", cfg.SSH.ConnectTimeout)
	v.SetDefault("ssh.exec_timeout", cfg.SSH.ExecTimeout)

	v.SetDefault("task.grace", cfg.Task.Grace)
	v.SetDefault("task.tail_lines", cfg.Task.TailLines)

	v.SetDefault("rules.auto_attach_ssh", cfg.Rules.AutoAttachSSH)
	v.SetDefault("rules.auto_label", cfg.Rules.AutoLabel)
	v.SetDefault("rules.label_prefix", cfg.Rules.LabelPrefix)
	v.SetDefault("rules.wait_for_ready", cfg.Rules.WaitForReady)
	v.SetDefault("rules.ready_timeout", cfg.Rules.ReadyTimeout)

	v.SetDefault("audit.enabled", cfg.Audit.Enabled)
	v.SetDefault("audit.path", cfg.Audit.Path)
}

// bindEnvVars binds environment variables for config keys.
// Viper's Unmarshal has issues with env vars on nested structs unless
// explicitly bound; this ensures RIG_* env vars work correctly.
func bindEnvVars(v *viper.Viper) {
	envBindings := []string{
		"global.data_dir",
		"global.config_dir",
		"logging.level",
		"logging.format",
		"logging.file",
		"logging.enable_caller",
		"server.host",
		"server.port",
		"provider.api_key_env",
		"provider.server_url",
		"provider.timeout",
		"ssh.key_path",
		"ssh.public_key_path",
		"ssh.user",
		"ssh.port",
		"ssh.connect_timeout",
		"ssh.exec_timeout",
		"task.grace",
		"task.tail_lines",
		"rules.auto_attach_ssh",
		"rules.auto_label",
		"rules.label_prefix",
		"rules.wait_for_ready",
		"rules.ready_timeout",
		"audit.enabled",
		"audit.path",
	}

	for _, key := range envBindings {
		envVar := "RIG_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, envVar)
	}
}

// loadConfigFile attempts to load the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}

	return nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Set sets a Viper value by key, used for CLI flag overrides.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	loader := NewLoader()
	return loader.Load()
}
