// Package cli implements the rig command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gpurig/rig/internal/config"
	"github.com/gpurig/rig/internal/logging"
)

var (
	cfg *config.Config

	flagConfigFile string
	flagLogLevel   string
	flagLogFormat  string
	flagKeyPath    string
	flagSSHUser    string
	flagJSON       bool
)

var rootCmd = &cobra.Command{
	Use:   "rig",
	Short: "Manage rented GPU instances and remote background tasks",
	Long: `rig manages rented GPU cloud instances over the provider API and runs
commands and long-lived background tasks on them over SSH. Background
tasks survive the SSH session: rig keeps no local task registry, the
(task id, pid) pair is the durable handle.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initApp(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigFile, "config", "", "config file (default ~/.config/rig/config.yaml)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level (trace|debug|info|warn|error)")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format (console|json)")
	pf.StringVar(&flagKeyPath, "key", "", "SSH private key path")
	pf.StringVar(&flagSSHUser, "ssh-user", "", "default SSH user")
	pf.BoolVar(&flagJSON, "json", false, "print machine-readable JSON output")
}

func initApp(cmd *cobra.Command) error {
	loader := config.NewLoader()
	if flagConfigFile != "" {
		loader.SetConfigFile(flagConfigFile)
	}
	if flagLogLevel != "" {
		loader.Set("logging.level", flagLogLevel)
	}
	if flagLogFormat != "" {
		loader.Set("logging.format", flagLogFormat)
	}
	if flagKeyPath != "" {
		loader.Set("ssh.key_path", flagKeyPath)
	}
	if flagSSHUser != "" {
		loader.Set("ssh.user", flagSSHUser)
	}

	loaded, err := loader.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       os.Stderr,
		EnableCaller: cfg.Logging.EnableCaller,
	})
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// ExecuteServe runs the serve command directly, used by the rigd binary.
func ExecuteServe(args []string) error {
	rootCmd.SetArgs(append([]string{"serve"}, args...))
	return rootCmd.Execute()
}
