package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	execEndpoint endpointFlags
	execTimeout  time.Duration
)

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- <command...>",
	Short: "Run a command synchronously on a remote host",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ep, err := execEndpoint.resolve(cmd.Context())
		if err != nil {
			return err
		}

		command := strings.Join(args, " ")
		result, err := newTaskService().Exec(cmd.Context(), ep, command, execTimeout)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(result)
		}
		if result.Stdout != "" {
			fmt.Print(result.Stdout)
		}
		if result.Stderr != "" {
			fmt.Fprint(os.Stderr, result.Stderr)
		}
		if result.ExitStatus != 0 {
			return fmt.Errorf("command exited with status %d", result.ExitStatus)
		}
		return nil
	},
}

func init() {
	execEndpoint.register(execCmd)
	execCmd.Flags().DurationVar(&execTimeout, "timeout", 0, "command timeout (default from config)")
	rootCmd.AddCommand(execCmd)
}
