package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gpurig/rig/internal/audit"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent operations from the local audit journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Audit.Enabled {
			return fmt.Errorf("audit journal is disabled in configuration")
		}
		journal, err := audit.Open(cfg.Audit.Path)
		if err != nil {
			return err
		}
		defer journal.Close()

		entries, err := journal.Recent(cmd.Context(), auditLimit)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No recorded operations.")
			return nil
		}
		for _, e := range entries {
			outcome := e.Outcome
			if e.ErrorClass != "" {
				outcome = fmt.Sprintf("%s (%s)", e.Outcome, e.ErrorClass)
			}
			fmt.Printf("%s  %-12s %-24s %-20s %-16s %s\n",
				e.At.Local().Format(time.DateTime), e.Op, e.Endpoint, e.TaskID, outcome, e.Duration)
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum entries to show")
	rootCmd.AddCommand(auditCmd)
}
