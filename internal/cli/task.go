package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gpurig/rig/internal/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage remote background tasks",
}

var (
	taskLaunchEndpoint endpointFlags
	taskLaunchName     string
)

var taskLaunchCmd = &cobra.Command{
	Use:   "launch [flags] -- <command...>",
	Short: "Start a detached background task on a remote host",
	Long: `Launch starts a command on the remote host under nohup, detached from
the SSH session. The task keeps running after the connection closes.
The printed task id and pid are the only handle to the task; keep them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ep, err := taskLaunchEndpoint.resolve(cmd.Context())
		if err != nil {
			return err
		}

		command := strings.Join(args, " ")
		launched, err := newTaskService().Launch(cmd.Context(), ep, command, taskLaunchName)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(launched)
		}
		fmt.Printf("Task launched.\n")
		fmt.Printf("  Task ID:  %s\n", launched.ID)
		fmt.Printf("  PID:      %d\n", launched.PID)
		fmt.Printf("  Log file: %s\n", launched.LogPath)
		fmt.Printf("\nCheck on it with:\n  rig task status %s --pid %d --host %s --port %d --user %s\n",
			launched.ID, launched.PID, ep.Host, ep.Port, ep.User)
		return nil
	},
}

var (
	taskStatusEndpoint endpointFlags
	taskStatusPID      int
	taskStatusTail     int
)

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Probe a background task and tail its log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ep, err := taskStatusEndpoint.resolve(cmd.Context())
		if err != nil {
			return err
		}

		status, err := newTaskService().Status(cmd.Context(), ep, args[0], taskStatusPID, taskStatusTail)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(status)
		}
		fmt.Printf("Task %s: %s\n", args[0], status.State)
		if status.State != models.TaskStateUnknown {
			fmt.Printf("Log lines: %d total, last %d:\n\n", status.TotalLines, len(status.LogTail))
			for _, line := range status.LogTail {
				fmt.Println(line)
			}
		}
		return nil
	},
}

var (
	taskKillEndpoint endpointFlags
	taskKillPID      int
)

var taskKillCmd = &cobra.Command{
	Use:   "kill <task-id>",
	Short: "Terminate a background task and remove its artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ep, err := taskKillEndpoint.resolve(cmd.Context())
		if err != nil {
			return err
		}

		result, err := newTaskService().Kill(cmd.Context(), ep, args[0], taskKillPID)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(result)
		}
		switch {
		case result.AlreadyDead:
			fmt.Printf("Task %s was already stopped; artifacts removed.\n", args[0])
		case result.Forced:
			fmt.Printf("Task %s did not stop on TERM, killed with SIGKILL.\n", args[0])
		default:
			fmt.Printf("Task %s terminated.\n", args[0])
		}
		return nil
	},
}

var taskLogEndpoint endpointFlags

var taskLogCmd = &cobra.Command{
	Use:   "log <task-id>",
	Short: "Download a task's full remote log to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ep, err := taskLogEndpoint.resolve(cmd.Context())
		if err != nil {
			return err
		}

		_, err = newTaskService().FetchLog(cmd.Context(), ep, args[0], os.Stdout)
		return err
	},
}

func init() {
	taskLaunchEndpoint.register(taskLaunchCmd)
	taskLaunchCmd.Flags().StringVar(&taskLaunchName, "name", "", "task name prefix for the generated id")

	taskStatusEndpoint.register(taskStatusCmd)
	taskStatusCmd.Flags().IntVar(&taskStatusPID, "pid", 0, "task process id (required)")
	taskStatusCmd.Flags().IntVar(&taskStatusTail, "tail", 0, "log lines to tail")
	_ = taskStatusCmd.MarkFlagRequired("pid")

	taskKillEndpoint.register(taskKillCmd)
	taskKillCmd.Flags().IntVar(&taskKillPID, "pid", 0, "task process id (required)")
	_ = taskKillCmd.MarkFlagRequired("pid")

	taskLogEndpoint.register(taskLogCmd)

	taskCmd.AddCommand(taskLaunchCmd, taskStatusCmd, taskKillCmd, taskLogCmd)
	rootCmd.AddCommand(taskCmd)
}
