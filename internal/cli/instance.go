package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gpurig/rig/internal/rules"
	"github.com/gpurig/rig/internal/vast"
)

var instanceCmd = &cobra.Command{
	Use:   "instance",
	Short: "Manage rented GPU instances",
}

func instanceIDArg(args []string) (int, error) {
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("instance id must be a positive integer, got %q", args[0])
	}
	return id, nil
}

var instanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the account's instances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newProviderClient()
		if err != nil {
			return err
		}
		instances, err := client.ListInstances(cmd.Context(), "me")
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(instances)
		}
		if len(instances) == 0 {
			fmt.Println("No instances found.")
			return nil
		}
		for _, inst := range instances {
			label := inst.Label
			if label == "" {
				label = "-"
			}
			fmt.Printf("%d  %-10s %-14s %dx %-18s $%.4f/hr\n",
				inst.ID, inst.ActualStatus, label, inst.NumGPUs, inst.GPUName, inst.CostPerHour)
		}
		return nil
	},
}

var instanceShowCmd = &cobra.Command{
	Use:   "show <instance-id>",
	Short: "Show instance details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := instanceIDArg(args)
		if err != nil {
			return err
		}
		client, err := newProviderClient()
		if err != nil {
			return err
		}
		inst, err := client.ShowInstance(cmd.Context(), id)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(inst)
		}
		fmt.Printf("Instance %d\n", inst.ID)
		fmt.Printf("  Status:  %s\n", inst.ActualStatus)
		fmt.Printf("  Label:   %s\n", inst.Label)
		fmt.Printf("  GPU:     %dx %s\n", inst.NumGPUs, inst.GPUName)
		fmt.Printf("  Image:   %s\n", inst.ImageUUID)
		fmt.Printf("  Cost:    $%.4f/hour\n", inst.CostPerHour)
		if inst.SSHHost != "" {
			fmt.Printf("  SSH:     %s:%d\n", inst.SSHHost, inst.SSHPort)
		}
		if inst.StatusMsg != "" {
			fmt.Printf("  Message: %s\n", inst.StatusMsg)
		}
		return nil
	},
}

var (
	createImage   string
	createDisk    float64
	createSSH     bool
	createJupyter bool
	createDirect  bool
	createLabel   string
	createEnv     map[string]string
	createBid     float64
	createNoRules bool
)

var instanceCreateCmd = &cobra.Command{
	Use:   "create <offer-id>",
	Short: "Rent an offer and create an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		offerID, err := instanceIDArg(args)
		if err != nil {
			return err
		}
		client, err := newProviderClient()
		if err != nil {
			return err
		}

		opts := vast.CreateOptions{
			Image:   createImage,
			Disk:    createDisk,
			SSH:     createSSH,
			Jupyter: createJupyter,
			Direct:  createDirect,
			Env:     createEnv,
			Label:   createLabel,
		}
		if cmd.Flags().Changed("bid") {
			opts.BidPrice = &createBid
		}

		id, err := client.CreateInstance(cmd.Context(), offerID, opts)
		if err != nil {
			return err
		}
		fmt.Printf("Instance created: %d\n", id)

		if createNoRules {
			return nil
		}
		report := configuredRules().Apply(cmd.Context(), client, id, rules.Input{
			SSH:       createSSH,
			Jupyter:   createJupyter,
			Label:     createLabel,
			PublicKey: loadConfiguredPublicKey(),
		})
		for _, name := range report.Applied {
			fmt.Printf("  rule applied: %s\n", name)
		}
		for _, name := range report.Failed {
			fmt.Printf("  rule FAILED:  %s\n", name)
		}
		return nil
	},
}

func configuredRules() rules.RuleSet {
	return rules.RuleSet{
		AutoAttachSSH: cfg.Rules.AutoAttachSSH,
		AutoLabel:     cfg.Rules.AutoLabel,
		LabelPrefix:   cfg.Rules.LabelPrefix,
		WaitForReady:  cfg.Rules.WaitForReady,
		ReadyTimeout:  cfg.Rules.ReadyTimeout,
	}
}

func loadConfiguredPublicKey() string {
	key, err := vast.LoadPublicKey(cfg.SSH.PublicKeyPath)
	if err != nil {
		return ""
	}
	return key
}

// simpleInstanceCmd builds the state-transition commands that only take an
// instance id.
func simpleInstanceCmd(use, short string, action func(*vast.Client, context.Context, int) error, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <instance-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := instanceIDArg(args)
			if err != nil {
				return err
			}
			client, err := newProviderClient()
			if err != nil {
				return err
			}
			if err := action(client, cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Instance %d %s.\n", id, done)
			return nil
		},
	}
}

var labelValue string

var instanceLabelCmd = &cobra.Command{
	Use:   "label <instance-id>",
	Short: "Set an instance label",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := instanceIDArg(args)
		if err != nil {
			return err
		}
		client, err := newProviderClient()
		if err != nil {
			return err
		}
		if err := client.LabelInstance(cmd.Context(), id, labelValue); err != nil {
			return err
		}
		fmt.Printf("Label for instance %d set to %q.\n", id, labelValue)
		return nil
	},
}

var attachKeyPath string

var instanceAttachSSHCmd = &cobra.Command{
	Use:   "attach-ssh <instance-id>",
	Short: "Attach an SSH public key to an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := instanceIDArg(args)
		if err != nil {
			return err
		}
		keyPath := attachKeyPath
		if keyPath == "" {
			keyPath = cfg.SSH.PublicKeyPath
		}
		key, err := vast.LoadPublicKey(keyPath)
		if err != nil {
			return err
		}
		client, err := newProviderClient()
		if err != nil {
			return err
		}
		if err := client.AttachSSHKey(cmd.Context(), id, key); err != nil {
			return err
		}
		fmt.Printf("SSH key attached to instance %d.\n", id)
		return nil
	},
}

var (
	logsTail   string
	logsFilter string
	logsDaemon bool
)

var instanceLogsCmd = &cobra.Command{
	Use:   "logs <instance-id>",
	Short: "Fetch instance logs from the provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := instanceIDArg(args)
		if err != nil {
			return err
		}
		client, err := newProviderClient()
		if err != nil {
			return err
		}
		text, err := client.Logs(cmd.Context(), id, vast.LogOptions{
			Tail:       logsTail,
			Filter:     logsFilter,
			DaemonLogs: logsDaemon,
		})
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	},
}

var instanceCommandCmd = &cobra.Command{
	Use:   "command <instance-id> -- <command...>",
	Short: "Run an allow-listed command on a stopped instance",
	Long: `Runs a constrained command (ls, rm, du) on a stopped instance through
the provider. The command is validated locally before anything is sent.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := instanceIDArg(args)
		if err != nil {
			return err
		}
		client, err := newProviderClient()
		if err != nil {
			return err
		}
		command := ""
		for i, arg := range args[1:] {
			if i > 0 {
				command += " "
			}
			command += arg
		}
		output, err := client.ExecuteCommand(cmd.Context(), id, command)
		if err != nil {
			return err
		}
		fmt.Print(output)
		return nil
	},
}

var instanceSSHInfoCmd = &cobra.Command{
	Use:   "ssh-info <instance-id>",
	Short: "Print the SSH endpoint for an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := instanceIDArg(args)
		if err != nil {
			return err
		}
		client, err := newProviderClient()
		if err != nil {
			return err
		}
		ep, err := client.SSHInfo(cmd.Context(), id)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(ep)
		}
		fmt.Printf("ssh -p %d %s@%s\n", ep.Port, ep.User, ep.Host)
		return nil
	},
}

func init() {
	instanceCreateCmd.Flags().StringVar(&createImage, "image", "", "docker image to run (required)")
	instanceCreateCmd.Flags().Float64Var(&createDisk, "disk", 10.0, "disk size in GB")
	instanceCreateCmd.Flags().BoolVar(&createSSH, "ssh", false, "enable SSH access")
	instanceCreateCmd.Flags().BoolVar(&createJupyter, "jupyter", false, "enable Jupyter access")
	instanceCreateCmd.Flags().BoolVar(&createDirect, "direct", false, "use direct connections")
	instanceCreateCmd.Flags().StringVar(&createLabel, "label", "", "instance label")
	instanceCreateCmd.Flags().StringToStringVar(&createEnv, "env", nil, "extra environment variables")
	instanceCreateCmd.Flags().Float64Var(&createBid, "bid", 0, "bid price for interruptible instances")
	instanceCreateCmd.Flags().BoolVar(&createNoRules, "no-rules", false, "skip post-creation automation rules")
	_ = instanceCreateCmd.MarkFlagRequired("image")

	instanceLabelCmd.Flags().StringVar(&labelValue, "set", "", "label value (required)")
	_ = instanceLabelCmd.MarkFlagRequired("set")

	instanceAttachSSHCmd.Flags().StringVar(&attachKeyPath, "key", "", "public key file (default from config)")

	instanceLogsCmd.Flags().StringVar(&logsTail, "tail", "1000", "number of log lines")
	instanceLogsCmd.Flags().StringVar(&logsFilter, "filter", "", "grep filter for log lines")
	instanceLogsCmd.Flags().BoolVar(&logsDaemon, "daemon", false, "fetch daemon logs instead of container logs")

	instanceCmd.AddCommand(
		instanceListCmd,
		instanceShowCmd,
		instanceCreateCmd,
		simpleInstanceCmd("destroy", "Destroy an instance entirely", (*vast.Client).DestroyInstance, "destroyed"),
		simpleInstanceCmd("start", "Start a stopped instance", (*vast.Client).StartInstance, "started"),
		simpleInstanceCmd("stop", "Stop a running instance", (*vast.Client).StopInstance, "stopped"),
		simpleInstanceCmd("reboot", "Reboot an instance without losing GPU priority", (*vast.Client).RebootInstance, "rebooting"),
		simpleInstanceCmd("recycle", "Recreate an instance from a fresh image pull", (*vast.Client).RecycleInstance, "recycling"),
		instanceLabelCmd,
		instanceAttachSSHCmd,
		instanceLogsCmd,
		instanceCommandCmd,
		instanceSSHInfoCmd,
	)
	rootCmd.AddCommand(instanceCmd)
}
