package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gpurig/rig/internal/logging"
	"github.com/gpurig/rig/internal/models"
	"github.com/gpurig/rig/internal/ssh"
	"github.com/gpurig/rig/internal/task"
	"github.com/gpurig/rig/internal/vast"
)

// newTaskService builds the SSH task service from loaded configuration.
func newTaskService() *task.Service {
	return task.NewService(task.ServiceOptions{
		KeyPath:          cfg.SSH.KeyPath,
		PassphrasePrompt: ssh.DefaultPassphrasePrompt,
		ConnectTimeout:   cfg.SSH.ConnectTimeout,
		ExecTimeout:      cfg.SSH.ExecTimeout,
		Grace:            cfg.Task.Grace,
		TailLines:        cfg.Task.TailLines,
	}, logging.Component("task"))
}

// newProviderClient builds the rental provider client from configuration.
func newProviderClient() (*vast.Client, error) {
	key := cfg.Provider.APIKey()
	if key == "" {
		return nil, fmt.Errorf("no provider API key: set %s", cfg.Provider.APIKeyEnv)
	}
	return vast.NewClient(vast.Options{
		APIKey:  key,
		BaseURL: cfg.Provider.ServerURL + "/api/v0",
		Timeout: cfg.Provider.Timeout,
	})
}

// endpointFlags is the host/port/user/instance flag group shared by the
// commands that target an SSH endpoint.
type endpointFlags struct {
	host     string
	port     int
	user     string
	instance int
}

func (f *endpointFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.host, "host", "", "SSH host")
	cmd.Flags().IntVar(&f.port, "port", 0, "SSH port")
	cmd.Flags().StringVar(&f.user, "user", "", "SSH user")
	cmd.Flags().IntVar(&f.instance, "instance", 0, "resolve the endpoint from a provider instance id")
}

// resolve produces the endpoint, looking it up from the provider when
// --instance was given.
func (f *endpointFlags) resolve(ctx context.Context) (models.Endpoint, error) {
	if f.instance > 0 {
		client, err := newProviderClient()
		if err != nil {
			return models.Endpoint{}, err
		}
		ep, err := client.SSHInfo(ctx, f.instance)
		if err != nil {
			return models.Endpoint{}, err
		}
		if f.user != "" {
			ep.User = f.user
		}
		return *ep, nil
	}

	ep := models.Endpoint{Host: f.host, Port: f.port, User: f.user}
	if ep.Port == 0 {
		ep.Port = cfg.SSH.Port
	}
	if ep.User == "" {
		ep.User = cfg.SSH.User
	}
	return ep, ep.Validate()
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
