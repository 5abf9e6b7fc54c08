package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gpurig/rig/internal/config"
)

func withTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = config.DefaultConfig()
	t.Cleanup(func() { cfg = prev })
}

func TestEndpointFlagsResolveDefaults(t *testing.T) {
	withTestConfig(t)
	cfg.SSH.Port = 2222
	cfg.SSH.User = "ubuntu"

	f := endpointFlags{host: "gpu1.example.com"}
	ep, err := f.resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "gpu1.example.com", ep.Host)
	require.Equal(t, 2222, ep.Port)
	require.Equal(t, "ubuntu", ep.User)
}

func TestEndpointFlagsResolveExplicit(t *testing.T) {
	withTestConfig(t)

	f := endpointFlags{host: "gpu1", port: 34608, user: "root"}
	ep, err := f.resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, 34608, ep.Port)
	require.Equal(t, "root", ep.User)
}

func TestEndpointFlagsResolveMissingHost(t *testing.T) {
	withTestConfig(t)

	f := endpointFlags{}
	_, err := f.resolve(context.Background())
	require.Error(t, err)
}

func TestCommandTreeRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "exec", "task", "instance", "offers", "volumes", "templates", "user", "audit"} {
		require.True(t, names[want], "missing command %s", want)
	}
}

func TestTaskSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range taskCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"launch", "status", "kill", "log"} {
		require.True(t, names[want], "missing task subcommand %s", want)
	}
}
