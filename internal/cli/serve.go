package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gpurig/rig/internal/audit"
	"github.com/gpurig/rig/internal/logging"
	"github.com/gpurig/rig/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rig HTTP tool API daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.Component("rigd")

		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}

		opts := server.Options{
			Tasks:     newTaskService(),
			Rules:     configuredRules(),
			PublicKey: loadConfiguredPublicKey(),
		}

		if provider, err := newProviderClient(); err != nil {
			logger.Warn().Err(err).Msg("provider API disabled")
		} else {
			opts.Provider = provider
		}

		if cfg.Audit.Enabled {
			journal, err := audit.Open(cfg.Audit.Path)
			if err != nil {
				return err
			}
			defer journal.Close()
			opts.Journal = journal
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr()
		}

		httpServer := &http.Server{
			Addr:              addr,
			Handler:           server.New(opts).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", addr).Msg("rigd listening")
			errCh <- httpServer.ListenAndServe()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
