package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"curator/internal/history"
	"curator/internal/ledger"
	"curator/internal/logger"
	"curator/internal/metrics"
	"curator/internal/server"

	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command for the review API
func NewServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the review queue over HTTP",
		Long: `Start the review API.

The server provides:
  • Draft listing, preview and approve/reject/clean actions
  • Bulk publish and ledger statistics
  • Recorded runs and Prometheus metrics
  • Health check

There is no authentication; put the server behind whatever gate protects
your admin tools.

Examples:
  curator serve
  curator serve --addr 127.0.0.1:3000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config: server.addr)")
	return cmd
}

func runServe(addr string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	serverCfg := cfg.Server
	if addr != "" {
		serverCfg.Addr = addr
	}

	q, err := openQueue()
	if err != nil {
		return err
	}
	deps := server.Deps{
		Queue:   q,
		Ledger:  ledger.New(cfg.Ledger.Path, cfg.Ledger.MaxEntries),
		Metrics: metrics.NewCollector("curator", ""),
	}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warn("Run history unavailable", "path", cfg.History.Path, "error", err.Error())
		} else {
			defer func() { _ = store.Close() }()
			deps.History = store
		}
	}

	srv := server.New(deps, serverCfg)

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive our signal or an error from server
	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		logger.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	return nil
}
