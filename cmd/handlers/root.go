package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"curator/internal/config"
	"curator/internal/core"
	"curator/internal/logger"

	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "curator",
		Short: "Turn industry feeds into reviewed blog and social drafts",
		Long: `Curator - Content Curation Pipeline

Pulls recent articles from a registry of industry feeds, drops anything
already covered, asks a generation backend for a long-form post and short
social posts, and files every result as a draft for human review.

Core workflows:
  • Run: feeds → dedupe → generate → clean → draft files
  • Review: list, approve, reject, clean and bulk publish drafts
  • Serve: the same review queue over HTTP

Examples:
  # Preview what the next run would pick up
  curator run --dry-run

  # Generate drafts for three articles about SEO and AI
  curator run --articles 3 --topics seo,ai

  # Approve a draft
  curator review approve curated-speed-wins-on-mobile`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd.ErrOrStderr())
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.curator.yaml or $HOME/.curator.yaml)")

	// Add subcommands
	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewReviewCmd())
	rootCmd.AddCommand(NewLedgerCmd())
	rootCmd.AddCommand(NewFromURLCmd())
	rootCmd.AddCommand(NewValidateCmd())
	rootCmd.AddCommand(NewRunsCmd())
	rootCmd.AddCommand(NewServeCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	// Interrupts stop a run between items
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		if isConfigError(err) {
			fmt.Fprintln(os.Stderr, "💡 Check .curator.yaml or set the API key environment variable named above")
		}
		os.Exit(1)
	}
}

// initConfig loads configuration and applies the logging section
func initConfig(stderr io.Writer) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger.Configure(cfg.Logging.Level, cfg.Logging.Format, stderr)

	if cfg.App.ConfigFile != "" {
		logger.Debug("Using config file", "path", cfg.App.ConfigFile)
	}
	return nil
}

// loadConfig returns the configuration loaded by the root command
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// isConfigError reports whether err should stop a command before it starts
func isConfigError(err error) bool {
	var cerr *core.ConfigurationError
	return errors.As(err, &cerr)
}
