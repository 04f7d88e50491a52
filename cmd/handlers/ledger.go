package handlers

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"curator/internal/ledger"

	"github.com/spf13/cobra"
)

// NewLedgerCmd creates the fingerprint ledger management command
func NewLedgerCmd() *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and manage the fingerprint ledger",
		Long:  `The ledger records every item a run has turned into drafts so later runs skip it.`,
	}

	ledgerCmd.AddCommand(newLedgerStatsCmd())
	ledgerCmd.AddCommand(newLedgerClearCmd())

	return ledgerCmd
}

func openLedger() (*ledger.Ledger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return ledger.New(cfg.Ledger.Path, cfg.Ledger.MaxEntries), nil
}

func newLedgerStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show ledger statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger()
			if err != nil {
				return err
			}
			stats, err := l.Stats()
			if err != nil {
				return fmt.Errorf("failed to read ledger: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "📊 Ledger Statistics")
			fmt.Fprintln(out, "====================")
			fmt.Fprintf(out, "📄 File: %s\n", l.Path())
			fmt.Fprintf(out, "🧾 Items processed: %d\n", stats.TotalProcessed)
			if stats.LastProcessedAt != nil {
				fmt.Fprintf(out, "📅 Last processed: %s\n", stats.LastProcessedAt.Format("2006-01-02 15:04:05"))
			}

			sourceNames := make([]string, 0, len(stats.CountsBySource))
			for name := range stats.CountsBySource {
				sourceNames = append(sourceNames, name)
			}
			sort.Slice(sourceNames, func(i, j int) bool {
				ci, cj := stats.CountsBySource[sourceNames[i]], stats.CountsBySource[sourceNames[j]]
				if ci != cj {
					return ci > cj
				}
				return sourceNames[i] < sourceNames[j]
			})
			if len(sourceNames) > 0 {
				fmt.Fprintln(out, "📡 By source:")
				for _, name := range sourceNames {
					fmt.Fprintf(out, "   %-40s %d\n", name, stats.CountsBySource[name])
				}
			}
			return nil
		},
	}
}

func newLedgerClearCmd() *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the ledger so every item counts as new again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			confirm, _ := cmd.Flags().GetBool("confirm")
			out := cmd.OutOrStdout()
			if !confirm && !askConfirm(cmd.InOrStdin(), out, "⚠️  This will forget every processed item. Continue? [y/N]: ") {
				fmt.Fprintln(out, "Ledger clear cancelled")
				return nil
			}

			l, err := openLedger()
			if err != nil {
				return err
			}
			if err := l.Clear(); err != nil {
				return fmt.Errorf("failed to clear ledger: %w", err)
			}
			fmt.Fprintln(out, "✅ Ledger cleared")
			return nil
		},
	}

	clearCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	return clearCmd
}

func askConfirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	response, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "y", "yes":
		return true
	}
	return false
}
