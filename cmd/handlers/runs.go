package handlers

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"curator/internal/history"

	"github.com/spf13/cobra"
)

// NewRunsCmd creates the command that lists recorded runs
func NewRunsCmd() *cobra.Command {
	var (
		limit int
		stats bool
		prune string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded run summaries",
		Long: `List recorded run summaries, newest first.

--stats prints totals across every recorded run.
--prune removes runs older than the given age (e.g. 30d, 72h).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var maxAge time.Duration
			if prune != "" {
				d, err := parseAge(prune)
				if err != nil {
					return err
				}
				maxAge = d
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return fmt.Errorf("failed to open run history: %w", err)
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if prune != "" {
				removed, err := store.Cleanup(ctx, maxAge)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "🗑️  Removed %d runs older than %s\n", removed, prune)
				return nil
			}

			if stats {
				s, err := store.GetStats(ctx)
				if err != nil {
					return err
				}
				printHistoryStats(out, s)
				return nil
			}

			runs, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}

			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %s  topics=%s  ok=%d failed=%d filed_with_errors=%d dupes=%d\n",
					r.StartedAt.Local().Format("2006-01-02 15:04"), r.ID, r.Topics,
					r.SuccessCount, r.ErrorCount, r.FiledWithErrors, r.Duplicates)
				if len(r.ErrorsByCategory) > 0 {
					cats := make([]string, 0, len(r.ErrorsByCategory))
					for c, n := range r.ErrorsByCategory {
						cats = append(cats, fmt.Sprintf("%s=%d", c, n))
					}
					sort.Strings(cats)
					fmt.Fprintf(out, "    errors: %s\n", strings.Join(cats, ", "))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Maximum number of runs to show")
	cmd.Flags().BoolVar(&stats, "stats", false, "Show totals across all recorded runs")
	cmd.Flags().StringVar(&prune, "prune", "", "Remove runs older than this age (e.g. 30d, 72h)")
	cmd.MarkFlagsMutuallyExclusive("stats", "prune")
	return cmd
}

func printHistoryStats(out io.Writer, s *history.Stats) {
	fmt.Fprintln(out, "📊 Run History")
	fmt.Fprintf(out, "   Runs: %d\n", s.Runs)
	fmt.Fprintf(out, "   Artifacts filed: %d\n", s.Artifacts)
	fmt.Fprintf(out, "   Successes: %d\n", s.Successes)
	fmt.Fprintf(out, "   Errors: %d\n", s.Errors)
	if !s.LastRunAt.IsZero() {
		fmt.Fprintf(out, "   Last run: %s\n", s.LastRunAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(out, "   Database size: %.1f KB\n", float64(s.DatabaseBytes)/1024)
}

// parseAge accepts a Go duration or a whole number of days ("30d").
func parseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid --prune age %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid --prune age %q", s)
	}
	return d, nil
}
