package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"curator/internal/artifact"
	"curator/internal/config"
	"curator/internal/core"
	"curator/internal/llm"
	"curator/internal/pipeline"
	"curator/internal/prompts"
	"curator/internal/quality"
	"curator/internal/review"
	"curator/internal/tui"

	"github.com/spf13/cobra"
)

// NewReviewCmd creates the review command and its subcommands
func NewReviewCmd() *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect and move drafts through review",
		Long: `Work the review queue.

Drafts are files under content.directory. Approving sets status to
published; rejecting sets status to rejected and moves the file to
content.archive_directory. Only the status line of a file is rewritten.`,
	}

	reviewCmd.AddCommand(newReviewListCmd())
	reviewCmd.AddCommand(newTransitionCmd("approve", "Publish a draft", (*review.Queue).Approve))
	reviewCmd.AddCommand(newTransitionCmd("reject", "Reject a draft and move it to the archive", (*review.Queue).Reject))
	reviewCmd.AddCommand(newTransitionCmd("clean", "Normalize punctuation and strip emoji in a draft", (*review.Queue).Clean))
	reviewCmd.AddCommand(newPublishAllCmd())
	reviewCmd.AddCommand(newReviewAuditCmd())
	reviewCmd.AddCommand(newReviewTUICmd())

	return reviewCmd
}

// openQueue builds the review queue from configuration
func openQueue() (*review.Queue, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return review.New(
		pipeline.NewStore(cfg),
		quality.NewValidatorFromConfig(cfg.Quality, cfg.Voice.BannedPhrases),
	), nil
}

func newReviewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List drafts awaiting review, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := openQueue()
			if err != nil {
				return err
			}
			items, err := q.List()
			if err != nil {
				return err
			}
			printQueue(cmd.OutOrStdout(), items)
			return nil
		},
	}
}

func printQueue(out io.Writer, items []review.Item) {
	if len(items) == 0 {
		fmt.Fprintln(out, "📭 Nothing to review")
		return
	}
	fmt.Fprintf(out, "📋 %d drafts awaiting review\n\n", len(items))
	for _, it := range items {
		a := it.Doc.Artifact
		if it.Doc.ParseErr != nil {
			fmt.Fprintf(out, "  ❌ %-50s unreadable: %v\n", it.Doc.Slug, it.Doc.ParseErr)
			continue
		}
		mark := "✅"
		if !it.Verdict.IsValid {
			mark = "⚠️ "
		}
		fmt.Fprintf(out, "  %s %-50s %-9s %-18s %s\n", mark, it.Doc.Slug, a.Status, a.Kind, a.Date)
		for _, e := range it.Verdict.Errors {
			fmt.Fprintf(out, "       - %s\n", e)
		}
	}
}

func newTransitionCmd(action, short string, apply func(*review.Queue, string) (review.Result, error)) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <slug>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := openQueue()
			if err != nil {
				return err
			}
			res, err := apply(q, args[0])
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), action, res)
			return nil
		},
	}
}

func printResult(out io.Writer, action string, res review.Result) {
	switch res.Outcome {
	case review.OutcomeApplied:
		fmt.Fprintf(out, "✅ %s %s: now %s\n", action, res.Slug, res.Status)
	case review.OutcomeUnchanged:
		fmt.Fprintf(out, "➖ %s %s: unchanged\n", action, res.Slug)
	default:
		fmt.Fprintf(out, "❌ %s %s: %s\n", action, res.Slug, res.Outcome)
	}
	if res.Message != "" {
		fmt.Fprintf(out, "   %s\n", res.Message)
	}
}

func newPublishAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish-all",
		Short: "Publish every draft in review status that passes validation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := openQueue()
			if err != nil {
				return err
			}
			report, err := q.PublishApproved()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "🚀 Published %d, skipped %d\n", len(report.Published), len(report.Skipped))
			for _, slug := range report.Published {
				fmt.Fprintf(out, "  ✅ %s\n", slug)
			}
			for _, s := range report.Skipped {
				fmt.Fprintf(out, "  ⚠️  %s: %s\n", s.Slug, strings.Join(s.Errors, "; "))
			}
			return nil
		},
	}
}

func newReviewAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit <slug>",
		Short: "Score a draft against the brand voice with the generation backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := config.RequireGeneration(cfg, false); err != nil {
				return err
			}
			gen, err := llm.NewFromConfig(cmd.Context(), cfg)
			if err != nil {
				return &core.ConfigurationError{Problems: []string{err.Error()}}
			}
			return runAudit(cmd.Context(), cmd.OutOrStdout(), cfg, gen, args[0])
		},
	}
}

func runAudit(ctx context.Context, out io.Writer, cfg *config.Config, gen llm.TextGenerator, slug string) error {
	doc, err := pipeline.NewStore(cfg).Load(slug)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("no draft named %q", slug)
	}
	if err != nil {
		return err
	}

	auditor := quality.NewVoiceAuditor(gen, prompts.VoiceFromConfig(cfg.Voice))
	report, err := auditor.Audit(ctx, doc.Raw)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	verdict := "✅ PASS"
	if !report.Passed {
		verdict = "❌ NEEDS WORK"
	}
	fmt.Fprintf(out, "%s  %s  voice score %d/100, specificity %d/100 (%d words)\n",
		verdict, slug, report.Score, report.Specificity.Score, artifact.WordCount(doc.Artifact.Body))

	for _, issue := range report.Issues {
		fmt.Fprintf(out, "  [%s] %s", issue.Type, issue.Description)
		if issue.Location != "" {
			fmt.Fprintf(out, " (%s)", issue.Location)
		}
		fmt.Fprintln(out)
	}
	if len(report.Specificity.VaguePhrases) > 0 {
		fmt.Fprintf(out, "  Vague phrases: %s\n", strings.Join(report.Specificity.VaguePhrases, ", "))
	}
	for _, s := range report.Suggestions {
		fmt.Fprintf(out, "  💡 %s\n", s)
	}
	return nil
}

func newReviewTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse the review queue in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := openQueue()
			if err != nil {
				return err
			}
			return tui.Run(q)
		},
	}
}
