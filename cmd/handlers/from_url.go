package handlers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"curator/internal/config"
	"curator/internal/core"
	"curator/internal/fetch"
	"curator/internal/ledger"
	"curator/internal/llm"
	"curator/internal/logger"
	"curator/internal/pipeline"

	"github.com/spf13/cobra"
)

// NewFromURLCmd creates the from-url command
func NewFromURLCmd() *cobra.Command {
	var (
		file   string
		title  string
		social bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "from-url [url]",
		Short: "Draft content from a single article URL",
		Long: `Fetch one page, extract its readable text and run it through the same
generate, clean and file steps as a feed item. The page host is used as the
source name, so the ledger skips a URL whose title was already covered.

Examples:
  curator from-url https://example.com/post
  curator from-url https://example.com/post --title "A better headline" --social
  curator from-url --file links.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var urls []string
			if len(args) == 1 {
				urls = append(urls, args[0])
			}
			if file != "" {
				links, err := fetch.ReadLinksFromFile(file)
				if err != nil {
					return err
				}
				urls = append(urls, links...)
			}
			if len(urls) == 0 {
				return fmt.Errorf("a URL argument or --file is required")
			}
			if title != "" && len(urls) > 1 {
				return fmt.Errorf("--title only applies to a single URL")
			}

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

			kinds := []core.OutputKind{core.KindLongForm}
			if social {
				kinds = core.AllOutputKinds
			}
			return runFromURL(cmd.Context(), cmd.OutOrStdout(), cfg, gen, urls, title, kinds, force)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Markdown or text file with one or more URLs")
	cmd.Flags().StringVar(&title, "title", "", "Override the page title")
	cmd.Flags().BoolVar(&social, "social", false, "Also draft the professional and micro posts")
	cmd.Flags().BoolVar(&force, "force", false, "Process even when the ledger has seen the title")

	return cmd
}

func runFromURL(ctx context.Context, out io.Writer, cfg *config.Config, gen llm.TextGenerator, urls []string, title string, kinds []core.OutputKind, force bool) error {
	p, err := pipeline.NewBuilder(cfg).WithGenerator(gen).Build()
	if err != nil {
		return err
	}
	fetcher := fetch.NewFetcher(config.Duration(cfg.Ingest.Timeout, 30*time.Second), cfg.Ingest.UserAgent)
	fingerprints := ledger.New(cfg.Ledger.Path, cfg.Ledger.MaxEntries)

	var failed int
	for _, u := range urls {
		page, err := fetcher.Fetch(ctx, u)
		if err != nil {
			failed++
			logger.Error("Failed to fetch page", err, "url", u)
			fmt.Fprintf(out, "❌ %s: %v\n", u, err)
			continue
		}

		item := page.Candidate()
		if title != "" {
			item.Title = title
		}

		if !force {
			dup, err := fingerprints.IsDuplicate(item.Title, item.SourceName)
			if err == nil && dup {
				fmt.Fprintf(out, "➖ %s: already processed (use --force to redo)\n", u)
				continue
			}
		}

		res, err := p.ProcessItem(ctx, item, kinds)
		for _, a := range res.Artifacts {
			fmt.Fprintf(out, "📝 %s (%s)\n", a.Path, a.Kind)
			if len(a.Errors) > 0 {
				fmt.Fprintf(out, "   ⚠️  %s\n", strings.Join(a.Errors, "; "))
			}
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "❌ %s: %v\n", u, err)
		}
	}

	if failed > 0 {
		fmt.Fprintf(out, "%d of %d URLs failed\n", failed, len(urls))
	}
	return nil
}
