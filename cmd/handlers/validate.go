package handlers

import (
	"fmt"
	"io"
	"os"

	"curator/internal/pipeline"
	"curator/internal/quality"

	"github.com/spf13/cobra"
)

// NewValidateCmd creates the validate command
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path...]",
		Short: "Validate artifact files against the quality rules",
		Long: `Validate one or more artifact files or directories. With no arguments the
content directory is validated. Rules are chosen by the kind recorded in
each file's front-matter.

Examples:
  curator validate                  # content and social directories
  curator validate content/blog/curated-speed-wins.mdx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			v := quality.NewValidatorFromConfig(cfg.Quality, cfg.Voice.BannedPhrases)

			paths := args
			if len(paths) == 0 {
				for _, dir := range pipeline.NewStore(cfg).Dirs() {
					if _, err := os.Stat(dir); err == nil {
						paths = append(paths, dir)
					}
				}
			}

			var results []quality.FileResult
			for _, p := range paths {
				info, err := os.Stat(p)
				if err != nil {
					return fmt.Errorf("cannot validate %s: %w", p, err)
				}
				if !info.IsDir() {
					results = append(results, v.ValidateFile(p))
					continue
				}
				dirResults, err := v.ValidateDir(p, cfg.Content.Extension, ".md")
				if err != nil {
					return err
				}
				results = append(results, dirResults...)
			}

			printValidation(cmd.OutOrStdout(), results)
			return nil
		},
	}
}

func printValidation(out io.Writer, results []quality.FileResult) {
	var invalid int
	for _, r := range results {
		if r.IsValid {
			fmt.Fprintf(out, "✅ %s\n", r.Path)
		} else {
			invalid++
			fmt.Fprintf(out, "❌ %s\n", r.Path)
		}
		for _, e := range r.Errors {
			fmt.Fprintf(out, "   error: %s\n", e)
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(out, "   warning: %s\n", w)
		}
	}
	fmt.Fprintf(out, "\n%d files checked, %d with errors\n", len(results), invalid)
}
