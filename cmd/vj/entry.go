package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/suykerbuyk/vibe-journal/internal/config"
	"github.com/suykerbuyk/vibe-journal/internal/pipeline"
)

func entryCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "entry [ref]",
		Short: "Write the journal entry for a commit (default HEAD)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ref := "HEAD"
			if len(args) == 1 {
				ref = args[0]
			}

			res, err := pipeline.Run(cmd.Context(), cfg, pipeline.Options{
				RepoPath: flagRepo,
				Ref:      ref,
				DryRun:   dryRun,
			})
			if err != nil {
				return err
			}

			if flagVerbose {
				printDiagnostics(os.Stderr, res.Diagnostics)
			}

			switch {
			case dryRun:
				fmt.Print(res.Rendered)
			case res.AlreadyJournaled:
				fmt.Printf("%s already journaled in %s\n", res.Window.ShortHash(), config.CompressHome(res.Path))
			case res.Written:
				fmt.Printf("%s → %s\n", res.Window.ShortHash(), config.CompressHome(res.Path))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "print the entry instead of appending it")
	return cmd
}

func printDiagnostics(w io.Writer, d pipeline.Diagnostics) {
	fmt.Fprintf(w, "run %s (%s)\n", d.RunID, d.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  transcripts  %d files, %d messages, %d malformed records skipped\n", d.FilesScanned, d.Collected, d.Skipped)
	fmt.Fprintf(w, "  sessions     %d, selected by %s: %s\n", d.Sessions, d.Method, d.Reasoning)
	fmt.Fprintf(w, "  budget       ~%d tokens, %d noise dropped, %d trimmed, diff summarized: %v\n", d.TokenEstimate, d.Noise, d.Dropped, d.DiffSummarized)
	fmt.Fprintf(w, "  model        %d in / %d out tokens\n", d.Usage.InputTokens, d.Usage.OutputTokens)
	if len(d.SectionsOmitted) > 0 {
		fmt.Fprintf(w, "  omitted      %s\n", strings.Join(d.SectionsOmitted, ", "))
	}
}
