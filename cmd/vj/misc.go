package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suykerbuyk/vibe-journal/internal/archive"
	"github.com/suykerbuyk/vibe-journal/internal/check"
	"github.com/suykerbuyk/vibe-journal/internal/config"
)

func archiveCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "archive <transcript.jsonl>...",
		Short: "Compress transcripts into the archive directory",
		Long: `Compress Claude Code transcripts with zstd into the configured archive
directory. Archived transcripts are still read when journaling.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			for _, src := range args {
				id := strings.TrimSuffix(filepath.Base(src), ".jsonl")
				if !force && archive.IsArchived(id, cfg.Archive.Dir) {
					fmt.Printf("%s already archived\n", src)
					continue
				}
				dest, err := archive.Archive(src, cfg.Archive.Dir)
				if err != nil {
					return fmt.Errorf("archive %s: %w", src, err)
				}
				fmt.Printf("%s → %s\n", src, config.CompressHome(dest))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-archive transcripts that already have an archive")
	return cmd
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			report := check.Run(cfg, flagRepo)
			fmt.Print(report.Format())
			if report.HasFailures() {
				return errors.New("doctor found failures")
			}
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [journal-dir]",
		Short: "Write a default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			journalDir := "~/journal"
			if len(args) == 1 {
				journalDir = config.CompressHome(args[0])
			}
			path, err := config.WriteDefault(journalDir)
			if err != nil {
				return err
			}
			fmt.Printf("config: %s\n", config.CompressHome(path))
			return nil
		},
	}
}
