package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/suykerbuyk/vibe-journal/internal/config"
	"github.com/suykerbuyk/vibe-journal/internal/log"
)

var version = "dev"

var (
	flagVerbose bool
	flagRepo    string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vj: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vj",
		Short: "vj - journal every commit with the AI conversation behind it",
		Long: `vj writes a narrative journal entry for each git commit, built from the
Claude Code conversation that happened between the previous commit and this one.

Configuration: ~/.config/vibe-journal/config.toml (vj init writes a default).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging and pipeline diagnostics")
	root.PersistentFlags().StringVarP(&flagRepo, "repo", "C", ".", "path inside the git repository")

	root.AddCommand(entryCmd())
	root.AddCommand(hookCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(archiveCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(initCmd())
	root.AddCommand(versionCmd())

	return root
}

// loadConfig reads the config file and applies its log level, which
// --verbose overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	log.SetLevel(cfg.Log.Level)
	if flagVerbose {
		log.SetLevel("debug")
	}
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vj %s (vibe-journal)\n", version)
		},
	}
}
