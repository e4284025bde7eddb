package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/suykerbuyk/vibe-journal/internal/config"
	"github.com/suykerbuyk/vibe-journal/internal/log"
	"github.com/suykerbuyk/vibe-journal/internal/pipeline"
	"github.com/suykerbuyk/vibe-journal/internal/watch"
)

func watchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Journal commits as they land, without a git hook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			w, err := watch.New(flagRepo)
			if err != nil {
				return err
			}
			w.Debounce = debounce

			return w.Run(cmd.Context(), func(ctx context.Context, hash string) {
				res, err := pipeline.Run(ctx, cfg, pipeline.Options{RepoPath: flagRepo, Ref: hash})
				switch {
				case errors.Is(err, context.Canceled):
				case err != nil:
					log.Error().Err(err).Str("commit", hash).Msg("journal commit")
				case res.Written:
					log.Info().Str("commit", res.Window.ShortHash()).Str("path", config.CompressHome(res.Path)).Msg("journaled")
				}
			})
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before reading the reflog")
	return cmd
}
