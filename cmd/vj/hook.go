package main

import (
	"github.com/spf13/cobra"

	"github.com/suykerbuyk/vibe-journal/internal/hook"
	"github.com/suykerbuyk/vibe-journal/internal/log"
)

func hookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Git post-commit hook integration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "post-commit",
		Short: "Journal HEAD (run by the installed git hook)",
		Args:  cobra.NoArgs,
		// The commit already exists; failing here would only confuse git.
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				log.Error().Err(err).Msg("post-commit")
				return nil
			}
			if err := hook.HandlePostCommit(cmd.Context(), cfg, flagRepo); err != nil {
				log.Error().Err(err).Msg("post-commit")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Add vj to the repository's post-commit hook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return hook.Install(flagRepo)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove vj from the repository's post-commit hook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return hook.Uninstall(flagRepo)
		},
	})

	return cmd
}
