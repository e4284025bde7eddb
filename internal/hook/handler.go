package hook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/suykerbuyk/vibe-journal/internal/config"
	"github.com/suykerbuyk/vibe-journal/internal/gitwindow"
	"github.com/suykerbuyk/vibe-journal/internal/log"
	"github.com/suykerbuyk/vibe-journal/internal/pipeline"
)

// sequenceMarkers exist in the git dir while git replays commits.
var sequenceMarkers = []string{"rebase-merge", "rebase-apply", "CHERRY_PICK_HEAD", "REVERT_HEAD"}

// HandlePostCommit journals HEAD of the repository at repoPath. It is run by
// the post-commit hook, after the commit already exists, so callers report
// its error without failing.
func HandlePostCommit(ctx context.Context, cfg config.Config, repoPath string) error {
	return handlePostCommit(ctx, cfg, pipeline.Options{RepoPath: repoPath})
}

func handlePostCommit(ctx context.Context, cfg config.Config, opts pipeline.Options) error {
	layout, err := gitwindow.Locate(opts.RepoPath)
	if err != nil {
		return err
	}
	if op := sequenceInProgress(layout.GitDir); op != "" {
		log.Debug().Str("marker", op).Msg("commit replayed by git, not journaled")
		return nil
	}

	opts.Ref = "HEAD"
	result, err := pipeline.Run(ctx, cfg, opts)
	if err != nil {
		return fmt.Errorf("journal commit: %w", err)
	}

	switch {
	case result.AlreadyJournaled:
		fmt.Fprintf(os.Stderr, "vj: %s already journaled\n", result.Window.ShortHash())
	case result.Written:
		fmt.Fprintf(os.Stderr, "vj: %s → %s\n", result.Window.ShortHash(), config.CompressHome(result.Path))
	}
	return nil
}

func sequenceInProgress(gitDir string) string {
	for _, name := range sequenceMarkers {
		if _, err := os.Stat(filepath.Join(gitDir, name)); err == nil {
			return name
		}
	}
	return ""
}
