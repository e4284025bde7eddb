package gitwindow

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// Layout is where a repository lives on disk.
type Layout struct {
	WorkTree string
	GitDir   string
}

// HooksDir is the directory git runs hooks from.
func (l Layout) HooksDir() string { return filepath.Join(l.GitDir, "hooks") }

// HeadLog is the reflog git appends to whenever HEAD moves.
func (l Layout) HeadLog() string { return filepath.Join(l.GitDir, "logs", "HEAD") }

// Locate finds the working tree and git directory of the repository
// containing path.
func Locate(path string) (Layout, error) {
	repo, err := Open(path)
	if err != nil {
		return Layout{}, err
	}
	return LayoutOf(repo)
}

// LayoutOf reports where an opened repository lives on disk.
func LayoutOf(repo *git.Repository) (Layout, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return Layout{}, fmt.Errorf("%w: no working tree: %v", ErrGitUnavailable, err)
	}

	st, ok := repo.Storer.(*filesystem.Storage)
	if !ok {
		return Layout{}, fmt.Errorf("%w: repository is not stored on disk", ErrGitUnavailable)
	}

	return Layout{
		WorkTree: wt.Filesystem.Root(),
		GitDir:   st.Filesystem().Root(),
	}, nil
}
