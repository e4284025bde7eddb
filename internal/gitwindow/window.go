package gitwindow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrGitUnavailable means the path is not a repository or the revision does
// not resolve. Nothing downstream can run without a window.
var ErrGitUnavailable = errors.New("git repository unavailable")

// FileChange is the line count delta of one file in a commit.
type FileChange struct {
	Path      string
	Additions int
	Deletions int
}

// Window is the span of time between a commit and its predecessor.
// Start is exclusive, End inclusive.
type Window struct {
	Hash       string
	ParentHash string // empty for an initial commit
	Message    string
	Author     string
	Start      time.Time
	End        time.Time
	Diff       string
	Files      []FileChange
}

// Subject returns the first line of the commit message.
func (w *Window) Subject() string {
	subject, _, _ := strings.Cut(strings.TrimSpace(w.Message), "\n")
	return strings.TrimSpace(subject)
}

// ShortHash returns the 7-character abbreviation git prints by default.
func (w *Window) ShortHash() string {
	if len(w.Hash) < 7 {
		return w.Hash
	}
	return w.Hash[:7]
}

// Open opens the repository containing path, searching parent directories.
func Open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrGitUnavailable, path, err)
	}
	return repo, nil
}

// Resolve builds the window for ref (HEAD when empty) in the repository at
// repoPath. An initial commit has no predecessor, so its window opens
// lookback before the commit.
func Resolve(ctx context.Context, repoPath, ref string, lookback time.Duration) (*Window, error) {
	repo, err := Open(repoPath)
	if err != nil {
		return nil, err
	}
	return ResolveIn(ctx, repo, ref, lookback)
}

// ResolveIn is Resolve against an already opened repository.
func ResolveIn(ctx context.Context, repo *git.Repository, ref string, lookback time.Duration) (*Window, error) {
	if ref == "" {
		ref = "HEAD"
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %q: %v", ErrGitUnavailable, ref, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("%w: read commit %s: %v", ErrGitUnavailable, hash, err)
	}

	w := &Window{
		Hash:    commit.Hash.String(),
		Message: strings.TrimSpace(commit.Message),
		Author:  fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email),
		End:     commit.Committer.When.UTC(),
	}

	var fromTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("%w: read parent of %s: %v", ErrGitUnavailable, w.ShortHash(), err)
		}
		w.ParentHash = parent.Hash.String()
		w.Start = parent.Committer.When.UTC()
		if fromTree, err = parent.Tree(); err != nil {
			return nil, fmt.Errorf("read parent tree: %w", err)
		}
	} else {
		if lookback <= 0 {
			lookback = 24 * time.Hour
		}
		w.Start = w.End.Add(-lookback)
	}

	toTree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("read commit tree: %w", err)
	}

	// A nil fromTree diffs against the empty tree.
	patch, err := fromTree.PatchContext(ctx, toTree)
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", w.ShortHash(), err)
	}
	w.Diff = patch.String()
	for _, st := range patch.Stats() {
		w.Files = append(w.Files, FileChange{
			Path:      st.Name,
			Additions: st.Addition,
			Deletions: st.Deletion,
		})
	}

	return w, nil
}

// Totals sums additions and deletions across all changed files.
func (w *Window) Totals() (additions, deletions int) {
	for _, f := range w.Files {
		additions += f.Additions
		deletions += f.Deletions
	}
	return additions, deletions
}
