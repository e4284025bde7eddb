package pipeline

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// projectName names the repository for the journal. The origin remote's
// repository name is preferred because it survives worktrees and renamed
// checkouts; otherwise the working tree's directory name is used.
func projectName(repo *git.Repository, workTree string) string {
	if remote, err := repo.Remote("origin"); err == nil {
		for _, u := range remote.Config().URLs {
			if name := repoNameFromURL(u); name != "" {
				return name
			}
		}
	}

	if workTree == "" {
		return "_unknown"
	}
	name := filepath.Base(filepath.Clean(workTree))
	if name == "" || name == "." || name == "/" {
		return "_unknown"
	}
	return name
}

// repoNameFromURL extracts the repository name from a git remote URL.
// Handles SSH (SCP-style), HTTPS, file:// and bare path formats.
// Returns "" on any parse failure.
func repoNameFromURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	var path string

	// SCP-style: git@host:path
	if !strings.Contains(rawURL, "://") && strings.Contains(rawURL, ":") {
		path = rawURL[strings.Index(rawURL, ":")+1:]
	} else {
		u, err := url.Parse(rawURL)
		if err != nil {
			return ""
		}
		path = u.Path
	}

	if path == "" {
		return ""
	}

	name := strings.TrimSuffix(filepath.Base(path), ".git")
	if name == "" || name == "." || name == "/" {
		return ""
	}
	return name
}
