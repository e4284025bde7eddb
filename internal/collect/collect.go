package collect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/suykerbuyk/vibe-journal/internal/archive"
	"github.com/suykerbuyk/vibe-journal/internal/discover"
	"github.com/suykerbuyk/vibe-journal/internal/log"
	"github.com/suykerbuyk/vibe-journal/internal/transcript"
)

// Options selects which transcript records belong to a commit.
type Options struct {
	// Roots are scanned recursively for .jsonl and .jsonl.zst transcripts.
	Roots []string
	// Workspace is the repository working directory; records from any
	// other cwd are ignored.
	Workspace string
	// Start is exclusive, End inclusive.
	Start time.Time
	End   time.Time
}

// Result holds the records collected for one window.
type Result struct {
	Messages     []transcript.RawMessage
	Skipped      int // malformed records
	FilesScanned int
	FilesFailed  int
}

// Collect scans every transcript source under opts.Roots and returns the
// conversation records whose workspace matches and whose timestamp falls in
// (Start, End], ordered by timestamp. Missing roots yield an empty result.
func Collect(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{}

	sources, err := discover.Discover(opts.Start, opts.Roots...)
	if err != nil {
		return nil, fmt.Errorf("discover transcripts: %w", err)
	}

	workspace := NormalizePath(opts.Workspace)
	matcher := newPathMatcher(workspace)
	seen := make(map[string]bool)

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tr, err := readSource(src.Path)
		if err != nil {
			res.FilesFailed++
			log.Warn().Err(err).Str("path", src.Path).Msg("unreadable transcript")
			continue
		}
		res.FilesScanned++
		res.Skipped += tr.Skipped

		for _, e := range tr.Entries {
			msg, ok := e.RawMessage()
			if !ok {
				continue
			}
			if !matcher.match(msg.Workspace) {
				continue
			}
			if !InWindow(msg.Timestamp, opts.Start, opts.End) {
				continue
			}
			if msg.ID != "" {
				key := msg.SessionID + "/" + msg.ID
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			res.Messages = append(res.Messages, msg)
		}
	}

	sort.SliceStable(res.Messages, func(i, j int) bool {
		return res.Messages[i].Timestamp.Before(res.Messages[j].Timestamp)
	})

	if res.Skipped > 0 {
		log.Debug().Int("skipped", res.Skipped).Msg("malformed transcript records skipped")
	}

	return res, nil
}

func readSource(path string) (*transcript.Transcript, error) {
	rc, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return transcript.Parse(rc)
}

// InWindow reports whether ts falls in the half-open window (start, end].
func InWindow(ts, start, end time.Time) bool {
	return ts.After(start) && !ts.After(end)
}

// NormalizePath cleans a workspace path so that trailing separators and
// symlinked spellings of the same directory compare equal.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	return p
}

// pathMatcher caches normalization per distinct cwd string; a transcript
// repeats the same cwd on every line.
type pathMatcher struct {
	want  string
	cache map[string]bool
}

func newPathMatcher(want string) *pathMatcher {
	return &pathMatcher{want: want, cache: make(map[string]bool)}
}

func (m *pathMatcher) match(cwd string) bool {
	if m.want == "" || cwd == "" {
		return false
	}
	if ok, hit := m.cache[cwd]; hit {
		return ok
	}
	ok := NormalizePath(cwd) == m.want
	m.cache[cwd] = ok
	return ok
}

// Exists reports whether a transcripts root is present, for diagnostics.
func Exists(root string) bool {
	info, err := os.Stat(root)
	return err == nil && info.IsDir()
}
