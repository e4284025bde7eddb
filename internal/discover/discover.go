package discover

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	plainExt      = ".jsonl"
	compressedExt = ".jsonl.zst"
)

// Source is one transcript file on disk, plain or zstd-archived.
type Source struct {
	Path       string
	SessionID  string // filename without extension
	Compressed bool
	IsSubagent bool // true if under */subagents/
	ModTime    time.Time
}

// Discover walks each root recursively and returns the transcript files
// modified after since (zero since keeps everything), oldest first.
// Roots that do not exist contribute nothing; they are not an error.
func Discover(since time.Time, roots ...string) ([]Source, error) {
	var results []Source
	seen := make(map[string]bool)

	for _, root := range roots {
		if root == "" {
			continue
		}
		if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip inaccessible entries
			}
			if d.IsDir() {
				return nil
			}

			src, ok := classify(path)
			if !ok || seen[path] {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			// Transcripts are append-only: a file last written before the
			// window opened cannot hold records inside it.
			if !since.IsZero() && !info.ModTime().After(since) {
				return nil
			}

			src.ModTime = info.ModTime()
			seen[path] = true
			results = append(results, src)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].ModTime.Equal(results[j].ModTime) {
			return results[i].Path < results[j].Path
		}
		return results[i].ModTime.Before(results[j].ModTime)
	})

	return results, nil
}

func classify(path string) (Source, bool) {
	name := filepath.Base(path)

	var id string
	var compressed bool
	switch {
	case strings.HasSuffix(name, compressedExt):
		id = strings.TrimSuffix(name, compressedExt)
		compressed = true
	case strings.HasSuffix(name, plainExt):
		id = strings.TrimSuffix(name, plainExt)
	default:
		return Source{}, false
	}
	if id == "" {
		return Source{}, false
	}

	sep := string(filepath.Separator)
	return Source{
		Path:       path,
		SessionID:  id,
		Compressed: compressed,
		IsSubagent: strings.Contains(path, sep+"subagents"+sep),
	}, true
}
