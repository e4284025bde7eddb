package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	fileSuffix   = "-journal.md"
	lockName     = ".vj.lock"
	priorDaysMax = 14
)

var markerRe = regexp.MustCompile(`(?m)^<!-- vj:entry ([0-9a-fA-F]+) (\S+) -->$`)

// Writer appends entries to per-day markdown files under Dir.
type Writer struct {
	Dir string

	mu sync.Mutex
}

// NewWriter returns a writer for the daily directory dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

// PathFor returns the daily file an entry at t belongs in.
func (w *Writer) PathFor(t time.Time) string {
	return filepath.Join(w.Dir, t.Format("2006-01-02")+fileSuffix)
}

// Append adds e to its daily file, creating the file with front matter if
// needed. It returns false without writing when the file already holds an
// entry for e.Hash.
func (w *Writer) Append(e Entry) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// The hook and vj watch run as separate processes; the read-modify-write
	// below must not interleave with theirs.
	unlock, err := w.lock()
	if err != nil {
		return false, err
	}
	defer unlock()

	path := w.PathFor(e.Time)

	var fm FrontMatter
	var body string
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if fm, body, err = splitFile(content); err != nil {
			return false, fmt.Errorf("read %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		fm = FrontMatter{
			Date: e.Time.Format("2006-01-02"),
			Type: "journal",
			Tags: []string{"vibe-journal"},
		}
		body = fmt.Sprintf("\n# Journal %s\n", e.Time.Format("Monday, January 2, 2006"))
	default:
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	if fm.HasCommit(e.Hash) || strings.Contains(body, "<!-- vj:entry "+e.Hash+" ") {
		return false, nil
	}

	fm.Commits = append(fm.Commits, e.Hash)
	fm.addProject(e.Project)

	body = strings.TrimRight(body, "\n") + "\n\n" + Render(e)

	out, err := joinFile(fm, body)
	if err != nil {
		return false, err
	}
	if err := writeAtomic(path, out); err != nil {
		return false, err
	}
	return true, nil
}

func (w *Writer) lock() (func(), error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	fl := flock.New(filepath.Join(w.Dir, lockName))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("lock journal: %w", err)
	}
	return func() { _ = fl.Unlock() }, nil
}

// Has reports whether an entry for hash exists in the daily file for t.
func (w *Writer) Has(hash string, t time.Time) bool {
	content, err := os.ReadFile(w.PathFor(t))
	if err != nil {
		return false
	}
	fm, body, err := splitFile(content)
	if err != nil {
		return false
	}
	return fm.HasCommit(hash) || strings.Contains(body, "<!-- vj:entry "+hash+" ")
}

// PriorEntry returns the text of the latest entry written for a commit
// before the given time, searching back up to two weeks of daily files.
// It returns "" when there is none.
func (w *Writer) PriorEntry(before time.Time) (string, error) {
	files, err := w.dailyFiles()
	if err != nil {
		return "", err
	}

	cutoff := before.AddDate(0, 0, -priorDaysMax).Format("2006-01-02")
	limit := before.Format("2006-01-02")

	for i := len(files) - 1; i >= 0; i-- {
		day := strings.TrimSuffix(filepath.Base(files[i]), fileSuffix)
		if day > limit {
			continue
		}
		if day < cutoff {
			break
		}

		content, err := os.ReadFile(files[i])
		if err != nil {
			return "", fmt.Errorf("read %s: %w", files[i], err)
		}
		if text := lastEntryBefore(string(content), before); text != "" {
			return text, nil
		}
	}
	return "", nil
}

func (w *Writer) dailyFiles() ([]string, error) {
	entries, err := os.ReadDir(w.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), fileSuffix) {
			files = append(files, filepath.Join(w.Dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// lastEntryBefore finds the entry with the latest timestamp earlier than
// before and returns its body without the marker line.
func lastEntryBefore(content string, before time.Time) string {
	locs := markerRe.FindAllStringSubmatchIndex(content, -1)

	best := -1
	var bestTime time.Time
	for i, loc := range locs {
		ts, err := time.Parse(time.RFC3339, content[loc[4]:loc[5]])
		if err != nil || !ts.Before(before) {
			continue
		}
		if best < 0 || ts.After(bestTime) {
			best, bestTime = i, ts
		}
	}
	if best < 0 {
		return ""
	}

	start := locs[best][1]
	end := len(content)
	if best+1 < len(locs) {
		end = locs[best+1][0]
	}
	return strings.TrimSpace(content[start:end])
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".journal-*.md")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("place journal: %w", err)
	}
	return nil
}
