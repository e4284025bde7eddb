// Package watch follows a repository's HEAD reflog and reports each new
// commit as git records it.
package watch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/suykerbuyk/vibe-journal/internal/gitwindow"
	"github.com/suykerbuyk/vibe-journal/internal/log"
)

const defaultDebounce = 500 * time.Millisecond

// CommitFunc is called once per new commit, in reflog order.
type CommitFunc func(ctx context.Context, hash string)

// Watcher tails logs/HEAD. Only reflog records written after New count.
type Watcher struct {
	Layout   gitwindow.Layout
	Debounce time.Duration

	offset int64
}

// New returns a watcher for the repository containing repoPath.
func New(repoPath string) (*Watcher, error) {
	layout, err := gitwindow.Locate(repoPath)
	if err != nil {
		return nil, err
	}
	w := &Watcher{Layout: layout, Debounce: defaultDebounce}
	if info, err := os.Stat(layout.HeadLog()); err == nil {
		w.offset = info.Size()
	}
	return w, nil
}

// Run blocks until ctx is done, calling onCommit for every commit recorded
// in the reflog. Bursts of writes are coalesced over Debounce.
func (w *Watcher) Run(ctx context.Context, onCommit CommitFunc) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	headLog := w.Layout.HeadLog()
	logsDir := filepath.Dir(headLog)

	if err := fw.Add(w.Layout.GitDir); err != nil {
		return fmt.Errorf("watch %s: %w", w.Layout.GitDir, err)
	}
	// A repository without commits has no logs directory yet.
	if err := fw.Add(logsDir); err != nil {
		log.Debug().Err(err).Str("dir", logsDir).Msg("reflog directory not watchable yet")
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	log.Info().Str("reflog", headLog).Msg("watching for commits")

	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Name == logsDir && ev.Op.Has(fsnotify.Create) {
				if err := fw.Add(logsDir); err != nil {
					log.Warn().Err(err).Str("dir", logsDir).Msg("failed to watch reflog directory")
				}
				timer.Reset(debounce)
				continue
			}
			if ev.Name != headLog || !(ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create)) {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			hashes, err := w.Poll()
			if err != nil {
				log.Warn().Err(err).Msg("read reflog")
				continue
			}
			for _, h := range hashes {
				if ctx.Err() != nil {
					return nil
				}
				onCommit(ctx, h)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("fsnotify error")

		case <-ctx.Done():
			return nil
		}
	}
}

// Poll reads reflog records appended since the last call and returns the
// hashes of those that recorded a commit. Checkouts, resets and rebases
// move HEAD without committing and are ignored.
func (w *Watcher) Poll() ([]string, error) {
	f, err := os.Open(w.Layout.HeadLog())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < w.offset {
		// Rewritten by reflog expiry; nothing new to report.
		w.offset = info.Size()
		return nil, nil
	}

	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	// A record still being written has no newline yet.
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, nil
	}
	w.offset += int64(end + 1)

	var hashes []string
	for _, line := range strings.Split(string(data[:end]), "\n") {
		if rec, ok := parseRecord(line); ok && rec.isCommit() {
			hashes = append(hashes, rec.New)
		}
	}
	return hashes, nil
}

type record struct {
	Old, New string
	Message  string
}

func (r record) isCommit() bool {
	return strings.HasPrefix(r.Message, "commit")
}

// parseRecord reads one reflog line:
// <old> <new> <name> <email> <unix time> <tz>\t<message>
func parseRecord(line string) (record, bool) {
	head, msg, _ := strings.Cut(line, "\t")
	fields := strings.Fields(head)
	if len(fields) < 2 || len(fields[1]) < 40 {
		return record{}, false
	}
	return record{Old: fields[0], New: fields[1], Message: msg}, true
}
