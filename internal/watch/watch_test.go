package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
)

const (
	zero = "0000000000000000000000000000000000000000"
	h1   = "1111111111111111111111111111111111111111"
	h2   = "2222222222222222222222222222222222222222"
	h3   = "3333333333333333333333333333333333333333"
)

func reflogLine(old, next, msg string) string {
	return old + " " + next + " Dev <dev@example.com> 1750000000 +0000\t" + msg + "\n"
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatal(err)
	}
	return dir
}

func appendReflog(t *testing.T, dir string, lines ...string) {
	t.Helper()
	path := filepath.Join(dir, ".git", "logs", "HEAD")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(strings.Join(lines, "")); err != nil {
		t.Fatal(err)
	}
}

func TestPoll_OnlyNewCommits(t *testing.T) {
	dir := initRepo(t)
	appendReflog(t, dir, reflogLine(zero, h1, "commit (initial): first"))

	w, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := w.Poll(); len(got) != 0 {
		t.Errorf("existing records reported: %v", got)
	}

	appendReflog(t, dir,
		reflogLine(h1, h2, "commit: second"),
		reflogLine(h2, h1, "checkout: moving from main to old"),
		reflogLine(h1, h3, "commit (amend): second, amended"),
	)
	got, err := w.Poll()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != h2+","+h3 {
		t.Errorf("Poll = %v", got)
	}
	if again, _ := w.Poll(); len(again) != 0 {
		t.Errorf("records reported twice: %v", again)
	}
}

func TestPoll_PartialLine(t *testing.T) {
	dir := initRepo(t)
	w, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	line := reflogLine(zero, h1, "commit (initial): first")
	appendReflog(t, dir, line[:30])
	if got, _ := w.Poll(); len(got) != 0 {
		t.Errorf("partial record reported: %v", got)
	}
	appendReflog(t, dir, line[30:])
	if got, _ := w.Poll(); len(got) != 1 || got[0] != h1 {
		t.Errorf("Poll = %v", got)
	}
}

func TestPoll_Truncated(t *testing.T) {
	dir := initRepo(t)
	appendReflog(t, dir, reflogLine(zero, h1, "commit (initial): first"), reflogLine(h1, h2, "commit: second"))
	w, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, ".git", "logs", "HEAD")
	if err := os.WriteFile(path, []byte(reflogLine(zero, h2, "commit: second")), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, _ := w.Poll(); len(got) != 0 {
		t.Errorf("rewritten reflog reported: %v", got)
	}
}

func TestRun_ReportsCommit(t *testing.T) {
	dir := initRepo(t)
	w, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	w.Debounce = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(_ context.Context, hash string) {
			mu.Lock()
			got = append(got, hash)
			mu.Unlock()
			cancel()
		})
	}()

	// Give the watcher time to register before git writes.
	time.Sleep(100 * time.Millisecond)
	appendReflog(t, dir, reflogLine(zero, h1, "commit (initial): first"))

	<-done
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != h1 {
		t.Errorf("commits = %v", got)
	}
}

func TestParseRecord(t *testing.T) {
	rec, ok := parseRecord(strings.TrimSuffix(reflogLine(h1, h2, "commit: msg"), "\n"))
	if !ok || rec.Old != h1 || rec.New != h2 || !rec.isCommit() {
		t.Errorf("parseRecord = %+v, %v", rec, ok)
	}
	if _, ok := parseRecord("garbage"); ok {
		t.Error("garbage accepted")
	}
}
