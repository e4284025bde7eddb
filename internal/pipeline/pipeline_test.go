package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/suykerbuyk/vibe-journal/internal/config"
	"github.com/suykerbuyk/vibe-journal/internal/disambiguate"
	"github.com/suykerbuyk/vibe-journal/internal/gitwindow"
	"github.com/suykerbuyk/vibe-journal/internal/llm"
)

// Transcript files get fresh mtimes, which lie after these commit times.
var base = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

// echoModel answers every section with fixed text and counts calls.
type echoModel struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	reqs  []llm.Request
}

func (m *echoModel) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.calls++
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &llm.Response{Text: "Grounded narrative.", InputTokens: 50, OutputTokens: 5}, nil
}

func (m *echoModel) prompts() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	for _, r := range m.reqs {
		b.WriteString(r.Prompt)
	}
	return b.String()
}

type fixture struct {
	t           *testing.T
	repoDir     string
	transcripts string
	cfg         config.Config
	repo        *git.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repoDir := t.TempDir()
	repo, err := git.PlainInit(repoDir, false)
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.JournalDir = t.TempDir()
	cfg.TranscriptsDir = t.TempDir()
	cfg.Archive.Dir = filepath.Join(t.TempDir(), "archive")
	cfg.Model.Enabled = false

	return &fixture{t: t, repoDir: repoDir, transcripts: cfg.TranscriptsDir, cfg: cfg, repo: repo}
}

func (f *fixture) commit(name, content, msg string, when time.Time) plumbing.Hash {
	f.t.Helper()
	if err := os.WriteFile(filepath.Join(f.repoDir, name), []byte(content), 0o644); err != nil {
		f.t.Fatal(err)
	}
	wt, err := f.repo.Worktree()
	if err != nil {
		f.t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		f.t.Fatal(err)
	}
	h, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "Dev", Email: "dev@example.com", When: when},
	})
	if err != nil {
		f.t.Fatal(err)
	}
	return h
}

func (f *fixture) transcript(session string, lines ...string) {
	f.t.Helper()
	path := filepath.Join(f.transcripts, "proj", session+".jsonl")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		f.t.Fatal(err)
	}
}

func (f *fixture) say(id, session, typ string, ts time.Time, text string) string {
	role := "user"
	if typ == "assistant" {
		role = "assistant"
	}
	return fmt.Sprintf(`{"type":%q,"uuid":%q,"sessionId":%q,"timestamp":%q,"cwd":%q,"message":{"role":%q,"content":%q}}`,
		typ, id, session, ts.Format(time.RFC3339), f.repoDir, role, text)
}

func TestRun_WritesEntry(t *testing.T) {
	f := newFixture(t)
	f.commit("main.go", "package main\n", "Initial commit", base)
	f.commit("main.go", "package main\n\nfunc main() {}\n", "Add main function", base.Add(time.Hour))
	f.transcript("s1",
		f.say("u1", "s1", "user", base.Add(10*time.Minute), "please add a main function"),
		f.say("a1", "s1", "assistant", base.Add(20*time.Minute), "Added an empty main."),
		f.say("u0", "s1", "user", base.Add(-time.Minute), "before the window"),
	)

	model := &echoModel{}
	res, err := Run(context.Background(), f.cfg, Options{RepoPath: f.repoDir, Model: model, ModelName: "test-model"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !res.Written {
		t.Fatal("entry not written")
	}
	d := res.Diagnostics
	if d.RunID == "" || d.Sessions != 1 || d.Method != disambiguate.MethodFastPath {
		t.Errorf("diagnostics = %+v", d)
	}
	if len(res.Entry.Sections) != 3 || len(d.SectionsOmitted) != 0 {
		t.Errorf("sections = %d, omitted %v", len(res.Entry.Sections), d.SectionsOmitted)
	}
	if res.Entry.Project != filepath.Base(f.repoDir) {
		t.Errorf("project = %q", res.Entry.Project)
	}

	content, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Add main function", "Grounded narrative.", "written by test-model", "`main.go`"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("journal missing %q", want)
		}
	}

	prompts := model.prompts()
	if !strings.Contains(prompts, "please add a main function") {
		t.Error("conversation missing from prompts")
	}
	if strings.Contains(prompts, "before the window") {
		t.Error("message outside the window reached the model")
	}
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.commit("a.txt", "a\n", "Initial commit", base)

	model := &echoModel{}
	opts := Options{RepoPath: f.repoDir, Model: model}
	first, err := Run(context.Background(), f.cfg, opts)
	if err != nil || !first.Written {
		t.Fatalf("first Run = %+v, %v", first, err)
	}
	calls := model.calls

	second, err := Run(context.Background(), f.cfg, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.AlreadyJournaled || second.Written {
		t.Errorf("second run = %+v", second)
	}
	if model.calls != calls {
		t.Error("second run called the model again")
	}
}

func TestRun_DryRunDoesNotWrite(t *testing.T) {
	f := newFixture(t)
	f.commit("a.txt", "a\n", "Initial commit", base)

	res, err := Run(context.Background(), f.cfg, Options{RepoPath: f.repoDir, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Written {
		t.Error("dry run wrote")
	}
	if _, err := os.Stat(res.Path); !os.IsNotExist(err) {
		t.Errorf("journal file exists after dry run: %v", err)
	}
	if !strings.Contains(res.Rendered, noteNoModel) {
		t.Errorf("rendered = %q", res.Rendered)
	}
	if res.Diagnostics.Method != disambiguate.MethodNone {
		t.Errorf("method = %q", res.Diagnostics.Method)
	}
}

// Two sessions were active; only one saw git report the commit.
func TestRun_EvidenceSelectsSession(t *testing.T) {
	f := newFixture(t)
	f.commit("a.txt", "a\n", "Initial commit", base)
	h := f.commit("a.txt", "a\nb\n", "Add b", base.Add(time.Hour))
	end := base.Add(time.Hour)

	f.transcript("alpha",
		f.say("a1", "alpha", "user", base.Add(10*time.Minute), "add b to a.txt"),
		f.say("a2", "alpha", "assistant", end.Add(30*time.Second), "Committed as "+h.String()[:8]+"."),
	)
	f.transcript("beta",
		f.say("b1", "beta", "user", base.Add(15*time.Minute), "unrelated refactoring chat"),
	)

	model := &echoModel{}
	res, err := Run(context.Background(), f.cfg, Options{RepoPath: f.repoDir, Model: model, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Diagnostics.Sessions != 2 || res.Diagnostics.Method != disambiguate.MethodFastPath {
		t.Errorf("diagnostics = %+v", res.Diagnostics)
	}
	if strings.Join(res.Entry.SessionIDs, ",") != "alpha" {
		t.Errorf("selected = %v", res.Entry.SessionIDs)
	}

	prompts := model.prompts()
	if strings.Contains(prompts, "unrelated refactoring chat") {
		t.Error("unselected session reached the model")
	}
	if strings.Contains(prompts, "Committed as") {
		t.Error("post-commit message reached the model")
	}
}

// A session that only starts after the commit must not turn a single
// in-window session into an ambiguous choice.
func TestRun_PostCommitSessionIgnored(t *testing.T) {
	f := newFixture(t)
	f.commit("a.txt", "a\n", "Initial commit", base)
	f.commit("a.txt", "a\nb\n", "Add b", base.Add(time.Hour))
	end := base.Add(time.Hour)

	f.transcript("s1",
		f.say("u1", "s1", "user", base.Add(10*time.Minute), "add b to a.txt"),
		f.say("a1", "s1", "assistant", base.Add(20*time.Minute), "Appended b."),
	)
	f.transcript("s2",
		f.say("u2", "s2", "user", end.Add(30*time.Second), "next task: write docs"),
	)

	model := &echoModel{}
	res, err := Run(context.Background(), f.cfg, Options{RepoPath: f.repoDir, Model: model, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	d := res.Diagnostics
	if d.Sessions != 1 || d.Method != disambiguate.MethodFastPath {
		t.Errorf("diagnostics = %+v", d)
	}
	if strings.Join(res.Entry.SessionIDs, ",") != "s1" {
		t.Errorf("selected = %v", res.Entry.SessionIDs)
	}
	if model.calls != 3 {
		t.Errorf("model calls = %d, want one per section", model.calls)
	}
	if strings.Contains(model.prompts(), "next task") {
		t.Error("post-commit session reached the model")
	}
}

func TestRun_NotARepository(t *testing.T) {
	f := newFixture(t)
	_, err := Run(context.Background(), f.cfg, Options{RepoPath: t.TempDir()})
	if !errors.Is(err, gitwindow.ErrGitUnavailable) {
		t.Errorf("err = %v, want ErrGitUnavailable", err)
	}
}

func TestRun_Timeout(t *testing.T) {
	f := newFixture(t)
	f.commit("a.txt", "a\n", "Initial commit", base)
	f.cfg.Pipeline.TimeoutSeconds = 1

	model := &echoModel{delay: 5 * time.Second}
	start := time.Now()
	_, err := Run(context.Background(), f.cfg, Options{RepoPath: f.repoDir, Model: model})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Error("timeout not enforced")
	}
}

func TestProjectName(t *testing.T) {
	f := newFixture(t)
	if got := projectName(f.repo, "/work/checkout-2"); got != "checkout-2" {
		t.Errorf("without remote = %q", got)
	}

	if _, err := f.repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@github.com:someone/vibe-journal.git"},
	}); err != nil {
		t.Fatal(err)
	}
	if got := projectName(f.repo, "/work/checkout-2"); got != "vibe-journal" {
		t.Errorf("with remote = %q", got)
	}
}

func TestRepoNameFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"git@github.com:user/repo.git", "repo"},
		{"https://github.com/user/repo.git", "repo"},
		{"https://github.com/user/repo", "repo"},
		{"ssh://git@host/user/repo.git", "repo"},
		{"file:///srv/git/repo.git", "repo"},
		{"/srv/git/repo", "repo"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := repoNameFromURL(tt.url); got != tt.want {
			t.Errorf("repoNameFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestOmitted(t *testing.T) {
	got := omitted([]string{"summary", "dialogue", "technical_decisions"}, nil)
	if len(got) != 3 {
		t.Errorf("omitted = %v", got)
	}
}
