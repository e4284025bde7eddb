package check

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/suykerbuyk/vibe-journal/internal/collect"
	"github.com/suykerbuyk/vibe-journal/internal/config"
	"github.com/suykerbuyk/vibe-journal/internal/discover"
	"github.com/suykerbuyk/vibe-journal/internal/gitwindow"
	"github.com/suykerbuyk/vibe-journal/internal/hook"
	"github.com/suykerbuyk/vibe-journal/internal/narrative"
)

// Status represents the outcome of a single check.
type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "pass"
	case Warn:
		return "warn"
	case Fail:
		return "FAIL"
	default:
		return "unknown"
	}
}

// Result holds the outcome of a single check.
type Result struct {
	Name   string
	Status Status
	Detail string
}

// Report aggregates all check results.
type Report struct {
	Results []Result
}

// HasFailures returns true if any result has Fail status.
func (r Report) HasFailures() bool {
	for _, res := range r.Results {
		if res.Status == Fail {
			return true
		}
	}
	return false
}

// Format returns the human-readable report string.
func (r Report) Format() string {
	if len(r.Results) == 0 {
		return "vj doctor\n\n  no checks ran\n"
	}

	maxName := 0
	for _, res := range r.Results {
		if len(res.Name) > maxName {
			maxName = len(res.Name)
		}
	}

	var b strings.Builder
	b.WriteString("vj doctor\n\n")

	var passed, warnings, failures int
	for _, res := range r.Results {
		switch res.Status {
		case Pass:
			passed++
		case Warn:
			warnings++
		case Fail:
			failures++
		}
		fmt.Fprintf(&b, "  %-4s  %-*s  %s\n", res.Status, maxName, res.Name, res.Detail)
	}

	fmt.Fprintf(&b, "\n%d passed, %d warning, %d failure\n", passed, warnings, failures)
	return b.String()
}

// CheckConfig reports the resolved config path. A missing file is fine:
// defaults apply.
func CheckConfig() Result {
	cfgPath := filepath.Join(config.ConfigDir(), "config.toml")
	if _, err := os.Stat(cfgPath); err != nil {
		return Result{Name: "config", Status: Warn, Detail: config.CompressHome(cfgPath) + " not found, using defaults (run vj init)"}
	}
	return Result{Name: "config", Status: Pass, Detail: config.CompressHome(cfgPath)}
}

// CheckJournalDir checks that the daily journal directory exists or can be
// created under an existing journal root.
func CheckJournalDir(cfg config.Config) Result {
	daily := cfg.DailyDir()
	if info, err := os.Stat(daily); err == nil && info.IsDir() {
		n := countFiles(daily, "-journal.md")
		return Result{Name: "journal", Status: Pass, Detail: fmt.Sprintf("%s (%d days)", config.CompressHome(daily), n)}
	}
	if info, err := os.Stat(cfg.JournalDir); err == nil && info.IsDir() {
		return Result{Name: "journal", Status: Pass, Detail: config.CompressHome(cfg.JournalDir) + " (no entries yet)"}
	}
	return Result{Name: "journal", Status: Warn, Detail: config.CompressHome(cfg.JournalDir) + " not found, created on first entry"}
}

// CheckTranscripts reports how many transcripts are readable.
func CheckTranscripts(cfg config.Config) Result {
	if !collect.Exists(cfg.TranscriptsDir) {
		return Result{Name: "transcripts", Status: Warn, Detail: config.CompressHome(cfg.TranscriptsDir) + " not found, entries will have no conversation"}
	}
	sources, err := discover.Discover(time.Time{}, cfg.TranscriptsDir, cfg.Archive.Dir)
	if err != nil {
		return Result{Name: "transcripts", Status: Fail, Detail: err.Error()}
	}
	archived := 0
	for _, s := range sources {
		if s.Compressed {
			archived++
		}
	}
	return Result{
		Name:   "transcripts",
		Status: Pass,
		Detail: fmt.Sprintf("%s (%d transcripts, %d archived)", config.CompressHome(cfg.TranscriptsDir), len(sources)-archived, archived),
	}
}

// CheckRepo checks that repoPath is inside a git repository.
func CheckRepo(repoPath string) Result {
	layout, err := gitwindow.Locate(repoPath)
	if err != nil {
		return Result{Name: "repository", Status: Warn, Detail: "not inside a git repository"}
	}
	return Result{Name: "repository", Status: Pass, Detail: config.CompressHome(layout.WorkTree)}
}

// CheckModel checks model configuration.
func CheckModel(mcfg config.ModelConfig) Result {
	if !mcfg.Enabled {
		return Result{Name: "model", Status: Warn, Detail: "disabled, entries get no narrative"}
	}
	keyEnv := mcfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "XAI_API_KEY"
	}
	if os.Getenv(keyEnv) == "" {
		return Result{Name: "model", Status: Fail, Detail: keyEnv + " not set"}
	}
	return Result{Name: "model", Status: Pass, Detail: fmt.Sprintf("%s via %s", mcfg.Model, mcfg.BaseURL)}
}

// CheckSections validates the configured narrative sections.
func CheckSections(ncfg config.NarrativeConfig) Result {
	names := ncfg.Sections
	if len(names) == 0 {
		names = narrative.DefaultSections()
	}
	var unknown []string
	for _, name := range names {
		if _, err := narrative.Lookup(name); err != nil {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return Result{Name: "sections", Status: Fail, Detail: "unknown: " + strings.Join(unknown, ", ")}
	}
	return Result{Name: "sections", Status: Pass, Detail: strings.Join(names, ", ")}
}

// CheckHook checks whether the repository's post-commit hook runs vj.
func CheckHook(repoPath string) Result {
	installed, err := hook.Installed(repoPath)
	if err != nil {
		return Result{Name: "hook", Status: Warn, Detail: "no repository to check"}
	}
	if installed {
		return Result{Name: "hook", Status: Pass, Detail: "post-commit hook installed"}
	}
	return Result{Name: "hook", Status: Warn, Detail: "post-commit hook not installed (run vj hook install)"}
}

func countFiles(dir, suffix string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			count++
		}
	}
	return count
}

// Run executes all checks against the given config and returns a report.
func Run(cfg config.Config, repoPath string) Report {
	var results []Result

	results = append(results, CheckConfig())
	results = append(results, CheckJournalDir(cfg))
	results = append(results, CheckTranscripts(cfg))
	results = append(results, CheckRepo(repoPath))
	results = append(results, CheckHook(repoPath))
	results = append(results, CheckModel(cfg.Model))
	results = append(results, CheckSections(cfg.Narrative))

	return Report{Results: results}
}
