// Package pipeline turns one commit into one journal entry: it resolves the
// commit window, collects and normalizes the surrounding conversation,
// picks the sessions that produced the commit, fits them to the generation
// budget and asks the model for each narrative section.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/suykerbuyk/vibe-journal/internal/budget"
	"github.com/suykerbuyk/vibe-journal/internal/collect"
	"github.com/suykerbuyk/vibe-journal/internal/config"
	"github.com/suykerbuyk/vibe-journal/internal/disambiguate"
	"github.com/suykerbuyk/vibe-journal/internal/gitwindow"
	"github.com/suykerbuyk/vibe-journal/internal/journal"
	"github.com/suykerbuyk/vibe-journal/internal/llm"
	"github.com/suykerbuyk/vibe-journal/internal/log"
	"github.com/suykerbuyk/vibe-journal/internal/narrative"
	"github.com/suykerbuyk/vibe-journal/internal/normalize"
)

// ErrTimeout is returned when a run exceeds the configured pipeline timeout.
var ErrTimeout = errors.New("pipeline timed out")

const (
	noteNoModel   = "No narrative written: no model is configured."
	noteNoSection = "No narrative written: every section failed or had nothing grounded to say."
)

// Options selects the commit and how its entry is delivered.
type Options struct {
	RepoPath string // defaults to the current directory
	Ref      string // defaults to HEAD
	// DryRun renders the entry without touching the journal.
	DryRun bool

	// Model replaces the client built from config when set.
	Model     llm.Completer
	ModelName string
}

// Diagnostics records what each stage did, for logs and --verbose output.
type Diagnostics struct {
	RunID           string
	FilesScanned    int
	Skipped         int // malformed transcript records
	Collected       int
	Sessions        int
	Method          string
	Reasoning       string
	Noise           int
	Dropped         int
	DiffSummarized  bool
	TokenEstimate   int
	SectionsOmitted []string
	Usage           narrative.Usage
	Elapsed         time.Duration
}

// Result is the outcome of one run.
type Result struct {
	Window   *gitwindow.Window
	Entry    journal.Entry
	Rendered string
	Path     string
	Written  bool
	// AlreadyJournaled is set when the journal held an entry for the commit
	// and nothing was generated.
	AlreadyJournaled bool

	Diagnostics Diagnostics
}

// Run executes the pipeline for one commit under cfg's pipeline timeout.
// Only an unusable repository and the timeout are errors; every other
// failure degrades the entry and is recorded in the diagnostics.
func Run(ctx context.Context, cfg config.Config, opts Options) (*Result, error) {
	timeout := cfg.Pipeline.Timeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	res, err := run(ctx, cfg, opts, uuid.NewString())
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return nil, err
	}
	res.Diagnostics.Elapsed = time.Since(started)
	return res, nil
}

func run(ctx context.Context, cfg config.Config, opts Options, runID string) (*Result, error) {
	repoPath := opts.RepoPath
	if repoPath == "" {
		repoPath = "."
	}

	repo, err := gitwindow.Open(repoPath)
	if err != nil {
		return nil, err
	}
	layout, err := gitwindow.LayoutOf(repo)
	if err != nil {
		return nil, err
	}
	w, err := gitwindow.ResolveIn(ctx, repo, opts.Ref, cfg.Git.Lookback())
	if err != nil {
		return nil, err
	}

	logger := log.With().Str("run_id", runID).Str("commit", w.ShortHash()).Logger()
	res := &Result{Window: w, Diagnostics: Diagnostics{RunID: runID}}
	diag := &res.Diagnostics

	writer := journal.NewWriter(cfg.DailyDir())
	entryTime := w.End.Local()
	res.Path = writer.PathFor(entryTime)

	if !opts.DryRun && writer.Has(w.Hash, entryTime) {
		logger.Info().Str("path", res.Path).Msg("commit already journaled")
		res.AlreadyJournaled = true
		return res, nil
	}

	// Collection runs past the commit so git's own report of the commit
	// can serve as evidence; generation only sees the window itself.
	collected, err := collect.Collect(ctx, collect.Options{
		Roots:     []string{cfg.TranscriptsDir, cfg.Archive.Dir},
		Workspace: layout.WorkTree,
		Start:     w.Start,
		End:       w.End.Add(disambiguate.EvidenceGrace),
	})
	if err != nil {
		return nil, fmt.Errorf("collect transcripts: %w", err)
	}
	diag.FilesScanned = collected.FilesScanned
	diag.Skipped = collected.Skipped
	diag.Collected = len(collected.Messages)

	messages := normalize.Normalize(collected.Messages)
	sessions := activeSessions(disambiguate.Group(messages), w)
	diag.Sessions = len(sessions)

	model, modelName := resolveModel(cfg, opts)

	d := &disambiguate.Disambiguator{Model: model, Timeout: cfg.Model.DisambiguationTimeout()}
	sel := d.Select(ctx, sessions, w)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	diag.Method = sel.Method
	diag.Reasoning = sel.Reasoning
	logger.Debug().
		Int("sessions", len(sessions)).
		Strs("selected", sel.SessionIDs).
		Str("method", sel.Method).
		Str("reasoning", sel.Reasoning).
		Msg("sessions selected")

	var inWindow []normalize.Message
	for _, m := range disambiguate.Flatten(sessions, sel.SessionIDs) {
		if collect.InWindow(m.Timestamp, w.Start, w.End) {
			inWindow = append(inWindow, m)
		}
	}

	b := budget.Budgeter{
		Ceiling:        cfg.Budget.TokenCeiling,
		DiffThreshold:  cfg.Budget.DiffThresholdTokens,
		PreserveRecent: cfg.Budget.PreserveRecent,
	}
	fitted := b.Fit(inWindow, w)
	diag.Noise = fitted.NoiseCount
	diag.Dropped = fitted.DroppedCount
	diag.DiffSummarized = fitted.DiffSummarized
	diag.TokenEstimate = fitted.TokenEstimate

	prior, err := writer.PriorEntry(entryTime)
	if err != nil {
		logger.Warn().Err(err).Msg("prior entry unavailable")
		prior = ""
	}

	orch := &narrative.Orchestrator{
		Model:          model,
		Sections:       cfg.Narrative.Sections,
		SectionTimeout: cfg.Model.SectionTimeout(),
		ChainSummary:   cfg.Narrative.ChainSummary,
		MaxConcurrent:  cfg.Narrative.MaxConcurrent,
	}
	sections := orch.Generate(ctx, narrative.Input{Context: fitted, Window: w, PriorEntry: prior})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	diag.SectionsOmitted = omitted(configuredSections(cfg), sections)
	for _, s := range sections {
		diag.Usage.InputTokens += s.Usage.InputTokens
		diag.Usage.OutputTokens += s.Usage.OutputTokens
	}

	entry := journal.Entry{
		Hash:       w.Hash,
		Subject:    w.Subject(),
		Author:     w.Author,
		Time:       entryTime,
		Project:    projectName(repo, layout.WorkTree),
		Sections:   sections,
		Files:      w.Files,
		SessionIDs: sel.SessionIDs,
		Method:     sel.Method,
		Reasoning:  sel.Reasoning,
		Model:      modelName,
	}
	if len(sections) == 0 {
		entry.Note = noteNoSection
		if model == nil {
			entry.Note = noteNoModel
		}
	}
	res.Entry = entry
	res.Rendered = journal.Render(entry)

	if opts.DryRun {
		return res, nil
	}

	written, err := writer.Append(entry)
	if err != nil {
		return nil, fmt.Errorf("append journal entry: %w", err)
	}
	res.Written = written

	logger.Info().
		Str("path", res.Path).
		Str("method", sel.Method).
		Int("sections", len(sections)).
		Int("tokens", fitted.TokenEstimate).
		Msg("journal entry written")
	return res, nil
}

// activeSessions keeps the sessions with at least one message inside the
// commit window. A session seen only after the commit did not produce it;
// the trailing messages of an active session stay attached for the
// evidence scan.
func activeSessions(sessions []disambiguate.Session, w *gitwindow.Window) []disambiguate.Session {
	var out []disambiguate.Session
	for _, s := range sessions {
		for _, m := range s.Messages {
			if collect.InWindow(m.Timestamp, w.Start, w.End) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// resolveModel returns nil when no model is usable. A nil *llm.Client must
// not leak into the interface.
func resolveModel(cfg config.Config, opts Options) (llm.Completer, string) {
	if opts.Model != nil {
		return opts.Model, opts.ModelName
	}
	if c := llm.New(cfg.Model); c != nil {
		return c, c.Model()
	}
	return nil, ""
}

func configuredSections(cfg config.Config) []string {
	if len(cfg.Narrative.Sections) > 0 {
		return cfg.Narrative.Sections
	}
	return narrative.DefaultSections()
}

func omitted(configured []string, got []narrative.SectionResult) []string {
	have := make(map[string]bool, len(got))
	for _, s := range got {
		have[s.Name] = true
	}
	var out []string
	for _, name := range configured {
		if !have[name] {
			out = append(out, name)
		}
	}
	return out
}
