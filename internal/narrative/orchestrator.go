package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/suykerbuyk/vibe-journal/internal/budget"
	"github.com/suykerbuyk/vibe-journal/internal/gitwindow"
	"github.com/suykerbuyk/vibe-journal/internal/llm"
	"github.com/suykerbuyk/vibe-journal/internal/log"
	"github.com/suykerbuyk/vibe-journal/internal/sanitize"
	"github.com/suykerbuyk/vibe-journal/internal/transcript"
)

const priorEntryChars = 2000

// Usage is the token accounting of one section call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// SectionResult is one generated section.
type SectionResult struct {
	Name  string
	Title string
	Text  string
	Usage Usage
}

// Input is everything a section may draw on.
type Input struct {
	Context    budget.Context
	Window     *gitwindow.Window
	PriorEntry string
}

// Orchestrator generates an entry's sections, one model call each.
type Orchestrator struct {
	Model          llm.Completer
	Sections       []string
	SectionTimeout time.Duration
	// ChainSummary generates the summary first and hands its text to the
	// remaining sections as read-only context.
	ChainSummary bool

	// MaxConcurrent limits in-flight section calls when positive.
	MaxConcurrent int
}

// Generate runs every configured section and returns the ones that
// produced text, in configured order. A failed, timed-out, empty or NONE
// section is logged and left out; it never fails the others.
func (o *Orchestrator) Generate(ctx context.Context, in Input) []SectionResult {
	if o.Model == nil {
		return nil
	}

	names := o.Sections
	if len(names) == 0 {
		names = DefaultSections()
	}

	var defs []Section
	for _, name := range names {
		def, err := Lookup(name)
		if err != nil {
			log.Warn().Err(err).Msg("skipping section")
			continue
		}
		if def.NeedsConversation && len(in.Context.Messages) == 0 {
			log.Debug().Str("section", def.Name).Msg("no conversation, section skipped")
			continue
		}
		defs = append(defs, def)
	}

	results := make([]*SectionResult, len(defs))
	base := buildMaterial(in)

	chained := ""
	start := 0
	if o.ChainSummary && len(defs) > 0 && defs[0].Name == SectionSummary {
		results[0] = o.generateOne(ctx, defs[0], base)
		if results[0] != nil {
			chained = results[0].Text
		}
		start = 1
	}

	material := base
	if chained != "" {
		material = base + "\n## Summary of this commit (already written)\n" + chained + "\n"
	}

	g, gctx := errgroup.WithContext(ctx)
	if o.MaxConcurrent > 0 {
		g.SetLimit(o.MaxConcurrent)
	}
	for i := start; i < len(defs); i++ {
		i := i
		g.Go(func() error {
			// Sections queued behind the limit are not started once the
			// run is cancelled.
			if err := gctx.Err(); err != nil {
				return err
			}
			// A failed section is already logged and omitted; only
			// cancellation of the run stops the group.
			results[i] = o.generateOne(gctx, defs[i], material)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("section generation interrupted")
	}

	var out []SectionResult
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func (o *Orchestrator) generateOne(ctx context.Context, def Section, material string) *SectionResult {
	if o.SectionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.SectionTimeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := o.Model.Complete(ctx, llm.Request{
		System: Guidelines + "\n\n" + def.Instructions,
		Prompt: material,
	})
	if err != nil {
		log.Warn().Err(err).Str("section", def.Name).Dur("elapsed", time.Since(started)).Msg("section generation failed")
		return nil
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" || isNone(text) {
		log.Info().Str("section", def.Name).Msg("section has nothing grounded to say")
		return nil
	}

	return &SectionResult{
		Name:  def.Name,
		Title: def.Title,
		Text:  text,
		Usage: Usage{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens},
	}
}

func isNone(text string) bool {
	return strings.EqualFold(strings.TrimRight(text, ". "), "NONE")
}

// buildMaterial renders the shared, read-only prompt body every section
// receives.
func buildMaterial(in Input) string {
	var b strings.Builder

	if w := in.Window; w != nil {
		fmt.Fprintf(&b, "## Commit %s\n", w.ShortHash())
		fmt.Fprintf(&b, "Author: %s\n", w.Author)
		fmt.Fprintf(&b, "Date: %s\n\n", w.End.Format(time.RFC3339))
		b.WriteString(sanitize.Redact(w.Message))
		b.WriteString("\n")
	}

	b.WriteString("\n## Conversation\n")
	if len(in.Context.Messages) == 0 {
		b.WriteString("(no conversation recorded for this commit)\n")
	}
	for _, m := range in.Context.Messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp.Format("15:04"), speakerLabel(m.Speaker), sanitize.Redact(m.Text))
	}

	if in.Context.DiffSummary != "" {
		if in.Context.DiffSummarized {
			b.WriteString("\n## Diff summary\n")
		} else {
			b.WriteString("\n## Diff\n")
		}
		b.WriteString(sanitize.Redact(in.Context.DiffSummary))
		b.WriteString("\n")
	}

	if in.PriorEntry != "" {
		b.WriteString("\n## Prior journal entry (context only)\n")
		b.WriteString(llm.Truncate(in.PriorEntry, priorEntryChars))
		b.WriteString("\n")
	}

	return b.String()
}

func speakerLabel(r transcript.Role) string {
	switch r {
	case transcript.RoleHuman:
		return "Developer"
	case transcript.RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}
