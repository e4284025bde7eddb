package disambiguate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/suykerbuyk/vibe-journal/internal/gitwindow"
	"github.com/suykerbuyk/vibe-journal/internal/llm"
	"github.com/suykerbuyk/vibe-journal/internal/log"
	"github.com/suykerbuyk/vibe-journal/internal/normalize"
	"github.com/suykerbuyk/vibe-journal/internal/sanitize"
)

// Selection methods.
const (
	MethodFastPath = "fast-path"
	MethodModel    = "model-assisted"
	MethodNone     = "none"
)

// EvidenceGrace extends the collection window past the commit so the tool
// output git prints after committing is visible to the evidence scan. Only
// messages inside the commit window reach generation.
const EvidenceGrace = 2 * time.Minute

const (
	recentPerSession = 8
	recentChars      = 400
	diffExcerptChars = 4000
)

// Selection names the sessions judged relevant to a commit.
type Selection struct {
	SessionIDs []string
	Reasoning  string
	Method     string
}

// Contains reports whether id was selected.
func (s Selection) Contains(id string) bool {
	for _, v := range s.SessionIDs {
		if v == id {
			return true
		}
	}
	return false
}

// Disambiguator picks the sessions that produced a commit.
type Disambiguator struct {
	// Model may be nil, in which case ambiguity is never resolved by a model.
	Model   llm.Completer
	Timeout time.Duration
}

// Select chooses among sessions. It never fails: when nothing can decide,
// every session is selected with Method "none".
func (d *Disambiguator) Select(ctx context.Context, sessions []Session, w *gitwindow.Window) Selection {
	switch len(sessions) {
	case 0:
		return Selection{SessionIDs: []string{}, Reasoning: "no conversation in the commit window", Method: MethodNone}
	case 1:
		return Selection{SessionIDs: []string{sessions[0].ID}, Reasoning: "only one session in the commit window", Method: MethodFastPath}
	}

	if sel, ok := selectByEvidence(sessions, w); ok {
		return sel
	}

	if d.Model == nil {
		return all(sessions, "no model configured to choose between sessions")
	}

	sel, err := d.ask(ctx, sessions, w)
	if err != nil {
		log.Warn().Err(err).Int("sessions", len(sessions)).Msg("session disambiguation inconclusive")
		return all(sessions, "model could not choose: "+err.Error())
	}
	return sel
}

func selectByEvidence(sessions []Session, w *gitwindow.Window) (Selection, bool) {
	var strong, medium []string
	var details []string
	for _, s := range sessions {
		ev := FindEvidence(s, w)
		switch ev.Strength {
		case Strong:
			strong = append(strong, s.ID)
			details = append(details, s.ID+": "+ev.Detail)
		case Medium:
			medium = append(medium, s.ID)
		}
	}

	if len(strong) > 0 {
		return Selection{SessionIDs: strong, Reasoning: strings.Join(details, "; "), Method: MethodFastPath}, true
	}
	if len(medium) == 1 {
		ev := FindEvidence(sessionByID(sessions, medium[0]), w)
		return Selection{SessionIDs: medium, Reasoning: medium[0] + ": " + ev.Detail, Method: MethodFastPath}, true
	}
	return Selection{}, false
}

func sessionByID(sessions []Session, id string) Session {
	for _, s := range sessions {
		if s.ID == id {
			return s
		}
	}
	return Session{}
}

func all(sessions []Session, reason string) Selection {
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return Selection{SessionIDs: ids, Reasoning: reason, Method: MethodNone}
}

type modelChoice struct {
	SessionIDs []string `json:"session_ids"`
	Reasoning  string   `json:"reasoning"`
}

func (d *Disambiguator) ask(ctx context.Context, sessions []Session, w *gitwindow.Window) (Selection, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	resp, err := d.Model.Complete(ctx, llm.Request{
		System:   systemPrompt,
		Prompt:   buildPrompt(sessions, w),
		JSONMode: true,
	})
	if err != nil {
		return Selection{}, err
	}

	var choice modelChoice
	if err := llm.DecodeJSON(resp.Text, &choice); err != nil {
		return Selection{}, err
	}

	known := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		known[s.ID] = true
	}
	var ids []string
	for _, id := range choice.SessionIDs {
		id = strings.TrimSpace(id)
		if known[id] {
			ids = append(ids, id)
			delete(known, id)
		}
	}
	if len(ids) == 0 {
		return Selection{}, fmt.Errorf("model selected no known session")
	}

	return Selection{SessionIDs: ids, Reasoning: strings.TrimSpace(choice.Reasoning), Method: MethodModel}, nil
}

const systemPrompt = `You match a git commit to the AI coding sessions that produced it.
Several sessions were active in the same repository between the previous commit and this one.
Pick the session or sessions whose work appears in the commit. Judge by the files touched,
the commands run, and what was discussed. Do not guess: if a session shows no connection to
the commit, leave it out.

Respond with JSON only:
{"session_ids": ["<id>", ...], "reasoning": "<one or two sentences>"}`

func buildPrompt(sessions []Session, w *gitwindow.Window) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Commit %s\n\n", w.ShortHash())
	b.WriteString(sanitize.Redact(w.Message))
	b.WriteString("\n\n### Changed files\n")
	for _, f := range w.Files {
		fmt.Fprintf(&b, "- %s (+%d -%d)\n", f.Path, f.Additions, f.Deletions)
	}
	if w.Diff != "" {
		b.WriteString("\n### Diff excerpt\n")
		b.WriteString(llm.Truncate(sanitize.Redact(w.Diff), diffExcerptChars))
		b.WriteString("\n")
	}

	for _, s := range sessions {
		first, last := s.Span()
		fmt.Fprintf(&b, "\n## Session %s\n", s.ID)
		fmt.Fprintf(&b, "Active %s to %s, %d messages\n",
			first.Format(time.TimeOnly), last.Format(time.TimeOnly), len(s.Messages))

		if cmds := CommitCommands(s); len(cmds) > 0 {
			b.WriteString("Commit commands:\n")
			for _, c := range cmds {
				fmt.Fprintf(&b, "- %s\n", llm.Truncate(sanitize.Redact(c), recentChars))
			}
		}
		if files := FilesTouched(s); len(files) > 0 {
			fmt.Fprintf(&b, "Files touched: %s\n", strings.Join(files, ", "))
		}

		b.WriteString("Recent messages:\n")
		for _, m := range lastConversational(s.Messages, recentPerSession) {
			fmt.Fprintf(&b, "- %s: %s\n", m.Speaker, oneLine(llm.Truncate(sanitize.Redact(m.Text), recentChars)))
		}
	}

	return b.String()
}

// lastConversational returns up to n trailing messages that carry text.
func lastConversational(msgs []normalize.Message, n int) []normalize.Message {
	var out []normalize.Message
	for i := len(msgs) - 1; i >= 0 && len(out) < n; i-- {
		if strings.TrimSpace(msgs[i].Text) == "" {
			continue
		}
		out = append(out, msgs[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
