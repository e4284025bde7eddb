package budget

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/suykerbuyk/vibe-journal/internal/gitwindow"
	"github.com/suykerbuyk/vibe-journal/internal/normalize"
)

// MessageOverhead is the fixed token cost of framing one message in a prompt.
const MessageOverhead = 4

const (
	defaultCeiling       = 60000
	defaultDiffThreshold = 15000
	truncationMarker     = "\n[...truncated]"
)

// EstimateTokens approximates the token count of text at four characters
// per token, rounded up.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// MessageTokens is the estimated prompt cost of one message.
func MessageTokens(m normalize.Message) int {
	return EstimateTokens(m.Text) + MessageOverhead
}

// Context is the conversation and diff that fit the generation budget.
type Context struct {
	Messages    []normalize.Message
	DiffSummary string
	// TokenEstimate covers Messages and DiffSummary and never exceeds Ceiling.
	TokenEstimate int
	DroppedCount  int // messages trimmed for size, not counting noise

	NoiseCount     int
	DiffSummarized bool
	Ceiling        int
}

// Budgeter reduces a conversation to what fits under a token ceiling.
type Budgeter struct {
	Ceiling        int
	DiffThreshold  int
	PreserveRecent int
}

// Fit drops noise, summarizes an oversized diff and trims old messages
// until the estimate fits the ceiling. The input slice is not modified.
func (b Budgeter) Fit(messages []normalize.Message, w *gitwindow.Window) Context {
	ceiling := b.Ceiling
	if ceiling <= 0 {
		ceiling = defaultCeiling
	}
	threshold := b.DiffThreshold
	if threshold <= 0 {
		threshold = defaultDiffThreshold
	}

	out := Context{Ceiling: ceiling}

	kept, adjacent := dropNoise(messages)
	out.NoiseCount = len(messages) - len(kept)

	if w != nil {
		out.DiffSummary = w.Diff
		if t := EstimateTokens(w.Diff); t > threshold || t > ceiling {
			out.DiffSummary = Summarize(w)
			out.DiffSummarized = true
		}
	}
	if EstimateTokens(out.DiffSummary) > ceiling {
		out.DiffSummary = truncateToTokens(out.DiffSummary, ceiling)
	}
	diffTokens := EstimateTokens(out.DiffSummary)

	out.Messages, out.DroppedCount = trim(kept, adjacent, ceiling-diffTokens, b.PreserveRecent)
	out.TokenEstimate = diffTokens + totalTokens(out.Messages)
	return out
}

// isNoise reports messages that carry no conversation worth narrating. An
// assistant reply that explains itself and then calls a tool keeps its
// text; only bare tool calls are noise.
func isNoise(m normalize.Message) bool {
	switch m.Kind {
	case normalize.KindToolResult, normalize.KindClear:
		return true
	}
	return strings.TrimSpace(m.Text) == ""
}

// dropNoise returns the conversational messages, and for each of them
// whether it sits next to a file-modifying tool call. Adjacency is
// decided on the full stream, before noise is removed.
func dropNoise(messages []normalize.Message) ([]normalize.Message, []bool) {
	near := make([]bool, len(messages))
	for i, m := range messages {
		if !m.ModifiesFiles() {
			continue
		}
		if !isNoise(m) {
			near[i] = true
		}
		for j := i - 1; j >= 0; j-- {
			if !isNoise(messages[j]) {
				near[j] = true
				break
			}
		}
		for j := i + 1; j < len(messages); j++ {
			if !isNoise(messages[j]) {
				near[j] = true
				break
			}
		}
	}

	var kept []normalize.Message
	var adjacent []bool
	for i, m := range messages {
		if isNoise(m) {
			continue
		}
		kept = append(kept, m)
		adjacent = append(adjacent, near[i])
	}
	return kept, adjacent
}

// trim removes messages oldest-first until they fit in available tokens.
// The most recent preserve messages and file-adjacent messages go last; a
// single survivor that still does not fit is truncated.
func trim(msgs []normalize.Message, adjacent []bool, available, preserve int) ([]normalize.Message, int) {
	total := totalTokens(msgs)
	if total <= available {
		return msgs, 0
	}

	drop := make([]bool, len(msgs))
	dropped := 0

	protected := func(i int) bool {
		return adjacent[i] || i >= len(msgs)-preserve
	}

	// Pass 1: unprotected, oldest first. Pass 2: anything, oldest first.
	// Neither pass removes the last message standing.
	for pass := 0; pass < 2 && total > available; pass++ {
		for i := range msgs {
			if total <= available {
				break
			}
			if drop[i] || (pass == 0 && protected(i)) {
				continue
			}
			if len(msgs)-dropped == 1 {
				break
			}
			drop[i] = true
			dropped++
			total -= MessageTokens(msgs[i])
		}
	}

	var kept []normalize.Message
	for i, m := range msgs {
		if !drop[i] {
			kept = append(kept, m)
		}
	}

	if total > available && len(kept) == 1 {
		room := available - MessageOverhead
		if room <= 0 {
			return nil, dropped + 1
		}
		kept[0].Text = truncateToTokens(kept[0].Text, room)
	}

	return kept, dropped
}

func totalTokens(msgs []normalize.Message) int {
	n := 0
	for _, m := range msgs {
		n += MessageTokens(m)
	}
	return n
}

// truncateToTokens cuts text so that its estimate, marker included, is at
// most tokens.
func truncateToTokens(text string, tokens int) string {
	if EstimateTokens(text) <= tokens {
		return text
	}
	maxChars := tokens*4 - len(truncationMarker)
	if maxChars <= 0 {
		return ""
	}
	for maxChars > 0 && !utf8.RuneStart(text[maxChars]) {
		maxChars--
	}
	cut := text[:maxChars]
	if idx := strings.LastIndex(cut, "\n"); idx > maxChars/2 {
		cut = cut[:idx]
	}
	return cut + truncationMarker
}

// Summarize describes a commit's diff structurally: totals, then one line
// per file with its line counts.
func Summarize(w *gitwindow.Window) string {
	add, del := w.Totals()

	var b strings.Builder
	fmt.Fprintf(&b, "%d files changed, +%d -%d (full diff omitted for size)\n", len(w.Files), add, del)
	for _, f := range w.Files {
		fmt.Fprintf(&b, "- %s (+%d -%d)\n", f.Path, f.Additions, f.Deletions)
	}
	return b.String()
}
