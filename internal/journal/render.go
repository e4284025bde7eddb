package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/suykerbuyk/vibe-journal/internal/gitwindow"
	"github.com/suykerbuyk/vibe-journal/internal/narrative"
)

// Entry is one commit's journal entry.
type Entry struct {
	Hash    string
	Subject string
	Author  string
	Time    time.Time // commit time; also picks the daily file
	Project string

	Sections []narrative.SectionResult
	Files    []gitwindow.FileChange

	// Provenance of the narrative.
	SessionIDs []string
	Method     string
	Reasoning  string
	Model      string
	// Note replaces the sections when none were generated.
	Note string
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}

// entryMarker opens every entry; PriorEntry and idempotence rely on it.
func entryMarker(e Entry) string {
	return fmt.Sprintf("<!-- vj:entry %s %s -->", e.Hash, e.Time.Format(time.RFC3339))
}

// Render formats an entry as markdown, without front matter.
func Render(e Entry) string {
	var b strings.Builder

	b.WriteString(entryMarker(e))
	b.WriteString("\n")
	fmt.Fprintf(&b, "## %s `%s` %s\n\n", e.Time.Format("15:04"), shortHash(e.Hash), e.Subject)

	var meta []string
	if e.Project != "" {
		meta = append(meta, e.Project)
	}
	if e.Author != "" {
		meta = append(meta, e.Author)
	}
	if len(e.SessionIDs) > 0 {
		meta = append(meta, fmt.Sprintf("sessions: %s (%s)", strings.Join(e.SessionIDs, ", "), e.Method))
	}
	if e.Model != "" && len(e.Sections) > 0 {
		meta = append(meta, "written by "+e.Model)
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "*%s*\n\n", strings.Join(meta, " · "))
	}

	if len(e.Sections) == 0 && e.Note != "" {
		fmt.Fprintf(&b, "_%s_\n\n", e.Note)
	}
	for _, s := range e.Sections {
		fmt.Fprintf(&b, "### %s\n\n", s.Title)
		b.WriteString(strings.TrimSpace(s.Text))
		b.WriteString("\n\n")
	}

	if len(e.Files) > 0 {
		b.WriteString("### Files\n\n")
		for _, f := range e.Files {
			fmt.Fprintf(&b, "- `%s` (+%d -%d)\n", f.Path, f.Additions, f.Deletions)
		}
		b.WriteString("\n")
	}

	return b.String()
}
