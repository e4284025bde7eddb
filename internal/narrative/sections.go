package narrative

import "fmt"

// Section names.
const (
	SectionSummary   = "summary"
	SectionDialogue  = "dialogue"
	SectionDecisions = "technical_decisions"
)

// Section describes one independently generated part of an entry.
type Section struct {
	Name  string
	Title string
	// Instructions are appended to the guidelines in the system prompt.
	Instructions string
	// NeedsConversation sections are skipped when no message survived
	// budgeting; writing them from the diff alone invites fabrication.
	NeedsConversation bool
}

var sections = map[string]Section{
	SectionSummary: {
		Name:  SectionSummary,
		Title: "Summary",
		Instructions: `Section: Summary.
Write two to four sentences saying what this commit changed and, where the material shows it, why.`,
	},
	SectionDialogue: {
		Name:  SectionDialogue,
		Title: "Dialogue",
		Instructions: `Section: Dialogue.
Recount the exchanges between the developer and the assistant that led to this commit, in order.
Attribute every line to its speaker as **Developer** or **Assistant**. Quote short phrases exactly;
paraphrase longer ones without changing their meaning. Skip small talk and confirmations.`,
		NeedsConversation: true,
	},
	SectionDecisions: {
		Name:  SectionDecisions,
		Title: "Technical decisions",
		Instructions: `Section: Technical decisions.
List the technical decisions visible in the conversation or the diff as bullets. Give each the
reason stated in the material. When no reason was stated, state the decision alone.`,
	},
}

// Lookup returns the named section definition.
func Lookup(name string) (Section, error) {
	s, ok := sections[name]
	if !ok {
		return Section{}, fmt.Errorf("unknown narrative section %q", name)
	}
	return s, nil
}

// DefaultSections is the order sections appear in an entry.
func DefaultSections() []string {
	return []string{SectionSummary, SectionDialogue, SectionDecisions}
}
