package sanitize

import (
	"regexp"
	"strings"
)

// Blocks whose body is injected by the harness, not typed by anyone.
var injectedBlockPattern = regexp.MustCompile(
	`(?s)<(system-reminder|ide_opened_file|ide_selection|local-command-caveat)>.*?</(?:system-reminder|ide_opened_file|ide_selection|local-command-caveat)>`,
)

var xmlTagPattern = regexp.MustCompile(
	`</?(?:local-command-(?:stdout|stderr|caveat)|command-(?:output|name|args|message)|` +
		`system-reminder|task-(?:id|notification)|persisted-output|thinking|tool-use-id|` +
		`tool|skill-name|plugin-id)[^>]*>`,
)

var clearCommandPattern = regexp.MustCompile(`<command-name>\s*/clear\s*</command-name>`)

// StripTags removes Claude Code XML wrapper tags from text, dropping the
// bodies of harness-injected blocks entirely.
func StripTags(text string) string {
	text = injectedBlockPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(xmlTagPattern.ReplaceAllString(text, ""))
}

// IsClearCommand reports whether raw message text is the user clearing the
// conversation, either as the wrapped slash command or typed bare.
func IsClearCommand(text string) bool {
	if clearCommandPattern.MatchString(text) {
		return true
	}
	return strings.TrimSpace(text) == "/clear"
}

const redacted = "[REDACTED]"

type secretRule struct {
	re          *regexp.Regexp
	replacement string
}

// Key/value assignments keep the key so the prompt still reads sensibly.
var secretRules = []secretRule{
	{regexp.MustCompile(`\b(?:sk|xai|pk|rk)-[A-Za-z0-9_\-]{16,}`), redacted},
	{regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{30,}`), redacted},
	{regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), redacted},
	{regexp.MustCompile(`\bxox[abpr]-[A-Za-z0-9\-]{10,}`), redacted},
	{regexp.MustCompile(`(?i)\b(api[_-]?key|secret|token|password)(\s*[:=]\s*)("[^"]{8,}"|'[^']{8,}'|[^\s"']{8,})`), "${1}${2}" + redacted},
	{regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----(?s:.*?)-----END [A-Z ]*PRIVATE KEY-----`), redacted},
}

// Redact masks credentials before text leaves the machine.
func Redact(text string) string {
	for _, r := range secretRules {
		text = r.re.ReplaceAllString(text, r.replacement)
	}
	return text
}
