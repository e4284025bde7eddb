package disambiguate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/suykerbuyk/vibe-journal/internal/gitwindow"
)

// Strength ranks how directly a session is tied to a commit.
type Strength int

const (
	NoEvidence Strength = iota
	// Medium: the session ran git commit with a message matching the subject.
	Medium
	// Strong: the session saw the commit's hash.
	Strong
)

// Evidence is the strongest commit link found in one session.
type Evidence struct {
	Strength Strength
	Detail   string
}

var (
	hexRunRe      = regexp.MustCompile(`\b[0-9a-fA-F]{7,40}\b`)
	messageFlagRe = regexp.MustCompile(`(?:^|\s)(?:-[a-zA-Z]*m|--message)`)
)

// FindEvidence scans a session's tool calls, tool output and text for signs
// that it produced the commit in w.
func FindEvidence(s Session, w *gitwindow.Window) Evidence {
	best := Evidence{}
	subject := normalizeSubject(w.Subject())

	for _, m := range s.Messages {
		for _, line := range strings.Split(m.ToolOutput, "\n") {
			if sha, _ := parseCommitResult(line); sha != "" && hashMatches(w.Hash, sha) {
				return Evidence{Strength: Strong, Detail: fmt.Sprintf("git reported commit %s", sha)}
			}
		}

		for _, tc := range m.ToolCalls {
			if sha := mentionedHash(tc.Command, w.Hash); sha != "" {
				return Evidence{Strength: Strong, Detail: fmt.Sprintf("command referenced %s", sha)}
			}
			if best.Strength >= Medium || !isGitCommit(tc.Command) {
				continue
			}
			if msg := extractCommitMessage(tc.Command); msg != "" && subject != "" && normalizeSubject(msg) == subject {
				best = Evidence{Strength: Medium, Detail: fmt.Sprintf("ran git commit with message %q", msg)}
			}
		}

		if sha := mentionedHash(m.Text, w.Hash); sha != "" {
			return Evidence{Strength: Strong, Detail: fmt.Sprintf("conversation mentioned %s", sha)}
		}
	}

	return best
}

// CommitCommands lists the git commit commands a session ran, for the model
// prompt.
func CommitCommands(s Session) []string {
	var out []string
	for _, m := range s.Messages {
		for _, tc := range m.ToolCalls {
			if isGitCommit(tc.Command) {
				out = append(out, tc.Command)
			}
		}
	}
	return out
}

// FilesTouched lists distinct file paths a session's tools targeted.
func FilesTouched(s Session) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range s.Messages {
		for _, tc := range m.ToolCalls {
			if tc.FilePath == "" || seen[tc.FilePath] {
				continue
			}
			seen[tc.FilePath] = true
			out = append(out, tc.FilePath)
		}
	}
	return out
}

func isGitCommit(cmd string) bool {
	return strings.Contains(strings.ToLower(cmd), "git commit")
}

// mentionedHash returns the first hex run in text that abbreviates hash.
func mentionedHash(text, hash string) string {
	if text == "" {
		return ""
	}
	for _, cand := range hexRunRe.FindAllString(text, -1) {
		if hashMatches(hash, cand) {
			return cand
		}
	}
	return ""
}

func hashMatches(hash, abbrev string) bool {
	return len(abbrev) >= 7 && strings.HasPrefix(strings.ToLower(hash), strings.ToLower(abbrev))
}

func normalizeSubject(s string) string {
	s = firstLine(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// extractCommitMessage extracts the message from a git commit command.
func extractCommitMessage(cmd string) string {
	// -m, combined short flags such as -am, or --message
	var rest string
	for _, loc := range messageFlagRe.FindAllStringIndex(cmd, -1) {
		after := cmd[loc[1]:]
		if after != "" && strings.ContainsRune(" =\"'", rune(after[0])) {
			rest = strings.TrimLeft(after, " =")
			break
		}
	}
	if rest == "" {
		return ""
	}

	// Heredoc form: -m "$(cat <<'EOF' ... EOF)"
	if strings.HasPrefix(rest, `"$(cat <<`) {
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			return firstLine(rest[nl+1:])
		}
		return ""
	}

	quote := rest[0]
	if quote == '"' || quote == '\'' {
		end := strings.IndexByte(rest[1:], quote)
		if end >= 0 {
			return rest[1 : end+1]
		}
		return rest[1:]
	}

	// Unquoted: take until next flag or end
	if sp := strings.Index(rest, " -"); sp > 0 {
		return rest[:sp]
	}
	return rest
}

// parseCommitResult extracts SHA and message from git commit output.
// Expected format: "[branch sha] message"
func parseCommitResult(output string) (sha, msg string) {
	line := firstLine(output)
	open := strings.IndexByte(line, '[')
	close := strings.IndexByte(line, ']')
	if open < 0 || close < 0 || close <= open {
		return "", ""
	}

	// SHA is the last space-delimited word inside brackets
	parts := strings.Fields(line[open+1 : close])
	if len(parts) < 2 {
		return "", ""
	}
	candidate := parts[len(parts)-1]

	if len(candidate) < 7 {
		return "", ""
	}
	for _, c := range candidate {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return "", ""
		}
	}

	if close+2 < len(line) {
		msg = strings.TrimSpace(line[close+1:])
	}
	return candidate, msg
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx > 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
