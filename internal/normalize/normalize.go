package normalize

import (
	"strings"
	"time"

	"github.com/suykerbuyk/vibe-journal/internal/sanitize"
	"github.com/suykerbuyk/vibe-journal/internal/transcript"
)

// Kind classifies a normalized message.
type Kind string

const (
	KindText           Kind = "text"
	KindToolInvocation Kind = "tool-invocation"
	KindToolResult     Kind = "tool-result"
	KindClear          Kind = "clear"
)

// ToolCall is one tool invocation carried by an assistant message.
type ToolCall struct {
	Name     string
	Command  string // Bash command, if any
	FilePath string // target of file tools, if any
}

// Message is a conversation record reduced to plain text.
type Message struct {
	SessionID string
	Timestamp time.Time
	Speaker   transcript.Role
	Text      string
	Kind      Kind

	// ToolName is the first tool invoked, for tool-invocation messages.
	ToolName  string
	ToolCalls []ToolCall
	// ToolOutput holds tool_result text. It is never part of Text.
	ToolOutput string
}

// IsToolInvocation reports whether the message invoked a tool.
func (m Message) IsToolInvocation() bool {
	return m.Kind == KindToolInvocation
}

// Normalize maps raw records one-to-one, preserving order.
func Normalize(raw []transcript.RawMessage) []Message {
	out := make([]Message, 0, len(raw))
	for _, r := range raw {
		out = append(out, normalizeOne(r))
	}
	return out
}

func normalizeOne(r transcript.RawMessage) Message {
	m := Message{
		SessionID: r.SessionID,
		Timestamp: r.Timestamp,
		Speaker:   r.Role,
		Kind:      KindText,
	}

	var rawText string
	var sawToolResult, sawOther bool

	switch r.Content.Kind {
	case transcript.ContentString:
		rawText = r.Content.Text
		sawOther = true
	case transcript.ContentBlocks:
		var texts, outputs []string
		for _, b := range r.Content.Blocks {
			switch b.Type {
			case transcript.BlockText:
				if b.Text != "" {
					texts = append(texts, b.Text)
				}
				sawOther = true
			case transcript.BlockToolUse:
				m.ToolCalls = append(m.ToolCalls, toolCall(b))
				sawOther = true
			case transcript.BlockToolResult:
				sawToolResult = true
				if b.Content != nil {
					if s := transcript.PlainText(*b.Content); s != "" {
						outputs = append(outputs, s)
					}
				}
			case transcript.BlockThinking:
				// Reasoning is not conversation.
			default:
				sawOther = true
			}
		}
		rawText = strings.Join(texts, "\n")
		m.ToolOutput = strings.Join(outputs, "\n")
	case transcript.ContentEmpty:
	}

	switch {
	case r.Role == transcript.RoleHuman && sanitize.IsClearCommand(rawText):
		m.Kind = KindClear
	case len(m.ToolCalls) > 0:
		m.Kind = KindToolInvocation
		m.ToolName = m.ToolCalls[0].Name
	case sawToolResult && !sawOther:
		m.Kind = KindToolResult
	}

	m.Text = sanitize.StripTags(rawText)
	return m
}

func toolCall(b transcript.Block) ToolCall {
	tc := ToolCall{Name: b.Name, Command: b.InputString("command")}
	if p := b.InputString("file_path"); p != "" {
		tc.FilePath = p
	} else {
		tc.FilePath = b.InputString("notebook_path")
	}
	return tc
}

// FileTools are the tools that modify files in the workspace.
var FileTools = map[string]bool{
	"Edit":         true,
	"Write":        true,
	"MultiEdit":    true,
	"NotebookEdit": true,
}

// ModifiesFiles reports whether the message invoked a file-modifying tool.
func (m Message) ModifiesFiles() bool {
	for _, tc := range m.ToolCalls {
		if FileTools[tc.Name] {
			return true
		}
	}
	return false
}
