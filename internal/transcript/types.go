package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Role is who produced a conversation message.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Entry represents a single line in a Claude Code JSONL transcript.
type Entry struct {
	Type       string    `json:"type"`
	UUID       string    `json:"uuid"`
	ParentUUID string    `json:"parentUuid"`
	SessionID  string    `json:"sessionId"`
	Timestamp  time.Time `json:"timestamp"`
	CWD        string    `json:"cwd"`
	GitBranch  string    `json:"gitBranch"`

	Message *Message `json:"message,omitempty"`

	// Present on system messages
	Subtype string `json:"subtype,omitempty"`

	// IsMeta marks system-injected messages (CLAUDE.md, context reminders).
	IsMeta bool `json:"isMeta,omitempty"`
}

// Message is the inner message object on user/assistant entries.
type Message struct {
	Role    string  `json:"role"`
	Model   string  `json:"model,omitempty"`
	ID      string  `json:"id,omitempty"`
	Content Content `json:"content"`
	Usage   *Usage  `json:"usage,omitempty"`
}

// Usage tracks token consumption for an assistant message.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ContentKind tags which shape a message payload arrived in.
type ContentKind int

const (
	ContentEmpty ContentKind = iota
	ContentString
	ContentBlocks
)

func (k ContentKind) String() string {
	switch k {
	case ContentString:
		return "string"
	case ContentBlocks:
		return "blocks"
	default:
		return "empty"
	}
}

// Content is a message payload: either a bare string or a list of typed
// blocks. Exactly one of Text or Blocks is meaningful, selected by Kind.
type Content struct {
	Kind   ContentKind
	Text   string
	Blocks []Block
}

// StringContent builds a string-shaped payload.
func StringContent(s string) Content {
	return Content{Kind: ContentString, Text: s}
}

// BlockContent builds a block-list payload.
func BlockContent(blocks ...Block) Content {
	return Content{Kind: ContentBlocks, Blocks: blocks}
}

// UnmarshalJSON accepts a JSON string, an array of blocks, or null.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Content{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = StringContent(s)
		return nil
	case '[':
		var blocks []Block
		if err := json.Unmarshal(data, &blocks); err != nil {
			return err
		}
		*c = BlockContent(blocks...)
		return nil
	}
	return fmt.Errorf("content: unsupported JSON shape %q", data[:1])
}

// MarshalJSON writes the payload back in its original shape.
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ContentString:
		return json.Marshal(c.Text)
	case ContentBlocks:
		if c.Blocks == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.Blocks)
	default:
		return []byte("null"), nil
	}
}

// Block types seen in Claude Code content arrays.
const (
	BlockText       = "text"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Block represents one block in a content array.
type Block struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	Thinking  string         `json:"thinking,omitempty"`
	ID        string         `json:"id,omitempty"`          // tool_use id
	Name      string         `json:"name,omitempty"`        // tool name
	Input     map[string]any `json:"input,omitempty"`       // tool input
	ToolUseID string         `json:"tool_use_id,omitempty"` // tool_result
	Content   *Content       `json:"content,omitempty"`     // tool_result payload
	IsError   bool           `json:"is_error,omitempty"`
}

// InputString returns a string field of a tool_use input, or "".
func (b Block) InputString(key string) string {
	v, _ := b.Input[key].(string)
	return v
}

// RawMessage is a conversation record as collected from a transcript,
// before any reshaping of its payload.
type RawMessage struct {
	ID        string // record uuid, used to drop duplicates across copies
	SessionID string
	Workspace string
	Timestamp time.Time
	Role      Role
	Content   Content
}

// Transcript holds the decoded entries of one JSONL source.
type Transcript struct {
	Entries []Entry
	// Skipped counts lines that could not be decoded or lacked the fields
	// every conversation record needs.
	Skipped int
}
