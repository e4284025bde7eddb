package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ParseFile reads and parses a Claude Code JSONL transcript file.
func ParseFile(path string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a JSONL transcript from a reader. Undecodable lines and
// conversation records without a timestamp or session id are skipped and
// counted rather than failing the whole transcript.
func Parse(r io.Reader) (*Transcript, error) {
	t := &Transcript{}
	br := bufio.NewReaderSize(r, 1024*1024)

	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			t.add(line)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read transcript: %w", err)
		}
	}

	return t, nil
}

func (t *Transcript) add(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	var entry Entry
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Skipped++
		return
	}

	if !isConversation(entry.Type) {
		return
	}
	if entry.Timestamp.IsZero() || entry.SessionID == "" {
		t.Skipped++
		return
	}

	t.Entries = append(t.Entries, entry)
}

func isConversation(typ string) bool {
	return typ == "user" || typ == "assistant"
}

// RawMessage maps an entry to a conversation record. Returns false for
// system-injected entries and entries without a message body.
func (e Entry) RawMessage() (RawMessage, bool) {
	if e.IsMeta || e.Message == nil {
		return RawMessage{}, false
	}

	var role Role
	switch e.Type {
	case "assistant":
		role = RoleAssistant
	case "user":
		role = RoleHuman
		if onlyToolResults(e.Message.Content) {
			role = RoleTool
		}
	default:
		return RawMessage{}, false
	}

	return RawMessage{
		ID:        e.UUID,
		SessionID: e.SessionID,
		Workspace: e.CWD,
		Timestamp: e.Timestamp.UTC(),
		Role:      role,
		Content:   e.Message.Content,
	}, true
}

// onlyToolResults reports whether a user payload carries tool output and
// nothing the human typed.
func onlyToolResults(c Content) bool {
	if c.Kind != ContentBlocks || len(c.Blocks) == 0 {
		return false
	}
	for _, b := range c.Blocks {
		if b.Type != BlockToolResult {
			return false
		}
	}
	return true
}

// PlainText flattens a payload's readable text: the string itself, or the
// text blocks joined by newlines. Tool and thinking blocks contribute nothing.
func PlainText(c Content) string {
	switch c.Kind {
	case ContentString:
		return c.Text
	case ContentBlocks:
		var buf bytes.Buffer
		for _, b := range c.Blocks {
			if b.Type != BlockText || b.Text == "" {
				continue
			}
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(b.Text)
		}
		return buf.String()
	default:
		return ""
	}
}
