package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/suykerbuyk/vibe-journal/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	if c := New(config.ModelConfig{Enabled: false}); c != nil {
		t.Errorf("disabled: got %v", c)
	}
}

func TestNew_NoAPIKey(t *testing.T) {
	cfg := config.ModelConfig{Enabled: true, APIKeyEnv: "VJ_TEST_NONEXISTENT_KEY_12345"}
	if c := New(cfg); c != nil {
		t.Errorf("no key: got %v", c)
	}
}

func TestComplete_MockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key-123" {
			t.Errorf("auth: got %q", r.Header.Get("Authorization"))
		}

		var req struct {
			Model          string  `json:"model"`
			MaxTokens      int     `json:"max_tokens"`
			Temperature    float32 `json:"temperature"`
			ResponseFormat *struct {
				Type string `json:"type"`
			} `json:"response_format"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model: got %q", req.Model)
		}
		if req.MaxTokens != 500 {
			t.Errorf("max_tokens: got %d, want configured 500", req.MaxTokens)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Error("missing response_format")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "which session?" {
			t.Errorf("messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"session_ids\":[\"a\"]}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
		}`))
	}))
	defer server.Close()

	t.Setenv("VJ_TEST_KEY", "test-key-123")
	c := New(config.ModelConfig{
		Enabled:         true,
		APIKeyEnv:       "VJ_TEST_KEY",
		Model:           "test-model",
		BaseURL:         server.URL + "/v1/",
		MaxOutputTokens: 500,
		Temperature:     0.3,
	})
	if c == nil {
		t.Fatal("expected client")
	}

	resp, err := c.Complete(context.Background(), Request{System: "rules", Prompt: "which session?", JSONMode: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != `{"session_ids":["a"]}` {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.InputTokens != 42 || resp.OutputTokens != 7 {
		t.Errorf("usage = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
}

func TestComplete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	t.Setenv("VJ_TEST_KEY", "k")
	c := New(config.ModelConfig{Enabled: true, APIKeyEnv: "VJ_TEST_KEY", Model: "m", BaseURL: server.URL})
	if _, err := c.Complete(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"bare", `{"session_ids":["a"],"reasoning":"r"}`, true},
		{"fenced", "```json\n{\"session_ids\":[\"a\"]}\n```", true},
		{"prose around", `Here you go: {"session_ids":["a"]} hope that helps`, true},
		{"no json", "I cannot tell.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v struct {
				SessionIDs []string `json:"session_ids"`
			}
			err := DecodeJSON(tt.in, &v)
			if (err == nil) != tt.ok {
				t.Fatalf("err = %v, want ok=%v", err, tt.ok)
			}
			if tt.ok && (len(v.SessionIDs) != 1 || v.SessionIDs[0] != "a") {
				t.Errorf("decoded %+v", v)
			}
		})
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	got := Truncate("ééééé", 3)
	if !utf8.ValidString(got) {
		t.Fatalf("Truncate split a rune: %q", got)
	}
	if got != "é\n[...truncated]" {
		t.Errorf("got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	short := "hello world"
	if got := Truncate(short, 100); got != short {
		t.Errorf("short: got %q", got)
	}

	lines := "line one\nline two\nline three\nline four\nline five"
	got := Truncate(lines, 30)
	if !strings.HasSuffix(got, "\n[...truncated]") {
		t.Errorf("expected truncation suffix, got %q", got)
	}
	if strings.Contains(got, "line five") {
		t.Errorf("should not contain final line, got %q", got)
	}
}
