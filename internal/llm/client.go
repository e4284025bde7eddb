package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	"github.com/suykerbuyk/vibe-journal/internal/config"
	"github.com/suykerbuyk/vibe-journal/internal/log"
)

// ErrEmptyResponse is returned when the model produced no choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// Request is one self-contained model call. Nothing carries over between
// requests.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
	JSONMode    bool
}

// Response is the text a model produced plus its token accounting.
type Response struct {
	Text         string
	FinishReason string
	InputTokens  int
	OutputTokens int
}

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client is a Completer over any OpenAI-compatible chat completions API.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// New returns a client for cfg, or nil when the model is disabled or its API
// key is not set. Callers treat nil as "no model configured".
func New(cfg config.ModelConfig) *Client {
	if !cfg.Enabled {
		return nil
	}
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		log.Warn().Str("env", cfg.APIKeyEnv).Msg("model API key not set, generation disabled")
		return nil
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxOutputTokens,
		temperature: cfg.Temperature,
	}
}

// Model returns the configured model id.
func (c *Client) Model() string { return c.model }

// Complete performs one chat completion. Zero MaxTokens and Temperature in
// req fall back to the configured values.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	creq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if creq.MaxTokens == 0 {
		creq.MaxTokens = c.maxTokens
	}
	if creq.Temperature == 0 {
		creq.Temperature = c.temperature
	}
	if req.JSONMode {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	log.Debug().
		Str("model", c.model).
		Int("prompt_chars", len(req.System)+len(req.Prompt)).
		Bool("json_mode", req.JSONMode).
		Msg("model request")

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	out := &Response{
		Text:         resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}

	log.Debug().
		Str("finish_reason", out.FinishReason).
		Int("input_tokens", out.InputTokens).
		Int("output_tokens", out.OutputTokens).
		Msg("model response")

	return out, nil
}

var (
	codeBlockRe  = regexp.MustCompile("```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")
	jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)
)

// DecodeJSON unmarshals a model reply into v, tolerating a fenced code block
// or prose around the JSON object.
func DecodeJSON(content string, v any) error {
	content = strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}
	if m := codeBlockRe.FindStringSubmatch(content); len(m) > 1 {
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), v); err == nil {
			return nil
		}
	}
	if m := jsonObjectRe.FindString(content); m != "" {
		if err := json.Unmarshal([]byte(m), v); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no JSON object in model reply (%d chars)", len(content))
}

// Truncate cuts text to maxChars, preferring a newline break in
// the back half, and marks the cut.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}

	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	truncated := text[:cut]
	if idx := strings.LastIndex(truncated, "\n"); idx > maxChars/2 {
		truncated = truncated[:idx]
	}

	return truncated + "\n[...truncated]"
}
