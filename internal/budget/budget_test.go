package budget

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/suykerbuyk/vibe-journal/internal/gitwindow"
	"github.com/suykerbuyk/vibe-journal/internal/normalize"
	"github.com/suykerbuyk/vibe-journal/internal/transcript"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func text(i int, body string) normalize.Message {
	return normalize.Message{
		SessionID: "s",
		Timestamp: t0.Add(time.Duration(i) * time.Second),
		Speaker:   transcript.RoleHuman,
		Text:      body,
		Kind:      normalize.KindText,
	}
}

func toolCall(i int, name string) normalize.Message {
	m := text(i, "")
	m.Speaker = transcript.RoleAssistant
	m.Kind = normalize.KindToolInvocation
	m.ToolName = name
	m.ToolCalls = []normalize.ToolCall{{Name: name, FilePath: "main.go"}}
	return m
}

func toolResult(i int) normalize.Message {
	m := text(i, "")
	m.Speaker = transcript.RoleTool
	m.Kind = normalize.KindToolResult
	m.ToolOutput = "ok"
	return m
}

func smallWindow() *gitwindow.Window {
	return &gitwindow.Window{
		Diff:  "diff --git a/main.go b/main.go\n+fmt.Println(\"hi\")\n",
		Files: []gitwindow.FileChange{{Path: "main.go", Additions: 1}},
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tt.in), got, tt.want)
		}
	}
}

func TestFit_DropsNoise(t *testing.T) {
	clr := text(3, "/clear")
	clr.Kind = normalize.KindClear

	in := []normalize.Message{
		text(0, "please add logging"),
		toolCall(1, "Read"),
		toolResult(2),
		clr,
		text(4, "   "),
		text(5, "done"),
	}

	ctx := Budgeter{Ceiling: 1000}.Fit(in, smallWindow())
	if len(ctx.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(ctx.Messages))
	}
	if ctx.NoiseCount != 4 || ctx.DroppedCount != 0 {
		t.Errorf("noise = %d dropped = %d", ctx.NoiseCount, ctx.DroppedCount)
	}
	if ctx.DiffSummarized || ctx.DiffSummary != smallWindow().Diff {
		t.Errorf("small diff should pass through unchanged")
	}
	if len(in) != 6 || in[1].Kind != normalize.KindToolInvocation {
		t.Error("input modified")
	}
}

// Reasoning that shares a message with a tool call is conversation.
func TestFit_KeepsTextBesideToolCall(t *testing.T) {
	edit := toolCall(1, "Edit")
	edit.Text = "I chose a mutex because the map is shared."

	in := []normalize.Message{text(0, "make the cache safe"), edit, toolResult(2), toolCall(3, "Read")}
	ctx := Budgeter{Ceiling: 1000}.Fit(in, smallWindow())
	if len(ctx.Messages) != 2 || ctx.Messages[1].Text != edit.Text {
		t.Fatalf("messages = %+v", ctx.Messages)
	}
	if ctx.NoiseCount != 2 {
		t.Errorf("noise = %d, want 2", ctx.NoiseCount)
	}
}

// A message that edits files is protected from trimming like its neighbours.
func TestDropNoise_TextualEditIsAdjacent(t *testing.T) {
	edit := toolCall(1, "Write")
	edit.Text = "Writing the config loader."
	kept, adjacent := dropNoise([]normalize.Message{text(0, "go ahead"), edit})
	if len(kept) != 2 || !adjacent[0] || !adjacent[1] {
		t.Errorf("kept = %d adjacent = %v", len(kept), adjacent)
	}
}

// Only tool and empty messages: no conversation survives, the diff does.
func TestFit_OnlyNoise(t *testing.T) {
	in := []normalize.Message{toolCall(0, "Bash"), toolResult(1), text(2, "")}
	ctx := Budgeter{}.Fit(in, smallWindow())
	if len(ctx.Messages) != 0 {
		t.Errorf("messages = %d, want 0", len(ctx.Messages))
	}
	if ctx.DiffSummary == "" {
		t.Error("diff summary should still be present")
	}
	if ctx.TokenEstimate != EstimateTokens(ctx.DiffSummary) {
		t.Errorf("TokenEstimate = %d", ctx.TokenEstimate)
	}
}

// A 40k-token diff is replaced by its structural summary.
func TestFit_LargeDiffSummarized(t *testing.T) {
	w := &gitwindow.Window{
		Diff: strings.Repeat("+line of generated code\n", 40000*4/24+1),
		Files: []gitwindow.FileChange{
			{Path: "gen/big.go", Additions: 6700},
			{Path: "cmd/main.go", Additions: 3, Deletions: 1},
		},
	}
	if EstimateTokens(w.Diff) < 40000 {
		t.Fatalf("fixture too small: %d", EstimateTokens(w.Diff))
	}

	ctx := Budgeter{Ceiling: 60000, DiffThreshold: 15000}.Fit([]normalize.Message{text(0, "generate the code")}, w)
	if !ctx.DiffSummarized {
		t.Fatal("expected diff to be summarized")
	}
	for _, want := range []string{"2 files changed", "+6703 -1", "gen/big.go (+6700 -0)", "cmd/main.go (+3 -1)"} {
		if !strings.Contains(ctx.DiffSummary, want) {
			t.Errorf("summary missing %q:\n%s", want, ctx.DiffSummary)
		}
	}
	if len(ctx.Messages) != 1 {
		t.Errorf("messages = %d", len(ctx.Messages))
	}
}

func TestFit_TrimsOldestPreservingRecentAndAdjacent(t *testing.T) {
	body := strings.Repeat("x", 396) // with the "NN " prefix: 100 tokens + 4 overhead
	var in []normalize.Message
	for i := 0; i < 10; i++ {
		in = append(in, text(i*10, fmt.Sprintf("%02d %s", i, body)))
	}
	// An edit between 01 and 02 makes both of them file-adjacent.
	in = append(in[:2], append([]normalize.Message{toolCall(15, "Edit"), toolResult(16)}, in[2:]...)...)

	// Room for 5 messages.
	ctx := Budgeter{Ceiling: 5*104 + 10, PreserveRecent: 3}.Fit(in, nil)

	var got []string
	for _, m := range ctx.Messages {
		got = append(got, m.Text[:2])
	}
	if strings.Join(got, ",") != "01,02,07,08,09" {
		t.Errorf("kept = %v, want the edit neighbours and the three most recent", got)
	}
	if ctx.DroppedCount != 5 {
		t.Errorf("DroppedCount = %d, want 5", ctx.DroppedCount)
	}
	if ctx.TokenEstimate > ctx.Ceiling {
		t.Errorf("TokenEstimate %d > ceiling %d", ctx.TokenEstimate, ctx.Ceiling)
	}
}

func TestFit_DropsProtectedWhenNecessary(t *testing.T) {
	body := strings.Repeat("y", 396)
	in := []normalize.Message{text(0, "a"+body), text(1, "b"+body), text(2, "c"+body)}

	ctx := Budgeter{Ceiling: 2 * 104, PreserveRecent: 10}.Fit(in, nil)
	if len(ctx.Messages) != 2 || !strings.HasPrefix(ctx.Messages[0].Text, "b") {
		t.Errorf("expected oldest protected message dropped, got %d messages", len(ctx.Messages))
	}
}

func TestFit_TruncatesLoneSurvivor(t *testing.T) {
	huge := strings.Repeat("word ", 10000)
	ctx := Budgeter{Ceiling: 100}.Fit([]normalize.Message{text(0, huge)}, nil)
	if len(ctx.Messages) != 1 {
		t.Fatalf("messages = %d", len(ctx.Messages))
	}
	if !strings.HasSuffix(ctx.Messages[0].Text, "[...truncated]") {
		t.Error("expected truncation marker")
	}
	if ctx.TokenEstimate > 100 {
		t.Errorf("TokenEstimate = %d", ctx.TokenEstimate)
	}
}

func TestFit_CeilingAlwaysHolds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		var in []normalize.Message
		n := rng.Intn(40)
		for i := 0; i < n; i++ {
			switch rng.Intn(4) {
			case 0:
				in = append(in, toolCall(i, "Edit"))
			case 1:
				in = append(in, toolResult(i))
			default:
				in = append(in, text(i, strings.Repeat("z", rng.Intn(5000))))
			}
		}
		w := &gitwindow.Window{
			Diff:  strings.Repeat("d", rng.Intn(20000)),
			Files: []gitwindow.FileChange{{Path: "f.go", Additions: 1}},
		}
		b := Budgeter{Ceiling: 50 + rng.Intn(3000), DiffThreshold: 1 + rng.Intn(4000), PreserveRecent: rng.Intn(12)}

		ctx := b.Fit(in, w)
		if ctx.TokenEstimate > ctx.Ceiling {
			t.Fatalf("trial %d: estimate %d > ceiling %d", trial, ctx.TokenEstimate, ctx.Ceiling)
		}
		if got := EstimateTokens(ctx.DiffSummary) + totalTokens(ctx.Messages); got != ctx.TokenEstimate {
			t.Fatalf("trial %d: TokenEstimate %d, recomputed %d", trial, ctx.TokenEstimate, got)
		}
		for i := 1; i < len(ctx.Messages); i++ {
			if ctx.Messages[i].Timestamp.Before(ctx.Messages[i-1].Timestamp) {
				t.Fatalf("trial %d: order broken", trial)
			}
		}
	}
}

func TestFit_Idempotent(t *testing.T) {
	in := []normalize.Message{text(0, strings.Repeat("a", 900)), toolCall(1, "Write"), text(2, strings.Repeat("b", 900))}
	b := Budgeter{Ceiling: 300, PreserveRecent: 1}
	first := b.Fit(in, smallWindow())
	second := b.Fit(in, smallWindow())
	if first.TokenEstimate != second.TokenEstimate || len(first.Messages) != len(second.Messages) || first.DiffSummary != second.DiffSummary {
		t.Errorf("runs differ: %+v vs %+v", first, second)
	}
}
