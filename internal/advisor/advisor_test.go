package advisor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/valpere/tandem/internal/testutil"
)

func TestInterpret(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{"claude", "claude"},
		{"Claude.", "claude"},
		{"I think claude is better suited", "claude"},
		{"gemini", "gemini"},
		{"", "gemini"},
		{"no idea", "gemini"},
		{"<think>maybe claude</think>gemini", "gemini"},
	}

	for _, tt := range tests {
		if got := Interpret(tt.reply, "gemini", "claude"); string(got) != tt.want {
			t.Errorf("Interpret(%q) = %q, want %q", tt.reply, got, tt.want)
		}
	}
}

func TestAdvisor_Decide_ReplyNamesB(t *testing.T) {
	a := testutil.NewFakeBackend("gemini").Default("claude")
	adv := New(a, "claude", time.Second, nil)

	if got := adv.Decide(context.Background(), "refactor this parser"); got != "claude" {
		t.Errorf("expected claude, got %q", got)
	}

	prompts := a.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("expected exactly one classification call, got %d", len(prompts))
	}
	for _, want := range []string{"refactor this parser", "multilingual", "writing code"} {
		if !strings.Contains(prompts[0], want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
}

func TestAdvisor_Decide_OtherReplySelectsA(t *testing.T) {
	for _, reply := range []string{"gemini", "", "both would work"} {
		a := testutil.NewFakeBackend("gemini").Default(reply)
		adv := New(a, "claude", time.Second, nil)

		if got := adv.Decide(context.Background(), "write a poem"); got != "gemini" {
			t.Errorf("reply %q: expected gemini, got %q", reply, got)
		}
	}
}

func TestAdvisor_Decide_FailedCallSelectsB(t *testing.T) {
	a := testutil.NewFakeBackend("gemini").FailAll()
	adv := New(a, "claude", time.Second, nil)

	if got := adv.Decide(context.Background(), "write a poem"); got != "claude" {
		t.Errorf("expected hardcoded fallback claude, got %q", got)
	}
}

func TestAdvisor_Decide_TimeoutSelectsB(t *testing.T) {
	a := testutil.NewFakeBackend("gemini").Default("gemini").WithDelay(time.Second)
	adv := New(a, "claude", 10*time.Millisecond, nil)

	if got := adv.Decide(context.Background(), "task"); got != "claude" {
		t.Errorf("expected fallback on timeout, got %q", got)
	}
}
