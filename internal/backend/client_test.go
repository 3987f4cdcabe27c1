package backend

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type funcCompleter struct {
	fn    func(ctx context.Context, prompt string) (string, error)
	calls atomic.Int32
}

func (f *funcCompleter) Name() string { return "func" }

func (f *funcCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	return f.fn(ctx, prompt)
}

func TestClient_Invoke_Success(t *testing.T) {
	c := NewClient("gemini", &funcCompleter{fn: func(ctx context.Context, prompt string) (string, error) {
		return "  answer to " + prompt + "\n\n", nil
	}})

	res := c.Invoke(context.Background(), "question", time.Second)

	if !res.Succeeded {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.Text != "answer to question" {
		t.Errorf("expected trimmed text, got %q", res.Text)
	}
	if res.Backend != "gemini" {
		t.Errorf("expected backend 'gemini', got %q", res.Backend)
	}
	if res.Error != "" {
		t.Errorf("expected no error, got %q", res.Error)
	}
	if res.Latency <= 0 {
		t.Error("expected positive latency")
	}
}

func TestClient_Invoke_KeepsInnerFormatting(t *testing.T) {
	c := NewClient("claude", &funcCompleter{fn: func(ctx context.Context, prompt string) (string, error) {
		return "line one\n\n  indented line\n", nil
	}})

	res := c.Invoke(context.Background(), "p", 0)

	if res.Text != "line one\n\n  indented line" {
		t.Errorf("unexpected text %q", res.Text)
	}
}

func TestClient_Invoke_FailureIsData(t *testing.T) {
	c := NewClient("claude", &funcCompleter{fn: func(ctx context.Context, prompt string) (string, error) {
		return "partial", errors.New("exit status 1: rate limited")
	}})

	res := c.Invoke(context.Background(), "p", time.Second)

	if res.Succeeded {
		t.Fatal("expected failure")
	}
	if res.Text != "" {
		t.Errorf("expected empty text on failure, got %q", res.Text)
	}
	if !strings.Contains(res.Error, "rate limited") {
		t.Errorf("expected diagnostic in error, got %q", res.Error)
	}
}

func TestClient_Invoke_Timeout(t *testing.T) {
	c := NewClient("gemini", &funcCompleter{fn: func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}})

	start := time.Now()
	res := c.Invoke(context.Background(), "p", 20*time.Millisecond)

	if res.Succeeded {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Errorf("expected timeout diagnostic, got %q", res.Error)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout was not enforced")
	}
}

func TestClient_Invoke_Cancelled(t *testing.T) {
	c := NewClient("gemini", &funcCompleter{fn: func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.Invoke(ctx, "p", time.Minute)

	if res.Succeeded {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "cancelled") {
		t.Errorf("expected cancellation diagnostic, got %q", res.Error)
	}
}

func TestClient_Invoke_Concurrent(t *testing.T) {
	fc := &funcCompleter{fn: func(ctx context.Context, prompt string) (string, error) {
		return prompt, nil
	}}
	c := NewClient("gemini", fc)

	results := InvokeAll(context.Background(), time.Second,
		Call{Backend: c, Prompt: "one"},
		Call{Backend: c, Prompt: "two"},
		Call{Backend: c, Prompt: "three"},
	)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"one", "two", "three"} {
		if results[i].Text != want {
			t.Errorf("result %d: expected %q, got %q", i, want, results[i].Text)
		}
	}
	if fc.calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", fc.calls.Load())
	}
}

func TestInvokeAll_RunsConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	slow := NewClient("claude", &funcCompleter{fn: func(ctx context.Context, prompt string) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	}})

	InvokeAll(context.Background(), time.Second,
		Call{Backend: slow, Prompt: "a"},
		Call{Backend: slow, Prompt: "b"},
	)

	if peak.Load() != 2 {
		t.Errorf("expected both calls in flight together, peak was %d", peak.Load())
	}
}

func TestInvokeAll_FailureDoesNotCancelSibling(t *testing.T) {
	failing := NewClient("gemini", &funcCompleter{fn: func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("boom")
	}})
	slow := NewClient("claude", &funcCompleter{fn: func(ctx context.Context, prompt string) (string, error) {
		select {
		case <-time.After(30 * time.Millisecond):
			return "survived", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}})

	results := InvokeAll(context.Background(), time.Second,
		Call{Backend: failing, Prompt: "a"},
		Call{Backend: slow, Prompt: "b"},
	)

	if results[0].Succeeded {
		t.Error("expected first call to fail")
	}
	if !results[1].Succeeded || results[1].Text != "survived" {
		t.Errorf("expected sibling to survive, got %+v", results[1])
	}
}
