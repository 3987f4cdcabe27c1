// Package testutil provides a scripted in-memory backend for tests.
package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/valpere/tandem/internal/backend"
)

type rule struct {
	contains string
	reply    string
	fail     bool
}

// FakeBackend answers prompts from a list of substring rules. The first
// matching rule wins; unmatched prompts get the default reply.
// It is safe for concurrent use.
type FakeBackend struct {
	id backend.ID

	mu           sync.Mutex
	rules        []rule
	defaultReply string
	failAll      bool
	delay        time.Duration
	prompts      []string
}

// NewFakeBackend returns a backend that replies "<id> reply" to everything.
func NewFakeBackend(id backend.ID) *FakeBackend {
	return &FakeBackend{id: id, defaultReply: string(id) + " reply"}
}

// On replies with reply to prompts containing substr.
func (f *FakeBackend) On(substr, reply string) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{contains: substr, reply: reply})
	return f
}

// FailOn fails prompts containing substr.
func (f *FakeBackend) FailOn(substr string) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{contains: substr, fail: true})
	return f
}

// FailAll fails every prompt.
func (f *FakeBackend) FailAll() *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = true
	return f
}

// Default changes the reply used when no rule matches.
func (f *FakeBackend) Default(reply string) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultReply = reply
	return f
}

// WithDelay makes every call take d, or less if the context ends first.
func (f *FakeBackend) WithDelay(d time.Duration) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

func (f *FakeBackend) ID() backend.ID {
	return f.id
}

func (f *FakeBackend) Invoke(ctx context.Context, prompt string, timeout time.Duration) backend.Result {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	delay := f.delay
	reply, fail := f.defaultReply, f.failAll
	if !fail {
		for _, r := range f.rules {
			if strings.Contains(prompt, r.contains) {
				reply, fail = r.reply, r.fail
				break
			}
		}
	}
	f.mu.Unlock()

	res := backend.Result{Backend: f.id}
	start := time.Now()

	if delay > 0 {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		select {
		case <-time.After(delay):
		case <-callCtx.Done():
			res.Error = callCtx.Err().Error()
			res.Latency = time.Since(start)
			return res
		}
	}

	res.Latency = time.Since(start)
	if fail {
		res.Error = "scripted failure"
		return res
	}
	res.Succeeded = true
	res.Text = reply
	return res
}

// Prompts returns every prompt received so far, in arrival order.
func (f *FakeBackend) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}

// Calls returns the number of invocations received.
func (f *FakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

var _ backend.Backend = (*FakeBackend)(nil)
