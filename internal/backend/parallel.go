package backend

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Call pairs a backend with the prompt it should receive.
type Call struct {
	Backend Backend
	Prompt  string
}

// InvokeAll issues every call concurrently and waits for all of them.
// Results keep the order of calls. A failing call never cancels its
// siblings.
func InvokeAll(ctx context.Context, timeout time.Duration, calls ...Call) []Result {
	results := make([]Result, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			results[i] = call.Backend.Invoke(ctx, call.Prompt, timeout)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
