package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Client implements Backend on top of a Completer transport.
type Client struct {
	id        ID
	completer Completer
}

// NewClient binds a transport to a backend identifier.
func NewClient(id ID, completer Completer) *Client {
	return &Client{id: id, completer: completer}
}

func (c *Client) ID() ID {
	return c.id
}

// Transport returns the name of the underlying transport.
func (c *Client) Transport() string {
	return c.completer.Name()
}

// Invoke issues one call bounded by timeout. A zero timeout leaves the
// deadline to ctx.
func (c *Client) Invoke(ctx context.Context, prompt string, timeout time.Duration) (result Result) {
	result.Backend = c.id
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	text, err := c.completer.Complete(callCtx, prompt)
	if err != nil {
		result.Error = describeFailure(callCtx, ctx, timeout, err)
		return result
	}

	result.Succeeded = true
	result.Text = strings.TrimSpace(text)
	return result
}

func describeFailure(callCtx, parent context.Context, timeout time.Duration, err error) string {
	switch {
	case parent.Err() != nil:
		return fmt.Sprintf("cancelled: %v", parent.Err())
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return fmt.Sprintf("timed out after %s", timeout)
	default:
		return err.Error()
	}
}

var _ Backend = (*Client)(nil)
