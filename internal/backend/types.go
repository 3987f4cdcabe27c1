// Package backend is the invocation layer for the two collaborating LLM
// backends. A Client turns one prompt into one Result; all failures are
// reported as data, never as a returned error.
package backend

import (
	"context"
	"errors"
	"time"
)

// ID identifies one of the two backends.
type ID string

// Default identifiers of Model A and Model B.
const (
	DefaultA ID = "gemini"
	DefaultB ID = "claude"
)

// ErrUnknownTransport is returned when the configured transport is unsupported.
var ErrUnknownTransport = errors.New("unknown backend transport")

// ServiceConfig describes how to reach one backend.
type ServiceConfig struct {
	ID        string   `mapstructure:"id" json:"id" yaml:"id"`
	Transport string   `mapstructure:"transport" json:"transport" yaml:"transport"`
	Command   string   `mapstructure:"command" json:"command" yaml:"command"`
	Args      []string `mapstructure:"args" json:"args" yaml:"args"`
	Model     string   `mapstructure:"model" json:"model" yaml:"model"`
	BaseURL   string   `mapstructure:"base_url" json:"base_url" yaml:"base_url"`
	APIKey    string   `mapstructure:"api_key" json:"-" yaml:"-"`
	MaxTokens int      `mapstructure:"max_tokens" json:"max_tokens" yaml:"max_tokens"`
}

// Result is the outcome of exactly one backend invocation.
type Result struct {
	Backend   ID            `json:"backend"`
	Succeeded bool          `json:"succeeded"`
	Text      string        `json:"text"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency"`
}

// Backend sends a single prompt to one LLM backend.
type Backend interface {
	ID() ID
	Invoke(ctx context.Context, prompt string, timeout time.Duration) Result
}

// Completer is the transport behind a Client: it performs one request and
// returns the raw reply text.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}
