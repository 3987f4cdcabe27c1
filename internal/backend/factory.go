package backend

import (
	"fmt"
	"strings"
)

// New builds a Client from configuration. An empty transport selects the
// command-line transport, with the backend id as the command name.
func New(cfg ServiceConfig) (*Client, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("backend id is required")
	}
	id := ID(cfg.ID)

	switch strings.ToLower(cfg.Transport) {
	case "cli", "":
		command := cfg.Command
		if command == "" {
			command = cfg.ID
		}
		return NewClient(id, NewCLICompleter(command, cfg.Args)), nil
	case "ollama":
		return NewClient(id, NewOllamaCompleter(cfg.BaseURL, cfg.Model)), nil
	case "openrouter":
		return NewClient(id, NewOpenRouterCompleter(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens)), nil
	case "anthropic":
		c, err := NewAnthropicCompleter(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return NewClient(id, c), nil
	case "gemini":
		c, err := NewGeminiCompleter(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return NewClient(id, c), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransport, cfg.Transport)
	}
}
