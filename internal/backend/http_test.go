package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestOllamaCompleter_Defaults(t *testing.T) {
	c := NewOllamaCompleter("", "")

	if c.baseURL != "http://localhost:11434" {
		t.Errorf("expected default base URL, got %q", c.baseURL)
	}
	if c.model != defaultOllamaModel {
		t.Errorf("expected default model, got %q", c.model)
	}
	if c.Name() != "ollama" {
		t.Errorf("expected name 'ollama', got %q", c.Name())
	}
}

func TestOllamaCompleter_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Model != "mistral:7b" {
			t.Errorf("expected model 'mistral:7b', got %q", req.Model)
		}
		if req.Stream {
			t.Error("expected stream=false")
		}
		json.NewEncoder(w).Encode(ollamaResponse{Response: "reply to " + req.Prompt})
	}))
	defer server.Close()

	c := NewOllamaCompleter(server.URL, "mistral:7b")
	out, err := c.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "reply to hi" {
		t.Errorf("expected 'reply to hi', got %q", out)
	}
}

func TestOllamaCompleter_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	res := NewClient("gemini", NewOllamaCompleter(server.URL, "")).Invoke(context.Background(), "hi", 0)
	if res.Succeeded {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "503") {
		t.Errorf("expected status in error, got %q", res.Error)
	}
}

func TestOpenRouterCompleter_NoAPIKey(t *testing.T) {
	c := NewOpenRouterCompleter("", "", "", 0)

	if _, err := c.Complete(context.Background(), "hi"); err == nil {
		t.Error("expected error without API key")
	}
}

func TestOpenRouterCompleter_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "hi" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		if req.MaxTokens != 4096 {
			t.Errorf("expected default max tokens 4096, got %d", req.MaxTokens)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer server.Close()

	c := NewOpenRouterCompleter("test-key", server.URL, "some/model", 0)
	out, err := c.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Errorf("expected 'hello', got %q", out)
	}
}

func TestOpenRouterCompleter_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := NewOpenRouterCompleter("k", server.URL, "", 0)
	if _, err := c.Complete(context.Background(), "hi"); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestOpenRouterCompleter_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer server.Close()

	c := NewOpenRouterCompleter("k", server.URL, "", 0)
	_, err := c.Complete(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status code in error, got %v", err)
	}
}

func TestAnthropicCompleter_NoAPIKey(t *testing.T) {
	if _, err := NewAnthropicCompleter("", "", "", 0); err == nil {
		t.Error("expected error without API key")
	}
}

func TestAnthropicCompleter_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != "claude-test" {
			t.Errorf("expected model 'claude-test', got %v", body["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "first "}, {"type": "text", "text": "second"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer server.Close()

	c, err := NewAnthropicCompleter("test-key", server.URL, "claude-test", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := c.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "first second" {
		t.Errorf("expected 'first second', got %q", out)
	}
}

func TestAnthropicCompleter_BadRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer server.Close()

	c, err := NewAnthropicCompleter("test-key", server.URL, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Complete(context.Background(), "hi"); err == nil {
		t.Error("expected error for 400 response")
	}
}

func TestGeminiCompleter_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Contents) != 1 || len(body.Contents[0].Parts) != 1 || body.Contents[0].Parts[0].Text != "hi" {
			t.Errorf("unexpected request body %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hello "},{"text":"there"}]}}]}`))
	}))
	defer server.Close()

	c, err := NewGeminiCompleter("test-key", server.URL, "gemini-test", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := c.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello there" {
		t.Errorf("expected 'hello there', got %q", out)
	}
}

func TestGeminiCompleter_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	c, err := NewGeminiCompleter("test-key", server.URL, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Complete(context.Background(), "hi"); err == nil {
		t.Error("expected error when no candidates are returned")
	}
}

func TestGeminiCompleter_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("expected api key header, got %q", r.Header.Get("x-goog-api-key"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	c, err := NewGeminiCompleter("test-key", server.URL, "models/gemini-test", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = c.Complete(context.Background(), "hi")

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *googleapi.Error, got %v", err)
	}
	if apiErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected code 429, got %d", apiErr.Code)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("expected API message in error, got %q", err)
	}
}

func TestGeminiCompleter_NoAPIKey(t *testing.T) {
	if _, err := NewGeminiCompleter("", "", "", 0); err == nil {
		t.Error("expected error without API key")
	}
}

func TestNew_Transports(t *testing.T) {
	tests := []struct {
		name      string
		cfg       ServiceConfig
		transport string
	}{
		{"default cli", ServiceConfig{ID: "gemini"}, "cli"},
		{"ollama", ServiceConfig{ID: "gemini", Transport: "ollama"}, "ollama"},
		{"openrouter", ServiceConfig{ID: "claude", Transport: "OpenRouter", APIKey: "k"}, "openrouter"},
		{"anthropic", ServiceConfig{ID: "claude", Transport: "anthropic", APIKey: "k"}, "anthropic"},
		{"gemini", ServiceConfig{ID: "gemini", Transport: "gemini", APIKey: "k"}, "gemini"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(c.ID()) != tt.cfg.ID {
				t.Errorf("expected id %q, got %q", tt.cfg.ID, c.ID())
			}
			if c.Transport() != tt.transport {
				t.Errorf("expected transport %q, got %q", tt.transport, c.Transport())
			}
		})
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(ServiceConfig{}); err == nil {
		t.Error("expected error for missing id")
	}

	_, err := New(ServiceConfig{ID: "x", Transport: "carrier-pigeon"})
	if !errors.Is(err, ErrUnknownTransport) {
		t.Errorf("expected ErrUnknownTransport, got %v", err)
	}

	if _, err := New(ServiceConfig{ID: "claude", Transport: "anthropic"}); err == nil {
		t.Error("expected error for anthropic without API key")
	}
}
