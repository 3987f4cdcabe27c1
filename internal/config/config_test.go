package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valpere/tandem/internal/pipeline"
)

// isolate keeps Load away from any real user configuration.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tandem.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Backends.A.ID != "gemini" || cfg.Backends.B.ID != "claude" {
		t.Errorf("unexpected backend ids %q/%q", cfg.Backends.A.ID, cfg.Backends.B.ID)
	}
	if cfg.Backends.A.Transport != "cli" || cfg.Backends.B.Command != "claude" {
		t.Errorf("unexpected backend defaults %+v", cfg.Backends)
	}
	if cfg.Timeouts.Call != 2*time.Minute {
		t.Errorf("call timeout = %s, want 2m", cfg.Timeouts.Call)
	}
	if cfg.History.Driver != "memory" || cfg.Scoring.Fallback != 8.0 {
		t.Errorf("unexpected defaults %+v %+v", cfg.History, cfg.Scoring)
	}
	if cfg.File != "" {
		t.Errorf("no config file expected, got %q", cfg.File)
	}

	pc, err := cfg.PipelineConfig()
	if err != nil {
		t.Fatal(err)
	}
	if pc.Routing != pipeline.DefaultRouting() {
		t.Errorf("routing = %+v, want defaults", pc.Routing)
	}
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
backends:
  a:
    id: gemini
    transport: gemini
    model: gemini-2.5-pro
  b:
    id: claude
    transport: anthropic
    api_key: ${TANDEM_TEST_KEY}
    max_tokens: 2048
timeouts:
  call: 45s
history:
  driver: sqlite
routing:
  selection_judge: a
scoring:
  fallback: 7.5
`)
	t.Setenv("TANDEM_TEST_KEY", "sk-from-file")
	t.Setenv("GEMINI_API_KEY", "gm-from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.File != path {
		t.Errorf("File = %q, want %q", cfg.File, path)
	}
	if cfg.Backends.A.Model != "gemini-2.5-pro" || cfg.Backends.A.APIKey != "gm-from-env" {
		t.Errorf("unexpected backend a %+v", cfg.Backends.A)
	}
	if cfg.Backends.B.APIKey != "sk-from-file" || cfg.Backends.B.MaxTokens != 2048 {
		t.Errorf("unexpected backend b %+v", cfg.Backends.B)
	}
	if cfg.Timeouts.Call != 45*time.Second || cfg.History.Driver != "sqlite" {
		t.Errorf("unexpected timeouts/history %+v %+v", cfg.Timeouts, cfg.History)
	}

	pc, err := cfg.PipelineConfig()
	if err != nil {
		t.Fatal(err)
	}
	if pc.Routing.SelectionJudge != pipeline.SideA || pc.Routing.MergeJudge != pipeline.SideA {
		t.Errorf("unexpected routing %+v", pc.Routing)
	}
	if pc.FallbackScore != 7.5 || pc.Timeout != 45*time.Second {
		t.Errorf("unexpected pipeline config %+v", pc)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("TANDEM_TIMEOUTS_CALL", "10s")
	t.Setenv("TANDEM_BACKENDS_A_ID", "local")
	t.Setenv("TANDEM_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeouts.Call != 10*time.Second {
		t.Errorf("call timeout = %s, want 10s", cfg.Timeouts.Call)
	}
	if cfg.Backends.A.ID != "local" || cfg.Log.Level != "debug" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Backends.A, cfg.Log)
	}
}

func TestLoad_XDGConfig(t *testing.T) {
	isolate(t)
	dir := os.Getenv("XDG_CONFIG_HOME")
	if err := os.MkdirAll(filepath.Join(dir, "tandem"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tandem", "config.yaml"), []byte("log:\n  format: json\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format = %q, want json", cfg.Log.Format)
	}
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"same ids", "backends:\n  b:\n    id: gemini\n", "share the id"},
		{"bad driver", "history:\n  driver: postgres\n", "history driver"},
		{"bad routing", "routing:\n  merge_judge: c\n", "routing.merge_judge"},
		{"bad fallback", "scoring:\n  fallback: 11\n", "fallback score"},
		{"negative timeout", "timeouts:\n  call: -1s\n", "negative call timeout"},
		{"bad yaml", "backends: [\n", "reading config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for an explicit missing file")
	}
}
