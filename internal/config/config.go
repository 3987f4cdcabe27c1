// Package config loads tandem configuration from defaults, an optional YAML
// file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/tandem/internal/backend"
	"github.com/valpere/tandem/internal/pipeline"
)

// EnvPrefix prefixes every environment override, e.g. TANDEM_TIMEOUTS_CALL.
const EnvPrefix = "TANDEM"

// Config holds all configuration for tandem.
type Config struct {
	Backends BackendsConfig `mapstructure:"backends" yaml:"backends"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Routing  RoutingConfig  `mapstructure:"routing" yaml:"routing"`
	Scoring  ScoringConfig  `mapstructure:"scoring" yaml:"scoring"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch"`

	// File is the configuration file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// BackendsConfig describes Model A and Model B.
type BackendsConfig struct {
	A backend.ServiceConfig `mapstructure:"a" yaml:"a"`
	B backend.ServiceConfig `mapstructure:"b" yaml:"b"`
}

// TimeoutsConfig holds timeout settings.
type TimeoutsConfig struct {
	Call time.Duration `mapstructure:"call" yaml:"call"`
}

// HistoryConfig selects the run history store.
type HistoryConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// RoutingConfig names the side ("a" or "b") that performs each
// single-backend call.
type RoutingConfig struct {
	DiscussionLead string `mapstructure:"discussion_lead" yaml:"discussion_lead"`
	DraftDecider   string `mapstructure:"draft_decider" yaml:"draft_decider"`
	DraftTieBreak  string `mapstructure:"draft_tie_break" yaml:"draft_tie_break"`
	MergeJudge     string `mapstructure:"merge_judge" yaml:"merge_judge"`
	SelectionJudge string `mapstructure:"selection_judge" yaml:"selection_judge"`
	SynthesisJudge string `mapstructure:"synthesis_judge" yaml:"synthesis_judge"`
}

// ScoringConfig holds scoring settings.
type ScoringConfig struct {
	Fallback float64 `mapstructure:"fallback" yaml:"fallback"`
}

// BatchConfig holds settings for multi-task runs.
type BatchConfig struct {
	Parallelism int `mapstructure:"parallelism" yaml:"parallelism"`
}

// apiKeyEnv maps hosted transports to the conventional variable holding
// their key.
var apiKeyEnv = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

// Load reads configuration. When path is empty it looks for ./tandem.yaml,
// then $XDG_CONFIG_HOME/tandem/config.yaml; a missing file is not an error.
// Precedence (highest to lowest):
// 1. Environment variables (TANDEM_*, then provider API key variables)
// 2. Config file
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config from %s: %w", path, err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	for _, sc := range []*backend.ServiceConfig{&cfg.Backends.A, &cfg.Backends.B} {
		sc.APIKey = os.ExpandEnv(sc.APIKey)
		if sc.APIKey == "" {
			if name, ok := apiKeyEnv[strings.ToLower(sc.Transport)]; ok {
				sc.APIKey = os.Getenv(name)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be caught by decoding.
func (c *Config) Validate() error {
	if c.Backends.A.ID == "" || c.Backends.B.ID == "" {
		return errors.New("config: both backends need an id")
	}
	if c.Backends.A.ID == c.Backends.B.ID {
		return fmt.Errorf("config: backends a and b share the id %q", c.Backends.A.ID)
	}
	if c.Timeouts.Call < 0 {
		return fmt.Errorf("config: negative call timeout %s", c.Timeouts.Call)
	}
	if c.Scoring.Fallback < pipeline.MinScore || c.Scoring.Fallback > pipeline.MaxScore {
		return fmt.Errorf("config: fallback score %v outside [%v, %v]", c.Scoring.Fallback, pipeline.MinScore, pipeline.MaxScore)
	}
	switch c.History.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("config: unknown history driver %q", c.History.Driver)
	}
	if _, err := c.routing(); err != nil {
		return err
	}
	return nil
}

// PipelineConfig converts the settings used by the collaboration pipeline.
func (c *Config) PipelineConfig() (pipeline.Config, error) {
	r, err := c.routing()
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Timeout:       c.Timeouts.Call,
		Routing:       r,
		FallbackScore: c.Scoring.Fallback,
	}, nil
}

func (c *Config) routing() (pipeline.Routing, error) {
	var r pipeline.Routing
	fields := []struct {
		key  string
		val  string
		dest *pipeline.Side
	}{
		{"discussion_lead", c.Routing.DiscussionLead, &r.DiscussionLead},
		{"draft_decider", c.Routing.DraftDecider, &r.DraftDecider},
		{"draft_tie_break", c.Routing.DraftTieBreak, &r.DraftTieBreak},
		{"merge_judge", c.Routing.MergeJudge, &r.MergeJudge},
		{"selection_judge", c.Routing.SelectionJudge, &r.SelectionJudge},
		{"synthesis_judge", c.Routing.SynthesisJudge, &r.SynthesisJudge},
	}
	for _, f := range fields {
		side, err := pipeline.ParseSide(f.val)
		if err != nil {
			return pipeline.Routing{}, fmt.Errorf("config: routing.%s: %w", f.key, err)
		}
		*f.dest = side
	}
	return r, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	for key, id := range map[string]backend.ID{"a": backend.DefaultA, "b": backend.DefaultB} {
		prefix := "backends." + key + "."
		v.SetDefault(prefix+"id", string(id))
		v.SetDefault(prefix+"transport", "cli")
		v.SetDefault(prefix+"command", string(id))
		v.SetDefault(prefix+"args", []string{})
		v.SetDefault(prefix+"model", "")
		v.SetDefault(prefix+"base_url", "")
		v.SetDefault(prefix+"api_key", "")
		v.SetDefault(prefix+"max_tokens", 4096)
	}

	v.SetDefault("timeouts.call", "2m")
	v.SetDefault("history.driver", "memory")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	r := pipeline.DefaultRouting()
	v.SetDefault("routing.discussion_lead", r.DiscussionLead.String())
	v.SetDefault("routing.draft_decider", r.DraftDecider.String())
	v.SetDefault("routing.draft_tie_break", r.DraftTieBreak.String())
	v.SetDefault("routing.merge_judge", r.MergeJudge.String())
	v.SetDefault("routing.selection_judge", r.SelectionJudge.String())
	v.SetDefault("routing.synthesis_judge", r.SynthesisJudge.String())

	v.SetDefault("scoring.fallback", pipeline.DefaultFallbackScore)
	v.SetDefault("batch.parallelism", 2)
}

// findConfigFile returns ./tandem.yaml or the XDG user config, whichever
// exists first.
func findConfigFile() string {
	candidates := []string{"tandem.yaml", UserConfigPath()}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// UserConfigPath returns the path of the per-user configuration file.
func UserConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tandem", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "tandem", "config.yaml")
	}
	return filepath.Join(home, ".config", "tandem", "config.yaml")
}
