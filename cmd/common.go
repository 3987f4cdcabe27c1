/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/valpere/tandem/internal/backend"
	"github.com/valpere/tandem/internal/history"
	"github.com/valpere/tandem/internal/orchestrator"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// buildBackends constructs Model A and Model B from the loaded configuration.
func buildBackends() (*backend.Client, *backend.Client, error) {
	a, err := backend.New(cfg.Backends.A)
	if err != nil {
		return nil, nil, fmt.Errorf("backend a (%s): %w", cfg.Backends.A.ID, err)
	}
	b, err := backend.New(cfg.Backends.B)
	if err != nil {
		return nil, nil, fmt.Errorf("backend b (%s): %w", cfg.Backends.B.ID, err)
	}
	logger.Debug("backends ready",
		"a", a.ID(), "a_transport", a.Transport(),
		"b", b.ID(), "b_transport", b.Transport())
	return a, b, nil
}

// newOrchestrator wires backends, history and pipeline settings. The caller
// must Close the orchestrator.
func newOrchestrator() (*orchestrator.Orchestrator, error) {
	a, b, err := buildBackends()
	if err != nil {
		return nil, err
	}
	pc, err := cfg.PipelineConfig()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cfg.History.Driver)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(a, b, store, orchestrator.OrchestratorConfig{
		Pipeline:    pc,
		Parallelism: cfg.Batch.Parallelism,
	}, logger), nil
}

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown format %q: want text, json or yaml", format)
	}
}

// writeStructured renders v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported structured format %q", format)
	}
}

var (
	heading = color.New(color.FgCyan, color.Bold)
	faint   = color.New(color.Faint)
)

func printHeading(w io.Writer, title string) {
	fmt.Fprintln(w, heading.Sprint(title))
}

// printStatus prints a status line with color
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

func printResult(w io.Writer, label string, r backend.Result) {
	if r.Succeeded {
		printStatus(w, "✓", fmt.Sprintf("%s (%s, %s)", label, r.Backend, r.Latency.Round(1e6)), color.FgGreen)
		fmt.Fprintln(w, r.Text)
		return
	}
	printStatus(w, "✗", fmt.Sprintf("%s (%s): %s", label, r.Backend, r.Error), color.FgRed)
}

// joinArgs treats all positional arguments as one prompt.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
