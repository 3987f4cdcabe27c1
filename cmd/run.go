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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/valpere/tandem/internal/history"
	"github.com/valpere/tandem/internal/orchestrator"
	"github.com/valpere/tandem/internal/pipeline"
)

var (
	runInput    string
	runParallel bool
	runFormat   string
	runTrace    bool
)

var runCmd = &cobra.Command{
	Use:   "run [task...]",
	Short: "Run the full collaboration pipeline",
	Long: `Run a task through all six collaboration stages:

  1. initial_discussion  both backends discuss the task
  2. draft_creation      the better-suited backend writes a draft
  3. peer_review         both backends review the draft
  4. improvement         both improve it and Model A merges the versions
  5. final_review        both polish it and Model B selects the final version
  6. completion          both score the result from 1 to 10

The task is taken from the arguments. With --input, every non-empty line of
the file is a separate task; several tasks are followed by statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(runFormat); err != nil {
			return err
		}

		tasks, err := collectTasks(args, runInput)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer orch.Close()

		out := cmd.OutOrStdout()
		results := orch.RunBatch(ctx, tasks, runParallel && len(tasks) > 1)

		failed := 0
		runs := make([]*pipeline.Run, 0, len(results))
		for _, r := range results {
			if r.Err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "Task %q failed: %v\n", r.Task, r.Err)
			}
			if r.Run != nil {
				runs = append(runs, r.Run)
			}
		}

		if runFormat != formatText {
			if err := writeRunsStructured(ctx, out, orch, runs); err != nil {
				return err
			}
		} else {
			for _, run := range runs {
				printRun(out, run, runTrace)
			}
			if len(tasks) > 1 {
				stats, err := orch.Statistics(ctx)
				if err != nil {
					return err
				}
				printStats(out, stats)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d tasks failed", failed, len(tasks))
		}
		return nil
	},
}

func writeRunsStructured(ctx context.Context, w io.Writer, orch *orchestrator.Orchestrator, runs []*pipeline.Run) error {
	if len(runs) == 1 {
		return writeStructured(w, runFormat, runs[0])
	}
	stats, err := orch.Statistics(ctx)
	if err != nil {
		return err
	}
	return writeStructured(w, runFormat, struct {
		Runs       []*pipeline.Run    `json:"runs" yaml:"runs"`
		Statistics history.Statistics `json:"statistics" yaml:"statistics"`
	}{runs, stats})
}

// collectTasks returns the joined arguments as one task, or one task per
// non-empty line of the input file.
func collectTasks(args []string, inputFile string) ([]string, error) {
	var tasks []string
	if task := joinArgs(args); task != "" {
		tasks = append(tasks, task)
	}

	if inputFile != "" {
		f, err := os.Open(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				tasks = append(tasks, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no task given: pass it as arguments or use --input")
	}
	return tasks, nil
}

func printRun(w io.Writer, run *pipeline.Run, withTrace bool) {
	printHeading(w, "Task: "+run.Task)
	if withTrace {
		for _, line := range pipeline.WorkflowSummary(run) {
			fmt.Fprintln(w, faint.Sprint(line))
		}
		for _, rec := range run.Trace {
			fmt.Fprintln(w, heading.Sprintf("[%s]", rec.Stage))
			for _, in := range rec.Inputs {
				printResult(w, "call", in)
			}
		}
	}

	if !run.Succeeded() {
		printStatus(w, "✗", fmt.Sprintf("failed after %d stages: %s", len(run.Trace), run.Error), color.FgRed)
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, run.FinalResult)
	fmt.Fprintln(w)

	score := fmt.Sprintf("quality score %.2f/10", run.QualityScore)
	if run.ScoreFallback {
		score += " (fallback)"
	}
	printStatus(w, "✓", score, color.FgGreen)
	fmt.Fprintln(w, faint.Sprint(pipeline.CollaborationSummary(run)))
	fmt.Fprintln(w)
}

func printStats(w io.Writer, stats history.Statistics) {
	printHeading(w, "Statistics")
	if stats.Empty() {
		fmt.Fprintln(w, stats.Message)
		return
	}
	fmt.Fprintf(w, "Runs:               %d\n", stats.Count)
	fmt.Fprintf(w, "Average score:      %.2f\n", stats.AverageScore)
	fmt.Fprintf(w, "Average iterations: %.1f\n", stats.AverageIterations)
	fmt.Fprintf(w, "Best task:          %s (%.2f)\n", stats.BestTask, stats.BestScore)
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "File with one task per line")
	runCmd.Flags().BoolVarP(&runParallel, "parallel", "p", false, "Run several tasks concurrently (batch.parallelism at once)")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", formatText, "Output format: text, json or yaml")
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "Print every backend call of every stage")
}
