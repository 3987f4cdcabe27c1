// Package orchestrator is the entry point used by the CLI and the MCP
// server. It owns the two backends, the pipeline and the run history.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/valpere/tandem/internal/advisor"
	"github.com/valpere/tandem/internal/arbiter"
	"github.com/valpere/tandem/internal/backend"
	"github.com/valpere/tandem/internal/history"
	"github.com/valpere/tandem/internal/pipeline"
)

var (
	// ErrEmptyTask is returned when the task, topic or prompt is blank.
	ErrEmptyTask = errors.New("task must not be empty")
	// ErrUnknownBackend is returned by Direct for an id that is neither A nor B.
	ErrUnknownBackend = errors.New("unknown backend")
)

type OrchestratorConfig struct {
	Pipeline pipeline.Config
	// Parallelism caps concurrent runs in RunBatch. Zero or less means
	// one run per task at once.
	Parallelism int
}

// Discussion is the outcome of one parallel round of opinions.
type Discussion struct {
	Topic    string           `json:"topic" yaml:"topic"`
	AOpinion string           `json:"a_opinion" yaml:"a_opinion"`
	BOpinion string           `json:"b_opinion" yaml:"b_opinion"`
	A        backend.ID       `json:"a" yaml:"a"`
	B        backend.ID       `json:"b" yaml:"b"`
	Calls    []backend.Result `json:"-" yaml:"-"`
}

// Comparison holds two independent approaches and the synthesis of them.
type Comparison struct {
	Task      string           `json:"task" yaml:"task"`
	ApproachA string           `json:"approach_a" yaml:"approach_a"`
	ApproachB string           `json:"approach_b" yaml:"approach_b"`
	Analysis  string           `json:"comparison_analysis" yaml:"comparison_analysis"`
	A         backend.ID       `json:"a" yaml:"a"`
	B         backend.ID       `json:"b" yaml:"b"`
	Calls     []backend.Result `json:"-" yaml:"-"`
}

// Delegation records which backend the advisor picked and what it produced.
type Delegation struct {
	Task       string         `json:"task" yaml:"task"`
	AssignedTo backend.ID     `json:"assigned_to" yaml:"assigned_to"`
	Result     backend.Result `json:"result" yaml:"result"`
}

// BatchResult pairs one task of a batch with its outcome.
type BatchResult struct {
	Task string
	Run  *pipeline.Run
	Err  error
}

type Orchestrator struct {
	a, b    backend.Backend
	pipe    *pipeline.Pipeline
	advisor *advisor.Advisor
	history history.Store
	config  OrchestratorConfig
	logger  *slog.Logger
}

// New wires the facade. A nil store gets an in-memory history.
func New(a, b backend.Backend, store history.Store, config OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = history.NewMemory()
	}
	return &Orchestrator{
		a:       a,
		b:       b,
		pipe:    pipeline.New(a, b, config.Pipeline, logger),
		advisor: advisor.New(a, b.ID(), config.Pipeline.Timeout, logger),
		history: store,
		config:  config,
		logger:  logger,
	}
}

// RunCollaboration executes the full pipeline for task. Completed runs are
// appended to the history; failed runs are returned with their error and
// are not recorded.
func (o *Orchestrator) RunCollaboration(ctx context.Context, task string) (*pipeline.Run, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, ErrEmptyTask
	}

	run, err := o.pipe.Run(ctx, task)
	if err != nil {
		return run, fmt.Errorf("collaboration %s: %w", run.ID, err)
	}

	if err := o.history.Append(ctx, run); err != nil {
		return run, fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return run, nil
}

// RunBatch runs every task and returns the outcomes in task order. With
// parallel set, up to Parallelism runs execute at once.
func (o *Orchestrator) RunBatch(ctx context.Context, tasks []string, parallel bool) []BatchResult {
	results := make([]BatchResult, len(tasks))
	if !parallel {
		for i, task := range tasks {
			run, err := o.RunCollaboration(ctx, task)
			results[i] = BatchResult{Task: task, Run: run, Err: err}
		}
		return results
	}

	limit := o.config.Parallelism
	if limit <= 0 || limit > len(tasks) {
		limit = len(tasks)
	}

	type indexed struct {
		index int
		res   BatchResult
	}

	resultCh := make(chan indexed, len(tasks))
	sem := make(chan struct{}, max(limit, 1))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(index int, task string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			run, err := o.RunCollaboration(ctx, task)
			resultCh <- indexed{index: index, res: BatchResult{Task: task, Run: run, Err: err}}
		}(i, task)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for r := range resultCh {
		results[r.index] = r.res
	}
	return results
}

// QuickDiscussion asks both backends for a short opinion in parallel.
func (o *Orchestrator) QuickDiscussion(ctx context.Context, topic string) (*Discussion, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTask
	}

	prompt := fmt.Sprintf("Briefly give your opinion on this topic: %s", topic)
	calls := o.pair(ctx, prompt)

	return &Discussion{
		Topic:    topic,
		AOpinion: arbiter.Placeholder(calls[0]),
		BOpinion: arbiter.Placeholder(calls[1]),
		A:        o.a.ID(),
		B:        o.b.ID(),
		Calls:    calls,
	}, nil
}

// CompareApproaches collects an approach from each backend in parallel and
// asks the synthesis judge to contrast them.
func (o *Orchestrator) CompareApproaches(ctx context.Context, task string) (*Comparison, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, ErrEmptyTask
	}

	prompt := fmt.Sprintf("Describe your approach to this task: %s", task)
	calls := o.pair(ctx, prompt)

	judge := arbiter.New(o.pipe.Backend(o.config.Pipeline.Routing.SynthesisJudge), o.config.Pipeline.Timeout)
	d := judge.Evaluate(ctx, arbiter.ModeSynthesize, task, calls)
	if d.Call != nil {
		calls = append(calls, *d.Call)
		if d.Fallback {
			o.logger.Warn("synthesis call failed", "judge", d.Judge, "error", d.Call.Error)
		}
	}

	return &Comparison{
		Task:      task,
		ApproachA: arbiter.Placeholder(calls[0]),
		ApproachB: arbiter.Placeholder(calls[1]),
		Analysis:  d.Text,
		A:         o.a.ID(),
		B:         o.b.ID(),
		Calls:     calls,
	}, nil
}

// Delegate lets the advisor pick a backend and has it perform task.
func (o *Orchestrator) Delegate(ctx context.Context, task string) (*Delegation, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, ErrEmptyTask
	}

	chosen := o.advisor.Decide(ctx, task)
	target := o.a
	if chosen == o.b.ID() {
		target = o.b
	}
	o.logger.Info("task delegated", "backend", target.ID())

	return &Delegation{
		Task:       task,
		AssignedTo: target.ID(),
		Result:     target.Invoke(ctx, task, o.config.Pipeline.Timeout),
	}, nil
}

// Direct sends prompt unchanged to the backend with the given id.
func (o *Orchestrator) Direct(ctx context.Context, id backend.ID, prompt string) (backend.Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return backend.Result{}, ErrEmptyTask
	}
	b, err := o.Backend(id)
	if err != nil {
		return backend.Result{}, err
	}
	return b.Invoke(ctx, prompt, o.config.Pipeline.Timeout), nil
}

// Backend resolves a backend by id.
func (o *Orchestrator) Backend(id backend.ID) (backend.Backend, error) {
	switch id {
	case o.a.ID():
		return o.a, nil
	case o.b.ID():
		return o.b, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, id)
	}
}

// Backends returns Model A and Model B.
func (o *Orchestrator) Backends() (backend.Backend, backend.Backend) {
	return o.a, o.b
}

// Statistics summarises the recorded runs.
func (o *Orchestrator) Statistics(ctx context.Context) (history.Statistics, error) {
	return o.history.Stats(ctx)
}

// History returns the recorded runs in append order.
func (o *Orchestrator) History(ctx context.Context) ([]*pipeline.Run, error) {
	return o.history.Runs(ctx)
}

// Close releases the history store.
func (o *Orchestrator) Close() error {
	return o.history.Close()
}

func (o *Orchestrator) pair(ctx context.Context, prompt string) []backend.Result {
	return backend.InvokeAll(ctx, o.timeout(),
		backend.Call{Backend: o.a, Prompt: prompt},
		backend.Call{Backend: o.b, Prompt: prompt},
	)
}

func (o *Orchestrator) timeout() time.Duration {
	return o.config.Pipeline.Timeout
}
