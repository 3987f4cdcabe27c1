// Package pipeline drives one task through the six collaboration stages and
// records a trace of every call.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/tandem/internal/arbiter"
	"github.com/valpere/tandem/internal/backend"
	"github.com/valpere/tandem/internal/postprocess"
)

// DefaultFallbackScore is used when either completion score cannot be parsed.
const DefaultFallbackScore = 8.0

// Score bounds.
const (
	MinScore = 0.0
	MaxScore = 10.0
)

// Config controls a Pipeline.
type Config struct {
	// Timeout bounds every backend call. Zero means no per-call limit.
	Timeout       time.Duration
	Routing       Routing
	FallbackScore float64
}

// DefaultConfig returns the standard routing with a two minute call timeout.
func DefaultConfig() Config {
	return Config{
		Timeout:       2 * time.Minute,
		Routing:       DefaultRouting(),
		FallbackScore: DefaultFallbackScore,
	}
}

// Pipeline runs collaborations between Model A and Model B. It holds no
// per-run state and is safe for concurrent use.
type Pipeline struct {
	a, b   backend.Backend
	cfg    Config
	logger *slog.Logger
}

// New creates a pipeline over the two backends.
func New(a, b backend.Backend, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FallbackScore < MinScore || cfg.FallbackScore > MaxScore {
		cfg.FallbackScore = DefaultFallbackScore
	}
	return &Pipeline{a: a, b: b, cfg: cfg, logger: logger}
}

// Backend returns the backend at side s.
func (p *Pipeline) Backend(s Side) backend.Backend {
	if s == SideB {
		return p.b
	}
	return p.a
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Run executes every stage for task. A completed run is returned with a nil
// error. When the draft author fails, or ctx ends between stages, the run is
// returned with StatusFailed together with a *StageError.
func (p *Pipeline) Run(ctx context.Context, task string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Task:      task,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	log := p.logger.With("run_id", run.ID)
	log.Info("collaboration started", "task_len", len(task))

	steps := []func(context.Context, *Run, *state) error{
		p.discuss,
		p.writeDraft,
		p.peerReview,
		p.improve,
		p.finalReview,
		p.complete,
	}

	st := &state{}
	for i, step := range steps {
		stage := Stages[i]
		if err := ctx.Err(); err != nil {
			return p.fail(log, run, &StageError{Stage: stage, Reason: "cancelled", Err: err})
		}
		log.Debug("stage started", "stage", stage)
		if err := step(ctx, run, st); err != nil {
			return p.fail(log, run, err)
		}
	}

	run.FinalResult = st.working
	run.Status = StatusCompleted
	run.FinishedAt = time.Now()
	log.Info("collaboration completed",
		"score", run.QualityScore,
		"iterations", run.Iterations,
		"duration", run.Duration())
	return run, nil
}

func (p *Pipeline) fail(log *slog.Logger, run *Run, err error) (*Run, error) {
	run.Status = StatusFailed
	run.Error = err.Error()
	run.FinishedAt = time.Now()
	log.Error("collaboration failed", "error", err, "stages", len(run.Trace))
	return run, err
}

// state carries texts between stages of one run.
type state struct {
	discussion string
	working    string
	reviews    string
}

func (p *Pipeline) discuss(ctx context.Context, run *Run, st *state) error {
	lead := p.Backend(p.cfg.Routing.DiscussionLead)
	other := p.Backend(p.cfg.Routing.DiscussionLead.Other())

	analysis := lead.Invoke(ctx, analysisPrompt(run.Task, lead.ID(), other.ID()), p.cfg.Timeout)
	feedback := other.Invoke(ctx, feedbackPrompt(run.Task, lead.ID(), arbiter.Placeholder(analysis)), p.cfg.Timeout)
	run.observe(analysis, feedback)

	st.discussion = arbiter.Combine("Opinion", []backend.Result{analysis, feedback})
	run.record(InitialDiscussion, st.discussion, analysis, feedback)
	return nil
}

func (p *Pipeline) writeDraft(ctx context.Context, run *Run, st *state) error {
	decider := p.Backend(p.cfg.Routing.DraftDecider)
	decision := decider.Invoke(ctx, authorDecisionPrompt(run.Task, st.discussion, p.a.ID(), p.b.ID()), p.cfg.Timeout)
	run.observe(decision)

	authorSide := p.chooseAuthor(decision)
	author := p.Backend(authorSide)
	p.logger.Debug("draft author chosen", "run_id", run.ID, "backend", author.ID())

	draft := author.Invoke(ctx, draftPrompt(run.Task, st.discussion), p.cfg.Timeout)
	run.observe(draft)

	if !draft.Succeeded {
		run.record(DraftCreation, "", decision, draft)
		return &StageError{
			Stage:   DraftCreation,
			Backend: author.ID(),
			Reason:  draft.Error,
			Err:     ErrPrimaryStage,
		}
	}

	st.working = draft.Text
	run.record(DraftCreation, draft.Text, decision, draft)
	return nil
}

// chooseAuthor picks the non-tie-break side only when the reply names it
// and does not also name the tie-break side.
func (p *Pipeline) chooseAuthor(decision backend.Result) Side {
	preferred := p.cfg.Routing.DraftTieBreak
	if !decision.Succeeded {
		return preferred
	}
	reply := postprocess.Clean(decision.Text)
	alt := preferred.Other()
	if postprocess.Mentions(reply, string(p.Backend(alt).ID())) &&
		!postprocess.Mentions(reply, string(p.Backend(preferred).ID())) {
		return alt
	}
	return preferred
}

func (p *Pipeline) pair(ctx context.Context, prompt string) []backend.Result {
	return backend.InvokeAll(ctx, p.cfg.Timeout,
		backend.Call{Backend: p.a, Prompt: prompt},
		backend.Call{Backend: p.b, Prompt: prompt},
	)
}

func (p *Pipeline) peerReview(ctx context.Context, run *Run, st *state) error {
	reviews := p.pair(ctx, reviewPrompt(run.Task, st.working))
	run.observe(reviews...)

	st.reviews = arbiter.Combine("Review", reviews)
	run.record(PeerReview, st.reviews, reviews...)
	return nil
}

func (p *Pipeline) improve(ctx context.Context, run *Run, st *state) error {
	versions := p.pair(ctx, improvementPrompt(run.Task, st.working, st.reviews))
	run.observe(versions...)

	judge := arbiter.New(p.Backend(p.cfg.Routing.MergeJudge), p.cfg.Timeout)
	out, inputs := p.arbitrate(ctx, run, judge, arbiter.ModeMerge, versions, st)
	run.record(Improvement, out, inputs...)
	return nil
}

func (p *Pipeline) finalReview(ctx context.Context, run *Run, st *state) error {
	versions := p.pair(ctx, finalCheckPrompt(run.Task, st.working))
	run.observe(versions...)

	judge := arbiter.New(p.Backend(p.cfg.Routing.SelectionJudge), p.cfg.Timeout)
	out, inputs := p.arbitrate(ctx, run, judge, arbiter.ModeSelect, versions, st)
	run.record(FinalReview, out, inputs...)
	return nil
}

// arbitrate resolves two candidates with judge and returns the stage output
// together with every call made for the stage. When neither candidate
// survived the working text is left unchanged.
func (p *Pipeline) arbitrate(ctx context.Context, run *Run, judge *arbiter.Arbiter, mode arbiter.Mode, versions []backend.Result, st *state) (string, []backend.Result) {
	inputs := append([]backend.Result(nil), versions...)

	d := judge.Evaluate(ctx, mode, run.Task, versions)
	if d.Call != nil {
		run.observe(*d.Call)
		inputs = append(inputs, *d.Call)
	}
	if d.Text == arbiter.BothUnavailable {
		p.logger.Warn("both backends unavailable, keeping current text",
			"run_id", run.ID, "mode", mode)
		return d.Text, inputs
	}
	if d.Fallback {
		p.logger.Warn("judge call failed, using first surviving candidate",
			"run_id", run.ID, "mode", mode, "judge", d.Judge)
	}
	st.working = d.Text
	return d.Text, inputs
}

func (p *Pipeline) complete(ctx context.Context, run *Run, st *state) error {
	scores := p.pair(ctx, scoringPrompt(run.Task, st.working))
	run.observe(scores...)

	// A cancelled run never completes on the fallback score.
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: Completion, Reason: "cancelled", Err: err}
	}

	score, fallback := CombineScores(scores, p.cfg.FallbackScore)
	if fallback {
		p.logger.Warn("score unparseable, using fallback", "run_id", run.ID, "score", score)
	}
	run.QualityScore = score
	run.ScoreFallback = fallback
	run.record(Completion, fmt.Sprintf("%.2f", score), scores...)
	return nil
}

// CombineScores averages the two parsed scores. If any result failed or
// does not parse as a number in [0,10] the fallback is returned instead.
func CombineScores(results []backend.Result, fallback float64) (float64, bool) {
	if len(results) == 0 {
		return fallback, true
	}
	var sum float64
	for _, r := range results {
		if !r.Succeeded {
			return fallback, true
		}
		v, ok := postprocess.ParseScore(r.Text, MinScore, MaxScore)
		if !ok {
			return fallback, true
		}
		sum += v
	}
	return sum / float64(len(results)), false
}

// WorkflowSummary lists the executed stages with their descriptions, in
// order.
func WorkflowSummary(run *Run) []string {
	out := make([]string, 0, len(run.Trace))
	for i, rec := range run.Trace {
		out = append(out, fmt.Sprintf("%d. %s: %s", i+1, rec.Stage, rec.Stage.Description()))
	}
	return out
}

// CollaborationSummary is a one-line description of the run.
func CollaborationSummary(run *Run) string {
	names := make([]string, len(run.Participants))
	for i, id := range run.Participants {
		names[i] = string(id)
	}
	who := strings.Join(names, " and ")
	if who == "" {
		who = "no backend"
	}
	if run.Succeeded() {
		return fmt.Sprintf("%s collaborated over %d iterations across %d stages", who, run.Iterations, len(run.Trace))
	}
	return fmt.Sprintf("collaboration failed after %d iterations at %d stages (%s)", run.Iterations, len(run.Trace), who)
}
