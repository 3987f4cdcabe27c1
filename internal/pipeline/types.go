package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/valpere/tandem/internal/backend"
)

// Stage is one step of the collaboration pipeline.
type Stage int

const (
	InitialDiscussion Stage = iota
	DraftCreation
	PeerReview
	Improvement
	FinalReview
	Completion
)

// Stages lists every stage in execution order.
var Stages = []Stage{InitialDiscussion, DraftCreation, PeerReview, Improvement, FinalReview, Completion}

func (s Stage) String() string {
	switch s {
	case InitialDiscussion:
		return "initial_discussion"
	case DraftCreation:
		return "draft_creation"
	case PeerReview:
		return "peer_review"
	case Improvement:
		return "improvement"
	case FinalReview:
		return "final_review"
	case Completion:
		return "completion"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Description is a one-line, human-readable summary of the stage.
func (s Stage) Description() string {
	switch s {
	case InitialDiscussion:
		return "both backends discuss the task"
	case DraftCreation:
		return "the better-suited backend writes a draft"
	case PeerReview:
		return "both backends review the draft"
	case Improvement:
		return "both backends improve the draft and the results are merged"
	case FinalReview:
		return "both backends polish the result and the best version is selected"
	case Completion:
		return "both backends score the final result"
	default:
		return ""
	}
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	for _, st := range Stages {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", text)
}

// StageRecord is the immutable trace entry of one completed stage.
type StageRecord struct {
	Stage  Stage            `json:"stage" yaml:"stage"`
	Inputs []backend.Result `json:"inputs" yaml:"inputs"`
	Output string           `json:"output" yaml:"output"`
}

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run accumulates the trace, final text and score of one pipeline
// invocation. It is owned by that invocation until it returns and must be
// treated as read-only afterwards.
type Run struct {
	ID            string        `json:"id" yaml:"id"`
	Task          string        `json:"task" yaml:"task"`
	Trace         []StageRecord `json:"trace" yaml:"trace"`
	FinalResult   string        `json:"final_result" yaml:"final_result"`
	QualityScore  float64       `json:"quality_score" yaml:"quality_score"`
	ScoreFallback bool          `json:"score_fallback" yaml:"score_fallback"`
	Participants  []backend.ID  `json:"participants" yaml:"participants"`
	Iterations    int           `json:"iterations" yaml:"iterations"`
	Status        Status        `json:"status" yaml:"status"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt     time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time     `json:"finished_at" yaml:"finished_at"`

	seen map[backend.ID]struct{}
}

// Succeeded reports whether the run reached the completion stage.
func (r *Run) Succeeded() bool {
	return r.Status == StatusCompleted
}

// Duration is the wall-clock time of the run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// observe counts every call and remembers which backends answered.
func (r *Run) observe(results ...backend.Result) {
	for _, res := range results {
		r.Iterations++
		if !res.Succeeded {
			continue
		}
		if r.seen == nil {
			r.seen = make(map[backend.ID]struct{})
		}
		if _, ok := r.seen[res.Backend]; !ok {
			r.seen[res.Backend] = struct{}{}
			r.Participants = append(r.Participants, res.Backend)
			sort.Slice(r.Participants, func(i, j int) bool { return r.Participants[i] < r.Participants[j] })
		}
	}
}

func (r *Run) record(stage Stage, output string, inputs ...backend.Result) {
	r.Trace = append(r.Trace, StageRecord{Stage: stage, Inputs: inputs, Output: output})
}

// ErrPrimaryStage marks the failure of a stage's single mandatory call.
var ErrPrimaryStage = errors.New("primary stage call failed")

// StageError reports why a run stopped before completion.
type StageError struct {
	Stage   Stage
	Backend backend.ID
	Reason  string
	Err     error
}

func (e *StageError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("%s: %v (%s): %s", e.Stage, e.Err, e.Backend, e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
