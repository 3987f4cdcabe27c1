// Package history keeps the completed collaboration runs of one process
// and derives summary statistics from them.
package history

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/valpere/tandem/internal/pipeline"
)

// NoRunsMessage is reported by statistics over an empty history.
const NoRunsMessage = "no runs yet"

// Store is an append-only run history. Implementations are safe for
// concurrent use.
type Store interface {
	Append(ctx context.Context, run *pipeline.Run) error
	Runs(ctx context.Context) ([]*pipeline.Run, error)
	Stats(ctx context.Context) (Statistics, error)
	Close() error
}

// Statistics summarises the history.
type Statistics struct {
	Count             int     `json:"count" yaml:"count"`
	AverageScore      float64 `json:"avg_quality_score" yaml:"avg_quality_score"`
	AverageIterations float64 `json:"avg_iterations" yaml:"avg_iterations"`
	BestTask          string  `json:"best_task,omitempty" yaml:"best_task,omitempty"`
	BestScore         float64 `json:"best_score" yaml:"best_score"`
	Message           string  `json:"message,omitempty" yaml:"message,omitempty"`
}

// Empty reports whether no run has been recorded.
func (s Statistics) Empty() bool {
	return s.Count == 0
}

func emptyStats() Statistics {
	return Statistics{Message: NoRunsMessage}
}

// Summarize computes statistics over runs. The best task is the first run
// with the highest score.
func Summarize(runs []*pipeline.Run) Statistics {
	if len(runs) == 0 {
		return emptyStats()
	}

	var scoreSum float64
	var iterSum int
	best := runs[0]
	for _, r := range runs {
		scoreSum += r.QualityScore
		iterSum += r.Iterations
		if r.QualityScore > best.QualityScore {
			best = r
		}
	}

	n := float64(len(runs))
	return Statistics{
		Count:             len(runs),
		AverageScore:      round(scoreSum/n, 2),
		AverageIterations: round(float64(iterSum)/n, 1),
		BestTask:          best.Task,
		BestScore:         best.QualityScore,
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Open returns the store for driver: "memory" (default) or "sqlite".
func Open(driver string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite()
	default:
		return nil, fmt.Errorf("unknown history driver %q", driver)
	}
}

// normalizeText trims whitespace and applies Unicode NFC normalization so
// equal tasks are stored identically by every store.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
