// Package advisor decides which of the two backends is better suited for a
// task by asking Model A to classify it.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valpere/tandem/internal/backend"
	"github.com/valpere/tandem/internal/postprocess"
)

// Advisor classifies tasks with one call to the classifier backend (Model A).
// A reply naming Model B selects B, anything else selects A, and a failed
// call selects B.
type Advisor struct {
	classifier backend.Backend
	other      backend.ID
	timeout    time.Duration
	logger     *slog.Logger
}

// New builds an advisor. classifier is Model A; other is Model B's id.
func New(classifier backend.Backend, other backend.ID, timeout time.Duration, logger *slog.Logger) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{
		classifier: classifier,
		other:      other,
		timeout:    timeout,
		logger:     logger,
	}
}

// Decide returns the backend that should handle task.
func (a *Advisor) Decide(ctx context.Context, task string) backend.ID {
	res := a.classifier.Invoke(ctx, buildPrompt(a.classifier.ID(), a.other, task), a.timeout)
	if !res.Succeeded {
		a.logger.Warn("assignment call failed, using fallback",
			"classifier", a.classifier.ID(), "fallback", a.other, "error", res.Error)
		return a.other
	}

	choice := Interpret(res.Text, a.classifier.ID(), a.other)
	a.logger.Debug("assignment decided", "choice", choice)
	return choice
}

// Interpret maps a classification reply to a backend id: the reply must
// mention b to select it, everything else selects a.
func Interpret(reply string, a, b backend.ID) backend.ID {
	if postprocess.Mentions(postprocess.Clean(reply), string(b)) {
		return b
	}
	return a
}

func buildPrompt(a, b backend.ID, task string) string {
	return fmt.Sprintf(`Analyze the following task and decide whether %[1]s or %[2]s is better suited to perform it.

Task: %[3]s

Consider:
- %[1]s: strong at creative work, multilingual and translation tasks, and current events
- %[2]s: strong at writing code, logical analysis, long texts and structured work

Answer with exactly one word: "%[1]s" or "%[2]s".`, a, b, task)
}
