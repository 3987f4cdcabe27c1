// Package arbiter asks a fixed judge backend to pick between, or merge, two
// candidate texts produced by the collaborating backends.
package arbiter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valpere/tandem/internal/backend"
)

// BothUnavailable marks a pair of calls in which neither backend answered.
const BothUnavailable = "[both backends unavailable]"

// Placeholder returns the text of r, or an explicit marker when the call
// failed.
func Placeholder(r backend.Result) string {
	if r.Succeeded {
		return r.Text
	}
	return noResponse(r.Backend)
}

func noResponse(id backend.ID) string {
	return fmt.Sprintf("[%s: no response]", id)
}

// AnySucceeded reports whether at least one result carries text.
func AnySucceeded(results []backend.Result) bool {
	for _, r := range results {
		if r.Succeeded {
			return true
		}
	}
	return false
}

// Combine concatenates the results under "<heading> (<backend>):" headers,
// substituting placeholders for failures. When every call failed it returns
// BothUnavailable.
func Combine(heading string, results []backend.Result) string {
	if !AnySucceeded(results) {
		return BothUnavailable
	}
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%s (%s):\n%s", heading, r.Backend, Placeholder(r))
	}
	return sb.String()
}

// Mode selects the instruction given to the judge.
type Mode int

const (
	// ModeMerge compares two improved versions and chooses or merges them.
	ModeMerge Mode = iota
	// ModeSelect picks the better of two final versions or combines them.
	ModeSelect
	// ModeSynthesize contrasts two approaches and recommends the best one.
	ModeSynthesize
)

func (m Mode) String() string {
	switch m {
	case ModeMerge:
		return "merge"
	case ModeSelect:
		return "select"
	case ModeSynthesize:
		return "synthesize"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one arbitration.
type Decision struct {
	Judge backend.ID
	// Call is the judge invocation; nil when no candidate survived and no
	// call was issued.
	Call     *backend.Result
	Text     string
	Fallback bool
}

// Arbiter routes every arbitration to one judge backend.
type Arbiter struct {
	judge   backend.Backend
	timeout time.Duration
}

func New(judge backend.Backend, timeout time.Duration) *Arbiter {
	return &Arbiter{judge: judge, timeout: timeout}
}

// Judge returns the identifier of the judge backend.
func (a *Arbiter) Judge() backend.ID {
	return a.judge.ID()
}

// Evaluate asks the judge to resolve candidates for task. Without any
// successful candidate the judge is not called and the decision text is
// BothUnavailable. When the judge call fails or answers with nothing the
// first surviving candidate is used, except in ModeSynthesize where a
// candidate is not an analysis and the judge's placeholder is reported.
func (a *Arbiter) Evaluate(ctx context.Context, mode Mode, task string, candidates []backend.Result) Decision {
	d := Decision{Judge: a.judge.ID()}

	if !AnySucceeded(candidates) {
		d.Text = BothUnavailable
		d.Fallback = true
		return d
	}

	res := a.judge.Invoke(ctx, buildPrompt(mode, task, candidates), a.timeout)
	d.Call = &res

	if res.Succeeded && res.Text != "" {
		d.Text = res.Text
		return d
	}

	d.Fallback = true
	if mode == ModeSynthesize {
		d.Text = noResponse(d.Judge)
		return d
	}
	for _, c := range candidates {
		if c.Succeeded {
			d.Text = c.Text
			break
		}
	}
	return d
}

func buildPrompt(mode Mode, task string, candidates []backend.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Original task: %s\n\n", task)

	label := "Version"
	switch mode {
	case ModeMerge:
		label = "Improved version"
	case ModeSelect:
		label = "Final version"
	case ModeSynthesize:
		label = "Approach"
	}

	for _, c := range candidates {
		fmt.Fprintf(&sb, "%s from %s:\n%s\n\n", label, c.Backend, Placeholder(c))
	}

	switch mode {
	case ModeMerge:
		sb.WriteString("Compare the improved versions above. Either choose the better one or merge the strengths of both into a single final version.\n")
		sb.WriteString("Respond with the resulting version only.")
	case ModeSelect:
		sb.WriteString("Select the better final version above or combine the strengths of both.\n")
		sb.WriteString("Respond with the final version only.")
	case ModeSynthesize:
		sb.WriteString("Compare the strengths and weaknesses of the approaches above and propose the best way to carry out the task.")
	}

	return sb.String()
}
