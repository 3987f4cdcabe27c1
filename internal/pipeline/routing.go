package pipeline

import (
	"fmt"
	"strings"
)

// Side names one of the two backends by position rather than by id.
type Side int

const (
	SideA Side = iota
	SideB
)

func (s Side) String() string {
	if s == SideB {
		return "b"
	}
	return "a"
}

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// ParseSide accepts "a" or "b" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a":
		return SideA, nil
	case "b":
		return SideB, nil
	default:
		return SideA, fmt.Errorf("invalid backend side %q: want \"a\" or \"b\"", s)
	}
}

// Routing fixes which backend performs each single-backend call. These are
// policy choices, not derived from backend behavior; changing them changes
// the observable pipeline.
type Routing struct {
	// DiscussionLead analyses the task first; the other side responds.
	DiscussionLead Side
	// DraftDecider answers the forced choice of who writes the draft.
	DraftDecider Side
	// DraftTieBreak authors the draft unless the decider clearly names the
	// other side.
	DraftTieBreak Side
	// MergeJudge chooses between or merges the two improved versions.
	MergeJudge Side
	// SelectionJudge chooses between or merges the two final versions.
	SelectionJudge Side
	// SynthesisJudge contrasts competing approaches outside the pipeline.
	SynthesisJudge Side
}

// DefaultRouting is the standard policy. Model B only selects the final
// version; Model A handles every other single-backend call.
func DefaultRouting() Routing {
	return Routing{
		DiscussionLead: SideA,
		DraftDecider:   SideA,
		DraftTieBreak:  SideA,
		MergeJudge:     SideA,
		SelectionJudge: SideB,
		SynthesisJudge: SideA,
	}
}
