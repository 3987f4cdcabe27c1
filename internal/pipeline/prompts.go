package pipeline

import (
	"fmt"

	"github.com/valpere/tandem/internal/backend"
)

func analysisPrompt(task string, lead, other backend.ID) string {
	return fmt.Sprintf(`Task: %s

Analyze this task:
1. The core requirements
2. Difficulties, risks and things to watch out for
3. Whether %s or %s is better suited to do it, and why
4. How the two should split the work when collaborating`, task, lead, other)
}

func feedbackPrompt(task string, lead backend.ID, analysis string) string {
	return fmt.Sprintf(`Task: %s

Analysis by %s:
%s

Review the analysis above and give your opinion:
1. Whether you agree with it (1-10)
2. Perspectives or points it missed
3. A better way to collaborate, if any
4. Your proposal for the final split of roles`, task, lead, analysis)
}

func authorDecisionPrompt(task, discussion string, a, b backend.ID) string {
	return fmt.Sprintf(`Task: %s

Discussion so far:
%s

Based on this discussion, who should write the first draft?
Answer with exactly one word: "%s" or "%s".`, task, discussion, a, b)
}

func draftPrompt(task, discussion string) string {
	return fmt.Sprintf(`Task: %s

Collaboration discussion:
%s

Using the discussion above, carry out the task. Produce the highest-quality result you can.`, task, discussion)
}

func reviewPrompt(task, draft string) string {
	return fmt.Sprintf(`Original task: %s

Result written by a peer:
%s

Review the result above and give feedback:
1. What is done well
2. What needs improvement
3. Concrete suggestions for improvement
4. Anything missing that should be added
5. An overall quality rating (1-10)

Keep the feedback constructive and specific.`, task, draft)
}

func improvementPrompt(task, draft, reviews string) string {
	return fmt.Sprintf(`Original task: %s

Draft:
%s

Review feedback:
%s

Improve the draft using the feedback. Address every point raised and produce a better version.`, task, draft, reviews)
}

func finalCheckPrompt(task, result string) string {
	return fmt.Sprintf(`Original task: %s

Current result:
%s

This is the final result. Review it one last time and polish it where needed:
1. Confirm every requirement of the task is met
2. Confirm the quality is as high as it can be
3. Make any final refinements

Respond with the complete final result.`, task, result)
}

func scoringPrompt(task, result string) string {
	return fmt.Sprintf(`Task: %s

Result:
%s

Rate the quality of this result from 1 to 10 using these criteria:
1. How well it satisfies the task requirements
2. Accuracy
3. Completeness
4. Creativity and usefulness

Answer with the number only.`, task, result)
}
