package interview

import "fmt"

// Turn steps, used to tag which sub-call of an orchestrated turn failed.
const (
	StepAnswerAnalysis     = "answer analysis"
	StepQuestionGeneration = "question generation"
	StepCoachingGuidance   = "coaching guidance"
	StepSummary            = "summary"
)

// StepError wraps the first failing sub-step of a turn. A failed analysis
// is never silently dropped from the result; the whole turn fails instead.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("interview step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
