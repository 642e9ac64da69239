package interview

import (
	"context"
	"fmt"
	"log"
	"strings"

	model "github.com/prasetyawibawa/ai-interview-coach/backend/internal/model/interview"
	"github.com/prasetyawibawa/ai-interview-coach/backend/internal/service/ai"
)

// Generator abstracts the retrying model client so the orchestrator can be
// tested without network access.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Orchestrator composes the phase engine, the generation client and the
// JSON extractor into full interview turns. It holds no session state:
// everything it needs arrives in the SessionContext and everything the
// caller must remember goes back in the TurnResult.
type Orchestrator struct {
	gen Generator
}

func NewOrchestrator(gen Generator) *Orchestrator {
	return &Orchestrator{gen: gen}
}

// ProcessTurn runs one interview turn: analyze the previous answer (when
// one was given), generate the next interviewer utterance, and coach the
// candidate on it (unless the interview just finished). A failure in any
// sub-step fails the turn; partial results are never returned.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sc *model.SessionContext) (*model.TurnResult, error) {
	var post *model.PostAnswerAnalysis
	if sc.UserAnswer != "" {
		raw, err := o.gen.Generate(ctx, postAnswerAnalysisPrompt(sc))
		if err != nil {
			return nil, &StepError{Step: StepAnswerAnalysis, Err: err}
		}
		post, err = decodePostAnalysis(raw)
		if err != nil {
			return nil, &StepError{Step: StepAnswerAnalysis, Err: err}
		}
	}

	prompt, next := Advance(sc.Phase, sc)
	reply, err := o.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, &StepError{Step: StepQuestionGeneration, Err: err}
	}

	var pre *model.PreAnswerAnalysis
	if next != model.PhaseFinished {
		raw, err := o.gen.Generate(ctx, preAnswerAnalysisPrompt(reply, sc))
		if err != nil {
			return nil, &StepError{Step: StepCoachingGuidance, Err: err}
		}
		pre, err = decodePreAnalysis(raw)
		if err != nil {
			return nil, &StepError{Step: StepCoachingGuidance, Err: err}
		}
	}

	log.Printf("[interview] turn complete phase=%s next=%s analyzed=%t coached=%t",
		sc.Phase, next, post != nil, pre != nil)

	return &model.TurnResult{
		ConversationalResponse: reply,
		NextPhase:              next,
		PostAnswerAnalysis:     post,
		PreAnswerAnalysis:      pre,
	}, nil
}

// Summarize produces the end-of-interview report from the full transcript
// and the per-question analyses. Single model call, same retry policy.
func (o *Orchestrator) Summarize(ctx context.Context, history []model.ChatTurn, analyses []model.PostAnswerAnalysis, language string) (*model.Summary, error) {
	raw, err := o.gen.Generate(ctx, summaryPrompt(history, analyses, language))
	if err != nil {
		return nil, &StepError{Step: StepSummary, Err: err}
	}

	var summary model.Summary
	if err := ai.DecodeJSON(raw, &summary); err != nil {
		return nil, &StepError{Step: StepSummary, Err: err}
	}
	if strings.TrimSpace(summary.Strengths) == "" || strings.TrimSpace(summary.AreasForImprovement) == "" {
		return nil, &StepError{Step: StepSummary, Err: fmt.Errorf("%w: summary missing required fields", ai.ErrMalformedOutput)}
	}
	summary.FinalScore = clampScore(summary.FinalScore)
	return &summary, nil
}

func decodePostAnalysis(raw string) (*model.PostAnswerAnalysis, error) {
	var analysis model.PostAnswerAnalysis
	if err := ai.DecodeJSON(raw, &analysis); err != nil {
		return nil, err
	}
	if strings.TrimSpace(analysis.Feedback) == "" {
		return nil, fmt.Errorf("%w: analysis missing feedback", ai.ErrMalformedOutput)
	}
	analysis.Score = clampScore(analysis.Score)
	return &analysis, nil
}

func decodePreAnalysis(raw string) (*model.PreAnswerAnalysis, error) {
	var analysis model.PreAnswerAnalysis
	if err := ai.DecodeJSON(raw, &analysis); err != nil {
		return nil, err
	}
	if strings.TrimSpace(analysis.Hint) == "" || strings.TrimSpace(analysis.ExampleAnswer) == "" {
		return nil, fmt.Errorf("%w: coaching missing hint or example", ai.ErrMalformedOutput)
	}
	return &analysis, nil
}

// Scores come back model-reported; out-of-range values are saturated into
// [0,10] rather than failing the turn or passing through unvalidated.
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
