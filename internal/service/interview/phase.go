package interview

import (
	model "github.com/prasetyawibawa/ai-interview-coach/backend/internal/model/interview"
)

// Advance is the phase engine: given the current phase and session context
// it returns the prompt for the interviewer's next utterance and the phase
// the caller must send on the following call. It performs no I/O, never
// mutates sc, and is defined for every reachable state.
//
// GREETING and INTRODUCTION are driven by the phase tag alone; every later
// stage is driven by the question counters, evaluated in fixed priority:
// experience, role-specific, personality, closing.
func Advance(phase model.Phase, sc *model.SessionContext) (prompt string, next model.Phase) {
	switch phase {
	case model.PhaseGreeting:
		return greetingStep(sc)
	case model.PhaseIntroduction:
		return introductionStep(sc)
	default:
		return questionStep(sc)
	}
}

func greetingStep(sc *model.SessionContext) (string, model.Phase) {
	return greetingPrompt(sc), model.PhaseIntroduction
}

func introductionStep(sc *model.SessionContext) (string, model.Phase) {
	return introductionPrompt(sc), model.PhaseExperience
}

func questionStep(sc *model.SessionContext) (string, model.Phase) {
	switch {
	case sc.ExpQuestionsAsked < sc.NumExpQuestions:
		return experienceStep(sc)
	case sc.RoleQuestionsAsked < sc.NumRoleQuestions:
		return roleSpecificStep(sc)
	case sc.PersonalityQuestionsAsked < sc.NumPersonalityQuestions:
		return personalityStep(sc)
	default:
		return closingStep(sc)
	}
}

func experienceStep(sc *model.SessionContext) (string, model.Phase) {
	next := model.PhaseExperience
	if sc.ExpQuestionsAsked+1 >= sc.NumExpQuestions {
		next = model.PhaseRoleSpecific
	}
	return experiencePrompt(sc), next
}

func roleSpecificStep(sc *model.SessionContext) (string, model.Phase) {
	next := model.PhaseRoleSpecific
	if sc.RoleQuestionsAsked+1 >= sc.NumRoleQuestions {
		next = model.PhasePersonality
	}
	return roleSpecificPrompt(sc), next
}

func personalityStep(sc *model.SessionContext) (string, model.Phase) {
	next := model.PhasePersonality
	if sc.PersonalityQuestionsAsked+1 >= sc.NumPersonalityQuestions {
		next = model.PhaseClosing
	}
	return personalityPrompt(sc), next
}

func closingStep(sc *model.SessionContext) (string, model.Phase) {
	return closingPrompt(sc), model.PhaseFinished
}
