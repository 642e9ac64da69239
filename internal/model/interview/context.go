package interview

import "fmt"

// Phase identifies one stage of the fixed interview script.
type Phase string

const (
	PhaseGreeting     Phase = "GREETING"
	PhaseIntroduction Phase = "INTRODUCTION"
	PhaseExperience   Phase = "EXPERIENCE"
	PhaseRoleSpecific Phase = "ROLE_SPECIFIC"
	PhasePersonality  Phase = "PERSONALITY"
	PhaseClosing      Phase = "CLOSING"
	PhaseFinished     Phase = "FINISHED"
)

// ParsePhase validates a phase received from the client.
func ParsePhase(raw string) (Phase, error) {
	p := Phase(raw)
	switch p {
	case PhaseGreeting, PhaseIntroduction, PhaseExperience,
		PhaseRoleSpecific, PhasePersonality, PhaseClosing, PhaseFinished:
		return p, nil
	}
	return "", fmt.Errorf("unknown interview phase %q", raw)
}

// ChatTurn is one transcript entry. The caller sends the full transcript
// back with every request; the server never stores it.
type ChatTurn struct {
	Sender string `json:"sender"` // "user" or "ai"
	Text   string `json:"text"`
}

// SessionContext carries everything the engine needs to decide the next
// question. It is caller-owned: the server derives a TurnResult from it and
// returns the values the caller must persist for the following call.
type SessionContext struct {
	Phase Phase `json:"phase"`

	UserName       string `json:"userName"`
	Role           string `json:"role"`
	Industry       string `json:"industry"`
	Language       string `json:"language"`      // display name, used in prompts
	LanguageCode   string `json:"languageCode"`  // BCP-47, used by speech services
	SelectedVoice  string `json:"selectedVoice"` // TTS voice, empty means the configured default
	CVText         string `json:"cvText"`
	JobDescription string `json:"jobDescription"`
	AdditionalInfo string `json:"additionalInfo"`
	ProfileSummary string `json:"profileSummary"`

	NumExpQuestions           int `json:"numExpQuestions"`
	NumRoleQuestions          int `json:"numRoleQuestions"`
	NumPersonalityQuestions   int `json:"numPersonalityQuestions"`
	ExpQuestionsAsked         int `json:"expQuestionsAsked"`
	RoleQuestionsAsked        int `json:"roleQuestionsAsked"`
	PersonalityQuestionsAsked int `json:"personalityQuestionsAsked"`

	LastQuestion string `json:"lastQuestion"`
	UserAnswer   string `json:"userAnswer"`

	FullChatHistory []ChatTurn `json:"fullChatHistory"`
}

// ClampCounters normalizes counters coming from the wire. The phase engine
// is pure and assumes non-negative integers; the API boundary enforces it.
func (sc *SessionContext) ClampCounters() {
	for _, n := range []*int{
		&sc.NumExpQuestions, &sc.NumRoleQuestions, &sc.NumPersonalityQuestions,
		&sc.ExpQuestionsAsked, &sc.RoleQuestionsAsked, &sc.PersonalityQuestionsAsked,
	} {
		if *n < 0 {
			*n = 0
		}
	}
}
