package interview

// PostAnswerAnalysis scores the answer the candidate just gave.
// Present iff the request carried a userAnswer.
type PostAnswerAnalysis struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// PreAnswerAnalysis coaches the candidate before they answer the question
// that was just asked. Absent only on the terminal transition to FINISHED.
type PreAnswerAnalysis struct {
	Hint          string `json:"hint"`
	ExampleAnswer string `json:"exampleAnswer"`
}

// TurnResult is the output of one orchestrated interview turn.
type TurnResult struct {
	ConversationalResponse string              `json:"conversationalResponse"`
	NextPhase              Phase               `json:"nextPhase"`
	PostAnswerAnalysis     *PostAnswerAnalysis `json:"postAnswerAnalysis,omitempty"`
	PreAnswerAnalysis      *PreAnswerAnalysis  `json:"preAnswerAnalysis,omitempty"`
}

// Summary is the end-of-interview report built from the whole transcript.
type Summary struct {
	FinalScore          float64 `json:"finalScore"`
	Strengths           string  `json:"strengths"`
	AreasForImprovement string  `json:"areasForImprovement"`
}
