package interview

import (
	"encoding/json"
	"fmt"
	"strings"

	model "github.com/prasetyawibawa/ai-interview-coach/backend/internal/model/interview"
)

// Every interviewer prompt carries two structural directives: the whole
// model output must be in the interview language, and (outside GREETING)
// the model must not re-greet the candidate mid-interview. Downstream
// output drifts in language and tone without them.

func languageDirective(language string) string {
	return fmt.Sprintf(`IMPORTANT: Your entire response MUST be in %s. You are speaking directly TO the candidate. Use the second person ("Anda" or "You").`, language)
}

const noGreetingDirective = `Do not add any greetings or introductory pleasantries. Just ask the question directly.`

func profileSummaryFragment(sc *model.SessionContext) string {
	if strings.TrimSpace(sc.ProfileSummary) == "" {
		return ""
	}
	return fmt.Sprintf(`The candidate also provided this summary about themselves: """%s"""`, sc.ProfileSummary)
}

func greetingPrompt(sc *model.SessionContext) string {
	greetingName := ""
	if name := strings.TrimSpace(sc.UserName); name != "" && !strings.EqualFold(name, "candidate") {
		greetingName = ", " + name
	}
	return fmt.Sprintf(`%s You are an expert interviewer. You are starting an interview for a %s position. Start with a professional greeting (e.g., "Good morning" or "Selamat pagi")%s. Then, ask the candidate to introduce themselves. %s`,
		languageDirective(sc.Language), sc.Role, greetingName, profileSummaryFragment(sc))
}

func introductionPrompt(sc *model.SessionContext) string {
	return fmt.Sprintf(`%s The candidate, %s, introduced themselves: "%s". Based on this, their CV, their profile summary, and additional info, ask a relevant question about their experience. %s CV Text: """%s""" Additional Info: """%s""" %s`,
		languageDirective(sc.Language), sc.UserName, sc.UserAnswer, noGreetingDirective,
		sc.CVText, sc.AdditionalInfo, profileSummaryFragment(sc))
}

func experiencePrompt(sc *model.SessionContext) string {
	return fmt.Sprintf(`%s The candidate answered: "%s". Based on their CV and experience, ask the next experience question. %s This is experience question %d of %d. CV Text: """%s"""`,
		languageDirective(sc.Language), sc.UserAnswer, noGreetingDirective,
		sc.ExpQuestionsAsked+1, sc.NumExpQuestions, sc.CVText)
}

func roleSpecificPrompt(sc *model.SessionContext) string {
	transition := ""
	if sc.RoleQuestionsAsked == 0 {
		transition = "Now, let's move on to some role-specific questions. "
	}

	var grounding string
	if strings.TrimSpace(sc.JobDescription) != "" {
		grounding = fmt.Sprintf(`Based on the following job description, ask a relevant question. Job Description: """%s"""`, sc.JobDescription)
	} else {
		grounding = fmt.Sprintf(`Ask a common and relevant interview question for a **%s** position.`, sc.Role)
	}

	return fmt.Sprintf(`%s %sThe candidate answered: "%s". %s %s This is role-specific question %d of %d.`,
		languageDirective(sc.Language), transition, sc.UserAnswer, grounding, noGreetingDirective,
		sc.RoleQuestionsAsked+1, sc.NumRoleQuestions)
}

func personalityPrompt(sc *model.SessionContext) string {
	transition := ""
	if sc.PersonalityQuestionsAsked == 0 {
		transition = "Great. Finally, I'd like to ask a few questions to understand you better. "
	}

	return fmt.Sprintf(`%s %sThe candidate answered: "%s". Now, ask a new, DIFFERENT personality or behavioral question. DO NOT repeat a question that has already been asked in the chat history. Possible topics include (but are not limited to): - The candidate's greatest professional strength. - The candidate's biggest area for improvement or weakness. - How they handle pressure or tight deadlines. - A time they failed and what they learned. - Their ideal work environment. - How they stay motivated. Review the chat history below to ensure your question is unique. CHAT HISTORY: """%s""" %s This is personality question %d of %d.`,
		languageDirective(sc.Language), transition, sc.UserAnswer, formatHistory(sc.FullChatHistory),
		noGreetingDirective, sc.PersonalityQuestionsAsked+1, sc.NumPersonalityQuestions)
}

func closingPrompt(sc *model.SessionContext) string {
	return fmt.Sprintf(`%s The candidate's last answer was: "%s". The interview is now over. Thank %s for their time and briefly explain the next steps. **Do not mention a specific number of days or a timeline like "[Number] business days". Keep it general.**`,
		languageDirective(sc.Language), sc.UserAnswer, sc.UserName)
}

func postAnswerAnalysisPrompt(sc *model.SessionContext) string {
	return fmt.Sprintf(`You are a career coach. Analyze an interview answer and provide feedback directly to the candidate, using "You" or the equivalent in the target language. The question asked was: "%s". The candidate's answer was: "%s". Your task is to provide a concise, objective analysis. **IMPORTANT: Your entire response, including all keys and values in the JSON, MUST be in %s.** Respond with ONLY a valid JSON object with two keys: - "score": a number out of 10. - "feedback": constructive and concise feedback for the candidate, limited to 2-3 sentences. Do not include any other text.`,
		sc.LastQuestion, sc.UserAnswer, sc.Language)
}

func preAnswerAnalysisPrompt(question string, sc *model.SessionContext) string {
	summary := ""
	if strings.TrimSpace(sc.ProfileSummary) != "" {
		summary = fmt.Sprintf("CANDIDATE'S PROFILE SUMMARY:\n\"\"\"%s\"\"\"", sc.ProfileSummary)
	}
	return fmt.Sprintf(`You are a career coach. For the interview question: "%s", provide helpful guidance for a candidate. Your task is to write an example of a high-quality answer as if you were the candidate. CRUCIALLY, you MUST use the specific facts from the candidate's CV and Profile Summary. CANDIDATE'S CV TEXT: """%s""" %s **IMPORTANT: Your entire response, including all keys and values in the JSON, MUST be in %s.** Respond with ONLY a valid JSON object with two keys: - "hint": a brief, one-sentence tip. - "exampleAnswer": a concise but strong example answer, limited to about 50-200 words. Do not include any other text.`,
		question, sc.CVText, summary, sc.Language)
}

func summaryPrompt(history []model.ChatTurn, analyses []model.PostAnswerAnalysis, language string) string {
	transcript, _ := json.Marshal(history)
	analysisList, _ := json.Marshal(analyses)
	return fmt.Sprintf(`You are an expert career coach. Analyze the entire following job interview transcript and the individual analyses provided. The interview language was %s. Your entire response MUST be in %s and in a valid JSON format only. INTERVIEW TRANSCRIPT:---%s--- INDIVIDUAL QUESTION ANALYSES:---%s--- Based on ALL the information, provide a final summary. Respond with ONLY a valid JSON object with the following keys: - "finalScore": An average score out of 10. - "strengths": A markdown-formatted string summarizing the candidate's key strengths. Keep each point concise. - "areasForImprovement": A markdown-formatted string summarizing the main areas for improvement. Keep each point concise and actionable.`,
		language, language, transcript, analysisList)
}

// NameExtractionPrompt asks the model to pull the candidate's name out of a
// freshly extracted CV. Used once, on the GREETING call with an upload.
func NameExtractionPrompt(cvText string) string {
	return fmt.Sprintf(`From the following CV text, extract the candidate's full name. Respond with ONLY the name and nothing else. If you cannot find a name, respond with 'Candidate'. CV Text: """%s"""`, cvText)
}

func formatHistory(turns []model.ChatTurn) string {
	if len(turns) == 0 {
		return "no prior conversation"
	}
	var b strings.Builder
	for i, turn := range turns {
		role := "Candidate"
		if strings.EqualFold(turn.Sender, "ai") {
			role = "Interviewer"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(turn.Text)
		if i < len(turns)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
