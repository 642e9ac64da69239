package interview

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	model "github.com/prasetyawibawa/ai-interview-coach/backend/internal/model/interview"
	"github.com/prasetyawibawa/ai-interview-coach/backend/pkg/utils"
)

// maxCVSize caps uploaded CV files at 10 MB.
const maxCVSize = 10 << 20

// TurnService runs interview turns and produces the final summary.
type TurnService interface {
	ProcessTurn(ctx context.Context, sc *model.SessionContext) (*model.TurnResult, error)
	Summarize(ctx context.Context, history []model.ChatTurn, analyses []model.PostAnswerAnalysis, language string) (*model.Summary, error)
}

// CVExtractor turns an uploaded CV into text and a candidate name.
type CVExtractor interface {
	ExtractCV(ctx context.Context, data []byte) (text, name string)
}

// Synthesizer voices the interviewer's reply. Optional; synthesis failure
// never fails a turn. An empty voice selects the configured default.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language, voice string) ([]byte, error)
}

// Handler exposes the interview REST endpoints.
type Handler struct {
	turns       TurnService
	extractor   CVExtractor
	synthesizer Synthesizer
}

func New(turns TurnService, extractor CVExtractor, synthesizer Synthesizer) *Handler {
	return &Handler{turns: turns, extractor: extractor, synthesizer: synthesizer}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/interview/next-step", h.handleNextStep)
	r.Post("/interview/summarize", h.handleSummarize)
}

type turnResponse struct {
	*model.TurnResult
	CVText       string `json:"cvText,omitempty"`
	UserName     string `json:"userName,omitempty"`
	AudioContent string `json:"audioContent,omitempty"`
}

type summarizeRequest struct {
	FullChatHistory []model.ChatTurn           `json:"fullChatHistory"`
	AllAnalyses     []model.PostAnswerAnalysis `json:"allAnalyses"`
	Language        string                     `json:"language"`
}

// handleNextStep runs one interview turn. The first turn arrives as
// multipart form data carrying the CV file; later turns are plain JSON.
func (h *Handler) handleNextStep(w http.ResponseWriter, r *http.Request) {
	sc, cvData, err := h.parseTurnRequest(r)
	if err != nil {
		log.Printf("[interview] bad next-step request: %v", err)
		utils.RespondError(w, http.StatusBadRequest, "invalid interview request")
		return
	}

	if sc.Phase == "" {
		sc.Phase = model.PhaseGreeting
	} else if _, err := model.ParsePhase(string(sc.Phase)); err != nil {
		log.Printf("[interview] bad next-step request: %v", err)
		utils.RespondError(w, http.StatusBadRequest, "invalid interview request")
		return
	}

	if len(cvData) > 0 && h.extractor != nil {
		sc.CVText, sc.UserName = h.extractor.ExtractCV(r.Context(), cvData)
	}

	sc.ClampCounters()

	result, err := h.turns.ProcessTurn(r.Context(), sc)
	if err != nil {
		log.Printf("[interview] next-step failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to process interview step")
		return
	}

	resp := turnResponse{
		TurnResult: result,
		CVText:     sc.CVText,
		UserName:   sc.UserName,
	}
	resp.AudioContent = h.voiceReply(r.Context(), result.ConversationalResponse, sc.Language, sc.SelectedVoice)

	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[interview] bad summarize request: %v", err)
		utils.RespondError(w, http.StatusBadRequest, "invalid summarize request")
		return
	}

	summary, err := h.turns.Summarize(r.Context(), req.FullChatHistory, req.AllAnalyses, req.Language)
	if err != nil {
		log.Printf("[interview] summarize failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to generate summary")
		return
	}

	utils.RespondJSON(w, http.StatusOK, summary)
}

// parseTurnRequest accepts either a JSON body or a multipart form with a
// "context" JSON field and an optional "cvFile" part.
func (h *Handler) parseTurnRequest(r *http.Request) (*model.SessionContext, []byte, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxCVSize); err != nil {
			return nil, nil, err
		}

		var sc model.SessionContext
		if raw := r.FormValue("context"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &sc); err != nil {
				return nil, nil, err
			}
		}

		cvData := readCVFile(r)
		return &sc, cvData, nil
	}

	var sc model.SessionContext
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		return nil, nil, err
	}
	return &sc, nil, nil
}

func readCVFile(r *http.Request) []byte {
	file, _, err := r.FormFile("cvFile")
	if err != nil {
		return nil
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxCVSize))
	if err != nil {
		log.Printf("[interview] failed to read CV upload: %v", err)
		return nil
	}
	return data
}

// voiceReply synthesizes the interviewer's reply. Best effort: a turn with
// no audio is still a valid turn.
func (h *Handler) voiceReply(ctx context.Context, text, language, voice string) string {
	if h.synthesizer == nil || strings.TrimSpace(text) == "" {
		return ""
	}

	audio, err := h.synthesizer.Synthesize(ctx, text, language, voice)
	if err != nil {
		log.Printf("[interview] synthesis failed, returning text only: %v", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(audio)
}
