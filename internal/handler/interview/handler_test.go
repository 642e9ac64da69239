package interview

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	model "github.com/prasetyawibawa/ai-interview-coach/backend/internal/model/interview"
)

type fakeTurnService struct {
	result  *model.TurnResult
	summary *model.Summary
	err     error
	lastSC  *model.SessionContext
}

func (f *fakeTurnService) ProcessTurn(_ context.Context, sc *model.SessionContext) (*model.TurnResult, error) {
	f.lastSC = sc
	return f.result, f.err
}

func (f *fakeTurnService) Summarize(context.Context, []model.ChatTurn, []model.PostAnswerAnalysis, string) (*model.Summary, error) {
	return f.summary, f.err
}

type fakeExtractor struct {
	text string
	name string
	seen []byte
}

func (f *fakeExtractor) ExtractCV(_ context.Context, data []byte) (string, string) {
	f.seen = data
	return f.text, f.name
}

type fakeSynthesizer struct {
	audio     []byte
	err       error
	lastVoice string
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, _, _, voice string) ([]byte, error) {
	f.lastVoice = voice
	return f.audio, f.err
}

func testRouter(turns TurnService, extractor CVExtractor, synth Synthesizer) http.Handler {
	r := chi.NewRouter()
	New(turns, extractor, synth).RegisterRoutes(r)
	return r
}

func defaultTurnResult() *model.TurnResult {
	return &model.TurnResult{
		ConversationalResponse: "Tell me about yourself.",
		NextPhase:              model.PhaseIntroduction,
	}
}

func TestNextStepJSONRequest(t *testing.T) {
	turns := &fakeTurnService{result: defaultTurnResult()}
	synth := &fakeSynthesizer{audio: []byte("mp3-bytes")}
	router := testRouter(turns, &fakeExtractor{}, synth)

	body := `{"phase":"GREETING","role":"Backend Engineer","language":"English","numExpQuestions":3}`
	req := httptest.NewRequest(http.MethodPost, "/interview/next-step", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ConversationalResponse string `json:"conversationalResponse"`
		NextPhase              string `json:"nextPhase"`
		AudioContent           string `json:"audioContent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.ConversationalResponse != "Tell me about yourself." {
		t.Fatalf("unexpected reply: %q", resp.ConversationalResponse)
	}
	if resp.NextPhase != "INTRODUCTION" {
		t.Fatalf("unexpected next phase: %q", resp.NextPhase)
	}
	if resp.AudioContent != base64.StdEncoding.EncodeToString([]byte("mp3-bytes")) {
		t.Fatalf("audio not base64 encoded: %q", resp.AudioContent)
	}
	if turns.lastSC.Role != "Backend Engineer" {
		t.Fatalf("session context not forwarded: %+v", turns.lastSC)
	}
}

func TestNextStepMultipartWithCV(t *testing.T) {
	turns := &fakeTurnService{result: defaultTurnResult()}
	extractor := &fakeExtractor{text: "cv contents", name: "Siti Rahma"}
	router := testRouter(turns, extractor, nil)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	form.WriteField("context", `{"phase":"GREETING","language":"English"}`)
	part, err := form.CreateFormFile("cvFile", "cv.pdf")
	if err != nil {
		t.Fatalf("form setup failed: %v", err)
	}
	part.Write([]byte("%PDF-fake"))
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/interview/next-step", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if string(extractor.seen) != "%PDF-fake" {
		t.Fatalf("extractor did not receive the upload: %q", extractor.seen)
	}
	if turns.lastSC.CVText != "cv contents" || turns.lastSC.UserName != "Siti Rahma" {
		t.Fatalf("extraction results not injected: %+v", turns.lastSC)
	}

	var resp struct {
		CVText   string `json:"cvText"`
		UserName string `json:"userName"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.CVText != "cv contents" || resp.UserName != "Siti Rahma" {
		t.Fatalf("extraction results missing from response: %+v", resp)
	}
}

func TestNextStepClampsNegativeCounters(t *testing.T) {
	turns := &fakeTurnService{result: defaultTurnResult()}
	router := testRouter(turns, nil, nil)

	body := `{"phase":"EXPERIENCE","expQuestionsAsked":-3,"numExpQuestions":-1}`
	req := httptest.NewRequest(http.MethodPost, "/interview/next-step", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if turns.lastSC.ExpQuestionsAsked != 0 || turns.lastSC.NumExpQuestions != 0 {
		t.Fatalf("counters not clamped: %+v", turns.lastSC)
	}
}

func TestNextStepForwardsSelectedVoice(t *testing.T) {
	turns := &fakeTurnService{result: defaultTurnResult()}
	synth := &fakeSynthesizer{audio: []byte("mp3-bytes")}
	router := testRouter(turns, nil, synth)

	body := `{"phase":"GREETING","language":"English","selectedVoice":"id_male_bayu_bigtts"}`
	req := httptest.NewRequest(http.MethodPost, "/interview/next-step", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if synth.lastVoice != "id_male_bayu_bigtts" {
		t.Fatalf("selected voice not forwarded, got %q", synth.lastVoice)
	}
}

func TestNextStepSynthesisFailureIsNonFatal(t *testing.T) {
	turns := &fakeTurnService{result: defaultTurnResult()}
	synth := &fakeSynthesizer{err: errors.New("tts down")}
	router := testRouter(turns, nil, synth)

	req := httptest.NewRequest(http.MethodPost, "/interview/next-step", strings.NewReader(`{"phase":"GREETING"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("synthesis failure must not fail the turn, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "audioContent") {
		t.Fatalf("failed synthesis must omit audio: %s", rec.Body.String())
	}
}

func TestNextStepTurnFailure(t *testing.T) {
	turns := &fakeTurnService{err: errors.New("model exploded")}
	router := testRouter(turns, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/interview/next-step", strings.NewReader(`{"phase":"GREETING"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "failed to process interview step") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestNextStepRejectsBadJSON(t *testing.T) {
	router := testRouter(&fakeTurnService{result: defaultTurnResult()}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/interview/next-step", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestNextStepRejectsUnknownPhase(t *testing.T) {
	router := testRouter(&fakeTurnService{result: defaultTurnResult()}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/interview/next-step", strings.NewReader(`{"phase":"WARMUP"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown phase, got %d", rec.Code)
	}
}

func TestNextStepDefaultsEmptyPhaseToGreeting(t *testing.T) {
	turns := &fakeTurnService{result: defaultTurnResult()}
	router := testRouter(turns, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/interview/next-step", strings.NewReader(`{"language":"English"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if turns.lastSC.Phase != model.PhaseGreeting {
		t.Fatalf("missing phase must default to GREETING, got %s", turns.lastSC.Phase)
	}
}

func TestSummarize(t *testing.T) {
	turns := &fakeTurnService{summary: &model.Summary{
		FinalScore:          7.5,
		Strengths:           "- clear",
		AreasForImprovement: "- quantify",
	}}
	router := testRouter(turns, nil, nil)

	body := `{"fullChatHistory":[{"sender":"ai","text":"hi"}],"allAnalyses":[],"language":"English"}`
	req := httptest.NewRequest(http.MethodPost, "/interview/summarize", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var summary model.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if summary.FinalScore != 7.5 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestSummarizeFailure(t *testing.T) {
	turns := &fakeTurnService{err: errors.New("model exploded")}
	router := testRouter(turns, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/interview/summarize", strings.NewReader(`{"language":"English"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "failed to generate summary") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}
