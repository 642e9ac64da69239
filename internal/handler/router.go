package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	interviewHandler "github.com/prasetyawibawa/ai-interview-coach/backend/internal/handler/interview"
	"github.com/prasetyawibawa/ai-interview-coach/backend/internal/handler/transcribe"
	middlewarePkg "github.com/prasetyawibawa/ai-interview-coach/backend/internal/middleware"
	"github.com/prasetyawibawa/ai-interview-coach/backend/internal/service/speech"
	"github.com/prasetyawibawa/ai-interview-coach/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. Nil services disable their
// routes instead of panicking, so the server still comes up partially
// configured.
func NewRouter(turns interviewHandler.TurnService, extractor interviewHandler.CVExtractor, synthesizer interviewHandler.Synthesizer, recognizer speech.Recognizer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		if turns != nil {
			interviewHandler.New(turns, extractor, synthesizer).RegisterRoutes(api)
		} else {
			api.Post("/interview/next-step", serviceUnavailable)
			api.Post("/interview/summarize", serviceUnavailable)
		}

		if recognizer != nil {
			transcribe.New(recognizer).RegisterRoutes(api)
		} else {
			api.Get("/transcribe", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "transcription service unavailable")
			})
		}
	})

	return r
}

func serviceUnavailable(w http.ResponseWriter, _ *http.Request) {
	utils.RespondError(w, http.StatusServiceUnavailable, "interview service unavailable")
}
