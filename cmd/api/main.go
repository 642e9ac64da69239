package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/prasetyawibawa/ai-interview-coach/backend/internal/config"
	"github.com/prasetyawibawa/ai-interview-coach/backend/internal/handler"
	interviewHandler "github.com/prasetyawibawa/ai-interview-coach/backend/internal/handler/interview"
	"github.com/prasetyawibawa/ai-interview-coach/backend/internal/service/ai"
	"github.com/prasetyawibawa/ai-interview-coach/backend/internal/service/document"
	"github.com/prasetyawibawa/ai-interview-coach/backend/internal/service/interview"
	"github.com/prasetyawibawa/ai-interview-coach/backend/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	var (
		turns     interviewHandler.TurnService
		extractor interviewHandler.CVExtractor
	)
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize chat model: %v", err)
			log.Println("continuing without interview functionality")
		} else {
			client := ai.NewClient(chatModel)
			turns = interview.NewOrchestrator(client)
			extractor = document.NewExtractor(client)
			log.Println("interview service initialized")
		}
	} else {
		log.Println("model credentials not configured, interview endpoints disabled")
	}

	var (
		recognizer  speech.Recognizer
		synthesizer interviewHandler.Synthesizer
	)
	if cfg.Speech.Enabled {
		speechCfg := speech.Config{
			AppID:       cfg.Speech.AppID,
			AccessToken: cfg.Speech.AccessToken,
			ResourceID:  cfg.Speech.ResourceID,
			ASRBaseURL:  cfg.Speech.ASRBaseURL,
			TTSBaseURL:  cfg.Speech.TTSBaseURL,
			Voice:       cfg.Speech.Voice,
		}
		recognizer = speech.NewStreamingRecognizer(speechCfg)
		synthesizer = speech.NewWSSynthesizer(speechCfg)
		log.Println("speech services initialized")
	} else {
		log.Println("speech credentials not configured, transcription and synthesis disabled")
	}

	router := handler.NewRouter(turns, extractor, synthesizer, recognizer)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("interview coach backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
