package transcribe

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/prasetyawibawa/ai-interview-coach/backend/internal/service/speech"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Handler owns the live transcription websocket endpoint. Each connection
// gets its own relay bridging it to an upstream recognition stream.
type Handler struct {
	recognizer speech.Recognizer
	upgrader   websocket.Upgrader
}

func New(recognizer speech.Recognizer) *Handler {
	return &Handler{
		recognizer: recognizer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/transcribe", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] transcription client connected: %s", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sink := &wsSink{conn: conn}
	relay := speech.NewRelay(h.recognizer, sink)
	defer relay.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, sink)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))

		// Text frames are control JSON; binary frames are audio. The frame
		// type decides, not the frame contents.
		switch msgType {
		case websocket.TextMessage:
			if err := relay.HandleControl(ctx, data); err != nil {
				log.Printf("[websocket] closing connection, control handling failed: %v", err)
				return
			}
		case websocket.BinaryMessage:
			relay.HandleAudio(data)
		default:
			log.Printf("[websocket] ignoring frame type %d", msgType)
		}
	}
}

func (h *Handler) pingLoop(ctx context.Context, sink *wsSink) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sink.ping(); err != nil {
				return
			}
		}
	}
}

// wsSink serializes all writes to the client connection: the relay's
// result callbacks, control acks, and the ping loop race otherwise.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) SendControl(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *wsSink) SendResult(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSink) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}
