package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config carries the upstream speech service credentials and endpoints.
type Config struct {
	AppID       string
	AccessToken string
	ResourceID  string
	ASRBaseURL  string
	TTSBaseURL  string
	Voice       string // default synthesis voice
}

// Fixed recognition profile: the client always records Opus in a WebM
// container at 48 kHz, and transcripts come back punctuated.
const (
	audioContainer   = "webm"
	audioCodec       = "opus"
	audioSampleRate  = 48000
	defaultASRURL    = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel"
	defaultResource  = "volc.bigasr.sauc.duration"
	handshakeTimeout = 30 * time.Second
)

// ErrStreamClosed is returned for writes after Finish or Destroy.
var ErrStreamClosed = errors.New("recognizer stream is closed")

// StreamConfig is negotiated per relay session from the client's config
// control message.
type StreamConfig struct {
	LanguageCode string
}

// ResultHandler receives each upstream result payload verbatim, in the
// order the upstream delivered it.
type ResultHandler func(payload []byte)

// ErrorHandler receives the first fatal upstream error of a stream.
type ErrorHandler func(err error)

// Stream is one live upstream recognition session.
type Stream interface {
	// Write forwards one audio chunk. Order of calls is preserved on the
	// wire.
	Write(audio []byte) error
	// Finish signals end-of-stream so trailing results can still flush.
	Finish() error
	// Destroy tears the session down immediately, with no flush.
	Destroy()
}

// Recognizer opens upstream streaming recognition sessions.
type Recognizer interface {
	OpenStream(ctx context.Context, cfg StreamConfig, onResult ResultHandler, onErr ErrorHandler) (Stream, error)
}

// StreamingRecognizer talks to the upstream big-model ASR service over its
// binary websocket protocol.
type StreamingRecognizer struct {
	config Config
	dialer *websocket.Dialer
}

func NewStreamingRecognizer(config Config) *StreamingRecognizer {
	return &StreamingRecognizer{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

type asrSessionRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user,omitempty"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
	} `json:"request"`
}

// OpenStream dials the recognizer, sends the session configuration with
// the fixed audio profile, and starts the read pump that forwards results.
func (r *StreamingRecognizer) OpenStream(ctx context.Context, cfg StreamConfig, onResult ResultHandler, onErr ErrorHandler) (Stream, error) {
	wsURL := r.config.ASRBaseURL
	if wsURL == "" {
		wsURL = defaultASRURL
	}

	appID := strings.TrimSpace(r.config.AppID)
	token := strings.TrimSpace(r.config.AccessToken)
	if appID == "" || token == "" {
		return nil, fmt.Errorf("recognizer credentials missing")
	}

	resourceID := r.config.ResourceID
	if resourceID == "" {
		resourceID = defaultResource
	}

	connectID := uuid.NewString()
	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := r.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to recognizer: %w", err)
	}
	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			log.Printf("[asr] connected connect_id=%s logid=%s", connectID, logid)
		}
	}

	if err := sendSessionRequest(conn, connectID, cfg); err != nil {
		conn.Close()
		return nil, err
	}

	stream := &recognizerStream{conn: conn, seq: 1}
	go stream.readPump(onResult, onErr)
	return stream, nil
}

func sendSessionRequest(conn *websocket.Conn, connectID string, cfg StreamConfig) error {
	var req asrSessionRequest
	req.User.UID = connectID
	req.Audio.Format = audioContainer
	req.Audio.Codec = audioCodec
	req.Audio.Rate = audioSampleRate
	req.Audio.Channel = 1
	req.Audio.Language = cfg.LanguageCode
	req.Request.ModelName = "bigmodel"
	req.Request.EnablePunc = true
	req.Request.EnableITN = true
	req.Request.ShowUtterances = true
	req.Request.ResultType = "full"

	payload, err := json.Marshal(&req)
	if err != nil {
		return fmt.Errorf("failed to marshal session request: %w", err)
	}

	compressed, err := CompressPayload(payload, GzipCompression)
	if err != nil {
		return fmt.Errorf("failed to compress session request: %w", err)
	}

	frame, err := EncodeMessage(NewFullClientRequest(compressed, GzipCompression))
	if err != nil {
		return fmt.Errorf("failed to encode session request: %w", err)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to send session request: %w", err)
	}
	return nil
}

// recognizerStream owns one upstream connection. Writes are serialized;
// the read pump is the only reader and closes the connection when the
// stream ends.
type recognizerStream struct {
	conn *websocket.Conn

	mu     sync.Mutex
	seq    int32 // session request occupies sequence 1
	closed bool

	destroyed atomic.Bool
}

func (s *recognizerStream) Write(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	return s.writeAudioLocked(audio, false)
}

func (s *recognizerStream) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	// Empty last packet; the read pump stays alive to flush trailing
	// results and closes the connection itself.
	return s.writeAudioLocked(nil, true)
}

func (s *recognizerStream) Destroy() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.destroyed.CompareAndSwap(false, true) {
		s.conn.Close()
	}
}

func (s *recognizerStream) writeAudioLocked(audio []byte, isLast bool) error {
	compressed, err := CompressPayload(audio, GzipCompression)
	if err != nil {
		return fmt.Errorf("failed to compress audio chunk: %w", err)
	}

	s.seq++
	frame, err := EncodeMessage(NewAudioOnlyRequest(compressed, s.seq, isLast, GzipCompression))
	if err != nil {
		return fmt.Errorf("failed to encode audio chunk: %w", err)
	}

	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to send audio chunk: %w", err)
	}
	return nil
}

func (s *recognizerStream) readPump(onResult ResultHandler, onErr ErrorHandler) {
	defer s.conn.Close()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.destroyed.Load() {
				onErr(fmt.Errorf("recognizer read failed: %w", err))
			}
			return
		}

		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			onErr(fmt.Errorf("failed to decode recognizer frame: %w", err))
			return
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			payload, derr := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if derr != nil {
				onErr(fmt.Errorf("recognizer error %d (payload unreadable: %v)", msg.ErrorCode, derr))
				return
			}
			onErr(fmt.Errorf("recognizer error %d: %s", msg.ErrorCode, payload))
			return

		case FullServerResponse:
			payload, derr := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if derr != nil {
				onErr(fmt.Errorf("failed to decompress recognizer result: %w", derr))
				return
			}
			onResult(payload)
			if msg.IsLastPacket() {
				return
			}

		default:
			// Audio acks and other frame kinds carry nothing for us.
		}
	}
}
