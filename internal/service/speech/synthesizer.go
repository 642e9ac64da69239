package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultTTSURL      = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"
	defaultTTSResource = "volc.service_type.10029"
	defaultTTSVoice    = "en_female_amy_jupiter_bigtts"
	ttsSampleRate      = 24000
)

// Synthesizer turns interviewer utterances into playable audio. The result
// is a complete MP3 clip, not a stream. An empty voice selects the
// configured default.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language, voice string) ([]byte, error)
}

// WSSynthesizer speaks the upstream binary websocket TTS protocol: one
// connection per utterance, audio chunks accumulated until the session
// finishes.
type WSSynthesizer struct {
	config Config
	dialer *websocket.Dialer
}

func NewWSSynthesizer(config Config) *WSSynthesizer {
	return &WSSynthesizer{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

type ttsRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string `json:"speaker"`
		Text        string `json:"text"`
		AudioParams struct {
			Format     string `json:"format"`
			SampleRate int    `json:"sample_rate"`
		} `json:"audio_params"`
		Language string `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
}

// Synthesize renders one utterance as MP3 bytes.
func (s *WSSynthesizer) Synthesize(ctx context.Context, text, language, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("synthesis text is empty")
	}

	appID := strings.TrimSpace(s.config.AppID)
	token := strings.TrimSpace(s.config.AccessToken)
	if appID == "" || token == "" {
		return nil, fmt.Errorf("synthesizer credentials missing")
	}

	wsURL := s.config.TTSBaseURL
	if wsURL == "" {
		wsURL = defaultTTSURL
	}

	connectID := uuid.NewString()
	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", defaultTTSResource)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := s.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to synthesizer: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			log.Printf("[tts] connected connect_id=%s logid=%s", connectID, logid)
		}
	}

	if err := s.sendRequest(conn, connectID, text, language, voice); err != nil {
		return nil, err
	}
	return collectAudio(ctx, conn)
}

// sendRequest sends the full-client request. The request voice wins over
// the configured default.
func (s *WSSynthesizer) sendRequest(conn *websocket.Conn, connectID, text, language, voice string) error {
	voice = strings.TrimSpace(voice)
	if voice == "" {
		voice = strings.TrimSpace(s.config.Voice)
	}
	if voice == "" {
		voice = defaultTTSVoice
	}

	var req ttsRequest
	req.User.UID = connectID
	req.ReqParams.Speaker = voice
	req.ReqParams.Text = text
	req.ReqParams.AudioParams.Format = "mp3"
	req.ReqParams.AudioParams.SampleRate = ttsSampleRate
	req.ReqParams.Language = strings.TrimSpace(language)

	payload, err := json.Marshal(&req)
	if err != nil {
		return fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	frame, err := EncodeMessage(NewFullClientRequest(payload, NoCompression))
	if err != nil {
		return fmt.Errorf("failed to encode synthesis request: %w", err)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}
	return nil
}

func collectAudio(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	var audio bytes.Buffer

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read synthesis response: %w", err)
		}

		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode synthesis frame: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			payload, derr := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if derr != nil {
				return nil, fmt.Errorf("synthesizer error %d (payload unreadable: %v)", msg.ErrorCode, derr)
			}
			return nil, fmt.Errorf("synthesizer error %d: %s", msg.ErrorCode, payload)

		case AudioOnlyServerResponse:
			chunk, derr := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if derr != nil {
				return nil, fmt.Errorf("failed to decompress audio chunk: %w", derr)
			}
			audio.Write(chunk)
			if msg.IsLastPacket() {
				return finishAudio(&audio)
			}

		case FullServerResponse:
			payload, derr := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if derr != nil {
				return nil, fmt.Errorf("failed to decompress synthesis response: %w", derr)
			}

			var serverResp ttsServerMessage
			if len(payload) > 0 {
				if uerr := json.Unmarshal(payload, &serverResp); uerr != nil {
					log.Printf("[tts] unreadable response payload: %v", uerr)
				} else {
					if serverResp.Code != 0 && serverResp.Code != 3000 {
						return nil, fmt.Errorf("synthesizer error %d: %s", serverResp.Code, serverResp.Message)
					}
					if serverResp.Data != "" {
						chunk, berr := base64.StdEncoding.DecodeString(serverResp.Data)
						if berr != nil {
							return nil, fmt.Errorf("failed to decode audio chunk: %w", berr)
						}
						audio.Write(chunk)
					}
				}
			}

			sessionDone := msg.Header.MessageFlags == WithEvent && msg.EventType == EventTypeSessionFinished
			if sessionDone || msg.IsLastPacket() || serverResp.Sequence < 0 {
				return finishAudio(&audio)
			}

		default:
			log.Printf("[tts] unexpected message type: %d", msg.Header.MessageType)
		}
	}
}

func finishAudio(buf *bytes.Buffer) ([]byte, error) {
	if buf.Len() == 0 {
		return nil, fmt.Errorf("synthesizer returned no audio")
	}
	return buf.Bytes(), nil
}
