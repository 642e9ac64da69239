package speech

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
)

// ErrRelayClosed is returned for control traffic after the relay has shut
// down.
var ErrRelayClosed = errors.New("transcription relay is closed")

type relayState int

const (
	stateIdle relayState = iota
	stateConfigured
	stateStreaming
	stateClosed
)

func (s relayState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConfigured:
		return "configured"
	case stateStreaming:
		return "streaming"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sink is the client side of the relay. Implementations must serialize
// their own writes.
type Sink interface {
	// SendControl delivers a JSON control message (ready ack, error).
	SendControl(v any) error
	// SendResult delivers one upstream result payload verbatim.
	SendResult(payload []byte) error
}

// controlEnvelope is the client's control message format. Exactly one
// field is expected per message.
type controlEnvelope struct {
	Config *struct {
		LanguageCode string `json:"languageCode"`
	} `json:"config"`
	Event string `json:"event"`
}

// Relay bridges one client websocket to one upstream recognition stream.
// Frames are discriminated by websocket message type: text frames are
// control JSON, binary frames are audio. Audio that arrives with no live
// upstream stream is dropped, never buffered.
type Relay struct {
	recognizer Recognizer
	sink       Sink

	mu     sync.Mutex
	state  relayState
	stream Stream
	// draining holds a gracefully finished stream until the client
	// connection goes away, so Close can still tear it down if the
	// upstream never delivers its final packet.
	draining Stream
}

func NewRelay(recognizer Recognizer, sink Sink) *Relay {
	return &Relay{recognizer: recognizer, sink: sink}
}

// HandleControl processes one text frame. Malformed JSON is logged and
// skipped; the session survives. A config message that fails to open the
// upstream stream is fatal and returns an error so the caller can close
// the connection.
func (r *Relay) HandleControl(ctx context.Context, data []byte) error {
	var env controlEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("[relay] ignoring malformed control message: %v", err)
		return nil
	}

	switch {
	case env.Config != nil:
		return r.configure(ctx, StreamConfig{LanguageCode: env.Config.LanguageCode})
	case env.Event == "stop":
		r.stop()
		return nil
	default:
		log.Printf("[relay] ignoring unrecognized control message")
		return nil
	}
}

// configure opens the upstream stream. A repeated config replaces the
// previous stream: the old one is destroyed first so no frame can reach
// two recognizers.
func (r *Relay) configure(ctx context.Context, cfg StreamConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateClosed {
		return ErrRelayClosed
	}

	if r.stream != nil {
		log.Printf("[relay] reconfiguring, destroying previous stream")
		r.stream.Destroy()
		r.stream = nil
	}

	// The error callback must only tear down the stream it came from;
	// origin is written below while the mutex is still held, and
	// failUpstream reads it under the same mutex.
	origin := new(Stream)
	stream, err := r.recognizer.OpenStream(ctx, cfg, r.forwardResult, func(cause error) {
		r.failUpstream(origin, cause)
	})
	if err != nil {
		r.state = stateClosed
		log.Printf("[relay] failed to open recognition stream: %v", err)
		return err
	}

	*origin = stream
	r.stream = stream
	r.state = stateConfigured

	// The ack goes out only after the upstream session is established, so
	// the client never streams audio into the void.
	if err := r.sink.SendControl(map[string]string{"status": "ready"}); err != nil {
		log.Printf("[relay] failed to send ready ack: %v", err)
	}
	return nil
}

// HandleAudio processes one binary frame. Chunks reach the upstream in
// arrival order; chunks with no live stream are dropped.
func (r *Relay) HandleAudio(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream == nil || (r.state != stateConfigured && r.state != stateStreaming) {
		log.Printf("[relay] dropping %d audio bytes, state=%s", len(data), r.state)
		return
	}

	if r.state == stateConfigured {
		r.state = stateStreaming
	}

	if err := r.stream.Write(data); err != nil {
		log.Printf("[relay] audio write failed: %v", err)
		r.stream.Destroy()
		r.stream = nil
		r.state = stateClosed
	}
}

// stop ends the session gracefully: the upstream finishes decoding what it
// has and trailing results still flow to the client. Stop with no session
// is a no-op.
func (r *Relay) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream == nil {
		return
	}

	if err := r.stream.Finish(); err != nil {
		log.Printf("[relay] graceful finish failed: %v", err)
		r.stream.Destroy()
	} else {
		// Trailing results still flow through the callbacks; the stream
		// stays reachable so Close can reclaim it.
		r.draining = r.stream
	}
	r.stream = nil
	r.state = stateClosed
}

// Close tears the relay down immediately. Used when the client connection
// is gone, so there is no one left to flush results to.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream != nil {
		r.stream.Destroy()
		r.stream = nil
	}
	if r.draining != nil {
		r.draining.Destroy()
		r.draining = nil
	}
	r.state = stateClosed
}

// forwardResult passes one upstream result to the client unmodified.
func (r *Relay) forwardResult(payload []byte) {
	if err := r.sink.SendResult(payload); err != nil {
		// Client write failed; the frame is dropped rather than queued.
		log.Printf("[relay] dropping result, client write failed: %v", err)
	}
}

// failUpstream handles a fatal upstream error: report it to the client and
// end the session. Errors from a stream that was already replaced by a
// reconfigure are ignored so they cannot tear down the live session.
func (r *Relay) failUpstream(origin *Stream, err error) {
	r.mu.Lock()
	if *origin != r.stream && *origin != r.draining {
		r.mu.Unlock()
		log.Printf("[relay] ignoring failure from a replaced stream: %v", err)
		return
	}
	log.Printf("[relay] upstream recognition failed: %v", err)
	if r.stream != nil {
		r.stream.Destroy()
		r.stream = nil
	}
	if r.draining != nil {
		r.draining.Destroy()
		r.draining = nil
	}
	r.state = stateClosed
	r.mu.Unlock()

	if serr := r.sink.SendControl(map[string]string{"error": "transcription failed"}); serr != nil {
		log.Printf("[relay] failed to report upstream error to client: %v", serr)
	}
}
