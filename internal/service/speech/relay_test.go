package speech

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

type fakeStream struct {
	writes    [][]byte
	finished  bool
	destroyed bool
	writeErr  error
}

func (s *fakeStream) Write(audio []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes = append(s.writes, audio)
	return nil
}

func (s *fakeStream) Finish() error {
	s.finished = true
	return nil
}

func (s *fakeStream) Destroy() {
	s.destroyed = true
}

type fakeRecognizer struct {
	streams     []*fakeStream
	openErr     error
	lastCfg     StreamConfig
	onResult    ResultHandler
	onErr       ErrorHandler
	errHandlers []ErrorHandler
}

func (r *fakeRecognizer) OpenStream(_ context.Context, cfg StreamConfig, onResult ResultHandler, onErr ErrorHandler) (Stream, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	r.lastCfg = cfg
	r.onResult = onResult
	r.onErr = onErr
	r.errHandlers = append(r.errHandlers, onErr)
	stream := &fakeStream{}
	r.streams = append(r.streams, stream)
	return stream, nil
}

type fakeSink struct {
	controls  []any
	results   [][]byte
	resultErr error
}

func (s *fakeSink) SendControl(v any) error {
	s.controls = append(s.controls, v)
	return nil
}

func (s *fakeSink) SendResult(payload []byte) error {
	if s.resultErr != nil {
		return s.resultErr
	}
	s.results = append(s.results, payload)
	return nil
}

func configuredRelay(t *testing.T) (*Relay, *fakeRecognizer, *fakeSink) {
	t.Helper()
	rec := &fakeRecognizer{}
	sink := &fakeSink{}
	relay := NewRelay(rec, sink)

	if err := relay.HandleControl(context.Background(), []byte(`{"config":{"languageCode":"id-ID"}}`)); err != nil {
		t.Fatalf("config failed: %v", err)
	}
	return relay, rec, sink
}

func TestRelayConfigOpensStreamAndAcks(t *testing.T) {
	_, rec, sink := configuredRelay(t)

	if len(rec.streams) != 1 {
		t.Fatalf("expected 1 upstream stream, got %d", len(rec.streams))
	}
	if rec.lastCfg.LanguageCode != "id-ID" {
		t.Fatalf("language not forwarded: %q", rec.lastCfg.LanguageCode)
	}

	if len(sink.controls) != 1 {
		t.Fatalf("expected 1 control message, got %d", len(sink.controls))
	}
	ack, ok := sink.controls[0].(map[string]string)
	if !ok || ack["status"] != "ready" {
		t.Fatalf("expected ready ack, got %v", sink.controls[0])
	}
}

func TestRelayDropsAudioBeforeConfig(t *testing.T) {
	rec := &fakeRecognizer{}
	relay := NewRelay(rec, &fakeSink{})

	relay.HandleAudio([]byte{0x01, 0x02})

	if len(rec.streams) != 0 {
		t.Fatal("audio before config must not open a stream")
	}
}

func TestRelayForwardsAudioInOrder(t *testing.T) {
	relay, rec, _ := configuredRelay(t)

	chunks := [][]byte{{0x01}, {0x02, 0x03}, {0x04}}
	for _, c := range chunks {
		relay.HandleAudio(c)
	}

	stream := rec.streams[0]
	if len(stream.writes) != len(chunks) {
		t.Fatalf("expected %d writes, got %d", len(chunks), len(stream.writes))
	}
	for i, c := range chunks {
		if !bytes.Equal(stream.writes[i], c) {
			t.Fatalf("chunk %d reordered or corrupted", i)
		}
	}
}

func TestRelayResultPassThroughIsVerbatim(t *testing.T) {
	_, rec, sink := configuredRelay(t)

	payload := []byte(`{"results":[{"alternatives":[{"transcript":"hello"}],"isFinal":true}]}`)
	rec.onResult(payload)

	if len(sink.results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(sink.results))
	}
	if !bytes.Equal(sink.results[0], payload) {
		t.Fatalf("result modified in transit: %s", sink.results[0])
	}
}

func TestRelayStopFinishesStream(t *testing.T) {
	relay, rec, _ := configuredRelay(t)

	if err := relay.HandleControl(context.Background(), []byte(`{"event":"stop"}`)); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	stream := rec.streams[0]
	if !stream.finished {
		t.Fatal("stop must finish the stream gracefully")
	}
	if stream.destroyed {
		t.Fatal("graceful stop must not destroy the stream")
	}

	// Audio after stop has nowhere to go.
	relay.HandleAudio([]byte{0x01})
	if len(stream.writes) != 0 {
		t.Fatal("audio after stop must be dropped")
	}
}

func TestRelayStopWithoutSessionIsNoop(t *testing.T) {
	relay := NewRelay(&fakeRecognizer{}, &fakeSink{})

	if err := relay.HandleControl(context.Background(), []byte(`{"event":"stop"}`)); err != nil {
		t.Fatalf("stop on idle relay must be a no-op, got %v", err)
	}
}

func TestRelayReconfigureDestroysPreviousStream(t *testing.T) {
	relay, rec, sink := configuredRelay(t)

	if err := relay.HandleControl(context.Background(), []byte(`{"config":{"languageCode":"en-US"}}`)); err != nil {
		t.Fatalf("reconfigure failed: %v", err)
	}

	if len(rec.streams) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(rec.streams))
	}
	if !rec.streams[0].destroyed {
		t.Fatal("previous stream must be destroyed on reconfigure")
	}
	if rec.streams[1].destroyed {
		t.Fatal("replacement stream must stay live")
	}
	if len(sink.controls) != 2 {
		t.Fatalf("each config needs its own ack, got %d", len(sink.controls))
	}

	relay.HandleAudio([]byte{0x0a})
	if len(rec.streams[0].writes) != 0 || len(rec.streams[1].writes) != 1 {
		t.Fatal("audio must reach only the replacement stream")
	}
}

func TestRelayCloseAfterStopDestroysFinishedStream(t *testing.T) {
	relay, rec, _ := configuredRelay(t)

	if err := relay.HandleControl(context.Background(), []byte(`{"event":"stop"}`)); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	relay.Close()

	stream := rec.streams[0]
	if !stream.finished {
		t.Fatal("stop must finish the stream gracefully")
	}
	if !stream.destroyed {
		t.Fatal("close after stop must still reclaim the upstream stream")
	}
}

func TestRelayUpstreamErrorAfterStopDestroysFinishedStream(t *testing.T) {
	relay, rec, _ := configuredRelay(t)

	if err := relay.HandleControl(context.Background(), []byte(`{"event":"stop"}`)); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	rec.onErr(errors.New("upstream timed out mid-drain"))

	if !rec.streams[0].destroyed {
		t.Fatal("upstream failure during drain must destroy the stream")
	}
}

func TestRelayIgnoresErrorFromReplacedStream(t *testing.T) {
	relay, rec, sink := configuredRelay(t)

	if err := relay.HandleControl(context.Background(), []byte(`{"config":{"languageCode":"en-US"}}`)); err != nil {
		t.Fatalf("reconfigure failed: %v", err)
	}

	// A late pump error from the first stream must not touch its
	// replacement.
	rec.errHandlers[0](errors.New("read on closed connection"))

	if rec.streams[1].destroyed {
		t.Fatal("replacement stream must survive errors from the old one")
	}
	if len(sink.controls) != 2 {
		t.Fatalf("stale errors must not reach the client, got %v", sink.controls)
	}

	relay.HandleAudio([]byte{0x01})
	if len(rec.streams[1].writes) != 1 {
		t.Fatal("session must stay live after a stale stream error")
	}
}

func TestRelayMalformedControlIsRecoverable(t *testing.T) {
	relay, rec, _ := configuredRelay(t)

	if err := relay.HandleControl(context.Background(), []byte(`{not json`)); err != nil {
		t.Fatalf("malformed control must not fail the session: %v", err)
	}

	relay.HandleAudio([]byte{0x01})
	if len(rec.streams[0].writes) != 1 {
		t.Fatal("session must survive a malformed control message")
	}
}

func TestRelayOpenFailureIsFatal(t *testing.T) {
	rec := &fakeRecognizer{openErr: errors.New("upstream refused")}
	relay := NewRelay(rec, &fakeSink{})

	err := relay.HandleControl(context.Background(), []byte(`{"config":{"languageCode":"id-ID"}}`))
	if err == nil {
		t.Fatal("failed stream open must surface to the caller")
	}
}

func TestRelayUpstreamErrorEndsSession(t *testing.T) {
	relay, rec, sink := configuredRelay(t)

	rec.onErr(errors.New("recognizer died"))

	if !rec.streams[0].destroyed {
		t.Fatal("upstream failure must destroy the stream")
	}
	if len(sink.controls) != 2 {
		t.Fatalf("client must be told about the failure, got %v", sink.controls)
	}

	relay.HandleAudio([]byte{0x01})
	if len(rec.streams[0].writes) != 0 {
		t.Fatal("audio after upstream failure must be dropped")
	}
}

func TestRelayCloseDestroysStream(t *testing.T) {
	relay, rec, _ := configuredRelay(t)

	relay.Close()

	if !rec.streams[0].destroyed {
		t.Fatal("close must force-destroy the stream")
	}
	if err := relay.HandleControl(context.Background(), []byte(`{"config":{"languageCode":"id-ID"}}`)); !errors.Is(err, ErrRelayClosed) {
		t.Fatalf("config after close must fail with ErrRelayClosed, got %v", err)
	}
}

func TestRelayDropsUndeliverableResults(t *testing.T) {
	rec := &fakeRecognizer{}
	sink := &fakeSink{resultErr: errors.New("client gone")}
	relay := NewRelay(rec, sink)

	if err := relay.HandleControl(context.Background(), []byte(`{"config":{"languageCode":"id-ID"}}`)); err != nil {
		t.Fatalf("config failed: %v", err)
	}

	// Must not panic or buffer; the frame is simply lost.
	rec.onResult([]byte(`{"results":[]}`))
	if len(sink.results) != 0 {
		t.Fatal("undeliverable results must not be queued")
	}
}
