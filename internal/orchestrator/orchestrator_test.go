package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"cuepoint/agent/internal/events"
	"cuepoint/agent/internal/floor"
	"cuepoint/agent/internal/loop"
	"cuepoint/agent/internal/media"
	"cuepoint/agent/internal/playback"
	"cuepoint/agent/internal/store"
	"cuepoint/agent/internal/types"
	"cuepoint/agent/internal/voicechat"
	"cuepoint/agent/internal/workerws"
)

// device models the single capture device shared by recorder and recognizer.
type device struct {
	capturing   bool
	recognizing bool
	overlaps    int
}

type fakeRecorder struct{ d *device }

func (r fakeRecorder) Start() error {
	if r.d.recognizing {
		r.d.overlaps++
	}
	r.d.capturing = true
	return nil
}

func (r fakeRecorder) Stop(ctx context.Context) (media.Blob, error) {
	r.d.capturing = false
	return media.Blob{Data: []byte("RIFF"), MimeType: "audio/wav"}, nil
}

type fakeRecognizer struct {
	d           *device
	unsupported bool
}

func (r *fakeRecognizer) Supported() bool { return !r.unsupported }

func (r *fakeRecognizer) Start() error {
	if r.d.capturing {
		r.d.overlaps++
	}
	r.d.recognizing = true
	return nil
}

func (r *fakeRecognizer) Stop() error { r.d.recognizing = false; return nil }

type fakeSurface struct {
	src    string
	plays  int
	pauses int
}

func (f *fakeSurface) SetSource(url string) error { f.src = url; return nil }
func (f *fakeSurface) Play() error                { f.plays++; return nil }
func (f *fakeSurface) Pause() error               { f.pauses++; return nil }

type fakePlayer struct{ lastID, lastSrc string }

func (f *fakePlayer) PlayAudio(id, src string) error { f.lastID, f.lastSrc = id, src; return nil }
func (f *fakePlayer) StopAudio(id string) error      { return nil }

type fakeClient struct {
	result     types.InteractionResult
	transcript []string
}

func (f *fakeClient) FetchCurrentVideo(ctx context.Context, id int) (types.VideoSegment, error) {
	return types.VideoSegment{ID: id, URL: "/v1.mp4"}, nil
}

func (f *fakeClient) SubmitSpeech(ctx context.Context, blob media.Blob, videoID int) (types.InteractionResult, error) {
	return f.result, nil
}

func (f *fakeClient) SubmitTranscript(ctx context.Context, text string) (types.VoiceChatReply, error) {
	f.transcript = append(f.transcript, text)
	return types.VoiceChatReply{Text: "sure", Audio: "SUQz"}, nil
}

type harness struct {
	exec    *loop.Manual
	dev     *device
	rec     *fakeRecognizer
	surface *fakeSurface
	player  *fakePlayer
	client  *fakeClient
	store   *store.Store
	o       *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		exec:    loop.NewManual(),
		dev:     &device{},
		surface: &fakeSurface{},
		player:  &fakePlayer{},
		client:  &fakeClient{},
		store:   store.New(),
	}
	h.rec = &fakeRecognizer{d: h.dev}
	if err := h.store.CreateSession(&types.Session{ID: "s1"}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	h.o = New(context.Background(), DefaultConfig(), Deps{
		Exec: h.exec, Client: h.client, Surface: h.surface, Player: h.player,
		Recorder: fakeRecorder{h.dev}, Recognizer: h.rec, Store: h.store, SessionID: "s1",
	})
	return h
}

func (h *harness) send(typ string, payload map[string]any) {
	h.o.Handle(workerws.Message{Type: typ, SessionID: "s1", Payload: payload})
	h.exec.Drain()
}

// recording drives the guided flow up to an open capture at the first checkpoint.
func (h *harness) recording(t *testing.T) {
	t.Helper()
	h.send(workerws.EvHello, map[string]any{"recognition": true})
	if !h.o.Start() {
		t.Fatalf("start refused")
	}
	h.exec.Drain()
	h.send(workerws.EvMediaReady, nil)
	h.send(workerws.EvTimeUpdate, map[string]any{"t": 2.05})
	if h.o.Snapshot().Guided.State != string(playback.StateRecording) {
		t.Fatalf("expected guided recording, got %+v", h.o.Snapshot().Guided)
	}
}

func (h *harness) countEvents(typ string) int {
	n := 0
	for _, e := range h.store.ListEvents("s1") {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestCaptureAndRecognitionNeverOverlap(t *testing.T) {
	h := newHarness(t)
	h.recording(t)

	h.send(workerws.ActVoiceChatEnter, nil)
	if h.o.Mode() != types.ModeVoiceChat {
		t.Fatalf("expected voice chat mode")
	}
	if h.dev.capturing || !h.dev.recognizing {
		t.Fatalf("expected recognition only, capturing=%v recognizing=%v", h.dev.capturing, h.dev.recognizing)
	}
	if got := h.o.Snapshot().FloorHolder; got != string(floor.VoiceRecognition) {
		t.Fatalf("expected recognition to hold the floor, got %q", got)
	}

	h.send(workerws.EvRecognitionResult, map[string]any{
		"fragments": []any{map[string]any{"text": "what is this", "is_final": true}},
	})
	h.exec.Advance(3 * time.Second)
	if len(h.client.transcript) != 1 || h.client.transcript[0] != "what is this" {
		t.Fatalf("unexpected transcripts %q", h.client.transcript)
	}
	if h.o.Snapshot().VoiceChat.State != string(voicechat.StatePlaying) {
		t.Fatalf("expected reply playing")
	}
	h.send(workerws.EvAudioEnded, map[string]any{"id": h.player.lastID})
	if h.o.Snapshot().VoiceChat.State != string(voicechat.StateListening) {
		t.Fatalf("expected listening after reply")
	}

	h.send(workerws.ActVoiceChatExit, nil)
	if h.o.Mode() != types.ModeGuided {
		t.Fatalf("expected guided mode")
	}
	if !h.dev.capturing || h.dev.recognizing {
		t.Fatalf("expected guided capture restored, capturing=%v recognizing=%v", h.dev.capturing, h.dev.recognizing)
	}
	if h.dev.overlaps != 0 {
		t.Fatalf("capture and recognition overlapped %d times", h.dev.overlaps)
	}
	if n := h.countEvents(events.Error); n != 0 {
		t.Fatalf("unexpected errors in trace: %v", h.store.ListEvents("s1"))
	}
}

func TestToggleIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.recording(t)

	h.o.EnterVoiceChat()
	h.exec.Drain()
	once := h.o.Snapshot()
	h.o.EnterVoiceChat()
	h.exec.Drain()
	if twice := h.o.Snapshot(); twice != once {
		t.Fatalf("second enter changed state:\n%+v\n%+v", once, twice)
	}

	h.o.ExitVoiceChat()
	h.exec.Drain()
	once = h.o.Snapshot()
	h.o.ExitVoiceChat()
	h.exec.Drain()
	if twice := h.o.Snapshot(); twice != once {
		t.Fatalf("second exit changed state:\n%+v\n%+v", once, twice)
	}
	if n := h.countEvents(events.ModeChanged); n != 2 {
		t.Fatalf("expected two mode changes, got %d", n)
	}

	h.o.ToggleVoiceChat()
	h.exec.Drain()
	if h.o.Mode() != types.ModeVoiceChat {
		t.Fatalf("toggle should enter voice chat")
	}
	h.o.ToggleVoiceChat()
	h.exec.Drain()
	if h.o.Mode() != types.ModeGuided {
		t.Fatalf("toggle should exit voice chat")
	}
}

func TestFeedbackAudioRoutedToGuidedFlow(t *testing.T) {
	h := newHarness(t)
	h.client.result = types.InteractionResult{FeedbackAudio: "/fb.mp3"}
	h.recording(t)

	h.send(workerws.ActStopRecording, nil)
	if h.o.Snapshot().Guided.State != string(playback.StatePlayingFeedback) {
		t.Fatalf("expected feedback playing, got %s", h.o.Snapshot().Guided.State)
	}
	h.send(workerws.EvAudioEnded, map[string]any{"id": h.player.lastID})
	snap := h.o.Snapshot()
	if snap.Guided.State != string(playback.StatePlaying) || snap.Guided.LastFeedbackAudio != "/fb.mp3" {
		t.Fatalf("unexpected guided state %+v", snap.Guided)
	}
}

func TestUnsupportedRecognitionStaysGuided(t *testing.T) {
	h := newHarness(t)
	h.rec.unsupported = true
	h.recording(t)

	h.send(workerws.ActVoiceChatToggle, nil)
	if h.o.Mode() != types.ModeGuided {
		t.Fatalf("expected to stay guided")
	}
	if !h.dev.capturing || h.o.Snapshot().Guided.Suspended {
		t.Fatalf("guided capture should be untouched")
	}
	evs := h.store.ListEvents("s1")
	found := false
	for _, e := range evs {
		if e.Type == events.Error && e.Payload["kind"] == "unsupported_capability" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unsupported capability error in trace")
	}
}

func TestStopRecordingIgnoredInVoiceChat(t *testing.T) {
	h := newHarness(t)
	h.recording(t)
	h.send(workerws.ActVoiceChatEnter, nil)
	if h.o.StopRecording() {
		t.Fatalf("stop recording must be ignored in voice chat")
	}
}

func TestDisconnectTearsDownVoiceChat(t *testing.T) {
	h := newHarness(t)
	h.recording(t)
	h.send(workerws.ActVoiceChatEnter, nil)

	h.send(workerws.EvDisconnected, nil)
	if h.o.Mode() != types.ModeGuided || h.dev.recognizing {
		t.Fatalf("voice chat should be torn down on disconnect")
	}
	if h.o.Snapshot().SurfaceConnected {
		t.Fatalf("snapshot should show the surface gone")
	}
	if sess := h.store.GetSession("s1"); sess.SurfaceConnected {
		t.Fatalf("session should show the surface gone")
	}
}

func TestInvalidSurfaceMessages(t *testing.T) {
	h := newHarness(t)
	h.send("bogus", nil)
	h.send(workerws.EvTimeUpdate, map[string]any{"t": "soon"})
	if n := h.countEvents(events.SurfaceMsgInvalid); n != 2 {
		t.Fatalf("expected two invalid message events, got %d", n)
	}
}

func TestReportedErrorsCarryKind(t *testing.T) {
	h := newHarness(t)
	h.o.sink.Report(errors.Join(types.ErrTransport, errors.New("boom")))
	evs := h.store.ListEvents("s1")
	if len(evs) != 1 || evs[0].Payload["kind"] != "transport" {
		t.Fatalf("unexpected trace %v", evs)
	}
}

func TestReconnectResumesGuidedPlayback(t *testing.T) {
	h := newHarness(t)
	h.send(workerws.EvHello, map[string]any{"recognition": true})
	h.o.Start()
	h.exec.Drain()
	h.send(workerws.EvMediaReady, nil)
	if h.o.Snapshot().Guided.State != string(playback.StatePlaying) {
		t.Fatalf("expected guided playing, got %+v", h.o.Snapshot().Guided)
	}

	h.send(workerws.EvDisconnected, nil)
	h.surface.src = ""
	plays := h.surface.plays

	h.send(workerws.EvHello, map[string]any{"recognition": true})
	if h.surface.src != "/v1.mp4" {
		t.Fatalf("reconnected surface should get the source again, got %q", h.surface.src)
	}
	if h.surface.plays != plays+1 {
		t.Fatalf("reconnected surface should be told to play")
	}
	if !h.o.Snapshot().SurfaceConnected {
		t.Fatalf("snapshot should show the surface back")
	}

	// A repeated hello on a live connection does not reload the video.
	h.surface.src = ""
	h.send(workerws.EvHello, map[string]any{"recognition": true})
	if h.surface.src != "" {
		t.Fatalf("hello without a prior disconnect must not reset the source")
	}
}
