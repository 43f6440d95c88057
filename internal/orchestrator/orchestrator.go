package orchestrator

import (
	"context"
	"fmt"
	"log"

	"cuepoint/agent/internal/events"
	"cuepoint/agent/internal/exchange"
	"cuepoint/agent/internal/floor"
	"cuepoint/agent/internal/loop"
	"cuepoint/agent/internal/media"
	"cuepoint/agent/internal/playback"
	"cuepoint/agent/internal/store"
	"cuepoint/agent/internal/stt"
	"cuepoint/agent/internal/types"
	"cuepoint/agent/internal/voicechat"
)

type Config struct {
	Playback  playback.Config
	VoiceChat voicechat.Config
}

func DefaultConfig() Config {
	return Config{Playback: playback.DefaultConfig(), VoiceChat: voicechat.DefaultConfig()}
}

type Deps struct {
	Exec       loop.Executor
	Client     exchange.Client
	Surface    media.Surface
	Player     media.AudioPlayer
	Recorder   media.Recorder
	Recognizer stt.Recognizer
	// Store receives the event trace; optional.
	Store     *store.Store
	SessionID string
}

// Orchestrator owns the mode and the capture device and routes every surface event and user
// action to the guided or voice chat controller. All methods must be called on the event loop.
type Orchestrator struct {
	cfg  Config
	deps Deps

	mode      types.Mode
	floor     *floor.Manager
	playback  *playback.Controller
	voice     *voicechat.Controller
	sink      *traceSink
	connected bool

	// surfaceLost is set between a disconnect and the next hello.
	surfaceLost bool
}

func New(ctx context.Context, cfg Config, deps Deps) *Orchestrator {
	o := &Orchestrator{cfg: cfg, deps: deps, mode: types.ModeGuided, floor: floor.New()}
	o.sink = &traceSink{store: deps.Store, sessionID: deps.SessionID}
	o.floor.OnRelease(func(prev floor.Owner) {
		o.sink.Emit(events.FloorReleased, map[string]any{"owner": string(prev)})
	})
	o.playback = playback.New(ctx, cfg.Playback, playback.Deps{
		Exec:     deps.Exec,
		Client:   deps.Client,
		Surface:  deps.Surface,
		Player:   deps.Player,
		Recorder: deps.Recorder,
		Floor:    o.floor,
		Sink:     o.sink,
	})
	o.voice = voicechat.New(ctx, cfg.VoiceChat, voicechat.Deps{
		Exec:       deps.Exec,
		Client:     deps.Client,
		Recognizer: deps.Recognizer,
		Player:     deps.Player,
		Floor:      o.floor,
		Sink:       o.sink,
	})
	return o
}

func (o *Orchestrator) Mode() types.Mode { return o.mode }

// Start loads the initial segment. It may be called again while the first load has not
// succeeded.
func (o *Orchestrator) Start() bool {
	if o.playback.State() != playback.StateLoading {
		return false
	}
	log.Printf("[orch] session=%s start video=%d", o.deps.SessionID, o.cfg.Playback.InitialVideoID)
	o.playback.Load(o.cfg.Playback.InitialVideoID)
	return true
}

// EnterVoiceChat suspends the guided flow and arms continuous recognition. Entering while
// already in voice chat is a no-op.
func (o *Orchestrator) EnterVoiceChat() {
	defer o.checkExclusive()
	if o.mode == types.ModeVoiceChat {
		return
	}
	if !o.voice.Supported() {
		o.sink.Report(fmt.Errorf("enter voice chat: %w: continuous recognition unavailable", types.ErrUnsupportedCapability))
		return
	}
	o.playback.Suspend()
	o.voice.Enter()
	o.setMode(types.ModeVoiceChat)
}

// ExitVoiceChat disarms recognition and hands control back to the guided flow. Exiting while
// already guided is a no-op.
func (o *Orchestrator) ExitVoiceChat() {
	defer o.checkExclusive()
	if o.mode != types.ModeVoiceChat {
		return
	}
	o.voice.Exit()
	o.setMode(types.ModeGuided)
	o.playback.Resume()
}

// ToggleVoiceChat switches to the other mode.
func (o *Orchestrator) ToggleVoiceChat() {
	if o.mode == types.ModeVoiceChat {
		o.ExitVoiceChat()
		return
	}
	o.EnterVoiceChat()
}

// StopRecording is the user's stop action for a guided capture.
func (o *Orchestrator) StopRecording() bool {
	if o.mode != types.ModeGuided {
		return false
	}
	return o.playback.StopRecording()
}

// RetryCapture restarts a guided capture after a device or submission failure.
func (o *Orchestrator) RetryCapture() bool {
	defer o.checkExclusive()
	if o.mode != types.ModeGuided {
		return false
	}
	return o.playback.RetryCapture()
}

func (o *Orchestrator) setMode(to types.Mode) {
	from := o.mode
	o.mode = to
	metricModeSwitches.WithLabelValues(to.String()).Inc()
	o.sink.Emit(events.ModeChanged, map[string]any{"from": from.String(), "to": to.String()})
	log.Printf("[orch] session=%s mode %s -> %s", o.deps.SessionID, from, to)
}

func (o *Orchestrator) checkExclusive() {
	if o.playback.Capturing() && o.voice.Recognizing() {
		metricExclusionViolations.Inc()
		o.sink.Report(fmt.Errorf("capture and recognition active together (floor holder %q)", o.floor.Holder()))
	}
}
