package voicechat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"cuepoint/agent/internal/events"
	"cuepoint/agent/internal/exchange"
	"cuepoint/agent/internal/floor"
	"cuepoint/agent/internal/loop"
	"cuepoint/agent/internal/media"
	"cuepoint/agent/internal/stt"
	"cuepoint/agent/internal/types"
)

// State is the presentation state shown to the user.
type State string

const (
	StateIdle      State = "IDLE"
	StateListening State = "LISTENING"
	StatePlaying   State = "PLAYING"
)

type Config struct {
	// QuietPeriod is how long the transcript must stop growing before it is submitted.
	QuietPeriod time.Duration
}

func DefaultConfig() Config { return Config{QuietPeriod: 3 * time.Second} }

type Deps struct {
	Exec       loop.Executor
	Client     exchange.Client
	Recognizer stt.Recognizer
	Player     media.AudioPlayer
	Floor      *floor.Manager
	Sink       events.Sink
}

// Controller runs the freeform voice chat flow. All methods must be called on the event loop.
type Controller struct {
	ctx  context.Context
	cfg  Config
	deps Deps

	state State

	active      bool
	listening   bool
	recognizing bool
	// waiting for the capture device to be released by guided capture
	pendingStart bool
	isPlaying    bool
	replyID      string

	acc       stt.Accumulator
	interim   string
	lastReply string

	debounce func()
	// gen invalidates debounce callbacks and submissions issued before Exit.
	gen uint64
}

func New(ctx context.Context, cfg Config, deps Deps) *Controller {
	if deps.Sink == nil {
		deps.Sink = events.Nop{}
	}
	if deps.Floor == nil {
		deps.Floor = floor.New()
	}
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = DefaultConfig().QuietPeriod
	}
	c := &Controller{ctx: ctx, cfg: cfg, deps: deps, state: StateIdle}
	deps.Floor.OnRelease(c.floorReleased)
	return c
}

func (c *Controller) State() State { return c.state }
func (c *Controller) Active() bool { return c.active }
func (c *Controller) Recognizing() bool { return c.recognizing }
func (c *Controller) Playing() bool { return c.isPlaying }
func (c *Controller) Transcript() string { return c.acc.String() }
func (c *Controller) Interim() string { return c.interim }
func (c *Controller) LastReply() string { return c.lastReply }

// Supported reports whether continuous recognition is available on the surface.
func (c *Controller) Supported() bool { return c.deps.Recognizer.Supported() }

// Enter arms continuous recognition. Entering twice is a no-op.
func (c *Controller) Enter() bool {
	if c.active {
		return true
	}
	if !c.deps.Recognizer.Supported() {
		c.report(fmt.Errorf("enter voice chat: %w: continuous recognition unavailable", types.ErrUnsupportedCapability))
		return false
	}
	c.active = true
	c.listening = true
	c.setState(StateListening)
	log.Printf("[voicechat] entered")
	c.startRecognition()
	return true
}

// Exit disarms recognition, cancels the debounce timer and drops the transcript. Exiting twice
// is a no-op.
func (c *Controller) Exit() {
	if !c.active {
		return
	}
	c.active = false
	c.listening = false
	c.pendingStart = false
	c.gen++
	c.cancelDebounce()
	c.acc.Reset()
	c.interim = ""

	if c.replyID != "" {
		if err := c.deps.Player.StopAudio(c.replyID); err != nil {
			log.Printf("[voicechat] stop reply id=%s: %v", c.replyID, err)
		}
		c.replyID = ""
	}
	c.isPlaying = false
	c.stopRecognition("exit")
	c.setState(StateIdle)
	log.Printf("[voicechat] exited")
}

// Result handles one recognition event.
func (c *Controller) Result(res stt.Result) {
	if !c.active || !c.listening {
		return
	}
	if c.isPlaying {
		stt.MetricSuppressed.WithLabelValues("result").Inc()
		return
	}
	final, interim := res.Split()
	c.interim = interim
	if c.acc.Append(final...) {
		c.armDebounce()
	}
}

// RecognitionEnded handles end-of-stream. The stream is restarted only while still listening
// and no reply is playing.
func (c *Controller) RecognitionEnded() {
	if !c.recognizing {
		return
	}
	c.recognizing = false
	c.deps.Floor.Release(floor.VoiceRecognition)
	c.deps.Sink.Emit(events.RecognitionStopped, map[string]any{"reason": "ended"})
	if !c.active || !c.listening {
		return
	}
	if c.isPlaying {
		stt.MetricSuppressed.WithLabelValues("restart").Inc()
		return
	}
	stt.MetricRestarts.Inc()
	c.startRecognition()
}

// RecognitionFailed reports a recognition error; the end event that follows decides on restart.
func (c *Controller) RecognitionFailed(err error) {
	if !c.active {
		return
	}
	c.report(fmt.Errorf("recognition: %w: %v", types.ErrDeviceAcquisition, err))
}

// AudioEnded reports whether id was the reply this controller is waiting on.
func (c *Controller) AudioEnded(id string) bool {
	if id == "" || id != c.replyID {
		return false
	}
	c.replyID = ""
	c.deps.Sink.Emit(events.ReplyEnded, map[string]any{"id": id})
	c.clearPlaying()
	return true
}

// AudioFailed is AudioEnded for a reply that could not be played.
func (c *Controller) AudioFailed(id string, err error) bool {
	if !c.AudioEnded(id) {
		return false
	}
	c.report(fmt.Errorf("play reply: %w", err))
	return true
}

func (c *Controller) startRecognition() {
	if !c.active || !c.listening || c.recognizing {
		return
	}
	if c.isPlaying {
		stt.MetricSuppressed.WithLabelValues("start").Inc()
		return
	}
	d := c.deps.Floor.Acquire(floor.VoiceRecognition)
	if !d.Granted {
		c.pendingStart = true
		c.deps.Sink.Emit(events.FloorDenied, map[string]any{"owner": string(floor.VoiceRecognition), "holder": string(d.Holder)})
		log.Printf("[voicechat] waiting for capture device held by %s", d.Holder)
		return
	}
	c.pendingStart = false
	if err := c.deps.Recognizer.Start(); err != nil {
		c.deps.Floor.Release(floor.VoiceRecognition)
		c.report(fmt.Errorf("start recognition: %w: %v", types.ErrUnsupportedCapability, err))
		return
	}
	c.recognizing = true
	c.deps.Sink.Emit(events.RecognitionStarted, nil)
}

func (c *Controller) stopRecognition(reason string) {
	if c.recognizing {
		c.recognizing = false
		if err := c.deps.Recognizer.Stop(); err != nil {
			log.Printf("[voicechat] stop recognition: %v", err)
		}
		c.deps.Sink.Emit(events.RecognitionStopped, map[string]any{"reason": reason})
	}
	c.deps.Floor.Release(floor.VoiceRecognition)
}

func (c *Controller) floorReleased(prev floor.Owner) {
	if prev == floor.VoiceRecognition || !c.pendingStart {
		return
	}
	c.startRecognition()
}

func (c *Controller) armDebounce() {
	c.cancelDebounce()
	gen := c.gen
	c.debounce = c.deps.Exec.After(c.cfg.QuietPeriod, func() {
		if gen != c.gen {
			return
		}
		c.debounce = nil
		c.flush()
	})
}

func (c *Controller) cancelDebounce() {
	if c.debounce != nil {
		c.debounce()
		c.debounce = nil
	}
}

// flush submits the accumulated transcript. isPlaying is set before the request goes out so
// recognition stays suppressed until the reply has finished.
func (c *Controller) flush() {
	if !c.active || c.isPlaying || c.acc.Empty() {
		return
	}
	text := c.acc.Take()
	c.interim = ""
	c.isPlaying = true
	c.setState(StatePlaying)
	c.deps.Sink.Emit(events.TranscriptSent, map[string]any{"chars": len(text)})
	log.Printf("[voicechat] submit transcript chars=%d", len(text))

	gen := c.gen
	c.deps.Exec.Go(func() {
		start := time.Now()
		reply, err := c.deps.Client.SubmitTranscript(c.ctx, text)
		metricReplyMS.Observe(float64(time.Since(start).Milliseconds()))
		c.deps.Exec.Post(func() { c.onReply(gen, reply, err) })
	})
}

func (c *Controller) onReply(gen uint64, reply types.VoiceChatReply, err error) {
	if gen != c.gen || !c.isPlaying {
		return
	}
	if err != nil {
		metricReplies.WithLabelValues("error").Inc()
		c.clearPlaying()
		c.report(fmt.Errorf("submit transcript: %w", err))
		return
	}
	c.lastReply = reply.Text
	id := uuid.New().String()
	if err := c.deps.Player.PlayAudio(id, reply.DataURI()); err != nil {
		metricReplies.WithLabelValues("error").Inc()
		c.clearPlaying()
		c.report(fmt.Errorf("play reply: %w", err))
		return
	}
	metricReplies.WithLabelValues("ok").Inc()
	c.replyID = id
	c.deps.Sink.Emit(events.ReplyStarted, map[string]any{"id": id, "chars": len(reply.Text)})
}

// clearPlaying ends the reply phase and resumes listening if still active.
func (c *Controller) clearPlaying() {
	if !c.isPlaying {
		return
	}
	c.isPlaying = false
	if !c.active {
		c.setState(StateIdle)
		return
	}
	c.setState(StateListening)
	c.startRecognition()
	if !c.acc.Empty() {
		c.armDebounce()
	}
}

func (c *Controller) setState(to State) {
	from := c.state
	if from == to {
		return
	}
	metricStateTransitions.WithLabelValues(string(from), string(to)).Inc()
	c.state = to
	c.deps.Sink.Emit(events.StateTransition, map[string]any{"component": "voicechat", "from": string(from), "to": string(to)})
}

func (c *Controller) report(err error) {
	log.Printf("[voicechat] error state=%s: %v", c.state, err)
	c.deps.Sink.Report(err)
}
