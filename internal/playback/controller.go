package playback

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
	"cuepoint/agent/internal/types"
)

// State of the guided flow.
type State string

const (
	StateLoading               State = "LOADING"
	StatePlaying               State = "PLAYING"
	StatePausedAwaitingCapture State = "PAUSED_AWAITING_CAPTURE"
	StateRecording             State = "RECORDING"
	StateSubmitting            State = "SUBMITTING"
	StateApplyingNextVideo     State = "APPLYING_NEXT_VIDEO"
	StatePlayingFeedback       State = "PLAYING_FEEDBACK"
)

type Config struct {
	InitialVideoID      int
	CheckpointOffset    time.Duration
	CheckpointTolerance time.Duration
	Autoplay            bool
	// StopTimeout bounds how long finalizing a recording may take.
	StopTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		InitialVideoID:      1,
		CheckpointOffset:    2 * time.Second,
		CheckpointTolerance: 200 * time.Millisecond,
		Autoplay:            true,
		StopTimeout:         10 * time.Second,
	}
}

type Deps struct {
	Exec     loop.Executor
	Client   exchange.Client
	Surface  media.Surface
	Player   media.AudioPlayer
	Recorder media.Recorder
	Floor    *floor.Manager
	Sink     events.Sink
}

// Controller drives the guided flow. All methods must be called on the event loop.
type Controller struct {
	ctx  context.Context
	cfg  Config
	deps Deps

	state   State
	segment types.VideoSegment
	loading bool

	// one-shot listeners
	checkpointArmed bool
	readyArmed      bool
	pending         *types.VideoSegment

	feedbackID   string
	lastFeedback string

	// gen invalidates in-flight submissions whose capture was discarded.
	gen uint64

	suspended     bool
	resumeCapture bool
	wantPlay      bool
	deferred      *types.InteractionResult
}

func New(ctx context.Context, cfg Config, deps Deps) *Controller {
	if deps.Sink == nil {
		deps.Sink = events.Nop{}
	}
	if deps.Floor == nil {
		deps.Floor = floor.New()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultConfig().StopTimeout
	}
	return &Controller{ctx: ctx, cfg: cfg, deps: deps, state: StateLoading}
}

func (c *Controller) State() State { return c.state }
func (c *Controller) Segment() types.VideoSegment { return c.segment }
func (c *Controller) CheckpointArmed() bool { return c.checkpointArmed }
func (c *Controller) Suspended() bool { return c.suspended }
func (c *Controller) LastFeedbackAudio() string { return c.lastFeedback }

// Load fetches segment id and makes it the active source. Only valid while loading; a failed
// load may be retried.
func (c *Controller) Load(id int) {
	if c.state != StateLoading || c.loading || c.readyArmed {
		log.Printf("[playback] load ignored state=%s loading=%v", c.state, c.loading)
		return
	}
	if id < 1 {
		id = c.cfg.InitialVideoID
	}
	c.loading = true
	c.deps.Exec.Go(func() {
		seg, err := c.deps.Client.FetchCurrentVideo(c.ctx, id)
		c.deps.Exec.Post(func() { c.onLoaded(seg, err) })
	})
}

func (c *Controller) onLoaded(seg types.VideoSegment, err error) {
	c.loading = false
	if err != nil {
		c.report(fmt.Errorf("load video: %w", err))
		return
	}
	log.Printf("[playback] initial video id=%d url=%s", seg.ID, seg.URL)
	if err := c.deps.Surface.SetSource(seg.URL); err != nil {
		c.report(fmt.Errorf("set source: %w", err))
		return
	}
	c.armReady(seg)
}

// TimeUpdate handles the surface's time-update event.
func (c *Controller) TimeUpdate(t time.Duration) {
	if c.suspended || c.state != StatePlaying || !c.checkpointArmed {
		return
	}
	if t < c.cfg.CheckpointOffset || t > c.cfg.CheckpointOffset+c.cfg.CheckpointTolerance {
		return
	}
	c.checkpointArmed = false
	metricCheckpointFires.Inc()
	c.deps.Sink.Emit(events.CheckpointFired, map[string]any{"video_id": c.segment.ID, "t_ms": t.Milliseconds()})
	log.Printf("[playback] checkpoint video=%d t=%s", c.segment.ID, t)

	if err := c.deps.Surface.Pause(); err != nil {
		c.report(fmt.Errorf("pause: %w", err))
	}
	c.setState(StatePausedAwaitingCapture)
	c.startCapture()
}

// MediaReady handles the surface's ready event; only the first one after a source change counts.
func (c *Controller) MediaReady() {
	if !c.readyArmed || c.pending == nil {
		return
	}
	c.readyArmed = false
	seg := *c.pending
	c.pending = nil
	c.segment = seg
	c.checkpointArmed = true
	c.deps.Sink.Emit(events.SegmentActivated, map[string]any{"video_id": seg.ID, "url": seg.URL})

	if c.state == StateLoading && !c.cfg.Autoplay {
		c.setState(StatePlaying)
		return
	}
	c.resumeVideo()
	c.setState(StatePlaying)
}

// StopRecording is the user's "stop recording" action: finalize the capture and submit it.
func (c *Controller) StopRecording() bool {
	if c.state != StateRecording {
		log.Printf("[playback] stop recording ignored state=%s", c.state)
		return false
	}
	c.setState(StateSubmitting)
	gen := c.gen
	videoID := c.segment.ID
	c.deps.Exec.Go(func() {
		stopCtx, cancel := context.WithTimeout(c.ctx, c.cfg.StopTimeout)
		blob, err := c.deps.Recorder.Stop(stopCtx)
		cancel()
		if err == nil && blob.Empty() {
			err = fmt.Errorf("%w: empty recording", types.ErrDeviceAcquisition)
		}
		c.deps.Exec.Post(func() { c.onCaptureStopped(gen, err) })
		if err != nil {
			return
		}
		start := time.Now()
		res, err := c.deps.Client.SubmitSpeech(c.ctx, blob, videoID)
		metricSubmitMS.Observe(float64(time.Since(start).Milliseconds()))
		c.deps.Exec.Post(func() { c.onSubmitted(gen, res, err) })
	})
	c.deps.Sink.Emit(events.SpeechSubmitted, map[string]any{"video_id": videoID})
	return true
}

func (c *Controller) onCaptureStopped(gen uint64, err error) {
	c.releaseCapture()
	if err == nil || gen != c.gen || c.state != StateSubmitting {
		return
	}
	c.setState(StatePausedAwaitingCapture)
	c.deps.Sink.Emit(events.CaptureDiscarded, map[string]any{"reason": "stop_failed"})
	c.report(fmt.Errorf("stop capture: %w", err))
}

func (c *Controller) onSubmitted(gen uint64, res types.InteractionResult, err error) {
	if gen != c.gen || c.state != StateSubmitting {
		return
	}
	if err != nil {
		metricResults.WithLabelValues("error").Inc()
		c.setState(StatePausedAwaitingCapture)
		c.deps.Sink.Emit(events.CaptureDiscarded, map[string]any{"reason": "submit_failed"})
		c.report(fmt.Errorf("submit speech: %w", err))
		return
	}
	if c.suspended {
		c.deferred = &res
		return
	}
	c.apply(res)
}

func (c *Controller) apply(res types.InteractionResult) {
	kind := res.Kind()
	metricResults.WithLabelValues(kind.String()).Inc()
	c.deps.Sink.Emit(events.ResultApplied, map[string]any{"kind": kind.String()})

	switch kind {
	case types.ResultNextVideo:
		next := *res.NextVideo
		log.Printf("[playback] next video id=%d url=%s", next.ID, next.URL)
		if err := c.deps.Surface.SetSource(next.URL); err != nil {
			c.setState(StatePausedAwaitingCapture)
			c.report(fmt.Errorf("set source: %w", err))
			return
		}
		c.armReady(next)
		c.setState(StateApplyingNextVideo)

	case types.ResultFeedback:
		c.lastFeedback = res.FeedbackAudio
		id := uuid.New().String()
		log.Printf("[playback] feedback audio id=%s", id)
		if err := c.deps.Player.PlayAudio(id, res.FeedbackAudio); err != nil {
			c.report(fmt.Errorf("play feedback: %w", err))
			c.resumeVideo()
			c.setState(StatePlaying)
			return
		}
		c.feedbackID = id
		c.setState(StatePlayingFeedback)

	default:
		c.resumeVideo()
		c.setState(StatePlaying)
	}
}

// AudioEnded reports whether id was the feedback clip this controller is waiting on.
func (c *Controller) AudioEnded(id string) bool {
	if id == "" || id != c.feedbackID {
		return false
	}
	c.feedbackID = ""
	if c.state == StatePlayingFeedback {
		c.resumeVideo()
		c.setState(StatePlaying)
	}
	return true
}

// AudioFailed is AudioEnded for a clip that could not be played.
func (c *Controller) AudioFailed(id string, err error) bool {
	if !c.AudioEnded(id) {
		return false
	}
	c.report(fmt.Errorf("play feedback: %w", err))
	return true
}

// CaptureFailed handles a device failure reported by the surface after capture start.
func (c *Controller) CaptureFailed(err error) {
	if c.state != StateRecording {
		return
	}
	c.setState(StatePausedAwaitingCapture)
	c.releaseCapture()
	c.report(fmt.Errorf("capture: %w: %v", types.ErrDeviceAcquisition, err))
}

// RetryCapture is the user-triggered restart after a failed capture or submission.
func (c *Controller) RetryCapture() bool {
	if c.state != StatePausedAwaitingCapture || c.suspended {
		return false
	}
	c.startCapture()
	return c.state == StateRecording
}

// Suspend pauses the guided presentation while voice chat owns the capture device.
func (c *Controller) Suspend() {
	if c.suspended {
		return
	}
	c.suspended = true
	switch c.state {
	case StatePlaying:
		if err := c.deps.Surface.Pause(); err != nil {
			c.report(fmt.Errorf("pause: %w", err))
		}
		c.wantPlay = true
	case StateRecording:
		c.discardCapture()
		c.resumeCapture = true
	case StatePlayingFeedback:
		id := c.feedbackID
		c.feedbackID = ""
		if err := c.deps.Player.StopAudio(id); err != nil {
			log.Printf("[playback] stop feedback id=%s: %v", id, err)
		}
		c.setState(StatePlaying)
		c.wantPlay = true
	}
	log.Printf("[playback] suspended state=%s", c.state)
}

// Resume restores whatever guided state was active before Suspend.
func (c *Controller) Resume() {
	if !c.suspended {
		return
	}
	c.suspended = false
	log.Printf("[playback] resumed state=%s", c.state)
	if c.deferred != nil {
		res := *c.deferred
		c.deferred = nil
		c.apply(res)
		return
	}
	if c.resumeCapture {
		c.resumeCapture = false
		if c.state == StatePausedAwaitingCapture {
			c.startCapture()
		}
	}
	if c.wantPlay {
		c.wantPlay = false
		if c.state == StatePlaying {
			c.resumeVideo()
		}
	}
}

// Reattach brings a freshly connected surface back to the current guided state: the pending
// or active source is set again and playback restarts if the flow was playing. Feedback that
// was cut off by the disconnect counts as ended.
func (c *Controller) Reattach() {
	var src string
	switch {
	case c.pending != nil:
		src = c.pending.URL
	case c.segment.Valid():
		src = c.segment.URL
	default:
		return
	}
	log.Printf("[playback] reattach state=%s src=%s", c.state, src)
	if err := c.deps.Surface.SetSource(src); err != nil {
		c.report(fmt.Errorf("set source: %w", err))
		return
	}
	if c.pending != nil {
		c.readyArmed = true
		return
	}
	if c.state == StatePlayingFeedback {
		c.feedbackID = ""
		c.setState(StatePlaying)
	}
	if c.state == StatePlaying {
		c.resumeVideo()
	}
}

// Capturing reports whether a guided capture session is open.
func (c *Controller) Capturing() bool { return c.state == StateRecording }

func (c *Controller) armReady(seg types.VideoSegment) {
	s := seg
	c.pending = &s
	c.readyArmed = true
	c.checkpointArmed = false
}

func (c *Controller) startCapture() {
	if c.suspended {
		c.resumeCapture = true
		return
	}
	d := c.deps.Floor.Acquire(floor.GuidedCapture)
	if !d.Granted {
		c.deps.Sink.Emit(events.FloorDenied, map[string]any{"owner": string(floor.GuidedCapture), "holder": string(d.Holder)})
		c.report(fmt.Errorf("start capture: %w: device held by %s", types.ErrDeviceAcquisition, d.Holder))
		return
	}
	if err := c.deps.Recorder.Start(); err != nil {
		c.deps.Floor.Release(floor.GuidedCapture)
		c.report(fmt.Errorf("start capture: %w: %v", types.ErrDeviceAcquisition, err))
		return
	}
	c.setState(StateRecording)
	c.deps.Sink.Emit(events.CaptureStarted, map[string]any{"video_id": c.segment.ID})
}

// discardCapture stops the recorder without submitting. The floor is released once the
// recorder has actually stopped.
func (c *Controller) discardCapture() {
	c.gen++
	c.setState(StatePausedAwaitingCapture)
	c.deps.Sink.Emit(events.CaptureDiscarded, map[string]any{"reason": "suspended"})
	c.deps.Exec.Go(func() {
		stopCtx, cancel := context.WithTimeout(c.ctx, c.cfg.StopTimeout)
		_, err := c.deps.Recorder.Stop(stopCtx)
		cancel()
		if err != nil {
			log.Printf("[playback] discard capture: %v", err)
		}
		c.deps.Exec.Post(c.releaseCapture)
	})
}

func (c *Controller) releaseCapture() {
	if c.state == StateRecording {
		return
	}
	c.deps.Floor.Release(floor.GuidedCapture)
}

func (c *Controller) resumeVideo() {
	if c.suspended {
		c.wantPlay = true
		return
	}
	if err := c.deps.Surface.Play(); err != nil {
		c.report(fmt.Errorf("play: %w", err))
	}
}

func (c *Controller) setState(to State) {
	from := c.state
	if from == to {
		return
	}
	metricStateTransitions.WithLabelValues(string(from), string(to)).Inc()
	c.state = to
	c.deps.Sink.Emit(events.StateTransition, map[string]any{"component": "playback", "from": string(from), "to": string(to)})
}

func (c *Controller) report(err error) {
	log.Printf("[playback] error state=%s: %v", c.state, err)
	c.deps.Sink.Report(err)
}
