package events

import "cuepoint/agent/internal/types"

// Event types recorded on the session trace.
const (
	SessionCreated     = "session_created"
	StateTransition    = "state_transition"
	ModeChanged        = "mode_changed"
	CheckpointFired    = "checkpoint_fired"
	CaptureStarted     = "capture_started"
	CaptureDiscarded   = "capture_discarded"
	SpeechSubmitted    = "speech_submitted"
	ResultApplied      = "result_applied"
	SegmentActivated   = "segment_activated"
	RecognitionStarted = "recognition_started"
	RecognitionStopped = "recognition_stopped"
	TranscriptSent     = "transcript_submitted"
	ReplyStarted       = "reply_started"
	ReplyEnded         = "reply_ended"
	FloorReleased      = "floor_released"
	FloorDenied        = "floor_denied"
	SurfaceConnected   = "surface_connected"
	SurfaceGone        = "surface_disconnected"
	SurfaceMsgInvalid  = "surface_msg_invalid"
	Error              = "error"
)

// Sink receives trace events and reported failures from the controllers.
// Implementations are called on the event loop.
type Sink interface {
	Emit(typ string, payload map[string]any)
	Report(err error)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Emit(string, map[string]any) {}
func (Nop) Report(error)                {}

// Recorder keeps everything in memory; used by tests.
type Recorder struct {
	Events []types.Event
	Errors []error
}

func (r *Recorder) Emit(typ string, payload map[string]any) {
	r.Events = append(r.Events, types.Event{Type: typ, Payload: payload})
}

func (r *Recorder) Report(err error) { r.Errors = append(r.Errors, err) }

// Count returns how many events of typ were recorded.
func (r *Recorder) Count(typ string) int {
	n := 0
	for _, e := range r.Events {
		if e.Type == typ {
			n++
		}
	}
	return n
}
