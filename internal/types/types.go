package types

import (
	"encoding/base64"
	"errors"
	"time"
)

var (
	// ErrDeviceAcquisition: the capture device could not be opened.
	ErrDeviceAcquisition = errors.New("capture device unavailable")
	// ErrTransport: a remote call failed or returned a malformed payload.
	ErrTransport = errors.New("transport failure")
	// ErrUnsupportedCapability: continuous recognition is unavailable or suppressed.
	ErrUnsupportedCapability = errors.New("unsupported capability")
)

// ErrorKind maps an error onto the reporting taxonomy (used as a metric label).
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDeviceAcquisition):
		return "device_acquisition"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrUnsupportedCapability):
		return "unsupported_capability"
	default:
		return "other"
	}
}

type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

type Session struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`

	SurfaceConnected bool `json:"surface_connected"`
}

// VideoSegment is one unit of guided playback as issued by the remote service.
type VideoSegment struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

func (v VideoSegment) Valid() bool { return v.ID >= 1 && v.URL != "" }

// InteractionResult is the guided exchange response. At most one variant is applied;
// NextVideo wins when both are present.
type InteractionResult struct {
	NextVideo     *VideoSegment `json:"nextVideo,omitempty"`
	FeedbackAudio string        `json:"feedbackAudio,omitempty"`
}

type ResultKind int

const (
	ResultNoOp ResultKind = iota
	ResultNextVideo
	ResultFeedback
)

func (r InteractionResult) Kind() ResultKind {
	switch {
	case r.NextVideo != nil:
		return ResultNextVideo
	case r.FeedbackAudio != "":
		return ResultFeedback
	default:
		return ResultNoOp
	}
}

func (k ResultKind) String() string {
	switch k {
	case ResultNextVideo:
		return "next_video"
	case ResultFeedback:
		return "feedback_audio"
	default:
		return "noop"
	}
}

// VoiceChatReply is the voice-chat exchange response; Audio is base64-encoded mp3.
type VoiceChatReply struct {
	Text  string `json:"text"`
	Audio string `json:"audio"`
}

// DataURI returns the playable reference for the reply audio.
func (r VoiceChatReply) DataURI() string {
	return "data:audio/mp3;base64," + r.Audio
}

// ValidAudio reports whether Audio is non-empty, well-formed base64.
func (r VoiceChatReply) ValidAudio() bool {
	if r.Audio == "" {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(r.Audio)
	return err == nil
}

// Mode is the process-wide interaction mode.
type Mode int

const (
	ModeGuided Mode = iota
	ModeVoiceChat
)

func (m Mode) String() string {
	if m == ModeVoiceChat {
		return "voice_chat"
	}
	return "guided"
}
