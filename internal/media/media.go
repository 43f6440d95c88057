package media

import (
	"context"
	"math"
	"time"
)

// Surface is the single video element: settable source, play/pause. Its timeUpdate, ready and
// ended events are delivered to the orchestrator on the event loop.
type Surface interface {
	SetSource(url string) error
	Play() error
	Pause() error
}

// AudioPlayer plays a feedback clip or voice-chat reply. The ended event carries the id.
type AudioPlayer interface {
	PlayAudio(id, src string) error
	StopAudio(id string) error
}

// Recorder is the Media Capture Adapter. Start begins buffering from the default input device;
// Stop finalizes the recording and may block, so it is never called on the event loop.
type Recorder interface {
	Start() error
	Stop(ctx context.Context) (Blob, error)
}

// Blob is one finalized, encoded recording.
type Blob struct {
	Data     []byte
	MimeType string
}

const (
	DefaultMimeType = "audio/wav"
	DefaultFilename = "speech.wav"
)

func (b Blob) Empty() bool { return len(b.Data) == 0 }

// Seconds converts a surface-reported playback position into a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
