package workerws

import "encoding/json"

// Message is the envelope for every frame exchanged with the surface.
type Message struct {
	Type      string         `json:"type"`
	TsMs      int64          `json:"ts_ms"`
	SessionID string         `json:"session_id"`
	Seq       int64          `json:"seq"`
	CommandID string         `json:"command_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Decode re-reads the payload into v.
func (m Message) Decode(v any) error {
	b, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Commands sent to the surface.
const (
	CmdSetSource        = "set_source"
	CmdPlay             = "play"
	CmdPause            = "pause"
	CmdPlayAudio        = "play_audio"
	CmdStopAudio        = "stop_audio"
	CmdCaptureStart     = "capture_start"
	CmdCaptureStop      = "capture_stop"
	CmdRecognitionStart = "recognition_start"
	CmdRecognitionStop  = "recognition_stop"
)

// Events and user actions received from the surface.
const (
	EvHello             = "hello"
	EvTimeUpdate        = "time_update"
	EvMediaReady        = "media_ready"
	EvMediaEnded        = "media_ended"
	EvAudioEnded        = "audio_ended"
	EvAudioError        = "audio_error"
	EvCaptureError      = "capture_error"
	EvCaptureData       = "capture_data"
	EvRecognitionResult = "recognition_result"
	EvRecognitionEnd    = "recognition_end"
	EvRecognitionError  = "recognition_error"

	ActStopRecording   = "stop_recording"
	ActRetryCapture    = "retry_capture"
	ActVoiceChatEnter  = "voice_chat_enter"
	ActVoiceChatExit   = "voice_chat_exit"
	ActVoiceChatToggle = "voice_chat_toggle"

	// EvDisconnected is synthesized locally when the surface connection closes.
	EvDisconnected = "disconnected"
)
