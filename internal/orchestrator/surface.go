package orchestrator

import (
	"errors"
	"fmt"
	"log"

	"cuepoint/agent/internal/events"
	"cuepoint/agent/internal/media"
	"cuepoint/agent/internal/stt"
	"cuepoint/agent/internal/workerws"
)

// Handle routes one surface message. It must run on the event loop.
func (o *Orchestrator) Handle(msg workerws.Message) {
	defer o.checkExclusive()
	metricSurfaceEvents.WithLabelValues(msg.Type).Inc()

	switch msg.Type {
	case workerws.EvHello:
		rec, _ := msg.Payload["recognition"].(bool)
		o.setConnected(true)
		o.sink.Emit(events.SurfaceConnected, map[string]any{"recognition": rec})
		if o.surfaceLost {
			o.surfaceLost = false
			o.playback.Reattach()
		}

	case workerws.EvDisconnected:
		o.setConnected(false)
		o.surfaceLost = true
		o.sink.Emit(events.SurfaceGone, nil)
		o.ExitVoiceChat()
		o.playback.CaptureFailed(errors.New("surface disconnected"))

	case workerws.EvTimeUpdate:
		t, ok := msg.Payload["t"].(float64)
		if !ok {
			o.invalid(msg, "missing t")
			return
		}
		o.playback.TimeUpdate(media.Seconds(t))

	case workerws.EvMediaReady:
		o.playback.MediaReady()

	case workerws.EvMediaEnded:
		log.Printf("[orch] session=%s segment %d ended", o.deps.SessionID, o.playback.Segment().ID)

	case workerws.EvAudioEnded:
		id, _ := msg.Payload["id"].(string)
		if !o.playback.AudioEnded(id) && !o.voice.AudioEnded(id) {
			log.Printf("[orch] session=%s audio_ended for unknown id=%q", o.deps.SessionID, id)
		}

	case workerws.EvAudioError:
		id, _ := msg.Payload["id"].(string)
		err := errors.New(payloadString(msg, "error"))
		if !o.playback.AudioFailed(id, err) && !o.voice.AudioFailed(id, err) {
			log.Printf("[orch] session=%s audio_error for unknown id=%q: %v", o.deps.SessionID, id, err)
		}

	case workerws.EvCaptureError:
		o.playback.CaptureFailed(errors.New(payloadString(msg, "error")))

	case workerws.EvRecognitionResult:
		var res stt.Result
		if err := msg.Decode(&res); err != nil {
			o.invalid(msg, err.Error())
			return
		}
		o.voice.Result(res)

	case workerws.EvRecognitionEnd:
		o.voice.RecognitionEnded()

	case workerws.EvRecognitionError:
		o.voice.RecognitionFailed(errors.New(payloadString(msg, "error")))

	case workerws.ActStopRecording:
		o.StopRecording()
	case workerws.ActRetryCapture:
		o.RetryCapture()
	case workerws.ActVoiceChatEnter:
		o.EnterVoiceChat()
	case workerws.ActVoiceChatExit:
		o.ExitVoiceChat()
	case workerws.ActVoiceChatToggle:
		o.ToggleVoiceChat()

	default:
		o.invalid(msg, "unknown type")
	}
}

func (o *Orchestrator) setConnected(ok bool) {
	o.connected = ok
	if o.deps.Store != nil {
		o.deps.Store.SetSurfaceConnected(o.deps.SessionID, ok)
	}
}

func (o *Orchestrator) invalid(msg workerws.Message, reason string) {
	o.sink.Emit(events.SurfaceMsgInvalid, map[string]any{"type": msg.Type, "reason": reason})
	log.Printf("[orch] session=%s invalid surface message type=%s: %s", o.deps.SessionID, msg.Type, reason)
}

func payloadString(msg workerws.Message, key string) string {
	if s, ok := msg.Payload[key].(string); ok && s != "" {
		return s
	}
	return fmt.Sprintf("%s without detail", msg.Type)
}
