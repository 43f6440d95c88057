package orchestrator

// Snapshot is a read-only view of the orchestrator state.
type Snapshot struct {
	SessionID        string `json:"session_id"`
	Mode             string `json:"mode"`
	SurfaceConnected bool   `json:"surface_connected"`
	FloorHolder      string `json:"floor_holder,omitempty"`

	Guided struct {
		State             string `json:"state"`
		VideoID           int    `json:"video_id,omitempty"`
		VideoURL          string `json:"video_url,omitempty"`
		CheckpointArmed   bool   `json:"checkpoint_armed"`
		Suspended         bool   `json:"suspended"`
		LastFeedbackAudio string `json:"last_feedback_audio,omitempty"`
	} `json:"guided"`

	VoiceChat struct {
		State       string `json:"state"`
		Recognizing bool   `json:"recognizing"`
		Transcript  string `json:"transcript,omitempty"`
		Interim     string `json:"interim,omitempty"`
		LastReply   string `json:"last_reply,omitempty"`
	} `json:"voice_chat"`
}

func (o *Orchestrator) Snapshot() Snapshot {
	var s Snapshot
	s.SessionID = o.deps.SessionID
	s.Mode = o.mode.String()
	s.SurfaceConnected = o.connected
	s.FloorHolder = string(o.floor.Holder())

	seg := o.playback.Segment()
	s.Guided.State = string(o.playback.State())
	s.Guided.VideoID = seg.ID
	s.Guided.VideoURL = seg.URL
	s.Guided.CheckpointArmed = o.playback.CheckpointArmed()
	s.Guided.Suspended = o.playback.Suspended()
	s.Guided.LastFeedbackAudio = o.playback.LastFeedbackAudio()

	s.VoiceChat.State = string(o.voice.State())
	s.VoiceChat.Recognizing = o.voice.Recognizing()
	s.VoiceChat.Transcript = o.voice.Transcript()
	s.VoiceChat.Interim = o.voice.Interim()
	s.VoiceChat.LastReply = o.voice.LastReply()
	return s
}
