package floor

// Owner identifies who holds the capture device.
type Owner string

const (
	None             Owner = ""
	GuidedCapture    Owner = "guided_capture"
	VoiceRecognition Owner = "voice_recognition"
)

// Decision is the floor manager's answer to an acquire or release.
type Decision struct {
	Granted bool
	Holder  Owner  // holder after the call
	Reason  string // e.g., "held_by_other"
}

// Manager arbitrates the single capture device: guided capture and voice-chat recognition
// never hold it at the same time.
type Manager struct {
	holder    Owner
	acquires  int
	onRelease []func(prev Owner)
}

func New() *Manager { return &Manager{} }

// Acquire grants the floor when it is free or already held by o.
func (m *Manager) Acquire(o Owner) Decision {
	if o == None {
		return Decision{Holder: m.holder, Reason: "no_owner"}
	}
	if m.holder != None && m.holder != o {
		return Decision{Holder: m.holder, Reason: "held_by_other"}
	}
	if m.holder == None {
		m.acquires++
	}
	m.holder = o
	return Decision{Granted: true, Holder: o}
}

// Release frees the floor if o holds it. Releasing a floor not held by o is a no-op.
func (m *Manager) Release(o Owner) Decision {
	if m.holder != o || o == None {
		return Decision{Holder: m.holder, Reason: "not_holder"}
	}
	m.holder = None
	for _, fn := range m.onRelease {
		fn(o)
	}
	return Decision{Granted: true}
}

// OnRelease registers fn to run after the floor becomes free. fn runs synchronously inside
// Release and may call Acquire.
func (m *Manager) OnRelease(fn func(prev Owner)) {
	m.onRelease = append(m.onRelease, fn)
}

func (m *Manager) Holder() Owner { return m.holder }

// Acquisitions counts transitions from free to held.
func (m *Manager) Acquisitions() int { return m.acquires }
