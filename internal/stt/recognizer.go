package stt

import "strings"

// Recognizer abstracts the continuous speech-to-text stream. Results and end-of-stream are
// delivered to the voice chat controller as events; after an end the stream must be started
// again to keep listening.
type Recognizer interface {
	Supported() bool
	Start() error
	Stop() error
}

// Fragment is one recognized piece of speech.
type Fragment struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// Result is one recognition event.
type Result struct {
	Fragments []Fragment `json:"fragments"`
}

// Split returns the concatenated finalized and interim text of a result.
func (r Result) Split() (final []string, interim string) {
	var b strings.Builder
	for _, f := range r.Fragments {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		if f.IsFinal {
			final = append(final, text)
			continue
		}
		b.WriteString(f.Text)
	}
	return final, strings.TrimSpace(b.String())
}

// Accumulator collects finalized fragments between submissions.
type Accumulator struct {
	parts []string
}

// Append adds fragments and reports whether the accumulator grew.
func (a *Accumulator) Append(fragments ...string) bool {
	n := 0
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		a.parts = append(a.parts, f)
		n++
	}
	if n > 0 {
		metricFragments.Add(float64(n))
	}
	return n > 0
}

func (a *Accumulator) Empty() bool { return len(a.parts) == 0 }

func (a *Accumulator) String() string { return strings.Join(a.parts, " ") }

// Take returns the accumulated transcript and resets the accumulator.
func (a *Accumulator) Take() string {
	s := a.String()
	a.parts = nil
	return s
}

func (a *Accumulator) Reset() { a.parts = nil }
