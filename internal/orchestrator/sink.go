package orchestrator

import (
	"log"

	"cuepoint/agent/internal/events"
	"cuepoint/agent/internal/store"
	"cuepoint/agent/internal/types"
)

// traceSink appends controller events to the session trace and turns reported failures into a
// log line, a counter and an error event.
type traceSink struct {
	store     *store.Store
	sessionID string
}

func (s *traceSink) Emit(typ string, payload map[string]any) {
	if s.store == nil {
		return
	}
	s.store.AppendEvent(s.sessionID, typ, payload)
}

func (s *traceSink) Report(err error) {
	if err == nil {
		return
	}
	kind := types.ErrorKind(err)
	metricErrors.WithLabelValues(kind).Inc()
	log.Printf("[orch] session=%s error kind=%s: %v", s.sessionID, kind, err)
	s.Emit(events.Error, map[string]any{"kind": kind, "error": err.Error()})
}
