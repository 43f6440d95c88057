package api

import (
	"net/http"
	"strings"

	"cuepoint/agent/internal/orchestrator"
	"cuepoint/agent/internal/types"
)

func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", h.HandleReady)

	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.HandleCreateSession(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
		// /sessions/{id}/state | /events | /start | /stop-recording | /retry-capture |
		// /voice-chat/{enter,exit} | /surface-token
		path := strings.TrimSuffix(r.URL.Path, "/")
		const prefix = "/sessions/"
		if !strings.HasPrefix(path, prefix) {
			http.NotFound(w, r)
			return
		}
		rest := strings.TrimPrefix(path, prefix)
		parts := strings.Split(rest, "/")
		if len(parts) == 0 || parts[0] == "" {
			http.NotFound(w, r)
			return
		}
		id := parts[0]
		tail := strings.Join(parts[1:], "/")

		method := http.MethodPost
		var handle func()
		switch tail {
		case "state":
			method = http.MethodGet
			handle = func() { h.HandleState(w, r, id) }
		case "events":
			method = http.MethodGet
			handle = func() { h.HandleListEvents(w, r, id) }
		case "start":
			handle = func() { h.HandleStart(w, r, id) }
		case "stop-recording":
			handle = func() { h.HandleAction(w, r, id, (*orchestrator.Orchestrator).StopRecording) }
		case "retry-capture":
			handle = func() { h.HandleAction(w, r, id, (*orchestrator.Orchestrator).RetryCapture) }
		case "voice-chat/enter":
			handle = func() {
				h.HandleAction(w, r, id, func(o *orchestrator.Orchestrator) bool {
					o.EnterVoiceChat()
					return o.Mode() == types.ModeVoiceChat
				})
			}
		case "voice-chat/exit":
			handle = func() {
				h.HandleAction(w, r, id, func(o *orchestrator.Orchestrator) bool {
					o.ExitVoiceChat()
					return o.Mode() == types.ModeGuided
				})
			}
		case "surface-token":
			handle = func() { h.HandleMintSurfaceToken(w, r, id) }
		default:
			http.NotFound(w, r)
			return
		}
		if r.Method != method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handle()
	})

	return mux
}
