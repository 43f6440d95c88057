package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"cuepoint/agent/internal/auth"
	"cuepoint/agent/internal/config"
	"cuepoint/agent/internal/health"
	"cuepoint/agent/internal/orchestrator"
	"cuepoint/agent/internal/sessions"
	"cuepoint/agent/internal/store"
)

// loopTimeout bounds how long a request waits for the session's event loop.
const loopTimeout = 5 * time.Second

type Handlers struct {
	cfg   config.Config
	store *store.Store
	mgr   *sessions.Manager
}

func NewHandlers(cfg config.Config, st *store.Store, mgr *sessions.Manager) *Handlers {
	return &Handlers{cfg: cfg, store: st, mgr: mgr}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	st := health.CheckAll(ctx, h.cfg)
	status := http.StatusOK
	if !st.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, st)
}

func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	rt, created := h.mgr.Ensure()
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"session_id": rt.ID,
		"created_at": rt.CreatedAt,
		"created":    created,
		"surface_ws": "/ws/surface?session_id=" + url.QueryEscape(rt.ID),
	})
}

func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request, id string) {
	rt := h.mgr.Get(id)
	if rt == nil {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), loopTimeout)
	defer cancel()
	snap, err := rt.Snapshot(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request, id string) {
	if h.store.GetSession(id) == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"events":     h.store.ListEvents(id),
	})
}

// HandleAction runs a user action on the session's loop and answers with whether it was
// accepted plus the resulting state.
func (h *Handlers) HandleAction(w http.ResponseWriter, r *http.Request, id string, action func(o *orchestrator.Orchestrator) bool) {
	rt := h.mgr.Get(id)
	if rt == nil {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), loopTimeout)
	defer cancel()
	var (
		ok   bool
		snap orchestrator.Snapshot
	)
	err := rt.Do(ctx, func(o *orchestrator.Orchestrator) {
		ok = action(o)
		snap = o.Snapshot()
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": ok, "state": snap})
}

func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request, id string) {
	h.HandleAction(w, r, id, func(o *orchestrator.Orchestrator) bool {
		started := o.Start()
		if started {
			h.store.SetStatus(id, "started")
		}
		return started
	})
}

func (h *Handlers) HandleMintSurfaceToken(w http.ResponseWriter, r *http.Request, id string) {
	if h.mgr.Get(id) == nil {
		http.NotFound(w, r)
		return
	}
	if h.cfg.Surface.TokenSecret == "" {
		http.Error(w, "surface auth not configured", http.StatusBadRequest)
		return
	}
	exp := time.Now().Add(time.Duration(h.cfg.Surface.TokenExpMin) * time.Minute).Unix()
	token, err := auth.GenerateSurfaceToken(h.cfg.Surface.TokenSecret, id, exp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"token":      token,
		"exp":        exp,
		"ws_url":     "/ws/surface?session_id=" + url.QueryEscape(id),
	})
}
