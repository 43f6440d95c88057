package sessions

import (
	"context"
	"testing"
	"time"

	"cuepoint/agent/internal/config"
	"cuepoint/agent/internal/exchange"
	"cuepoint/agent/internal/orchestrator"
	"cuepoint/agent/internal/store"
	"cuepoint/agent/internal/workerws"
)

func newManager(t *testing.T) (*Manager, *store.Store, *workerws.Registry) {
	t.Helper()
	cfg := config.Load()
	st := store.New()
	reg := workerws.NewRegistry()
	m := NewManager(cfg, st, exchange.NewClient("http://127.0.0.1:1"), reg)
	t.Cleanup(m.Close)
	return m, st, reg
}

func TestEnsureReturnsSingleActiveSession(t *testing.T) {
	m, st, reg := newManager(t)

	rt, created := m.Ensure()
	if !created || rt.ID == "" {
		t.Fatalf("expected a new session")
	}
	again, created := m.Ensure()
	if created || again.ID != rt.ID {
		t.Fatalf("expected the active session to be reused")
	}
	if m.Get(rt.ID) != rt || m.Get("other") != nil {
		t.Fatalf("lookup by id failed")
	}
	if st.GetSession(rt.ID) == nil {
		t.Fatalf("session not recorded in the store")
	}
	if reg.Get(rt.ID) == nil {
		t.Fatalf("surface link not registered")
	}
}

func TestSnapshotRunsOnLoop(t *testing.T) {
	m, _, _ := newManager(t)
	rt, _ := m.Ensure()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	snap, err := rt.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.SessionID != rt.ID || snap.Mode != "guided" || snap.Guided.State != "LOADING" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	// Without a surface the initial load cannot set a source; the session stays loading.
	if err := rt.Do(ctx, func(o *orchestrator.Orchestrator) { o.Start() }); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func TestCloseDropsSession(t *testing.T) {
	m, st, reg := newManager(t)
	rt, _ := m.Ensure()
	m.Close()
	if m.Get(rt.ID) != nil || reg.Get(rt.ID) != nil {
		t.Fatalf("session should be gone")
	}
	if st.GetSession(rt.ID).Status != "closed" {
		t.Fatalf("expected closed status")
	}
	if next, created := m.Ensure(); !created || next.ID == rt.ID {
		t.Fatalf("expected a fresh session after close")
	}
}
