package sessions

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"cuepoint/agent/internal/config"
	"cuepoint/agent/internal/events"
	"cuepoint/agent/internal/exchange"
	"cuepoint/agent/internal/loop"
	"cuepoint/agent/internal/orchestrator"
	"cuepoint/agent/internal/playback"
	"cuepoint/agent/internal/store"
	"cuepoint/agent/internal/types"
	"cuepoint/agent/internal/voicechat"
	"cuepoint/agent/internal/workerws"
)

// Runtime is one live session: its event loop, orchestrator and surface link.
type Runtime struct {
	ID        string
	CreatedAt time.Time

	loop   *loop.Dispatcher
	orch   *orchestrator.Orchestrator
	link   *workerws.Link
	cancel context.CancelFunc
}

// Do runs fn on the session's event loop and waits for it.
func (r *Runtime) Do(ctx context.Context, fn func(o *orchestrator.Orchestrator)) error {
	return r.loop.Do(ctx, func() { fn(r.orch) })
}

// Snapshot reads the orchestrator state on the loop.
func (r *Runtime) Snapshot(ctx context.Context) (orchestrator.Snapshot, error) {
	var s orchestrator.Snapshot
	err := r.Do(ctx, func(o *orchestrator.Orchestrator) { s = o.Snapshot() })
	return s, err
}

// Manager owns the single active session. Mode is process-wide, so a second session is never
// started next to the first.
type Manager struct {
	cfg    config.Config
	store  *store.Store
	client exchange.Client
	reg    *workerws.Registry

	mu     sync.Mutex
	active *Runtime
}

func NewManager(cfg config.Config, st *store.Store, client exchange.Client, reg *workerws.Registry) *Manager {
	return &Manager{cfg: cfg, store: st, client: client, reg: reg}
}

// Ensure returns the active session, creating it on first use.
func (m *Manager) Ensure() (rt *Runtime, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return m.active, false
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	sess := &types.Session{ID: id, CreatedAt: now, Status: "created"}
	if err := m.store.CreateSession(sess); err != nil {
		// uuid collision; not expected
		log.Printf("[sessions] create %s: %v", id, err)
	}
	m.store.AppendEvent(id, events.SessionCreated, map[string]any{"remote": m.cfg.Remote.BaseURL})

	ctx, cancel := context.WithCancel(context.Background())
	disp := loop.New(256)
	link := workerws.NewLink(id, m.cfg.WriteTimeout())
	link.SetDebug(m.cfg.Debug())
	orch := orchestrator.New(ctx, m.orchestratorConfig(), orchestrator.Deps{
		Exec:       disp,
		Client:     m.client,
		Surface:    link,
		Player:     link,
		Recorder:   link.Recorder(),
		Recognizer: link.Recognizer(),
		Store:      m.store,
		SessionID:  id,
	})
	link.OnEvent(func(msg workerws.Message) {
		disp.Post(func() { orch.Handle(msg) })
	})
	m.reg.Add(link)
	go disp.Run(ctx)

	rt = &Runtime{ID: id, CreatedAt: now, loop: disp, orch: orch, link: link, cancel: cancel}
	m.active = rt
	log.Printf("[sessions] session %s created", id)
	return rt, true
}

// Get returns the runtime for id, or nil.
func (m *Manager) Get(id string) *Runtime {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.ID != id {
		return nil
	}
	return m.active
}

// Close stops the active session's loop and drops its surface.
func (m *Manager) Close() {
	m.mu.Lock()
	rt := m.active
	m.active = nil
	m.mu.Unlock()
	if rt == nil {
		return
	}
	m.reg.Remove(rt.ID)
	rt.cancel()
	m.store.SetStatus(rt.ID, "closed")
	log.Printf("[sessions] session %s closed", rt.ID)
}

func (m *Manager) orchestratorConfig() orchestrator.Config {
	var c orchestrator.Config
	c.Playback = playback.Config{
		InitialVideoID:      m.cfg.Guided.InitialVideoID,
		CheckpointOffset:    m.cfg.CheckpointOffset(),
		CheckpointTolerance: m.cfg.CheckpointTolerance(),
		Autoplay:            m.cfg.Guided.Autoplay,
		StopTimeout:         m.cfg.StopTimeout(),
	}
	c.VoiceChat = voicechat.Config{QuietPeriod: m.cfg.QuietPeriod()}
	return c
}
