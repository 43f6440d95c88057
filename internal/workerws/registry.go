package workerws

import "sync"

// Registry maps session ids to their surface links.
type Registry struct {
	mu    sync.Mutex
	links map[string]*Link
}

func NewRegistry() *Registry { return &Registry{links: make(map[string]*Link)} }

func (r *Registry) Add(l *Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[l.SessionID()] = l
}

func (r *Registry) Get(sessionID string) *Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.links[sessionID]
}

// Remove drops the link and closes its connection, if any.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	l := r.links[sessionID]
	delete(r.links, sessionID)
	r.mu.Unlock()
	if l != nil {
		l.Close()
	}
}
