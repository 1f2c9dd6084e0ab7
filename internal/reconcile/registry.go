package reconcile

import (
	"context"
	"sync"
)

// Registry hands out one Session per project, loading it on first use.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, sessions: make(map[string]*Session)}
}

// Session returns the session of projectID. A new session is loaded from the
// store before it is returned; if that fails it is not kept.
func (r *Registry) Session(ctx context.Context, projectID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[projectID]; ok {
		return s, nil
	}
	s := NewSession(projectID, r.deps)
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	r.sessions[projectID] = s
	return s, nil
}

// Close stops background work of every session.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.Close()
	}
}
