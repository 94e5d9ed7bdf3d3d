package assistant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Factory builds a fresh, independent session for id.
type Factory func(ctx context.Context, id string) (*Session, error)

type entry struct {
	session  *Session
	lastUsed time.Time
}

// Registry keeps the live sessions of a server. Sessions share no state;
// the registry only maps ids to them.
type Registry struct {
	factory Factory
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry creates a registry. A zero ttl keeps sessions forever.
func NewRegistry(factory Factory, ttl time.Duration) *Registry {
	return &Registry{
		factory:  factory,
		ttl:      ttl,
		now:      time.Now,
		sessions: map[string]*entry{},
	}
}

// Create starts a session under a new random id.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	return r.Open(ctx, uuid.NewString())
}

// Open returns the live session for id, building it (and restoring its
// stored conversation) when it is not in memory.
func (r *Registry) Open(ctx context.Context, id string) (*Session, error) {
	if s, ok := r.Get(id); ok {
		return s, nil
	}
	s, err := r.factory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", id, err)
	}
	if err := s.Load(ctx); err != nil {
		log.Warn().Err(err).Str("session", id).Msg("failed to restore conversation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// another request may have opened it meanwhile
	if e, ok := r.sessions[id]; ok {
		e.lastUsed = r.now()
		s.Close()
		return e.session, nil
	}
	r.sessions[id] = &entry{session: s, lastUsed: r.now()}
	log.Info().Str("session", id).Msg("session opened")
	return s, nil
}

// Get returns a live session and marks it used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.session, true
}

// Remove closes and forgets a session. Its stored conversation is kept.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		e.session.Close()
	}
}

// Sweep closes sessions idle for longer than the ttl and returns how many
// were removed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Session
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) {
			expired = append(expired, e.session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		log.Debug().Int("expired", len(expired)).Msg("swept idle sessions")
	}
	return len(expired)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = map[string]*entry{}
	r.mu.Unlock()
	for _, e := range sessions {
		e.session.Close()
	}
}
