package relay

import (
	"context"
	"sync"

	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/dkeye/voicerelay/internal/metrics"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Session *Session
	once    sync.Once
}

// Registry tracks live sessions so the server can report and shut them down.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
	wg       sync.WaitGroup
	metrics  *metrics.Metrics
}

func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*sessionEntry),
		metrics:  m,
	}
}

// Register binds a session and returns the func that unbinds it. A session
// registered under a live id replaces and closes the old one.
func (r *Registry) Register(s *Session) (unregister func()) {
	entry := &sessionEntry{Session: s}

	r.mu.Lock()
	old := r.sessions[s.ID()]
	r.sessions[s.ID()] = entry
	r.wg.Add(1)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SessionsOpened.Inc()
		r.metrics.ActiveSessions.Inc()
	}
	log.Info().Str("module", "relay.registry").Str("sid", string(s.ID())).Msg("bound session")

	if old != nil {
		old.Session.Close(ReasonShutdown)
		r.unregister(old)
	}
	return func() { r.unregister(entry) }
}

func (r *Registry) unregister(entry *sessionEntry) {
	entry.once.Do(func() {
		id := entry.Session.ID()
		r.mu.Lock()
		if r.sessions[id] == entry {
			delete(r.sessions, id)
		}
		r.mu.Unlock()
		if r.metrics != nil {
			r.metrics.ActiveSessions.Dec()
		}
		r.wg.Done()
		log.Info().Str("module", "relay.registry").Str("sid", string(id)).Msg("unbind session")
	})
}

func (r *Registry) Get(id domain.SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[id]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll tears down every live session and returns how many it closed.
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	live := make([]*Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		live = append(live, e.Session)
	}
	r.mu.RUnlock()

	for _, s := range live {
		s.Close(ReasonShutdown)
	}
	log.Info().Str("module", "relay.registry").Int("sessions", len(live)).Msg("closed all sessions")
	return len(live)
}

// Wait blocks until every registered session has unregistered or ctx ends.
func (r *Registry) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
