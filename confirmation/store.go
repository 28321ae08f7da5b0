package confirmation

import (
	"sync"
	"time"
)

// SessionStore хранилище активных сессий подтверждения
type SessionStore interface {
	Put(session *UserConfirmationSession) error
	Get(id string) (*UserConfirmationSession, bool)
	Delete(id string)
	Count() int
}

// InMemorySessionStore потокобезопасное in-memory хранилище сессий с TTL.
// Незавершенные сессии вытесняются по истечении срока жизни
type InMemorySessionStore struct {
	ttl      time.Duration
	sessions map[string]*UserConfirmationSession
	mu       sync.RWMutex
}

// NewInMemorySessionStore создает хранилище сессий.
// При cleanupInterval > 0 запускается периодическая очистка просроченных сессий
func NewInMemorySessionStore(ttl, cleanupInterval time.Duration) *InMemorySessionStore {
	store := &InMemorySessionStore{
		ttl:      ttl,
		sessions: make(map[string]*UserConfirmationSession),
	}

	if cleanupInterval > 0 {
		go store.startCleanup(cleanupInterval)
	}

	return store
}

// Put сохраняет сессию
func (s *InMemorySessionStore) Put(session *UserConfirmationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session
	return nil
}

// Get возвращает сессию, если она существует и не просрочена
func (s *InMemorySessionStore) Get(id string) (*UserConfirmationSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || time.Since(session.CreatedAt) > s.ttl {
		return nil, false
	}
	return session, true
}

// Delete удаляет сессию
func (s *InMemorySessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
}

// Count возвращает число хранимых сессий
func (s *InMemorySessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// startCleanup запускает периодическую очистку просроченных сессий
func (s *InMemorySessionStore) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		s.cleanup()
	}
}

// cleanup удаляет сессии старше TTL
func (s *InMemorySessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, session := range s.sessions {
		if now.Sub(session.CreatedAt) > s.ttl {
			delete(s.sessions, id)
		}
	}
}
