package advisor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore keeps sessions in memory and evicts idle ones.
type SessionStore struct {
	logger      *slog.Logger
	idleTTL     time.Duration
	maxSessions int
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSessionStore creates a store. maxSessions <= 0 means unlimited,
// idleTTL <= 0 disables eviction.
func NewSessionStore(logger *slog.Logger, idleTTL time.Duration, maxSessions int) *SessionStore {
	return &SessionStore{
		logger:      logger.With("component", "sessions"),
		idleTTL:     idleTTL,
		maxSessions: maxSessions,
		now:         time.Now,
		sessions:    make(map[string]*Session),
		stopChan:    make(chan struct{}),
	}
}

// Create registers a new empty session. When the store is full, idle
// sessions are evicted first.
func (st *SessionStore) Create() (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.maxSessions > 0 && len(st.sessions) >= st.maxSessions {
		st.evictLocked()
		if len(st.sessions) >= st.maxSessions {
			return nil, ErrSessionLimit
		}
	}

	s := newSession(uuid.NewString(), st.now())
	st.sessions[s.ID] = s
	setActiveSessions(len(st.sessions))
	return s, nil
}

func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Evict removes sessions idle for longer than the TTL and returns how many
// were removed. Sessions with a running turn are kept.
func (st *SessionStore) Evict() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.evictLocked()
}

func (st *SessionStore) evictLocked() int {
	if st.idleTTL <= 0 {
		return 0
	}
	cutoff := st.now().Add(-st.idleTTL)
	removed := 0
	for id, s := range st.sessions {
		if s.LastActive().Before(cutoff) && !s.busy() {
			delete(st.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		st.logger.Info("evicted idle sessions", "count", removed, "remaining", len(st.sessions))
		recordEvictions(removed)
	}
	setActiveSessions(len(st.sessions))
	return removed
}

// Start runs the eviction janitor every interval.
func (st *SessionStore) Start(interval time.Duration) {
	if st.idleTTL <= 0 || interval <= 0 {
		return
	}
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-st.stopChan:
				return
			case <-ticker.C:
				st.Evict()
			}
		}
	}()
}

func (st *SessionStore) Stop() {
	st.stopOnce.Do(func() { close(st.stopChan) })
	st.wg.Wait()
}
