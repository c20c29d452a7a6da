package session

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"redisquery-backend/internal/models"
	"redisquery-backend/internal/services"
)

// ErrStoreFull is returned by Open once the session cap is reached.
var ErrStoreFull = &services.UnavailableError{Message: "Too many active sessions. Please try again later."}

// Notifier receives every state change of every session.
type Notifier interface {
	SendToSession(sessionID uuid.UUID, msg interface{})
}

// Store keeps sessions in memory. Nothing survives a restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
	max      int
	notifier Notifier
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewStore(ttl time.Duration, notifier Notifier) *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      ttl,
		notifier: notifier,
		stopChan: make(chan struct{}),
	}
}

// SetMaxSessions caps the number of live sessions. Zero means no cap.
func (st *Store) SetMaxSessions(max int) {
	st.mu.Lock()
	st.max = max
	st.mu.Unlock()
}

// Open adds a session unless the store is at its cap even after dropping
// expired sessions.
func (st *Store) Open(exampleIndex int, example models.Example) (*Session, error) {
	s := st.newSession(exampleIndex, example)

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.max > 0 && len(st.sessions) >= st.max {
		st.sweepLocked(time.Now())
		if len(st.sessions) >= st.max {
			return nil, ErrStoreFull
		}
	}
	st.sessions[s.ID] = s
	return s, nil
}

func (st *Store) newSession(exampleIndex int, example models.Example) *Session {
	s := New(exampleIndex, example)
	if st.notifier != nil {
		id := s.ID
		s.notify = func(state models.ConversationState) {
			st.notifier.SendToSession(id, models.WSMessage{Type: models.WSTypeState, Payload: state})
		}
	}
	return s
}

func (st *Store) Get(id uuid.UUID) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

func (st *Store) Delete(id uuid.UUID) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// StartSweeper drops idle sessions every interval until Stop is called.
func (st *Store) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-st.stopChan:
				return
			case now := <-ticker.C:
				if n := st.sweep(now); n > 0 {
					log.Printf("Expired %d idle sessions", n)
				}
			}
		}
	}()
}

func (st *Store) Stop() {
	st.stopOnce.Do(func() { close(st.stopChan) })
}

// sweep removes sessions idle for longer than the TTL. Sessions with a turn in
// flight are kept.
func (st *Store) sweep(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sweepLocked(now)
}

func (st *Store) sweepLocked(now time.Time) int {
	if st.ttl <= 0 {
		return 0
	}

	removed := 0
	for id, s := range st.sessions {
		idle, loading := s.idleSince(now)
		if loading || idle <= st.ttl {
			continue
		}
		delete(st.sessions, id)
		removed++
	}
	return removed
}
