package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory, evicting idle sessions after TTL and the
// least recently updated one when MaxSessions is reached.
type MemoryStore struct {
	opts     Options
	mu       sync.RWMutex
	sessions map[string]*State
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates the store and starts the sweeper when both TTL and SweepInterval
// are set. Close stops the sweeper.
func NewMemoryStore(opts Options) *MemoryStore {
	m := &MemoryStore{
		opts:     opts,
		sessions: make(map[string]*State),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if opts.TTL > 0 && opts.SweepInterval > 0 {
		go m.sweep(opts.SweepInterval)
	} else {
		close(m.done)
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, id string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok || m.expired(s, m.opts.now()) {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *State) error {
	now := m.opts.now()
	s.UpdatedAt = now

	m.mu.Lock()
	if _, exists := m.sessions[s.SessionID]; !exists && m.opts.MaxSessions > 0 {
		for len(m.sessions) >= m.opts.MaxSessions {
			m.evictOldestLocked()
		}
	}
	m.sessions[s.SessionID] = s.Clone()
	n := len(m.sessions)
	m.mu.Unlock()

	m.opts.reportSize(n)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	m.opts.reportSize(n)
	return nil
}

func (m *MemoryStore) Len(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

// DeleteExpired removes idle sessions and returns how many were removed.
func (m *MemoryStore) DeleteExpired() int {
	now := m.opts.now()

	m.mu.Lock()
	count := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			count++
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if count > 0 {
		m.opts.reportSize(n)
	}
	return count
}

// Close stops the sweeper. It is safe to call more than once.
func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.stop) })
	<-m.done
	return nil
}

func (m *MemoryStore) expired(s *State, now time.Time) bool {
	return m.opts.TTL > 0 && now.Sub(s.UpdatedAt) > m.opts.TTL
}

func (m *MemoryStore) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, s := range m.sessions {
		if oldestID == "" || s.UpdatedAt.Before(oldest) {
			oldestID, oldest = id, s.UpdatedAt
		}
	}
	delete(m.sessions, oldestID)
}

func (m *MemoryStore) sweep(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.DeleteExpired()
		case <-m.stop:
			return
		}
	}
}
