package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"intake/pkg/intake"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*intake.Profile
	options  []string
	logs     []intake.RequestRecord
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. Use Seed for the sample data.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*intake.Profile), now: time.Now}
}

func (m *MemoryStore) GetProfile(_ context.Context, code string) (*intake.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[intake.NormalizeCode(code)]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (m *MemoryStore) ListProfiles(context.Context) ([]*intake.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*intake.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientCode < out[j].ClientCode })
	return out, nil
}

func (m *MemoryStore) UpsertProfile(_ context.Context, p *intake.Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}
	stored := p.Clone()
	stored.ClientCode = intake.NormalizeCode(p.ClientCode)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[stored.ClientCode] = stored
	return nil
}

func (m *MemoryStore) DeleteProfile(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	code = intake.NormalizeCode(code)
	if _, ok := m.profiles[code]; !ok {
		return ErrProfileNotFound
	}
	delete(m.profiles, code)
	return nil
}

func (m *MemoryStore) ListServiceOptions(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.options...), nil
}

func (m *MemoryStore) SetServiceOptions(_ context.Context, options []string) error {
	cleaned := cleanOptions(options)
	if len(cleaned) == 0 {
		return ErrNoServiceOptions
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options = cleaned
	return nil
}

func (m *MemoryStore) AppendRequestLog(_ context.Context, rec intake.RequestRecord) (intake.RequestRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec = stampRecord(rec, m.now())
	m.logs = append(m.logs, rec)
	return rec, nil
}

func (m *MemoryStore) ListRequestLogs(_ context.Context, limit int) ([]intake.RequestRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit = clampLimit(limit)
	out := make([]intake.RequestRecord, 0, limit)
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.logs[i])
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
