package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Clock returns the current time. Tests inject fixed clocks.
type Clock func() time.Time

// Store keeps session state between turns. Get returns a private copy; changes are only
// visible to other turns after Save.
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, s *State) error
	Delete(ctx context.Context, id string) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// Options tune eviction. TTL 0 keeps sessions forever.
type Options struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxSessions   int
	Clock         Clock
	// OnSizeChange receives the session count. The memory store reports after saves,
	// deletes and sweeps; the redis store samples every SweepInterval.
	OnSizeChange func(n int)
}

func (o Options) now() time.Time {
	if o.Clock == nil {
		return time.Now()
	}
	return o.Clock()
}

func (o Options) reportSize(n int) {
	if o.OnSizeChange != nil {
		o.OnSizeChange(n)
	}
}
