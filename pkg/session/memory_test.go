package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"intake/pkg/intake"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Options{})
	defer store.Close()

	s := NewState("abc")
	s.Profile = intake.SampleProfile()
	s.Answers = intake.NewAnswers("Lupita R.")
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	got.Answers["goal"] = "changed"
	got.Profile.ClientName = "changed"

	again, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.NotContains(t, again.Answers, "goal")
	assert.Equal(t, "ReadyOne Industries", again.Profile.ClientName)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore(Options{TTL: time.Hour, Clock: clock.Now})
	defer store.Close()

	require.NoError(t, store.Save(ctx, NewState("a")))
	clock.Advance(30 * time.Minute)
	require.NoError(t, store.Save(ctx, NewState("b")))
	clock.Advance(45 * time.Minute)

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "b")
	assert.NoError(t, err)

	assert.Equal(t, 1, store.DeleteExpired())
	n, _ := store.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestMemoryStoreMaxSessionsEvictsOldest(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	var sizes []int
	store := NewMemoryStore(Options{MaxSessions: 2, Clock: clock.Now, OnSizeChange: func(n int) { sizes = append(sizes, n) }})
	defer store.Close()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, NewState(id)))
		clock.Advance(time.Minute)
	}

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "c")
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2}, sizes)
}

func TestMemoryStoreSweeperStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clock := newFakeClock()
	store := NewMemoryStore(Options{TTL: time.Minute, SweepInterval: time.Millisecond, Clock: clock.Now})
	require.NoError(t, store.Save(context.Background(), NewState("a")))
	clock.Advance(2 * time.Minute)

	assert.Eventually(t, func() bool {
		n, _ := store.Len(context.Background())
		return n == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestResetIntake(t *testing.T) {
	s := NewState("x")
	s.ResetIntake()
	assert.Equal(t, PhaseAwaitClientCode, s.Phase)
	assert.Equal(t, intake.Answers{"approver": ""}, s.Answers)

	s.Profile = intake.SampleProfile()
	s.Phase = PhaseDone
	s.ServiceType = "Other"
	s.Pending = &Clarification{FieldID: "goal"}
	s.Summary = "old"
	s.ServiceAttempts = 3
	s.ResetIntake()

	assert.Equal(t, PhaseAwaitService, s.Phase)
	assert.Empty(t, s.ServiceType)
	assert.Nil(t, s.Pending)
	assert.Empty(t, s.Summary)
	assert.Zero(t, s.ServiceAttempts)
	assert.Equal(t, intake.Answers{"approver": "Lupita R."}, s.Answers)
}
