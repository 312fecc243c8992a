package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps sessions as JSON values with a server-side TTL, so conversations
// survive a restart. Turns are serialized by the in-process Locker only, so run a single
// replica against one prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
	opts   Options
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig, opts Options) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedisStoreWithClient(client, cfg.Prefix, opts), nil
}

// NewRedisStoreWithClient wraps an existing client. With OnSizeChange and SweepInterval
// set, the session count is sampled every SweepInterval until Close.
func NewRedisStoreWithClient(client *redis.Client, prefix string, opts Options) *RedisStore {
	if prefix == "" {
		prefix = "intake:session:"
	}
	r := &RedisStore{
		client: client,
		prefix: prefix,
		opts:   opts,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if opts.OnSizeChange != nil && opts.SweepInterval > 0 {
		go r.sample(opts.SweepInterval)
	} else {
		close(r.done)
	}
	return r
}

func (r *RedisStore) key(id string) string { return r.prefix + id }

func (r *RedisStore) Get(ctx context.Context, id string) (*State, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	s.normalizeDecoded()
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *State) error {
	s.UpdatedAt = r.opts.now()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.SessionID, err)
	}
	if err := r.client.Set(ctx, r.key(s.SessionID), data, r.opts.TTL).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.SessionID, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// Len counts keys under the prefix with SCAN.
func (r *RedisStore) Len(ctx context.Context) (int, error) {
	count := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// Close stops the sampler and closes the client.
func (r *RedisStore) Close() error {
	r.once.Do(func() { close(r.stop) })
	<-r.done
	return r.client.Close()
}

func (r *RedisStore) sample(interval time.Duration) {
	defer close(r.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.report()
		select {
		case <-ticker.C:
		case <-r.stop:
			return
		}
	}
}

func (r *RedisStore) report() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if n, err := r.Len(ctx); err == nil {
		r.opts.reportSize(n)
	}
}
