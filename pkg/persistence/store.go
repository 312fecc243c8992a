// Package persistence stores client profiles, the service option list and the append-only
// request log. SQLiteStore is the durable backend; MemoryStore serves development and tests.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"intake/pkg/catalog"
	"intake/pkg/config"
	"intake/pkg/intake"
)

var (
	// ErrProfileNotFound is returned for unknown client codes.
	ErrProfileNotFound = errors.New("client profile not found")
	// ErrInvalidProfile is returned when a profile cannot be stored.
	ErrInvalidProfile = errors.New("invalid client profile")
	// ErrNoServiceOptions is returned when setting an empty option list.
	ErrNoServiceOptions = errors.New("at least one service option is required")
)

// Store is the data layer behind the dialogue engine and the admin API.
type Store interface {
	GetProfile(ctx context.Context, code string) (*intake.Profile, error)
	ListProfiles(ctx context.Context) ([]*intake.Profile, error)
	UpsertProfile(ctx context.Context, p *intake.Profile) error
	DeleteProfile(ctx context.Context, code string) error

	ListServiceOptions(ctx context.Context) ([]string, error)
	SetServiceOptions(ctx context.Context, options []string) error

	// AppendRequestLog assigns ID and CreatedAt and returns the stored record.
	AppendRequestLog(ctx context.Context, rec intake.RequestRecord) (intake.RequestRecord, error)
	// ListRequestLogs returns up to limit records, newest first.
	ListRequestLogs(ctx context.Context, limit int) ([]intake.RequestRecord, error)

	Close() error
}

// Open creates the store selected by cfg and seeds it unless cfg.SkipSeed is set.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case "", config.BackendMemory:
		store = NewMemoryStore()
	case config.BackendSQLite:
		store, err = OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}

	if !cfg.SkipSeed {
		if err := Seed(ctx, store); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

// Seed inserts the sample client when missing and the default service options when the list
// is empty.
func Seed(ctx context.Context, s Store) error {
	if _, err := s.GetProfile(ctx, intake.SampleClientCode); errors.Is(err, ErrProfileNotFound) {
		if err := s.UpsertProfile(ctx, intake.SampleProfile()); err != nil {
			return fmt.Errorf("failed to seed sample profile: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to check sample profile: %w", err)
	}

	options, err := s.ListServiceOptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to read service options: %w", err)
	}
	if len(options) == 0 {
		if err := s.SetServiceOptions(ctx, catalog.DefaultServiceOptions); err != nil {
			return fmt.Errorf("failed to seed service options: %w", err)
		}
	}
	return nil
}

func validateProfile(p *intake.Profile) error {
	if p == nil {
		return fmt.Errorf("%w: missing profile", ErrInvalidProfile)
	}
	code := intake.NormalizeCode(p.ClientCode)
	if len(code) < 3 || len(code) > 64 {
		return fmt.Errorf("%w: client code must be 3-64 characters", ErrInvalidProfile)
	}
	if strings.TrimSpace(p.ClientName) == "" {
		return fmt.Errorf("%w: client name is required", ErrInvalidProfile)
	}
	return nil
}

func cleanOptions(options []string) []string {
	out := make([]string, 0, len(options))
	seen := make(map[string]bool, len(options))
	for _, option := range options {
		option = strings.TrimSpace(option)
		if option == "" || seen[strings.ToLower(option)] {
			continue
		}
		seen[strings.ToLower(option)] = true
		out = append(out, option)
	}
	return out
}

func stampRecord(rec intake.RequestRecord, now time.Time) intake.RequestRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now.UTC()
	}
	return rec
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}
