package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"intake/pkg/intake"
	"intake/pkg/logx"
)

const timeLayout = time.RFC3339Nano

// SQLiteStore is the durable Store.
type SQLiteStore struct {
	db     *sql.DB
	logger *logx.Logger
	now    func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path with WAL mode and a busy
// timeout, and brings the schema up to date. ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer; one connection also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger := logx.NewLogger("persistence")
	logger.Info("database initialized: %s", path)
	return &SQLiteStore{db: db, logger: logger, now: time.Now}, nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, code string) (*intake.Profile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM client_profiles WHERE client_code = ?`,
		intake.NormalizeCode(code)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return decodeProfile(data)
}

func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]*intake.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM client_profiles ORDER BY client_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	profiles := []*intake.Profile{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p, err := decodeProfile(data)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return profiles, nil
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *intake.Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}
	stored := p.Clone()
	stored.ClientCode = intake.NormalizeCode(p.ClientCode)
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO client_profiles (client_code, client_name, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(client_code) DO UPDATE SET
			client_name = excluded.client_name,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		stored.ClientCode, stored.ClientName, string(data), s.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteProfile(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM client_profiles WHERE client_code = ?`, intake.NormalizeCode(code))
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (s *SQLiteStore) ListServiceOptions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label FROM service_options ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query service options: %w", err)
	}
	defer func() { _ = rows.Close() }()

	options := []string{}
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan service option: %w", err)
		}
		options = append(options, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate service options: %w", err)
	}
	return options, nil
}

// SetServiceOptions replaces the option list in one transaction.
func (s *SQLiteStore) SetServiceOptions(ctx context.Context, options []string) error {
	cleaned := cleanOptions(options)
	if len(cleaned) == 0 {
		return ErrNoServiceOptions
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM service_options`); err != nil {
		return fmt.Errorf("failed to clear service options: %w", err)
	}
	for i, label := range cleaned {
		if _, err := tx.ExecContext(ctx, `INSERT INTO service_options (position, label) VALUES (?, ?)`, i, label); err != nil {
			return fmt.Errorf("failed to insert service option: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit service options: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendRequestLog(ctx context.Context, rec intake.RequestRecord) (intake.RequestRecord, error) {
	rec = stampRecord(rec, s.now())
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return intake.RequestRecord{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO request_logs
			(id, created_at, client_code, client_name, service_type, project_title, summary, monday_item_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.Format(timeLayout), rec.ClientCode, rec.ClientName, rec.ServiceType,
		rec.ProjectTitle, rec.Summary, rec.TicketID, string(payload))
	if err != nil {
		return intake.RequestRecord{}, fmt.Errorf("failed to append request log: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListRequestLogs(ctx context.Context, limit int) ([]intake.RequestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, client_code, client_name, service_type, project_title, summary,
			COALESCE(monday_item_id, ''), payload
		FROM request_logs ORDER BY seq DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query request logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []intake.RequestRecord{}
	for rows.Next() {
		var (
			rec              intake.RequestRecord
			created, payload string
		)
		if err := rows.Scan(&rec.ID, &created, &rec.ClientCode, &rec.ClientName, &rec.ServiceType,
			&rec.ProjectTitle, &rec.Summary, &rec.TicketID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan request log: %w", err)
		}
		if rec.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", created, err)
		}
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload for %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate request logs: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func decodeProfile(data string) (*intake.Profile, error) {
	var p intake.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &p, nil
}
