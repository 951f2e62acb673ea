package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"StockPulse/internal/domain/models"
	xlogger "StockPulse/pkg/logger"
	xutil "StockPulse/pkg/util"
)

// timeLayout is the canonical storage format for timestamp columns. Reads go
// through util.ParseTime so rows written by older tooling still resolve.
const timeLayout = time.RFC3339

var ErrNotFound = errors.New("record not found")

// SQLiteStore backs the request journal, the user registry, and the system
// configuration table with a single embedded database.
type SQLiteStore struct {
	db  *sql.DB
	log *xlogger.Logger
}

// NewSQLiteStore opens (or creates) the database and runs migrations. WAL
// mode keeps reads cheap while the request journal appends.
func NewSQLiteStore(path string, log *xlogger.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite store opened", xlogger.String("path", path))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         INTEGER PRIMARY KEY,
			username   TEXT NOT NULL DEFAULT '',
			phone      TEXT NOT NULL DEFAULT '',
			is_active  INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS request_logs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     INTEGER NOT NULL,
			action_type TEXT NOT NULL,
			created_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_request_logs_user
			ON request_logs(user_id, action_type, created_at)`,

		`CREATE TABLE IF NOT EXISTS system_config (
			config_key   TEXT PRIMARY KEY,
			config_value TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// CountSince reports how many actions the user issued at or after the cutoff
// and the timestamp of the oldest one in that window.
func (s *SQLiteStore) CountSince(ctx context.Context, userID int64, action string, cutoff time.Time) (int, time.Time, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MIN(created_at), '')
		   FROM request_logs
		  WHERE user_id = ? AND action_type = ? AND created_at >= ?`,
		userID, action, cutoff.UTC().Format(timeLayout),
	)

	var count int
	var oldestRaw string
	if err := row.Scan(&count, &oldestRaw); err != nil {
		return 0, time.Time{}, fmt.Errorf("count requests: %w", err)
	}
	if count == 0 || oldestRaw == "" {
		return count, time.Time{}, nil
	}

	oldest, ok := xutil.ParseTime(oldestRaw)
	if !ok {
		return count, time.Time{}, fmt.Errorf("parse oldest request time %q", oldestRaw)
	}
	return count, oldest, nil
}

// Record appends one action for the user at the current time.
func (s *SQLiteStore) Record(ctx context.Context, userID int64, action string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO request_logs (user_id, action_type, created_at) VALUES (?, ?, ?)`,
		userID, action, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record request: %w", err)
	}
	return nil
}

// GetUser loads one membership record. A row whose expiry column cannot be
// parsed comes back with a zero ExpiresAt, which callers treat as lapsed.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, phone, is_active, created_at, expires_at
		   FROM users WHERE id = ?`, id,
	)

	var u models.User
	var active int
	var createdRaw, expiresRaw string
	err := row.Scan(&u.ID, &u.Username, &u.Phone, &active, &createdRaw, &expiresRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}

	u.IsActive = active != 0
	u.CreatedAt = xutil.ParseTimeDefault(createdRaw, time.Time{})
	if expires, ok := xutil.ParseTime(expiresRaw); ok {
		u.ExpiresAt = expires
	} else {
		s.log.Warn("unparseable user expiry, treating as lapsed",
			xlogger.Int64("user_id", id),
			xlogger.String("expires_at", expiresRaw),
		)
	}
	return &u, nil
}

// UpsertUser inserts or replaces a membership record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, phone, is_active, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			phone = excluded.phone,
			is_active = excluded.is_active,
			expires_at = excluded.expires_at`,
		u.ID, u.Username, u.Phone, boolToInt(u.IsActive),
		u.CreatedAt.UTC().Format(timeLayout),
		u.ExpiresAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return nil
}

// GetConfig returns the value for a configuration key, or ErrNotFound.
func (s *SQLiteStore) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT config_value FROM system_config WHERE config_key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get config %q: %w", key, err)
	}
	return value, nil
}

// SetConfig writes a configuration key.
func (s *SQLiteStore) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO system_config (config_key, config_value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(config_key) DO UPDATE SET config_value = excluded.config_value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("set config %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
