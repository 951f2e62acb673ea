package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"StockPulse/internal/domain/models"
	xlogger "StockPulse/pkg/logger"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), xlogger.Nop())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRequestLogCountSince(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	count, _, err := store.CountSince(ctx, 1, "analysis", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountSince on empty journal: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}

	for i := 0; i < 3; i++ {
		if err := store.Record(ctx, 1, "analysis"); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := store.Record(ctx, 2, "analysis"); err != nil {
		t.Fatalf("Record other user: %v", err)
	}
	if err := store.Record(ctx, 1, "view"); err != nil {
		t.Fatalf("Record other action: %v", err)
	}

	count, oldest, err := store.CountSince(ctx, 1, "analysis", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3 (other users and actions excluded)", count)
	}
	if oldest.IsZero() {
		t.Fatal("oldest timestamp not reported")
	}
	if age := time.Since(oldest); age < 0 || age > time.Minute {
		t.Fatalf("oldest = %v, implausible age %v", oldest, age)
	}

	// A cutoff in the future excludes everything.
	count, _, err = store.CountSince(ctx, 1, "analysis", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CountSince future cutoff: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0 past future cutoff", count)
	}
}

func TestCountSinceCorruptTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO request_logs (user_id, action_type, created_at) VALUES (3, 'analysis', 'garbage')`)
	if err != nil {
		t.Fatalf("seed row: %v", err)
	}

	if _, _, err := store.CountSince(ctx, 3, "analysis", time.Now().Add(-time.Hour)); err == nil {
		t.Fatal("CountSince over corrupt created_at: want error")
	}
}

func TestUserRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetUser(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUser missing = %v, want ErrNotFound", err)
	}

	want := &models.User{
		ID:        7,
		Username:  "trader7",
		Phone:     "13800000000",
		IsActive:  true,
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		ExpiresAt: time.Date(2027, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := store.UpsertUser(ctx, want); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	got, err := store.GetUser(ctx, 7)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != want.Username || !got.IsActive {
		t.Errorf("got %+v", got)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("expires = %v, want %v", got.ExpiresAt, want.ExpiresAt)
	}

	// Upsert replaces in place.
	want.IsActive = false
	if err := store.UpsertUser(ctx, want); err != nil {
		t.Fatalf("UpsertUser update: %v", err)
	}
	got, err = store.GetUser(ctx, 7)
	if err != nil {
		t.Fatalf("GetUser after update: %v", err)
	}
	if got.IsActive {
		t.Error("is_active not updated")
	}
}

func TestUserUnparseableExpiryIsZero(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO users (id, username, created_at, expires_at) VALUES (8, 'x', '2025-01-01T00:00:00Z', 'soon')`)
	if err != nil {
		t.Fatalf("seed row: %v", err)
	}

	got, err := store.GetUser(ctx, 8)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !got.ExpiresAt.IsZero() {
		t.Fatalf("expires = %v, want zero for unparseable column", got.ExpiresAt)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetConfig(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetConfig missing = %v, want ErrNotFound", err)
	}

	if err := store.SetConfig(ctx, "advisor_model", "deepseek-chat"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	v, err := store.GetConfig(ctx, "advisor_model")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if v != "deepseek-chat" {
		t.Fatalf("value = %q", v)
	}

	if err := store.SetConfig(ctx, "advisor_model", "deepseek-reasoner"); err != nil {
		t.Fatalf("SetConfig overwrite: %v", err)
	}
	v, _ = store.GetConfig(ctx, "advisor_model")
	if v != "deepseek-reasoner" {
		t.Fatalf("value after overwrite = %q", v)
	}
}
