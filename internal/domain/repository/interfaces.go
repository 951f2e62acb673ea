package repository

import (
	"context"
	"time"

	"StockPulse/internal/domain/models"
)

// RequestLog is the persisted per-user request journal backing the analysis
// quota. It must survive process restarts.
type RequestLog interface {
	// CountSince returns how many actions of the given type the user issued
	// at or after the cutoff, plus the timestamp of the oldest such action.
	CountSince(ctx context.Context, userID int64, action string, cutoff time.Time) (count int, oldest time.Time, err error)
	// Record appends one action for the user at the current time.
	Record(ctx context.Context, userID int64, action string) error
}

// UserStore exposes membership status by user id.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// ConfigStore exposes persisted system configuration by key.
type ConfigStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// Metrics abstracts operational metric recording.
type Metrics interface {
	RecordProviderFailure(provider, dataset string)
	RecordCacheRefresh(dataset, outcome string)
	RecordRateLimitDenied(limiter string)
	RecordDelegateCall(outcome string)
	RecordDatasetAge(dataset string, seconds float64)
	RecordLatency(op string, seconds float64)
}
