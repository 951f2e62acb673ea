package ratelimit

import (
	"context"
	"fmt"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
)

// ActionAnalysis is the journal action name for deep-analysis requests.
const ActionAnalysis = "analysis"

// AnalysisQuota enforces the per-user deep-analysis ceiling against the
// persisted request journal, so the count survives restarts.
type AnalysisQuota struct {
	journal repository.RequestLog
	metrics repository.Metrics

	limit  int
	window time.Duration
	now    func() time.Time
}

// QuotaOption configures AnalysisQuota.
type QuotaOption func(*AnalysisQuota)

func WithQuotaLimit(n int) QuotaOption {
	return func(q *AnalysisQuota) { q.limit = n }
}

func WithQuotaWindow(d time.Duration) QuotaOption {
	return func(q *AnalysisQuota) { q.window = d }
}

func WithQuotaMetrics(m repository.Metrics) QuotaOption {
	return func(q *AnalysisQuota) { q.metrics = m }
}

func WithQuotaClock(now func() time.Time) QuotaOption {
	return func(q *AnalysisQuota) { q.now = now }
}

func NewAnalysisQuota(journal repository.RequestLog, opts ...QuotaOption) *AnalysisQuota {
	q := &AnalysisQuota{
		journal: journal,
		limit:   20,
		window:  time.Hour,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// CheckAndConsume evaluates the user's quota and, if capacity remains,
// journals one request. On denial ResumeAt is the instant the oldest
// in-window request ages out.
func (q *AnalysisQuota) CheckAndConsume(ctx context.Context, userID int64) (models.QuotaStatus, error) {
	now := q.now()
	cutoff := now.Add(-q.window)

	count, oldest, err := q.journal.CountSince(ctx, userID, ActionAnalysis, cutoff)
	if err != nil {
		return models.QuotaStatus{}, fmt.Errorf("analysis quota lookup: %w", err)
	}

	if count >= q.limit {
		if q.metrics != nil {
			q.metrics.RecordRateLimitDenied("analysis")
		}
		return models.QuotaStatus{
			Allowed:  false,
			Count:    count,
			Limit:    q.limit,
			ResumeAt: oldest.Add(q.window),
		}, nil
	}

	if err := q.journal.Record(ctx, userID, ActionAnalysis); err != nil {
		return models.QuotaStatus{}, fmt.Errorf("analysis quota journal: %w", err)
	}
	return models.QuotaStatus{
		Allowed: true,
		Count:   count + 1,
		Limit:   q.limit,
	}, nil
}
