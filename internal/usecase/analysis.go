package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/repository"
	"StockPulse/internal/service/advisor"
	"StockPulse/internal/service/ratelimit"
	xlogger "StockPulse/pkg/logger"
	xutil "StockPulse/pkg/util"
)

// Access-control failures raised before any quota is consumed.
var (
	ErrLoginRequired     = errors.New("login required for analysis")
	ErrUserDisabled      = errors.New("user missing or disabled")
	ErrMembershipExpired = errors.New("membership expired")
)

// QuotaExceededError carries the resume hint for the analysis ceiling.
type QuotaExceededError struct {
	Limit    int
	ResumeAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("analysis quota of %d per hour exhausted, resumes at %s",
		e.Limit, e.ResumeAt.Format("15:04:05"))
}

// AnalysisUseCase gates and runs the deep-diagnosis pipeline: membership
// check, persisted quota, data gathering, then the scoring engine.
type AnalysisUseCase struct {
	market *MarketUseCase
	users  domrepo.UserStore
	quota  *ratelimit.AnalysisQuota
	engine *advisor.Engine
	log    *xlogger.Logger
	now    func() time.Time
}

// AnalysisOption configures AnalysisUseCase.
type AnalysisOption func(*AnalysisUseCase)

func WithAnalysisLogger(log *xlogger.Logger) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.log = log }
}

func WithAnalysisClock(now func() time.Time) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.now = now }
}

func NewAnalysisUseCase(market *MarketUseCase, users domrepo.UserStore, quota *ratelimit.AnalysisQuota, engine *advisor.Engine, opts ...AnalysisOption) *AnalysisUseCase {
	uc := &AnalysisUseCase{
		market: market,
		users:  users,
		quota:  quota,
		engine: engine,
		log:    xlogger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Analyze runs one diagnosis for an authenticated user. Membership and quota
// failures return before anything is journaled or fetched.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, symbol string, userID int64) (*models.AnalysisResult, error) {
	if userID <= 0 {
		return nil, ErrLoginRequired
	}

	user, err := uc.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserDisabled
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	if !user.ExpiresAt.After(uc.now()) {
		return nil, ErrMembershipExpired
	}

	status, err := uc.quota.CheckAndConsume(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !status.Allowed {
		return nil, &QuotaExceededError{Limit: status.Limit, ResumeAt: status.ResumeAt}
	}

	code := xutil.Digits(symbol)
	quote := uc.market.Quote(ctx, symbol)
	bars := uc.market.Bars(ctx, symbol)

	uc.log.Info("running diagnosis",
		xlogger.String("symbol", code),
		xlogger.Int64("user_id", userID),
		xlogger.Int("bars", len(bars)),
	)
	return uc.engine.Analyze(ctx, quote.Name, code, quote, bars), nil
}
