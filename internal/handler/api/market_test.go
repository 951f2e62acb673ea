package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/provider"
	"StockPulse/internal/repository"
	"StockPulse/internal/service/advisor"
	"StockPulse/internal/service/marketdata"
	"StockPulse/internal/service/ratelimit"
	"StockPulse/internal/usecase"
	"StockPulse/pkg/cache"
	xlogger "StockPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type userStoreStub struct {
	user *models.User
	err  error
}

func (s *userStoreStub) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.user, s.err
}

type journalStub struct {
	count   int
	oldest  time.Time
	records int
}

func (j *journalStub) CountSince(ctx context.Context, userID int64, action string, cutoff time.Time) (int, time.Time, error) {
	return j.count, j.oldest, nil
}

func (j *journalStub) Record(ctx context.Context, userID int64, action string) error {
	j.records++
	return nil
}

func emptyChain[T any](dataset string) *provider.Chain[T] {
	return &provider.Chain[T]{
		Dataset: dataset,
		Steps: []provider.Step[T]{
			{Provider: "stub", Timeout: time.Second, Fetch: func(ctx context.Context) (T, error) {
				var zero T
				return zero, errors.New("unavailable")
			}},
		},
	}
}

type fixture struct {
	echo    *echo.Echo
	journal *journalStub
	users   *userStoreStub
	views   *ratelimit.ViewLimiter
}

func newFixture(t *testing.T, viewOpts ...ratelimit.ViewOption) *fixture {
	t.Helper()
	mc := marketdata.NewCache(
		marketdata.WithListChain(emptyChain[[]models.StockEntry]("stock_list")),
	)
	<-mc.Start(context.Background())
	bars := marketdata.NewBarCache(cache.NewMemoryCache(), func(symbol string) *provider.Chain[[]models.Bar] {
		return emptyChain[[]models.Bar]("bars")
	})
	market := usecase.NewMarketUseCase(mc, bars)

	journal := &journalStub{}
	users := &userStoreStub{err: repository.ErrNotFound}
	engine := advisor.NewEngine(
		advisor.WithEngineLocalScorer(advisor.NewLocalScorer(advisor.WithJitter(func() float64 { return 0 }))),
	)
	analysis := usecase.NewAnalysisUseCase(market, users, ratelimit.NewAnalysisQuota(journal), engine)

	views := ratelimit.NewViewLimiter(viewOpts...)
	h := NewMarketHandler(xlogger.Nop(), market, analysis, views)
	e := echo.New()
	h.RegisterRoutes(e)
	return &fixture{echo: e, journal: journal, users: users, views: views}
}

func (f *fixture) get(path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body.Detail
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIndicesServesDefaults(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/api/market/indices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap map[string]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap["sse"]["名称"] != "上证指数" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestRankingsDegradeToEmptyLists(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/api/market/rankings", "")
	var r struct {
		Gainers []any `json:"gainers"`
		Losers  []any `json:"losers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Gainers == nil || r.Losers == nil {
		t.Fatalf("expected empty arrays, got %s", rec.Body.String())
	}
}

func TestSearchUsesChineseFieldNames(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/api/stock/search?keyword=600519", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"代码"`) {
		t.Fatalf("body lacks wire field names: %s", rec.Body.String())
	}
}

func TestSearchRequiresKeyword(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/api/stock/search", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"detail"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestQuoteViewLimitByIP(t *testing.T) {
	f := newFixture(t, ratelimit.WithViewCeiling(3))

	for i := 0; i < 3; i++ {
		rec := f.get(fmt.Sprintf("/api/stock/quote/60051%d", i), "203.0.113.5:4123")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := f.get("/api/stock/quote/600513", "203.0.113.5:4123")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	want := "您查询股票详情页太频繁了(识别码:203.0.113.5)，请一小时后再试。"
	if got := detailOf(t, rec); got != want {
		t.Fatalf("detail = %q, want %q", got, want)
	}

	// Another address is unaffected.
	if rec := f.get("/api/stock/quote/600519", "198.51.100.7:4123"); rec.Code != http.StatusOK {
		t.Fatalf("other address status = %d", rec.Code)
	}
}

func TestQuoteViewLimitKeysByUserID(t *testing.T) {
	f := newFixture(t, ratelimit.WithViewCeiling(1))

	if rec := f.get("/api/stock/quote/600519?user_id=42", "203.0.113.5:4123"); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := f.get("/api/stock/quote/600520?user_id=42", "198.51.100.7:4123")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 keyed on user id", rec.Code)
	}
	if got := detailOf(t, rec); !strings.Contains(got, "识别码:42") {
		t.Fatalf("detail = %q", got)
	}
}

func TestQuotePrivateAddressBypass(t *testing.T) {
	f := newFixture(t, ratelimit.WithViewCeiling(0))
	for i := 0; i < 5; i++ {
		if rec := f.get("/api/stock/quote/600519", "127.0.0.1:999"); rec.Code != http.StatusOK {
			t.Fatalf("loopback request %d status = %d", i, rec.Code)
		}
	}
}

func TestAnalysisRequiresLogin(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/api/stock/analysis/600519", "203.0.113.5:4123")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if got := detailOf(t, rec); got != "智能诊断是 VIP 会员专属权益，请先登录账户。" {
		t.Fatalf("detail = %q", got)
	}
}

func TestAnalysisRejectsUnknownUser(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/api/stock/analysis/600519?user_id=7", "203.0.113.5:4123")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if got := detailOf(t, rec); got != "用户不存在或已被禁用，请联系管理员。" {
		t.Fatalf("detail = %q", got)
	}
	if f.journal.records != 0 {
		t.Fatal("rejected request consumed quota")
	}
}

func TestAnalysisRejectsExpiredMembership(t *testing.T) {
	f := newFixture(t)
	f.users.err = nil
	f.users.user = &models.User{ID: 7, IsActive: true, ExpiresAt: time.Now().Add(-time.Hour)}

	rec := f.get("/api/stock/analysis/600519?user_id=7", "203.0.113.5:4123")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if got := detailOf(t, rec); got != "您的智能分析权益已消耗或已到期，请前往‘会员中心’续费开通。" {
		t.Fatalf("detail = %q", got)
	}
	if f.journal.records != 0 {
		t.Fatal("expired membership consumed quota")
	}
}

func TestAnalysisQuotaExceeded(t *testing.T) {
	f := newFixture(t)
	f.users.err = nil
	f.users.user = &models.User{ID: 7, IsActive: true, ExpiresAt: time.Now().Add(time.Hour)}
	f.journal.count = 20
	f.journal.oldest = time.Date(2025, 6, 2, 9, 30, 0, 0, time.Local)

	rec := f.get("/api/stock/analysis/600519?user_id=7", "203.0.113.5:4123")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	want := "您已达到每小时 20 次分析的限制。请于 10:30:00 后继续。"
	if got := detailOf(t, rec); got != want {
		t.Fatalf("detail = %q, want %q", got, want)
	}
}

func TestAnalysisSucceedsForActiveMember(t *testing.T) {
	f := newFixture(t)
	f.users.err = nil
	f.users.user = &models.User{ID: 7, IsActive: true, ExpiresAt: time.Now().Add(time.Hour)}

	rec := f.get("/api/stock/analysis/600519?user_id=7", "203.0.113.5:4123")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var res models.AnalysisResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Advice != "数据样本不足" {
		t.Fatalf("advice = %q", res.Advice)
	}
	if f.journal.records != 1 {
		t.Fatalf("journal records = %d, want 1", f.journal.records)
	}
}

func TestAnalysisViewLimitAppliesFirst(t *testing.T) {
	f := newFixture(t, ratelimit.WithViewCeiling(0))
	rec := f.get("/api/stock/analysis/600519?user_id=7", "203.0.113.5:4123")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := detailOf(t, rec); got != "您查询股票详情页太频繁了，请一小时后再试。" {
		t.Fatalf("detail = %q", got)
	}
}
