package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/provider"
	"StockPulse/internal/repository"
	"StockPulse/internal/service/advisor"
	"StockPulse/internal/service/marketdata"
	"StockPulse/internal/service/ratelimit"
	"StockPulse/pkg/cache"
)

func fixedList(entries []models.StockEntry) *provider.Chain[[]models.StockEntry] {
	return &provider.Chain[[]models.StockEntry]{
		Dataset: "stock_list",
		Steps: []provider.Step[[]models.StockEntry]{
			{Provider: "fake", Timeout: time.Second, Fetch: func(ctx context.Context) ([]models.StockEntry, error) {
				return entries, nil
			}},
		},
		IsEmpty: func(v []models.StockEntry) bool { return len(v) == 0 },
	}
}

func fixedSpot(table *models.SpotTable) *provider.Chain[*models.SpotTable] {
	return &provider.Chain[*models.SpotTable]{
		Dataset: "spot",
		Steps: []provider.Step[*models.SpotTable]{
			{Provider: "fake", Timeout: time.Second, Fetch: func(ctx context.Context) (*models.SpotTable, error) {
				return table, nil
			}},
		},
		IsEmpty: func(v *models.SpotTable) bool { return v == nil || len(v.Rows) == 0 },
	}
}

func emptyBars() *marketdata.BarCache {
	return marketdata.NewBarCache(cache.NewMemoryCache(), func(symbol string) *provider.Chain[[]models.Bar] {
		return &provider.Chain[[]models.Bar]{
			Dataset: "bars",
			Steps: []provider.Step[[]models.Bar]{
				{Provider: "fake", Timeout: time.Second, Fetch: func(ctx context.Context) ([]models.Bar, error) {
					return nil, errors.New("upstream down")
				}},
			},
			IsEmpty: func(v []models.Bar) bool { return len(v) == 0 },
		}
	})
}

func newMarketUC(t *testing.T, entries []models.StockEntry, spot *models.SpotTable, opts ...MarketOption) *MarketUseCase {
	t.Helper()
	mc := marketdata.NewCache(
		marketdata.WithListChain(fixedList(entries)),
		marketdata.WithSpotChain(fixedSpot(spot)),
	)
	<-mc.Start(context.Background())
	return NewMarketUseCase(mc, emptyBars(), opts...)
}

func TestSearchByCodeAndName(t *testing.T) {
	uc := newMarketUC(t, []models.StockEntry{
		{Code: "600519", Name: "贵州茅台"},
		{Code: "600520", Name: "文一科技"},
		{Code: "000001", Name: "平安银行"},
	}, nil)
	ctx := context.Background()

	got := uc.Search(ctx, "6005")
	if len(got) != 2 {
		t.Fatalf("Search(6005) = %+v", got)
	}
	got = uc.Search(ctx, "平安")
	if len(got) != 1 || got[0].Code != "000001" {
		t.Fatalf("Search(平安) = %+v", got)
	}
	if got := uc.Search(ctx, ""); len(got) != 0 {
		t.Fatalf("Search(empty) = %+v", got)
	}
}

func TestSearchCapsAtTen(t *testing.T) {
	entries := make([]models.StockEntry, 30)
	for i := range entries {
		entries[i] = models.StockEntry{Code: "600000", Name: "x"}
	}
	uc := newMarketUC(t, entries, nil)
	if got := uc.Search(context.Background(), "600"); len(got) != 10 {
		t.Fatalf("got %d results, want 10", len(got))
	}
}

type lookupStub struct {
	entry models.StockEntry
	err   error
	calls int
}

func (l *lookupStub) Name() string { return "stub" }
func (l *lookupStub) LookupSymbol(ctx context.Context, code string) (models.StockEntry, error) {
	l.calls++
	return l.entry, l.err
}

func TestSearchLookupFallbackForCodes(t *testing.T) {
	lookup := &lookupStub{entry: models.StockEntry{Code: "688981", Name: "中芯国际"}}
	uc := newMarketUC(t, []models.StockEntry{{Code: "600519", Name: "贵州茅台"}}, nil,
		WithMarketLookupProvider(lookup))
	ctx := context.Background()

	got := uc.Search(ctx, "688981")
	if len(got) != 1 || got[0].Name != "中芯国际" {
		t.Fatalf("Search(688981) = %+v", got)
	}

	// Non-numeric keywords never hit the lookup.
	uc.Search(ctx, "不存在的名字")
	if lookup.calls != 1 {
		t.Fatalf("lookup called %d times, want 1", lookup.calls)
	}
}

type quoteStub struct {
	q   models.QuoteSnapshot
	err error
}

func (s *quoteStub) Name() string { return "stub" }
func (s *quoteStub) FetchQuote(ctx context.Context, symbol string) (models.QuoteSnapshot, error) {
	return s.q, s.err
}

func TestQuotePrefersSpotTable(t *testing.T) {
	spot := &models.SpotTable{Rows: []models.QuoteSnapshot{
		{Code: "600519", Name: "贵州茅台", Last: 1700.5},
	}}
	uc := newMarketUC(t, nil, spot,
		WithMarketQuoteProvider(&quoteStub{err: errors.New("should not be called")}))

	got := uc.Quote(context.Background(), "sh600519")
	if got.Name != "贵州茅台" || got.Last != 1700.5 {
		t.Fatalf("Quote = %+v", got)
	}
}

func TestQuoteFallsBackToProviderThenPlaceholder(t *testing.T) {
	uc := newMarketUC(t, nil, nil,
		WithMarketQuoteProvider(&quoteStub{q: models.QuoteSnapshot{Code: "300750", Name: "宁德时代", Last: 180}}))
	got := uc.Quote(context.Background(), "300750")
	if got.Name != "宁德时代" {
		t.Fatalf("Quote = %+v", got)
	}

	uc = newMarketUC(t, nil, nil,
		WithMarketQuoteProvider(&quoteStub{err: errors.New("down")}))
	got = uc.Quote(context.Background(), "300750")
	if got.Name != "暂无行情" || got.Code != "300750" {
		t.Fatalf("placeholder = %+v", got)
	}
}

func TestKlineSyntheticFallback(t *testing.T) {
	today := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	uc := newMarketUC(t, nil, nil, WithMarketClock(func() time.Time { return today }))

	bars := uc.Kline(context.Background(), "600519")
	if len(bars) != 100 {
		t.Fatalf("got %d synthetic bars, want 100", len(bars))
	}
	if bars[0].Date != "2025-02-22" {
		t.Errorf("bars[0].Date = %s", bars[0].Date)
	}
	if bars[99].Close <= bars[0].Close {
		t.Error("synthetic series not ascending")
	}
	// Raw access stays empty so diagnosis sees the truth.
	if raw := uc.Bars(context.Background(), "600519"); len(raw) != 0 {
		t.Fatalf("Bars = %d rows, want 0", len(raw))
	}
}

func TestIndicesDefaultSnapshot(t *testing.T) {
	uc := newMarketUC(t, nil, nil)
	snap := uc.Indices(context.Background())
	if snap["sse"].Name != "上证指数" {
		t.Fatalf("default snapshot = %+v", snap)
	}
}

type indexStub struct {
	snap models.IndexSnapshot
	err  error
}

func (s *indexStub) Name() string { return "stub" }
func (s *indexStub) FetchIndexSnapshot(ctx context.Context) (models.IndexSnapshot, error) {
	return s.snap, s.err
}

func TestIndicesDirectFetchBeforeDefault(t *testing.T) {
	live := models.IndexSnapshot{"sse": {Name: "上证指数", Last: 3300.1}}
	uc := newMarketUC(t, nil, nil, WithMarketIndexProvider(&indexStub{snap: live}))
	if snap := uc.Indices(context.Background()); snap["sse"].Last != 3300.1 {
		t.Fatalf("snapshot = %+v", snap)
	}

	uc = newMarketUC(t, nil, nil, WithMarketIndexProvider(&indexStub{err: errors.New("down")}))
	if snap := uc.Indices(context.Background()); snap["sse"].Last != 3450.2 {
		t.Fatalf("fallback snapshot = %+v", snap)
	}
}

// userStoreStub returns one fixed user.
type userStoreStub struct {
	user *models.User
	err  error
}

func (s *userStoreStub) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.user, s.err
}

// journalStub counts Record calls.
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

func newAnalysisUC(t *testing.T, users *userStoreStub, journal *journalStub) *AnalysisUseCase {
	t.Helper()
	market := newMarketUC(t, nil, nil)
	quota := ratelimit.NewAnalysisQuota(journal)
	engine := advisor.NewEngine(
		advisor.WithEngineLocalScorer(advisor.NewLocalScorer(advisor.WithJitter(func() float64 { return 0 }))),
	)
	return NewAnalysisUseCase(market, users, quota, engine)
}

func TestAnalyzeRequiresLogin(t *testing.T) {
	journal := &journalStub{}
	uc := newAnalysisUC(t, &userStoreStub{}, journal)

	if _, err := uc.Analyze(context.Background(), "600519", 0); !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("err = %v, want ErrLoginRequired", err)
	}
	if journal.records != 0 {
		t.Fatal("quota consumed for anonymous caller")
	}
}

func TestAnalyzeRejectsMissingOrDisabledUser(t *testing.T) {
	journal := &journalStub{}
	uc := newAnalysisUC(t, &userStoreStub{err: repository.ErrNotFound}, journal)
	if _, err := uc.Analyze(context.Background(), "600519", 5); !errors.Is(err, ErrUserDisabled) {
		t.Fatalf("missing user err = %v", err)
	}

	uc = newAnalysisUC(t, &userStoreStub{user: &models.User{ID: 5, IsActive: false, ExpiresAt: time.Now().Add(time.Hour)}}, journal)
	if _, err := uc.Analyze(context.Background(), "600519", 5); !errors.Is(err, ErrUserDisabled) {
		t.Fatalf("disabled user err = %v", err)
	}
	if journal.records != 0 {
		t.Fatal("quota consumed for rejected caller")
	}
}

func TestAnalyzeRejectsExpiredMembershipBeforeQuota(t *testing.T) {
	journal := &journalStub{}
	uc := newAnalysisUC(t, &userStoreStub{user: &models.User{
		ID: 5, IsActive: true, ExpiresAt: time.Now().Add(-time.Minute),
	}}, journal)

	if _, err := uc.Analyze(context.Background(), "600519", 5); !errors.Is(err, ErrMembershipExpired) {
		t.Fatalf("err = %v, want ErrMembershipExpired", err)
	}
	if journal.records != 0 {
		t.Fatal("expired membership still consumed quota")
	}
}

func TestAnalyzeQuotaDenial(t *testing.T) {
	oldest := time.Now().Add(-30 * time.Minute)
	journal := &journalStub{count: 20, oldest: oldest}
	uc := newAnalysisUC(t, &userStoreStub{user: &models.User{
		ID: 5, IsActive: true, ExpiresAt: time.Now().Add(time.Hour),
	}}, journal)

	_, err := uc.Analyze(context.Background(), "600519", 5)
	var qerr *QuotaExceededError
	if !errors.As(err, &qerr) {
		t.Fatalf("err = %v, want QuotaExceededError", err)
	}
	if qerr.Limit != 20 {
		t.Errorf("limit = %d", qerr.Limit)
	}
	want := oldest.Add(time.Hour)
	if !qerr.ResumeAt.Equal(want) {
		t.Errorf("ResumeAt = %v, want %v", qerr.ResumeAt, want)
	}
}

func TestAnalyzeInsufficientHistoryResult(t *testing.T) {
	journal := &journalStub{}
	uc := newAnalysisUC(t, &userStoreStub{user: &models.User{
		ID: 5, IsActive: true, ExpiresAt: time.Now().Add(time.Hour),
	}}, journal)

	got, err := uc.Analyze(context.Background(), "600519", 5)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Signal != models.SignalNeutral || got.Intensity != 0 {
		t.Fatalf("signal/intensity = %s/%d, want Neutral/0", got.Signal, got.Intensity)
	}
	if got.Advice != "数据样本不足" {
		t.Errorf("advice = %q", got.Advice)
	}
	if journal.records != 1 {
		t.Errorf("journal records = %d, want 1 (quota consumed on allowed call)", journal.records)
	}
}
