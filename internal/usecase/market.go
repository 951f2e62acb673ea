package usecase

import (
	"context"
	"strings"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/provider"
	"StockPulse/internal/service/marketdata"
	xlogger "StockPulse/pkg/logger"
	xutil "StockPulse/pkg/util"
)

// defaultIndexSnapshot keeps the market page renderable when every index
// source is down.
var defaultIndexSnapshot = models.IndexSnapshot{
	"sse":    {Name: "上证指数", Last: 3450.2, ChangeAmount: 10.5, ChangePercent: 0.3},
	"szse":   {Name: "深证成指", Last: 11220.8, ChangeAmount: -15.3, ChangePercent: -0.12},
	"csi300": {Name: "沪深300", Last: 4180.5, ChangeAmount: 8.2, ChangePercent: 0.2},
}

// MarketUseCase serves the market-facing read operations over the cached
// datasets, with per-operation degradation paths.
type MarketUseCase struct {
	cache    *marketdata.Cache
	bars     *marketdata.BarCache
	quotes   provider.QuoteProvider
	lookup   provider.LookupProvider
	indices  provider.IndexProvider
	rankings *provider.Chain[models.Rankings]
	log      *xlogger.Logger
	now      func() time.Time
}

// MarketOption configures MarketUseCase.
type MarketOption func(*MarketUseCase)

func WithMarketQuoteProvider(p provider.QuoteProvider) MarketOption {
	return func(uc *MarketUseCase) { uc.quotes = p }
}

func WithMarketLookupProvider(p provider.LookupProvider) MarketOption {
	return func(uc *MarketUseCase) { uc.lookup = p }
}

func WithMarketIndexProvider(p provider.IndexProvider) MarketOption {
	return func(uc *MarketUseCase) { uc.indices = p }
}

func WithMarketRankingsChain(chain *provider.Chain[models.Rankings]) MarketOption {
	return func(uc *MarketUseCase) { uc.rankings = chain }
}

func WithMarketLogger(log *xlogger.Logger) MarketOption {
	return func(uc *MarketUseCase) { uc.log = log }
}

func WithMarketClock(now func() time.Time) MarketOption {
	return func(uc *MarketUseCase) { uc.now = now }
}

func NewMarketUseCase(cache *marketdata.Cache, bars *marketdata.BarCache, opts ...MarketOption) *MarketUseCase {
	uc := &MarketUseCase{
		cache: cache,
		bars:  bars,
		log:   xlogger.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Indices returns the benchmark snapshot. An empty cache gets one direct
// fetch before falling back to fixed placeholder values.
func (uc *MarketUseCase) Indices(ctx context.Context) models.IndexSnapshot {
	if snap := uc.cache.IndexSnapshot(); len(snap) > 0 {
		return snap
	}
	if uc.indices != nil {
		callCtx, cancel := context.WithTimeout(ctx, provider.TimeoutIndex)
		defer cancel()
		if snap, err := uc.indices.FetchIndexSnapshot(callCtx); err == nil && len(snap) > 0 {
			return snap
		}
	}
	return defaultIndexSnapshot
}

// Rankings returns the top-10 gainers and losers, degrading to empty lists.
func (uc *MarketUseCase) Rankings(ctx context.Context) models.Rankings {
	if uc.rankings != nil {
		if r, ok := uc.rankings.Run(ctx); ok {
			return r
		}
	}
	return models.Rankings{
		Gainers: []models.RankEntry{},
		Losers:  []models.RankEntry{},
	}
}

// Search matches up to 10 symbols by code or name substring, with an
// on-demand lookup for 6+ digit codes absent from the cached list.
func (uc *MarketUseCase) Search(ctx context.Context, keyword string) []models.StockEntry {
	keyword = strings.ToUpper(strings.TrimSpace(keyword))
	if keyword == "" {
		return []models.StockEntry{}
	}

	results := []models.StockEntry{}
	for _, entry := range uc.cache.StockList() {
		if strings.Contains(entry.Code, keyword) || strings.Contains(strings.ToUpper(entry.Name), keyword) {
			results = append(results, entry)
			if len(results) == 10 {
				return results
			}
		}
	}
	if len(results) > 0 {
		return results
	}

	if uc.lookup != nil && xutil.IsDigits(keyword) && len(keyword) >= 6 {
		callCtx, cancel := context.WithTimeout(ctx, provider.TimeoutLookup)
		defer cancel()
		if entry, err := uc.lookup.LookupSymbol(callCtx, keyword); err == nil {
			return []models.StockEntry{entry}
		}
	}
	return results
}

// Quote returns the realtime snapshot for one symbol: cached spot row first,
// then the on-demand provider, then a fixed placeholder.
func (uc *MarketUseCase) Quote(ctx context.Context, symbol string) *models.QuoteSnapshot {
	code := xutil.Digits(symbol)

	if row, ok := uc.cache.SpotTable().FindByCode(code); ok {
		return &row
	}

	if uc.quotes != nil {
		callCtx, cancel := context.WithTimeout(ctx, provider.TimeoutQuote)
		defer cancel()
		q, err := uc.quotes.FetchQuote(callCtx, symbol)
		if err == nil {
			return &q
		}
		uc.log.Warn("on-demand quote failed",
			xlogger.String("symbol", symbol),
			xlogger.Error(err),
		)
	}

	return &models.QuoteSnapshot{Code: code, Name: "暂无行情"}
}

// Bars returns the raw daily series; empty means insufficient history.
func (uc *MarketUseCase) Bars(ctx context.Context, symbol string) []models.Bar {
	return uc.bars.Get(ctx, symbol)
}

// Kline returns the daily series for charting, substituting a synthetic
// 100-bar series when every provider fails so the chart never renders blank.
func (uc *MarketUseCase) Kline(ctx context.Context, symbol string) []models.Bar {
	if bars := uc.bars.Get(ctx, symbol); len(bars) > 0 {
		return bars
	}
	return syntheticKline(uc.now())
}

// syntheticKline builds the deterministic placeholder series the chart falls
// back to during total upstream outages.
func syntheticKline(today time.Time) []models.Bar {
	bars := make([]models.Bar, 100)
	for i := range bars {
		step := float64(i) / 20
		bars[i] = models.Bar{
			Date:   today.AddDate(0, 0, -(100 - i)).Format("2006-01-02"),
			Open:   10.0 + step,
			Close:  10.3 + step,
			High:   10.6 + step,
			Low:    9.8 + step,
			Volume: 100000,
		}
	}
	return bars
}
