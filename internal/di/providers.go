package di

import (
	"context"
	"fmt"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	"StockPulse/internal/handler/api"
	"StockPulse/internal/provider"
	internalrepo "StockPulse/internal/repository"
	"StockPulse/internal/service/advisor"
	"StockPulse/internal/service/marketdata"
	"StockPulse/internal/service/ratelimit"
	"StockPulse/internal/usecase"
	pkgcache "StockPulse/pkg/cache"
	"StockPulse/pkg/config"
	xhttp "StockPulse/pkg/http"
	xlogger "StockPulse/pkg/logger"
	"StockPulse/pkg/metrics"
	"StockPulse/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*xlogger.Logger, error) {
	l, err := xlogger.New(&xlogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideHTTPClient creates the shared outbound HTTP client. Per-call
// deadlines come from the fallback chains, so the transport timeout only
// bounds pathological connects.
func ProvideHTTPClient() *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(provider.TimeoutList))
}

// ProvideStore opens the SQLite store and runs migrations.
func ProvideStore(cfg *config.Config, log *xlogger.Logger) (*internalrepo.SQLiteStore, error) {
	store, err := internalrepo.NewSQLiteStore(cfg.Store.Path, log)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: %w", err)
	}
	return store, nil
}

// ProvideCacheService selects the bar-cache backend: layered Redis when
// configured, in-process memory otherwise.
func ProvideCacheService(cfg *config.Config, log *xlogger.Logger) (pkgcache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return pkgcache.NewMemoryCache(
			pkgcache.WithMemoryMaxSize(cfg.Cache.Memory.MaxSize),
		), nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Cache.Redis.Host),
		pkgcache.WithRedisPort(cfg.Cache.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	log.Info("redis cache enabled", xlogger.String("host", cfg.Cache.Redis.Host))
	return pkgcache.NewLayeredCache(rc,
		pkgcache.WithLayeredMemorySize(cfg.Cache.Memory.MaxSize),
	), nil
}

// ProvideSina creates the Sina market-data adapter.
func ProvideSina(client *xhttp.Client) *provider.Sina {
	return provider.NewSina(client)
}

// ProvideEastMoney creates the EastMoney market-data adapter.
func ProvideEastMoney(client *xhttp.Client) *provider.EastMoney {
	return provider.NewEastMoney(client)
}

// ProvideTencent creates the Tencent market-data adapter.
func ProvideTencent(client *xhttp.Client) *provider.Tencent {
	return provider.NewTencent(client)
}

// ProvideMarketCache assembles the stale-while-revalidate dataset cache with
// its provider fallback chains.
func ProvideMarketCache(
	cfg *config.Config,
	log *xlogger.Logger,
	m repository.Metrics,
	sina *provider.Sina,
	em *provider.EastMoney,
	tencent *provider.Tencent,
) *marketdata.Cache {
	listChain := &provider.Chain[[]models.StockEntry]{
		Dataset: "stock_list",
		Steps: []provider.Step[[]models.StockEntry]{
			{Provider: sina.Name(), Timeout: provider.TimeoutList, Fetch: sina.FetchStockList},
			{Provider: em.Name(), Timeout: provider.TimeoutList, Fetch: func(ctx context.Context) ([]models.StockEntry, error) {
				table, err := em.FetchSpotTable(ctx)
				if err != nil {
					return nil, err
				}
				return table.Entries(), nil
			}},
		},
		IsEmpty: func(v []models.StockEntry) bool { return len(v) == 0 },
		Log:     log,
		Metrics: m,
	}
	spotChain := &provider.Chain[*models.SpotTable]{
		Dataset: "spot",
		Steps: []provider.Step[*models.SpotTable]{
			{Provider: em.Name(), Timeout: provider.TimeoutList, Fetch: em.FetchSpotTable},
			{Provider: sina.Name(), Timeout: provider.TimeoutList, Fetch: sina.FetchSpotTable},
		},
		IsEmpty: func(v *models.SpotTable) bool { return v == nil || len(v.Rows) == 0 },
		Log:     log,
		Metrics: m,
	}
	indexChain := &provider.Chain[models.IndexSnapshot]{
		Dataset: "index",
		Steps: []provider.Step[models.IndexSnapshot]{
			{Provider: sina.Name(), Timeout: provider.TimeoutIndex, Fetch: sina.FetchIndexSnapshot},
			{Provider: tencent.Name(), Timeout: provider.TimeoutIndex, Fetch: tencent.FetchIndexSnapshot},
		},
		IsEmpty: func(v models.IndexSnapshot) bool { return len(v) == 0 },
		Log:     log,
		Metrics: m,
	}
	return marketdata.NewCache(
		marketdata.WithListChain(listChain),
		marketdata.WithSpotChain(spotChain),
		marketdata.WithIndexChain(indexChain),
		marketdata.WithTTLs(cfg.Market.ListTTL, cfg.Market.SpotTTL, cfg.Market.IndexTTL),
		marketdata.WithLogger(log),
		marketdata.WithMetrics(m),
	)
}

// ProvideBarCache assembles the per-symbol daily-bar cache.
func ProvideBarCache(
	cfg *config.Config,
	store pkgcache.Service,
	log *xlogger.Logger,
	m repository.Metrics,
	em *provider.EastMoney,
	tencent *provider.Tencent,
) *marketdata.BarCache {
	chainFor := func(symbol string) *provider.Chain[[]models.Bar] {
		return &provider.Chain[[]models.Bar]{
			Dataset: "bars",
			Steps: []provider.Step[[]models.Bar]{
				{Provider: em.Name(), Timeout: provider.TimeoutKline, Fetch: func(ctx context.Context) ([]models.Bar, error) {
					return em.FetchDailyBars(ctx, symbol)
				}},
				{Provider: tencent.Name(), Timeout: provider.TimeoutKline, Fetch: func(ctx context.Context) ([]models.Bar, error) {
					return tencent.FetchDailyBars(ctx, symbol)
				}},
			},
			IsEmpty: func(v []models.Bar) bool { return len(v) == 0 },
			Log:     log,
			Metrics: m,
		}
	}
	return marketdata.NewBarCache(store, chainFor,
		marketdata.WithBarTTL(cfg.Market.BarTTL),
		marketdata.WithBarLogger(log),
	)
}

// ProvideViewLimiter creates the per-caller view limiter.
func ProvideViewLimiter(cfg *config.Config, m repository.Metrics) *ratelimit.ViewLimiter {
	return ratelimit.NewViewLimiter(
		ratelimit.WithViewCeiling(cfg.Limits.ViewCeiling),
		ratelimit.WithViewHorizon(cfg.Limits.ViewHorizon),
		ratelimit.WithViewDedupWindow(cfg.Limits.ViewDedupWindow),
		ratelimit.WithViewBypassPrivate(!cfg.Limits.ViewLimitPrivate),
		ratelimit.WithViewMetrics(m),
	)
}

// ProvideAnalysisQuota creates the persisted per-user analysis quota.
func ProvideAnalysisQuota(cfg *config.Config, store *internalrepo.SQLiteStore, m repository.Metrics) *ratelimit.AnalysisQuota {
	return ratelimit.NewAnalysisQuota(store,
		ratelimit.WithQuotaLimit(cfg.Limits.AnalysisLimit),
		ratelimit.WithQuotaWindow(cfg.Limits.AnalysisWindow),
		ratelimit.WithQuotaMetrics(m),
	)
}

// ProvideEngine assembles the scoring engine with its reasoning delegate and
// local fallback. The delegate gets its own HTTP client: reasoning calls run
// up to the advisor budget, well past the market adapters' transport cap.
func ProvideEngine(
	cfg *config.Config,
	store *internalrepo.SQLiteStore,
	log *xlogger.Logger,
	m repository.Metrics,
) *advisor.Engine {
	delegateClient := xhttp.NewClient(xhttp.WithTimeout(2 * cfg.Advisor.Timeout))
	delegate := advisor.NewDelegate(delegateClient,
		advisor.WithDelegateConfigStore(store),
		advisor.WithDelegateLogger(log),
		advisor.WithDelegateCredentials(cfg.Advisor.APIKey, cfg.Advisor.ModelID, cfg.Advisor.BaseURL),
		advisor.WithDelegateTimeout(cfg.Advisor.Timeout),
	)
	return advisor.NewEngine(
		advisor.WithEngineDelegate(delegate),
		advisor.WithEngineLocalScorer(advisor.NewLocalScorer()),
		advisor.WithEngineLogger(log),
		advisor.WithEngineMetrics(m),
	)
}

// ProvideMarketUseCase assembles the market read paths.
func ProvideMarketUseCase(
	cache *marketdata.Cache,
	bars *marketdata.BarCache,
	log *xlogger.Logger,
	m repository.Metrics,
	sina *provider.Sina,
	tencent *provider.Tencent,
) *usecase.MarketUseCase {
	rankingsChain := &provider.Chain[models.Rankings]{
		Dataset: "rankings",
		Steps: []provider.Step[models.Rankings]{
			{Provider: sina.Name(), Timeout: provider.TimeoutRankings, Fetch: sina.FetchRankings},
		},
		IsEmpty: func(v models.Rankings) bool { return len(v.Gainers) == 0 && len(v.Losers) == 0 },
		Log:     log,
		Metrics: m,
	}
	return usecase.NewMarketUseCase(cache, bars,
		usecase.WithMarketQuoteProvider(tencent),
		usecase.WithMarketLookupProvider(tencent),
		usecase.WithMarketIndexProvider(sina),
		usecase.WithMarketRankingsChain(rankingsChain),
		usecase.WithMarketLogger(log),
	)
}

// ProvideAnalysisUseCase assembles the gated diagnosis path.
func ProvideAnalysisUseCase(
	market *usecase.MarketUseCase,
	store *internalrepo.SQLiteStore,
	quota *ratelimit.AnalysisQuota,
	engine *advisor.Engine,
	log *xlogger.Logger,
) *usecase.AnalysisUseCase {
	return usecase.NewAnalysisUseCase(market, store, quota, engine,
		usecase.WithAnalysisLogger(log),
	)
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(
	log *xlogger.Logger,
	market *usecase.MarketUseCase,
	analysis *usecase.AnalysisUseCase,
	views *ratelimit.ViewLimiter,
) *api.MarketHandler {
	return api.NewMarketHandler(log, market, analysis, views)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *xlogger.Logger,
	handler *api.MarketHandler,
	cache *marketdata.Cache,
	store *internalrepo.SQLiteStore,
	views *ratelimit.ViewLimiter,
) *server.App {
	return server.New(cfg, log, handler, cache, store, views)
}
