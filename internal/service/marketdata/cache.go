package marketdata

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	"StockPulse/internal/provider"
	xlogger "StockPulse/pkg/logger"
)

// Default dataset TTLs.
const (
	DefaultListTTL  = time.Hour
	DefaultSpotTTL  = 30 * time.Second
	DefaultIndexTTL = 30 * time.Second
)

// defaultStockList seeds the symbol list when no upstream has ever answered,
// so search stays usable during total outages.
var defaultStockList = []models.StockEntry{
	{Code: "600519", Name: "贵州茅台"},
	{Code: "300750", Name: "宁德时代"},
	{Code: "000001", Name: "平安银行"},
}

type entry[T any] struct {
	value   T
	updated time.Time
}

// dataset is one stale-while-revalidate cell. Readers load the current entry
// lock-free; at most one refresh goroutine runs at a time.
type dataset[T any] struct {
	name string
	ttl  time.Duration

	chain *provider.Chain[T]

	cur        atomic.Pointer[entry[T]]
	refreshing atomic.Bool
}

// Cache serves the three market-wide datasets with stale-while-revalidate
// semantics: reads return instantly, expiry triggers one background refresh,
// and refresh failure keeps the previous value.
type Cache struct {
	list  *dataset[[]models.StockEntry]
	spot  *dataset[*models.SpotTable]
	index *dataset[models.IndexSnapshot]

	base    context.Context
	log     *xlogger.Logger
	metrics repository.Metrics
	now     func() time.Time
}

// Option configures Cache.
type Option func(*Cache)

func WithListChain(chain *provider.Chain[[]models.StockEntry]) Option {
	return func(c *Cache) { c.list.chain = chain }
}

func WithSpotChain(chain *provider.Chain[*models.SpotTable]) Option {
	return func(c *Cache) { c.spot.chain = chain }
}

func WithIndexChain(chain *provider.Chain[models.IndexSnapshot]) Option {
	return func(c *Cache) { c.index.chain = chain }
}

func WithTTLs(list, spot, index time.Duration) Option {
	return func(c *Cache) {
		c.list.ttl = list
		c.spot.ttl = spot
		c.index.ttl = index
	}
}

func WithLogger(log *xlogger.Logger) Option {
	return func(c *Cache) { c.log = log }
}

func WithMetrics(m repository.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func NewCache(opts ...Option) *Cache {
	c := &Cache{
		list:  &dataset[[]models.StockEntry]{name: "stock_list", ttl: DefaultListTTL},
		spot:  &dataset[*models.SpotTable]{name: "spot", ttl: DefaultSpotTTL},
		index: &dataset[models.IndexSnapshot]{name: "index", ttl: DefaultIndexTTL},
		base:  context.Background(),
		log:   xlogger.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start binds the lifecycle context for background refreshes and seeds all
// three datasets without blocking the caller, so dead upstreams cannot delay
// the listener. The returned channel closes when the warm-up pass finishes;
// failures are tolerated and the serving path falls back per dataset.
func (c *Cache) Start(ctx context.Context) <-chan struct{} {
	c.base = ctx
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for _, warm := range []func(){
			func() { refreshNow(c, c.list, c.seedListDefault) },
			func() { refreshNow(c, c.spot, nil) },
			func() { refreshNow(c, c.index, nil) },
		} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				warm()
			}()
		}
		wg.Wait()
	}()
	return done
}

// StockList returns the current symbol list, falling back to the built-in
// seed until a refresh has ever succeeded.
func (c *Cache) StockList() []models.StockEntry {
	cur := accessDataset(c, c.list, c.seedListDefault)
	if cur == nil {
		return defaultStockList
	}
	return cur.value
}

// SpotTable returns the current full-market quote table, or nil if no
// refresh has ever succeeded.
func (c *Cache) SpotTable() *models.SpotTable {
	cur := accessDataset(c, c.spot, nil)
	if cur == nil {
		return nil
	}
	return cur.value
}

// IndexSnapshot returns the current benchmark snapshot, or nil if no refresh
// has ever succeeded.
func (c *Cache) IndexSnapshot() models.IndexSnapshot {
	cur := accessDataset(c, c.index, nil)
	if cur == nil {
		return nil
	}
	return cur.value
}

// accessDataset loads the dataset's current entry and, when stale, kicks one
// background refresh. It never blocks on network I/O.
func accessDataset[T any](c *Cache, ds *dataset[T], onNeverLoaded func()) *entry[T] {
	cur := ds.cur.Load()
	if cur != nil && c.metrics != nil {
		c.metrics.RecordDatasetAge(ds.name, c.now().Sub(cur.updated).Seconds())
	}
	if cur == nil || c.now().Sub(cur.updated) > ds.ttl {
		if ds.refreshing.CompareAndSwap(false, true) {
			go func() {
				defer ds.refreshing.Store(false)
				refreshDataset(c, ds, onNeverLoaded)
			}()
		}
	}
	return cur
}

// refreshNow runs one synchronous refresh, still under the single-flight
// flag so it cannot race a background one.
func refreshNow[T any](c *Cache, ds *dataset[T], onNeverLoaded func()) {
	if !ds.refreshing.CompareAndSwap(false, true) {
		return
	}
	defer ds.refreshing.Store(false)
	refreshDataset(c, ds, onNeverLoaded)
}

func refreshDataset[T any](c *Cache, ds *dataset[T], onNeverLoaded func()) {
	if ds.chain == nil {
		return
	}
	start := time.Now()
	v, ok := ds.chain.Run(c.base)
	if c.metrics != nil {
		c.metrics.RecordLatency("refresh_"+ds.name, time.Since(start).Seconds())
	}
	if !ok {
		if c.metrics != nil {
			c.metrics.RecordCacheRefresh(ds.name, "failure")
		}
		c.log.Warn("dataset refresh failed, serving previous value",
			xlogger.String("dataset", ds.name),
		)
		if ds.cur.Load() == nil && onNeverLoaded != nil {
			onNeverLoaded()
		}
		return
	}
	ds.cur.Store(&entry[T]{value: v, updated: c.now()})
	if c.metrics != nil {
		c.metrics.RecordCacheRefresh(ds.name, "success")
	}
	c.log.Debug("dataset refreshed", xlogger.String("dataset", ds.name))
}

func (c *Cache) seedListDefault() {
	c.list.cur.Store(&entry[[]models.StockEntry]{
		value:   defaultStockList,
		updated: c.now(),
	})
	c.log.Warn("stock list never loaded, seeding built-in default")
}
