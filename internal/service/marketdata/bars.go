package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/provider"
	"StockPulse/pkg/cache"
	xlogger "StockPulse/pkg/logger"
)

// DefaultBarTTL is how long a symbol's daily series stays fresh.
const DefaultBarTTL = 5 * time.Minute

// BarCache serves per-symbol daily bar series through the shared cache
// backend, so a layered memory+redis setup survives restarts. Entries are
// stored as JSON strings.
type BarCache struct {
	store    cache.Service
	chainFor func(symbol string) *provider.Chain[[]models.Bar]
	ttl      time.Duration
	log      *xlogger.Logger
}

// BarOption configures BarCache.
type BarOption func(*BarCache)

func WithBarTTL(ttl time.Duration) BarOption {
	return func(b *BarCache) { b.ttl = ttl }
}

func WithBarLogger(log *xlogger.Logger) BarOption {
	return func(b *BarCache) { b.log = log }
}

func NewBarCache(store cache.Service, chainFor func(symbol string) *provider.Chain[[]models.Bar], opts ...BarOption) *BarCache {
	b := &BarCache{
		store:    store,
		chainFor: chainFor,
		ttl:      DefaultBarTTL,
		log:      xlogger.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Get returns the daily series for a symbol, refreshing synchronously on
// miss or expiry. Total upstream failure yields an empty series, never an
// error, so analysis degrades to the insufficient-sample path.
func (b *BarCache) Get(ctx context.Context, symbol string) []models.Bar {
	key := cache.Key("bars", provider.FullSymbol(symbol))

	var raw string
	err := b.store.Get(ctx, key, &raw)
	if err == nil {
		var bars []models.Bar
		if uerr := json.Unmarshal([]byte(raw), &bars); uerr == nil {
			return bars
		}
		// Corrupt entry: drop it and refetch.
		_ = b.store.Delete(ctx, key)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		b.log.Warn("bar cache read failed",
			xlogger.String("symbol", symbol),
			xlogger.Error(err),
		)
	}

	bars, ok := b.chainFor(symbol).Run(ctx)
	if !ok {
		return nil
	}

	if payload, merr := json.Marshal(bars); merr == nil {
		if serr := b.store.Set(ctx, key, string(payload), b.ttl); serr != nil {
			b.log.Warn("bar cache write failed",
				xlogger.String("symbol", symbol),
				xlogger.Error(serr),
			)
		}
	}
	return bars
}
