package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"StockPulse/internal/domain/models"
	"StockPulse/internal/domain/repository"
	xlogger "StockPulse/pkg/logger"
	xutil "StockPulse/pkg/util"
)

// Per-call timeout budgets by call class. A single slow upstream must degrade
// one dataset, not stall the process.
const (
	TimeoutLookup   = 3 * time.Second
	TimeoutQuote    = 3 * time.Second
	TimeoutIndex    = 10 * time.Second
	TimeoutKline    = 10 * time.Second
	TimeoutRankings = 10 * time.Second
	TimeoutList     = 20 * time.Second
)

// StockListProvider fetches the exchange-wide code/name list.
type StockListProvider interface {
	Name() string
	FetchStockList(ctx context.Context) ([]models.StockEntry, error)
}

// SpotProvider fetches the full-market quote table.
type SpotProvider interface {
	Name() string
	FetchSpotTable(ctx context.Context) (*models.SpotTable, error)
}

// IndexProvider fetches the benchmark index snapshot.
type IndexProvider interface {
	Name() string
	FetchIndexSnapshot(ctx context.Context) (models.IndexSnapshot, error)
}

// BarProvider fetches the recent daily bar series for one symbol.
type BarProvider interface {
	Name() string
	FetchDailyBars(ctx context.Context, symbol string) ([]models.Bar, error)
}

// QuoteProvider fetches a single-symbol quote on demand.
type QuoteProvider interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (models.QuoteSnapshot, error)
}

// RankingsProvider fetches top gainers and losers.
type RankingsProvider interface {
	Name() string
	FetchRankings(ctx context.Context) (models.Rankings, error)
}

// LookupProvider resolves a bare numeric code to a listed name.
type LookupProvider interface {
	Name() string
	LookupSymbol(ctx context.Context, code string) (models.StockEntry, error)
}

// Step is one adapter attempt in a fallback chain.
type Step[T any] struct {
	Provider string
	Timeout  time.Duration
	Fetch    func(ctx context.Context) (T, error)
}

// Chain tries its steps in order and stops at the first non-empty,
// well-formed result. Adapter errors are logged and counted; the chain
// itself never returns an error.
type Chain[T any] struct {
	Dataset string
	Steps   []Step[T]
	IsEmpty func(T) bool

	Log     *xlogger.Logger
	Metrics repository.Metrics
}

// Run executes the chain. The second return value reports whether any step
// produced a usable result.
func (c *Chain[T]) Run(ctx context.Context) (T, bool) {
	var zero T
	for _, step := range c.Steps {
		callCtx, cancel := context.WithTimeout(ctx, step.Timeout)
		v, err := step.Fetch(callCtx)
		cancel()
		if err != nil {
			if c.Log != nil {
				c.Log.Warn("provider call failed",
					xlogger.String("provider", step.Provider),
					xlogger.String("dataset", c.Dataset),
					xlogger.Error(err),
				)
			}
			if c.Metrics != nil {
				c.Metrics.RecordProviderFailure(step.Provider, c.Dataset)
			}
			continue
		}
		if c.IsEmpty != nil && c.IsEmpty(v) {
			if c.Metrics != nil {
				c.Metrics.RecordProviderFailure(step.Provider, c.Dataset)
			}
			continue
		}
		return v, true
	}
	return zero, false
}

// MarketPrefix infers the exchange prefix for a bare A-share code:
// 6xxxxx Shanghai, 0xxxxx/3xxxxx Shenzhen, 4/8/9xxxxx Beijing.
func MarketPrefix(code string) string {
	switch {
	case strings.HasPrefix(code, "6"):
		return "sh"
	case strings.HasPrefix(code, "0"), strings.HasPrefix(code, "3"):
		return "sz"
	case strings.HasPrefix(code, "4"), strings.HasPrefix(code, "8"), strings.HasPrefix(code, "9"):
		return "bj"
	default:
		return "sh"
	}
}

// FullSymbol returns the prefixed symbol ("sh600519") for a possibly bare or
// already-prefixed input.
func FullSymbol(symbol string) string {
	lower := strings.ToLower(symbol)
	if strings.HasPrefix(lower, "sh") || strings.HasPrefix(lower, "sz") || strings.HasPrefix(lower, "bj") {
		return lower
	}
	code := xutil.Digits(symbol)
	return MarketPrefix(code) + code
}

// flexFloat tolerates upstream numeric fields arriving as JSON numbers,
// quoted strings, or the "-" placeholder for suspended symbols.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "-" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("numeric field %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

var _ json.Unmarshaler = (*flexFloat)(nil)

// round2 rounds to two decimals, the canonical precision for percent and
// price fields.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// positiveOr coerces non-positive values to a default.
func positiveOr(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
