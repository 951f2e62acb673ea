package ratelimit

import (
	"strings"
	"sync"
	"time"

	"StockPulse/internal/domain/repository"
)

// privateExact and privatePrefixes identify internal callers that bypass the
// view ceiling entirely.
var privateExact = map[string]struct{}{
	"127.0.0.1": {},
	"localhost": {},
	"::1":       {},
	"0.0.0.0":   {},
}

var privatePrefixes = []string{
	"192.168.",
	"10.",
	"172.",
	"::ffff:127.",
}

type visitor struct {
	stamps     []time.Time
	lastSymbol string
	lastSeen   time.Time
}

// ViewLimiter enforces the per-identifier quote-view ceiling over a sliding
// window, with short-window deduplication for repeated views of the same
// symbol. State is in-memory and resets on restart.
type ViewLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	ceiling       int
	horizon       time.Duration
	dedupWindow   time.Duration
	bypassPrivate bool

	metrics repository.Metrics
	now     func() time.Time
}

// ViewOption configures ViewLimiter.
type ViewOption func(*ViewLimiter)

func WithViewCeiling(n int) ViewOption {
	return func(l *ViewLimiter) { l.ceiling = n }
}

func WithViewHorizon(d time.Duration) ViewOption {
	return func(l *ViewLimiter) { l.horizon = d }
}

func WithViewDedupWindow(d time.Duration) ViewOption {
	return func(l *ViewLimiter) { l.dedupWindow = d }
}

func WithViewBypassPrivate(b bool) ViewOption {
	return func(l *ViewLimiter) { l.bypassPrivate = b }
}

func WithViewMetrics(m repository.Metrics) ViewOption {
	return func(l *ViewLimiter) { l.metrics = m }
}

func WithViewClock(now func() time.Time) ViewOption {
	return func(l *ViewLimiter) { l.now = now }
}

func NewViewLimiter(opts ...ViewOption) *ViewLimiter {
	l := &ViewLimiter{
		visitors:      make(map[string]*visitor),
		ceiling:       100,
		horizon:       time.Hour,
		dedupWindow:   10 * time.Second,
		bypassPrivate: true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records one quote view for the identifier and reports whether it may
// proceed. A repeat view of the same symbol inside the dedup window is always
// allowed and does not consume quota.
func (l *ViewLimiter) Allow(identifier, symbol string) bool {
	if l.bypassPrivate && isPrivate(identifier) {
		return true
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[identifier]
	if !ok {
		v = &visitor{}
		l.visitors[identifier] = v
	}

	// The dedup window is anchored at the last counted view; a continuation
	// must not slide it, or steady polling would never consume quota.
	if symbol != "" && symbol == v.lastSymbol && now.Sub(v.lastSeen) < l.dedupWindow {
		return true
	}

	// Slide the window.
	cutoff := now.Add(-l.horizon)
	kept := v.stamps[:0]
	for _, ts := range v.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	v.stamps = kept

	if len(v.stamps) >= l.ceiling {
		if l.metrics != nil {
			l.metrics.RecordRateLimitDenied("view")
		}
		return false
	}

	v.stamps = append(v.stamps, now)
	v.lastSymbol = symbol
	v.lastSeen = now
	return true
}

// Sweep drops identifiers idle for longer than the horizon. Callers run it
// periodically; it is safe to skip.
func (l *ViewLimiter) Sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.horizon {
			delete(l.visitors, id)
		}
	}
}

func isPrivate(identifier string) bool {
	if _, ok := privateExact[identifier]; ok {
		return true
	}
	for _, prefix := range privatePrefixes {
		if strings.HasPrefix(identifier, prefix) {
			return true
		}
	}
	return false
}
