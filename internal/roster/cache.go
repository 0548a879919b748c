// Package roster caches the active-buyer roster between expensive storage
// reloads.
package roster

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/buyermatch/internal/model"
	"github.com/sells-group/buyermatch/internal/resilience"
)

// DefaultTTL is the roster freshness window.
const DefaultTTL = 12 * time.Hour

// DefaultDegradedConcurrency is the batch width used by the degraded reload
// fallback — deliberately narrower than a normal batched load.
const DefaultDegradedConcurrency = 2

// Source is the storage collaborator behind the cache.
type Source interface {
	LoadActiveBuyersWithHistory(ctx context.Context) ([]model.Buyer, error)
	LoadActiveBuyersWithHistoryBatched(ctx context.Context, concurrency int) ([]model.Buyer, error)
	LoadActiveBuyers(ctx context.Context) ([]model.Buyer, error)
}

// Config tunes the cache.
type Config struct {
	// TTL is the freshness window. Default: 12h.
	TTL time.Duration

	// DegradedConcurrency is the batch width for the degraded reload
	// fallback. Default: 2.
	DegradedConcurrency int

	// Retry wraps the primary reload. Zero value uses DefaultRetryConfig.
	Retry resilience.RetryConfig
}

// Cache holds the roster snapshot and reload policy. A single mutex guards
// the snapshot; reloads happen at most every TTL and are not latency
// critical, so readers simply wait for an in-flight reload.
type Cache struct {
	mu     sync.Mutex
	source Source
	cfg    Config
	now    func() time.Time

	buyers   []model.Buyer
	loadedAt time.Time
}

// New creates a roster cache over the given source.
func New(source Source, cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.DegradedConcurrency <= 0 {
		cfg.DegradedConcurrency = DefaultDegradedConcurrency
	}
	return &Cache{
		source: source,
		cfg:    cfg,
		now:    time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (c *Cache) WithNow(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the current roster. A snapshot younger than the TTL and
// non-empty is served without I/O; otherwise the cache walks its reload
// fallback chain. An empty roster means "no buyers available", never an
// error — total reload failure is logged, not returned. The only returned
// error is context cancellation.
func (c *Cache) Get(ctx context.Context) ([]model.Buyer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fresh() && len(c.buyers) > 0 {
		return c.buyers, nil
	}

	buyers, err := c.reload(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Serve-stale: an expired but non-empty snapshot beats every
		// degraded reload.
		if len(c.buyers) > 0 {
			zap.L().Warn("roster: reload failed, serving stale snapshot",
				zap.Int("buyers", len(c.buyers)),
				zap.Duration("age", c.now().Sub(c.loadedAt)),
				zap.Error(err),
			)
			return c.buyers, nil
		}

		buyers, err = c.reloadDegraded(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Error("roster: all reload fallbacks failed, serving empty roster",
				zap.String("detail", eris.ToString(err, true)),
			)
			return nil, nil
		}
	}

	c.buyers = buyers
	c.loadedAt = c.now()
	zap.L().Info("roster: reloaded",
		zap.Int("buyers", len(buyers)),
	)
	return c.buyers, nil
}

// Replace unconditionally overwrites the snapshot and resets the freshness
// timer. Used to prime the cache with an independently fetched roster.
func (c *Cache) Replace(buyers []model.Buyer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buyers = buyers
	c.loadedAt = c.now()
	zap.L().Info("roster: snapshot replaced", zap.Int("buyers", len(buyers)))
}

// Refresh forces a primary reload regardless of freshness. Unlike Get it
// surfaces the loader error so an operator can see why a forced refresh
// failed.
func (c *Cache) Refresh(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buyers, err := c.source.LoadActiveBuyersWithHistory(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "roster: forced refresh")
	}
	c.buyers = buyers
	c.loadedAt = c.now()
	return len(buyers), nil
}

// Info reports the snapshot size and age for inspection commands.
func (c *Cache) Info() (size int, loadedAt time.Time, fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buyers), c.loadedAt, c.fresh()
}

// fresh reports whether the snapshot is younger than the TTL. Callers must
// hold the mutex.
func (c *Cache) fresh() bool {
	if c.loadedAt.IsZero() {
		return false
	}
	return c.now().Sub(c.loadedAt) < c.cfg.TTL
}

// reload attempts the primary full-cost load with a quick transient retry.
func (c *Cache) reload(ctx context.Context) ([]model.Buyer, error) {
	return resilience.DoVal(ctx, c.cfg.Retry, func(ctx context.Context) ([]model.Buyer, error) {
		return c.source.LoadActiveBuyersWithHistory(ctx)
	})
}

// reloadDegraded walks the degraded strategies in order: a narrower batched
// load first, then the cheapest no-history load with empty history
// synthesized per buyer. Each failure is logged and the next strategy tried;
// the last error is returned when all fail.
func (c *Cache) reloadDegraded(ctx context.Context) ([]model.Buyer, error) {
	strategies := []struct {
		name string
		load func(ctx context.Context) ([]model.Buyer, error)
	}{
		{
			name: "batched_narrow",
			load: func(ctx context.Context) ([]model.Buyer, error) {
				return c.source.LoadActiveBuyersWithHistoryBatched(ctx, c.cfg.DegradedConcurrency)
			},
		},
		{
			name: "no_history",
			load: func(ctx context.Context) ([]model.Buyer, error) {
				buyers, err := c.source.LoadActiveBuyers(ctx)
				if err != nil {
					return nil, err
				}
				for i := range buyers {
					buyers[i].Purchases = nil
				}
				return buyers, nil
			},
		},
	}

	var lastErr error
	for _, s := range strategies {
		buyers, err := s.load(ctx)
		if err == nil {
			zap.L().Warn("roster: degraded reload succeeded",
				zap.String("strategy", s.name),
				zap.Int("buyers", len(buyers)),
			)
			return buyers, nil
		}
		zap.L().Warn("roster: degraded reload failed, trying next",
			zap.String("strategy", s.name),
			zap.Error(err),
		)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, eris.Wrap(lastErr, "roster: degraded reload")
}
