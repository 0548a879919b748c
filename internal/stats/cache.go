// Package stats caches per-buyer market statistics between storage fetches.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/buyermatch/internal/model"
	"github.com/sells-group/buyermatch/internal/resilience"
)

// DefaultTTL is the statistics freshness window.
const DefaultTTL = 12 * time.Hour

// Source fetches market statistics for a cohort of buyers.
type Source interface {
	LoadMarketStatistics(ctx context.Context, companyNames []string) ([]model.BuyerMarketStats, error)
}

// Config tunes the cache.
type Config struct {
	// TTL is the freshness window. Default: 12h.
	TTL time.Duration

	// Retry wraps the fetch. Zero value uses DefaultRetryConfig.
	Retry resilience.RetryConfig
}

// Cache serves market statistics keyed by normalized company name. Requests
// are cohort-shaped: a lookup is satisfied from cache only when the cached
// cohort covers every requested name and is younger than the TTL. On any
// miss the whole cache is replaced with the freshly fetched cohort — the
// requested set is the working set, partial merges just accumulate stale
// entries.
type Cache struct {
	mu     sync.Mutex
	source Source
	cfg    Config
	now    func() time.Time

	byCompany map[string]model.BuyerMarketStats
	cohort    map[string]struct{}
	fetchedAt time.Time
}

// New creates a statistics cache over the given source.
func New(source Source, cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
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

// Get returns statistics for the requested companies keyed by normalized
// name. Companies with no sales history in storage are simply absent from
// the result. Unlike the roster cache there is no degraded fallback: a
// fetch failure propagates to the caller.
func (c *Cache) Get(ctx context.Context, companyNames []string) (map[string]model.BuyerMarketStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := normalizeAll(companyNames)
	if c.fresh() && c.covers(keys) {
		return c.subset(keys), nil
	}

	stats, err := resilience.DoVal(ctx, c.cfg.Retry, func(ctx context.Context) ([]model.BuyerMarketStats, error) {
		return c.source.LoadMarketStatistics(ctx, companyNames)
	})
	if err != nil {
		return nil, eris.Wrap(err, "stats: fetch market statistics")
	}

	byCompany := make(map[string]model.BuyerMarketStats, len(stats))
	for _, s := range stats {
		byCompany[model.NormalizeCompanyName(s.CompanyName)] = s
	}
	cohort := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		cohort[k] = struct{}{}
	}
	c.byCompany = byCompany
	c.cohort = cohort
	c.fetchedAt = c.now()
	zap.L().Info("stats: cohort refetched",
		zap.Int("requested", len(companyNames)),
		zap.Int("with_stats", len(byCompany)),
	)
	return c.subset(keys), nil
}

// Info reports the cohort size and fetch time for inspection commands.
func (c *Cache) Info() (size int, fetchedAt time.Time, fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byCompany), c.fetchedAt, c.fresh()
}

func (c *Cache) fresh() bool {
	if c.fetchedAt.IsZero() {
		return false
	}
	return c.now().Sub(c.fetchedAt) < c.cfg.TTL
}

// covers reports whether the cached cohort includes every requested key.
// Coverage is judged against the names the last fetch was asked about, so a
// company that legitimately has no stats row does not force a refetch on
// every request: absence from byCompany only fails coverage when the key was
// never part of the cached cohort.
func (c *Cache) covers(keys []string) bool {
	for _, k := range keys {
		if _, ok := c.cohort[k]; !ok {
			return false
		}
	}
	return true
}

func (c *Cache) subset(keys []string) map[string]model.BuyerMarketStats {
	out := make(map[string]model.BuyerMarketStats, len(keys))
	for _, k := range keys {
		if s, ok := c.byCompany[k]; ok {
			out[k] = s
		}
	}
	return out
}

func normalizeAll(names []string) []string {
	keys := make([]string, 0, len(names))
	for _, n := range names {
		keys = append(keys, model.NormalizeCompanyName(n))
	}
	return keys
}
