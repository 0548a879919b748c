// Package store persists buyers and purchase history and serves the
// aggregate market-statistics queries behind the caches.
package store

import (
	"context"

	"github.com/sells-group/buyermatch/internal/model"
)

// Store is the source of truth consumed by the roster and statistics caches.
//
// LoadActiveBuyersWithHistory is the full-cost roster query. The batched
// variant loads history with bounded per-buyer concurrency and exists so the
// cache's degraded fallback can retry with a narrower batch. LoadActiveBuyers
// is the cheapest query: no history at all.
type Store interface {
	LoadActiveBuyersWithHistory(ctx context.Context) ([]model.Buyer, error)
	LoadActiveBuyersWithHistoryBatched(ctx context.Context, concurrency int) ([]model.Buyer, error)
	LoadActiveBuyers(ctx context.Context) ([]model.Buyer, error)

	// LoadMarketStatistics computes per-buyer aggregates for exactly the
	// given company names. Names absent from storage are simply missing from
	// the result, not an error.
	LoadMarketStatistics(ctx context.Context, companyNames []string) ([]model.BuyerMarketStats, error)

	// ImportRoster upserts buyers by company name and replaces each
	// imported buyer's purchase history wholesale.
	ImportRoster(ctx context.Context, buyers []model.Buyer) (ImportResult, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ImportResult summarizes a roster import.
type ImportResult struct {
	Buyers    int64
	Purchases int64
}
