// Package rank scores active buyers against a subject property and orders
// them by purchase likelihood.
package rank

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/buyermatch/internal/model"
)

// RosterProvider supplies the active-buyer roster.
type RosterProvider interface {
	Get(ctx context.Context) ([]model.Buyer, error)
}

// StatsProvider supplies market statistics keyed by normalized company name.
type StatsProvider interface {
	Get(ctx context.Context, companyNames []string) (map[string]model.BuyerMarketStats, error)
}

// Engine ranks buyers for subject properties. Safe for concurrent use: it
// holds no per-request state and never mutates the roster it is handed.
type Engine struct {
	roster RosterProvider
	stats  StatsProvider
	bands  Bands
	now    func() time.Time
}

// NewEngine creates a ranking engine over the given providers.
func NewEngine(roster RosterProvider, stats StatsProvider, bands Bands) *Engine {
	return &Engine{
		roster: roster,
		stats:  stats,
		bands:  bands,
		now:    time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RankBuyers returns every buyer that passes the subject's hard filters,
// scored and sorted by descending total score. Equal scores keep roster
// order. An empty roster or a fully filtered one yields an empty result,
// not an error; only a statistics fetch failure is fatal.
func (e *Engine) RankBuyers(ctx context.Context, subject model.SubjectProperty) ([]model.RankedBuyer, error) {
	requestID := uuid.NewString()
	log := zap.L().With(zap.String("request_id", requestID))

	buyers, err := e.roster.Get(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "rank: load roster")
	}

	survivors := make([]model.Buyer, 0, len(buyers))
	for _, b := range buyers {
		if reasons := evaluateFilters(subject, b.Profile); len(reasons) > 0 {
			log.Debug("rank: buyer excluded by hard filters",
				zap.String("company", b.CompanyName),
				zap.Any("reasons", reasons),
			)
			continue
		}
		survivors = append(survivors, b)
	}
	if len(survivors) == 0 {
		log.Info("rank: no buyers survived hard filtering",
			zap.Int("roster_size", len(buyers)),
		)
		return []model.RankedBuyer{}, nil
	}

	names := make([]string, 0, len(survivors))
	for _, b := range survivors {
		names = append(names, b.CompanyName)
	}
	statsByCompany, err := e.stats.Get(ctx, names)
	if err != nil {
		return nil, eris.Wrap(err, "rank: load market statistics")
	}

	now := e.now()
	ranked := make([]model.RankedBuyer, 0, len(survivors))
	for _, b := range survivors {
		var bs *model.BuyerMarketStats
		if s, ok := statsByCompany[model.NormalizeCompanyName(b.CompanyName)]; ok {
			bs = &s
		}
		components := model.ComponentScores{
			Geography:       scoreGeography(e.bands, subject, b.Purchases),
			Recency:         scoreRecency(e.bands, now, b.Purchases),
			Price:           scorePrice(e.bands, subject, bs),
			Characteristics: scoreCharacteristics(e.bands, subject, bs),
			Activity:        scoreActivity(e.bands, now, b),
		}
		total := components.Sum()
		ranked = append(ranked, model.RankedBuyer{
			Buyer:      b,
			TotalScore: total,
			Likelihood: e.likelihood(total),
			Category:   e.category(b),
			Components: components,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})

	log.Info("rank: ranking complete",
		zap.Int("roster_size", len(buyers)),
		zap.Int("ranked", len(ranked)),
		zap.Int("top_score", ranked[0].TotalScore),
	)
	return ranked, nil
}

func (e *Engine) likelihood(total int) model.Likelihood {
	switch {
	case total > e.bands.MostLikelyAbove:
		return model.LikelihoodMost
	case total > e.bands.LikelyAbove:
		return model.LikelihoodLikely
	default:
		return model.LikelihoodLess
	}
}

func (e *Engine) category(b model.Buyer) model.BuyerCategory {
	if b.RecentPurchaseCount >= e.bands.ActiveCategoryMin {
		return model.CategoryActive
	}
	return model.CategoryRecent
}
