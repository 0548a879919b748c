package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/buyermatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It exists for local
// development and tests; SQLite has no percentile_cont or mode aggregates, so
// market statistics are computed in Go from the raw purchase rows.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS buyers (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	company_name          TEXT NOT NULL UNIQUE,
	profile               TEXT NOT NULL DEFAULT '{}',
	recent_purchase_count INTEGER NOT NULL DEFAULT 0,
	active                INTEGER NOT NULL DEFAULT 1,
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS purchases (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	company_name TEXT NOT NULL,
	sale_date    TEXT,
	sale_amount  REAL,
	address      TEXT,
	bedrooms     INTEGER,
	bathrooms    REAL,
	square_feet  INTEGER,
	year_built   INTEGER,
	latitude     REAL,
	longitude    REAL
);

CREATE INDEX IF NOT EXISTS idx_buyers_active ON buyers(active);
CREATE INDEX IF NOT EXISTS idx_purchases_company_name ON purchases(company_name);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadActiveBuyersWithHistory loads the roster and all purchase history.
func (s *SQLiteStore) LoadActiveBuyersWithHistory(ctx context.Context) ([]model.Buyer, error) {
	buyers, err := s.LoadActiveBuyers(ctx)
	if err != nil {
		return nil, err
	}
	if len(buyers) == 0 {
		return buyers, nil
	}

	byCompany, err := s.loadAllPurchases(ctx)
	if err != nil {
		return nil, err
	}
	attachHistory(buyers, byCompany)
	return buyers, nil
}

// LoadActiveBuyersWithHistoryBatched delegates to the full loader. A local
// SQLite file gains nothing from concurrent readers.
func (s *SQLiteStore) LoadActiveBuyersWithHistoryBatched(ctx context.Context, _ int) ([]model.Buyer, error) {
	return s.LoadActiveBuyersWithHistory(ctx)
}

// LoadActiveBuyers loads the roster without purchase history.
func (s *SQLiteStore) LoadActiveBuyers(ctx context.Context) ([]model.Buyer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_name, profile, recent_purchase_count FROM buyers WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query buyers")
	}
	defer rows.Close()

	var buyers []model.Buyer
	for rows.Next() {
		var (
			b          model.Buyer
			profileRaw string
		)
		if err := rows.Scan(&b.ID, &b.CompanyName, &profileRaw, &b.RecentPurchaseCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan buyer")
		}
		if profileRaw != "" {
			if err := json.Unmarshal([]byte(profileRaw), &b.Profile); err != nil {
				return nil, eris.Wrapf(err, "sqlite: decode profile for %s", b.CompanyName)
			}
		}
		buyers = append(buyers, b)
	}
	return buyers, eris.Wrap(rows.Err(), "sqlite: iterate buyers")
}

// LoadMarketStatistics aggregates purchase history in Go for the requested
// companies: continuous medians for sale amount and square footage, modes for
// bed/bath counts, discrete median for year built.
func (s *SQLiteStore) LoadMarketStatistics(ctx context.Context, companyNames []string) ([]model.BuyerMarketStats, error) {
	if len(companyNames) == 0 {
		return nil, nil
	}

	requested := make(map[string]string, len(companyNames)) // normalized -> requested
	for _, name := range companyNames {
		requested[model.NormalizeCompanyName(name)] = name
	}

	byCompany, err := s.loadAllPurchases(ctx)
	if err != nil {
		return nil, err
	}

	var stats []model.BuyerMarketStats
	for key, name := range requested {
		purchases := byCompany[key]
		if len(purchases) == 0 {
			continue
		}
		stats = append(stats, aggregateStats(name, purchases))
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].CompanyName < stats[j].CompanyName })
	return stats, nil
}

// loadAllPurchases reads every purchase row grouped by normalized company name.
func (s *SQLiteStore) loadAllPurchases(ctx context.Context) (map[string][]model.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT company_name, sale_date, sale_amount, address,
		       bedrooms, bathrooms, square_feet, year_built, latitude, longitude
		FROM purchases`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query purchases")
	}
	defer rows.Close()

	byCompany := make(map[string][]model.Purchase)
	for rows.Next() {
		var (
			company  string
			saleDate *string
			address  *string
			p        model.Purchase
		)
		if err := rows.Scan(&company, &saleDate, &p.SaleAmount, &address,
			&p.Bedrooms, &p.Bathrooms, &p.SquareFeet, &p.YearBuilt,
			&p.Latitude, &p.Longitude); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan purchase")
		}
		if saleDate != nil {
			// Unparseable dates stay zero and are ignored by scoring.
			if t, err := time.Parse("2006-01-02", *saleDate); err == nil {
				p.SaleDate = t
			}
		}
		if address != nil {
			p.Address = *address
		}
		key := model.NormalizeCompanyName(company)
		byCompany[key] = append(byCompany[key], p)
	}
	return byCompany, eris.Wrap(rows.Err(), "sqlite: iterate purchases")
}

// aggregateStats computes one buyer's market statistics from raw purchases.
func aggregateStats(company string, purchases []model.Purchase) model.BuyerMarketStats {
	st := model.BuyerMarketStats{CompanyName: company}

	var amounts, sqfts []float64
	var beds []int
	var baths []float64
	var years []int
	for _, p := range purchases {
		if p.SaleAmount != nil {
			amounts = append(amounts, *p.SaleAmount)
		}
		if p.SquareFeet != nil {
			sqfts = append(sqfts, float64(*p.SquareFeet))
		}
		if p.Bedrooms != nil {
			beds = append(beds, *p.Bedrooms)
		}
		if p.Bathrooms != nil {
			baths = append(baths, *p.Bathrooms)
		}
		if p.YearBuilt != nil {
			years = append(years, *p.YearBuilt)
		}
	}

	if v, ok := medianFloat(amounts); ok {
		st.MedianSaleAmount = &v
	}
	if v, ok := medianFloat(sqfts); ok {
		st.MedianSquareFeet = &v
	}
	if v, ok := modeInt(beds); ok {
		st.ModalBedrooms = &v
	}
	if v, ok := modeFloat(baths); ok {
		st.ModalBathrooms = &v
	}
	if v, ok := medianDiscreteInt(years); ok {
		st.MedianYearBuilt = &v
	}
	return st
}

// medianFloat returns the continuous median (midpoint of the two middle
// values for even-sized input).
func medianFloat(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// medianDiscreteInt returns the lower discrete median, matching
// percentile_disc(0.5) semantics.
func medianDiscreteInt(vals []int) (int, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	sorted := append([]int(nil), vals...)
	sort.Ints(sorted)
	return sorted[(len(sorted)-1)/2], true
}

func modeInt(vals []int) (int, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	counts := make(map[int]int)
	for _, v := range vals {
		counts[v]++
	}
	best, bestN := vals[0], 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best, true
}

func modeFloat(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	counts := make(map[float64]int)
	for _, v := range vals {
		counts[v]++
	}
	best, bestN := vals[0], 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best, true
}
