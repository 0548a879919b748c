package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/buyermatch/internal/db"
	"github.com/sells-group/buyermatch/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()

	// stmtTimeout bounds each roster/statistics query via SET LOCAL
	// statement_timeout so a slow aggregate cannot stall a ranking pass.
	stmtTimeout time.Duration

	// historyLimiter throttles per-buyer history queries in batched loads.
	historyLimiter *rate.Limiter
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`

	// StatementTimeoutSecs bounds individual queries. Default: 30.
	StatementTimeoutSecs int `yaml:"statement_timeout_secs" mapstructure:"statement_timeout_secs"`

	// HistoryQueryQPS throttles per-buyer history queries during batched
	// loads. Default: 25.
	HistoryQueryQPS int `yaml:"history_query_qps" mapstructure:"history_query_qps"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	stmtTimeout := 30 * time.Second
	historyQPS := 25
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
		if poolCfg.StatementTimeoutSecs > 0 {
			stmtTimeout = time.Duration(poolCfg.StatementTimeoutSecs) * time.Second
		}
		if poolCfg.HistoryQueryQPS > 0 {
			historyQPS = poolCfg.HistoryQueryQPS
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{
		pool:           pool,
		closeFn:        pool.Close,
		stmtTimeout:    stmtTimeout,
		historyLimiter: rate.NewLimiter(rate.Limit(historyQPS), historyQPS),
	}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS buyers (
	id                    BIGSERIAL PRIMARY KEY,
	company_name          TEXT NOT NULL UNIQUE,
	profile               JSONB NOT NULL DEFAULT '{}'::jsonb,
	recent_purchase_count INT NOT NULL DEFAULT 0,
	active                BOOLEAN NOT NULL DEFAULT true,
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS purchases (
	id           BIGSERIAL PRIMARY KEY,
	company_name TEXT NOT NULL,
	sale_date    DATE,
	sale_amount  NUMERIC,
	address      TEXT,
	bedrooms     INT,
	bathrooms    NUMERIC,
	square_feet  INT,
	year_built   INT,
	latitude     DOUBLE PRECISION,
	longitude    DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_buyers_active ON buyers(active);
CREATE INDEX IF NOT EXISTS idx_purchases_company_name ON purchases(company_name);
CREATE INDEX IF NOT EXISTS idx_purchases_sale_date ON purchases(sale_date);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const selectActiveBuyers = `
SELECT id, company_name, profile, recent_purchase_count
FROM buyers
WHERE active
ORDER BY id`

const selectPurchasesForCompanies = `
SELECT company_name, sale_date, sale_amount, address,
       bedrooms, bathrooms, square_feet, year_built, latitude, longitude
FROM purchases
WHERE company_name = ANY($1)
ORDER BY company_name, sale_date DESC`

const selectPurchasesForCompany = `
SELECT company_name, sale_date, sale_amount, address,
       bedrooms, bathrooms, square_feet, year_built, latitude, longitude
FROM purchases
WHERE company_name = $1
ORDER BY sale_date DESC`

// LoadActiveBuyersWithHistory loads the full roster and each buyer's
// purchase history in two statement-bounded queries.
func (s *PostgresStore) LoadActiveBuyersWithHistory(ctx context.Context) ([]model.Buyer, error) {
	var buyers []model.Buyer
	err := s.withStatementTimeout(ctx, func(tx pgx.Tx) error {
		var err error
		buyers, err = s.queryBuyers(ctx, tx)
		if err != nil {
			return err
		}
		if len(buyers) == 0 {
			return nil
		}

		names := make([]string, len(buyers))
		for i := range buyers {
			names[i] = buyers[i].CompanyName
		}

		rows, err := tx.Query(ctx, selectPurchasesForCompanies, names)
		if err != nil {
			return eris.Wrap(err, "postgres: query purchases")
		}
		defer rows.Close()

		byCompany, err := scanPurchases(rows)
		if err != nil {
			return err
		}
		attachHistory(buyers, byCompany)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buyers, nil
}

// LoadActiveBuyersWithHistoryBatched loads the roster, then fetches purchase
// history per buyer with bounded concurrency. The roster cache's degraded
// fallback calls this with a narrower width than the default loader.
func (s *PostgresStore) LoadActiveBuyersWithHistoryBatched(ctx context.Context, concurrency int) ([]model.Buyer, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	buyers, err := s.LoadActiveBuyers(ctx)
	if err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range buyers {
		g.Go(func() error {
			if err := s.historyLimiter.Wait(gCtx); err != nil {
				return err
			}
			rows, err := s.pool.Query(gCtx, selectPurchasesForCompany, buyers[i].CompanyName)
			if err != nil {
				return eris.Wrapf(err, "postgres: query history for %s", buyers[i].CompanyName)
			}
			defer rows.Close()

			byCompany, err := scanPurchases(rows)
			if err != nil {
				return err
			}
			buyers[i].Purchases = byCompany[model.NormalizeCompanyName(buyers[i].CompanyName)]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Debug("postgres: batched roster load complete",
		zap.Int("buyers", len(buyers)),
		zap.Int("concurrency", concurrency),
	)
	return buyers, nil
}

// LoadActiveBuyers loads the roster without purchase history. Callers get
// buyers with empty history slices; activity scoring then falls back to the
// pre-aggregated recent purchase count.
func (s *PostgresStore) LoadActiveBuyers(ctx context.Context) ([]model.Buyer, error) {
	var buyers []model.Buyer
	err := s.withStatementTimeout(ctx, func(tx pgx.Tx) error {
		var err error
		buyers, err = s.queryBuyers(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return buyers, nil
}

const selectMarketStatistics = `
SELECT company_name,
       percentile_cont(0.5) WITHIN GROUP (ORDER BY sale_amount)    AS median_sale_amount,
       mode() WITHIN GROUP (ORDER BY bedrooms)                     AS modal_bedrooms,
       mode() WITHIN GROUP (ORDER BY bathrooms)                    AS modal_bathrooms,
       percentile_cont(0.5) WITHIN GROUP (ORDER BY square_feet)    AS median_square_feet,
       percentile_disc(0.5) WITHIN GROUP (ORDER BY year_built)     AS median_year_built
FROM purchases
WHERE company_name = ANY($1)
GROUP BY company_name`

// LoadMarketStatistics computes per-buyer aggregates for the given companies.
// Medians use percentile_cont (continuous) except year built, which takes the
// discrete median; bed/bath counts use the statistical mode.
func (s *PostgresStore) LoadMarketStatistics(ctx context.Context, companyNames []string) ([]model.BuyerMarketStats, error) {
	if len(companyNames) == 0 {
		return nil, nil
	}

	var stats []model.BuyerMarketStats
	err := s.withStatementTimeout(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectMarketStatistics, companyNames)
		if err != nil {
			return eris.Wrap(err, "postgres: query market statistics")
		}
		defer rows.Close()

		for rows.Next() {
			var st model.BuyerMarketStats
			if err := rows.Scan(
				&st.CompanyName,
				&st.MedianSaleAmount,
				&st.ModalBedrooms,
				&st.ModalBathrooms,
				&st.MedianSquareFeet,
				&st.MedianYearBuilt,
			); err != nil {
				return eris.Wrap(err, "postgres: scan market statistics")
			}
			stats = append(stats, st)
		}
		return eris.Wrap(rows.Err(), "postgres: iterate market statistics")
	})
	if err != nil {
		return nil, err
	}

	zap.L().Debug("postgres: market statistics loaded",
		zap.Int("requested", len(companyNames)),
		zap.Int("returned", len(stats)),
	)
	return stats, nil
}

// withStatementTimeout runs fn inside a transaction with a statement-level
// deadline. SET LOCAL scopes the timeout to the transaction, so it resets on
// commit or rollback.
func (s *PostgresStore) withStatementTimeout(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	timeoutMS := s.stmtTimeout.Milliseconds()
	if timeoutMS > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", timeoutMS)); err != nil {
			return eris.Wrap(err, "postgres: set statement timeout")
		}
	}

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

// queryBuyers loads active buyer rows inside the given transaction.
func (s *PostgresStore) queryBuyers(ctx context.Context, tx pgx.Tx) ([]model.Buyer, error) {
	rows, err := tx.Query(ctx, selectActiveBuyers)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query buyers")
	}
	defer rows.Close()

	var buyers []model.Buyer
	for rows.Next() {
		var (
			b          model.Buyer
			profileRaw []byte
		)
		if err := rows.Scan(&b.ID, &b.CompanyName, &profileRaw, &b.RecentPurchaseCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan buyer")
		}
		if len(profileRaw) > 0 {
			if err := json.Unmarshal(profileRaw, &b.Profile); err != nil {
				return nil, eris.Wrapf(err, "postgres: decode profile for %s", b.CompanyName)
			}
		}
		buyers = append(buyers, b)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate buyers")
	}
	return buyers, nil
}

// scanPurchases reads purchase rows grouped by normalized company name.
func scanPurchases(rows pgx.Rows) (map[string][]model.Purchase, error) {
	byCompany := make(map[string][]model.Purchase)
	for rows.Next() {
		var (
			company  string
			saleDate *time.Time
			p        model.Purchase
			address  *string
		)
		if err := rows.Scan(
			&company,
			&saleDate,
			&p.SaleAmount,
			&address,
			&p.Bedrooms,
			&p.Bathrooms,
			&p.SquareFeet,
			&p.YearBuilt,
			&p.Latitude,
			&p.Longitude,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan purchase")
		}
		if saleDate != nil {
			p.SaleDate = *saleDate
		}
		if address != nil {
			p.Address = *address
		}
		key := model.NormalizeCompanyName(company)
		byCompany[key] = append(byCompany[key], p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate purchases")
	}
	return byCompany, nil
}

// attachHistory assigns grouped purchases onto the buyer slice in place.
func attachHistory(buyers []model.Buyer, byCompany map[string][]model.Purchase) {
	for i := range buyers {
		buyers[i].Purchases = byCompany[model.NormalizeCompanyName(buyers[i].CompanyName)]
	}
}
