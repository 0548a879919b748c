package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/buyermatch/internal/db"
	"github.com/sells-group/buyermatch/internal/model"
)

var buyerImportColumns = []string{"company_name", "profile", "recent_purchase_count", "active"}

var purchaseImportColumns = []string{
	"company_name", "sale_date", "sale_amount", "address",
	"bedrooms", "bathrooms", "square_feet", "year_built", "latitude", "longitude",
}

// ImportRoster upserts buyers by company name via COPY into a temp table,
// then replaces each imported buyer's purchase history wholesale: old rows
// deleted, new rows COPYed in. Buyers absent from the import are untouched.
func (s *PostgresStore) ImportRoster(ctx context.Context, buyers []model.Buyer) (ImportResult, error) {
	if len(buyers) == 0 {
		return ImportResult{}, nil
	}

	buyerRows := make([][]any, 0, len(buyers))
	names := make([]string, 0, len(buyers))
	var purchaseRows [][]any
	for _, b := range buyers {
		profile, err := json.Marshal(b.Profile)
		if err != nil {
			return ImportResult{}, eris.Wrapf(err, "postgres: encode profile for %s", b.CompanyName)
		}
		buyerRows = append(buyerRows, []any{b.CompanyName, profile, b.RecentPurchaseCount, true})
		names = append(names, b.CompanyName)

		for _, p := range b.Purchases {
			var saleDate any
			if !p.SaleDate.IsZero() {
				saleDate = p.SaleDate
			}
			var address any
			if p.Address != "" {
				address = p.Address
			}
			purchaseRows = append(purchaseRows, []any{
				b.CompanyName, saleDate, p.SaleAmount, address,
				p.Bedrooms, p.Bathrooms, p.SquareFeet, p.YearBuilt, p.Latitude, p.Longitude,
			})
		}
	}

	nb, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "buyers",
		Columns:      buyerImportColumns,
		ConflictKeys: []string{"company_name"},
	}, buyerRows)
	if err != nil {
		return ImportResult{}, err
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM purchases WHERE company_name = ANY($1)`, names); err != nil {
		return ImportResult{}, eris.Wrap(err, "postgres: clear purchase history")
	}

	np, err := db.CopyFrom(ctx, s.pool, "purchases", purchaseImportColumns, purchaseRows)
	if err != nil {
		return ImportResult{}, err
	}

	zap.L().Info("postgres: roster imported",
		zap.Int64("buyers", nb),
		zap.Int64("purchases", np),
	)
	return ImportResult{Buyers: nb, Purchases: np}, nil
}

// ImportRoster mirrors the Postgres importer with plain statements inside a
// single transaction; the dev store has no COPY protocol to lean on.
func (s *SQLiteStore) ImportRoster(ctx context.Context, buyers []model.Buyer) (ImportResult, error) {
	if len(buyers) == 0 {
		return ImportResult{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportResult{}, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback()

	var result ImportResult
	for _, b := range buyers {
		profile, err := json.Marshal(b.Profile)
		if err != nil {
			return ImportResult{}, eris.Wrapf(err, "sqlite: encode profile for %s", b.CompanyName)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO buyers (company_name, profile, recent_purchase_count, active)
			VALUES (?, ?, ?, 1)
			ON CONFLICT (company_name) DO UPDATE SET
				profile = excluded.profile,
				recent_purchase_count = excluded.recent_purchase_count,
				active = 1,
				updated_at = datetime('now')`,
			b.CompanyName, string(profile), b.RecentPurchaseCount); err != nil {
			return ImportResult{}, eris.Wrapf(err, "sqlite: upsert buyer %s", b.CompanyName)
		}
		result.Buyers++

		if _, err := tx.ExecContext(ctx, `DELETE FROM purchases WHERE company_name = ?`, b.CompanyName); err != nil {
			return ImportResult{}, eris.Wrapf(err, "sqlite: clear history for %s", b.CompanyName)
		}

		for _, p := range b.Purchases {
			var saleDate any
			if !p.SaleDate.IsZero() {
				saleDate = p.SaleDate.Format("2006-01-02")
			}
			var address any
			if p.Address != "" {
				address = p.Address
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO purchases (company_name, sale_date, sale_amount, address,
					bedrooms, bathrooms, square_feet, year_built, latitude, longitude)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				b.CompanyName, saleDate, p.SaleAmount, address,
				p.Bedrooms, p.Bathrooms, p.SquareFeet, p.YearBuilt, p.Latitude, p.Longitude); err != nil {
				return ImportResult{}, eris.Wrapf(err, "sqlite: insert purchase for %s", b.CompanyName)
			}
			result.Purchases++
		}
	}

	if err := tx.Commit(); err != nil {
		return ImportResult{}, eris.Wrap(err, "sqlite: commit import")
	}
	return result, nil
}
