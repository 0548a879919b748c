package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyermatch/internal/model"
)

func importBuyers() []model.Buyer {
	amount := 150000.0
	beds := 3
	return []model.Buyer{
		{
			CompanyName:         "Acme Holdings",
			RecentPurchaseCount: 2,
			Profile:             model.AcquisitionProfile{MinBedrooms: &beds},
			Purchases: []model.Purchase{
				{SaleDate: time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC), SaleAmount: &amount, Address: "12 Oak St"},
				{SaleDate: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},
			},
		},
		{CompanyName: "Blue Door LLC", RecentPurchaseCount: 1},
	}
}

func TestPostgresImportRoster(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_buyers"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_buyers"}, buyerImportColumns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "buyers"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectExec("DELETE FROM purchases").
		WithArgs([]string{"Acme Holdings", "Blue Door LLC"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"purchases"}, purchaseImportColumns).
		WillReturnResult(2)

	result, err := s.ImportRoster(context.Background(), importBuyers())
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Buyers)
	assert.Equal(t, int64(2), result.Purchases)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresImportRosterEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	result, err := s.ImportRoster(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{}, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteImportRoster(t *testing.T) {
	s := newSQLiteStore(t)

	result, err := s.ImportRoster(context.Background(), importBuyers())
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Buyers)
	assert.Equal(t, int64(2), result.Purchases)

	buyers, err := s.LoadActiveBuyersWithHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, buyers, 2)
	assert.Equal(t, "Acme Holdings", buyers[0].CompanyName)
	require.NotNil(t, buyers[0].Profile.MinBedrooms)
	assert.Equal(t, 3, *buyers[0].Profile.MinBedrooms)
	assert.Len(t, buyers[0].Purchases, 2)
	assert.Empty(t, buyers[1].Purchases)
}

func TestSQLiteImportRosterReplacesHistory(t *testing.T) {
	s := newSQLiteStore(t)

	first := importBuyers()
	_, err := s.ImportRoster(context.Background(), first)
	require.NoError(t, err)

	// Re-import the same buyer with a single newer purchase: the old
	// history must be gone.
	second := []model.Buyer{{
		CompanyName:         "Acme Holdings",
		RecentPurchaseCount: 1,
		Purchases:           []model.Purchase{{SaleDate: time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC)}},
	}}
	_, err = s.ImportRoster(context.Background(), second)
	require.NoError(t, err)

	buyers, err := s.LoadActiveBuyersWithHistory(context.Background())
	require.NoError(t, err)

	var acme *model.Buyer
	for i := range buyers {
		if buyers[i].CompanyName == "Acme Holdings" {
			acme = &buyers[i]
		}
	}
	require.NotNil(t, acme)
	assert.Len(t, acme.Purchases, 1)
	assert.Equal(t, 1, acme.RecentPurchaseCount)
}
