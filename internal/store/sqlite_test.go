package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedBuyer(t *testing.T, s *SQLiteStore, name, profile string, recentCount int) {
	t.Helper()
	_, err := s.db.Exec(
		`INSERT INTO buyers (company_name, profile, recent_purchase_count) VALUES (?, ?, ?)`,
		name, profile, recentCount)
	require.NoError(t, err)
}

func seedPurchase(t *testing.T, s *SQLiteStore, name, date string, amount float64, beds int, baths float64, sqft, year int) {
	t.Helper()
	_, err := s.db.Exec(
		`INSERT INTO purchases (company_name, sale_date, sale_amount, bedrooms, bathrooms, square_feet, year_built)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, date, amount, beds, baths, sqft, year)
	require.NoError(t, err)
}

func TestSQLite_LoadActiveBuyersWithHistory(t *testing.T) {
	s := newSQLiteStore(t)
	seedBuyer(t, s, "Bluff City Capital", `{"min_bedrooms":2,"landlord":true}`, 4)
	seedPurchase(t, s, "Bluff City Capital", "2026-03-10", 120000, 3, 2, 1400, 1998)
	seedPurchase(t, s, "Bluff City Capital", "2025-11-02", 98000, 2, 1, 1100, 1975)

	buyers, err := s.LoadActiveBuyersWithHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, buyers, 1)
	assert.Equal(t, "Bluff City Capital", buyers[0].CompanyName)
	assert.True(t, buyers[0].Profile.Landlord)
	assert.Len(t, buyers[0].Purchases, 2)
}

func TestSQLite_LoadActiveBuyers_SkipsInactive(t *testing.T) {
	s := newSQLiteStore(t)
	seedBuyer(t, s, "Active LLC", `{}`, 1)
	_, err := s.db.Exec(
		`INSERT INTO buyers (company_name, profile, active) VALUES (?, ?, 0)`,
		"Dormant LLC", `{}`)
	require.NoError(t, err)

	buyers, err := s.LoadActiveBuyers(context.Background())
	require.NoError(t, err)
	require.Len(t, buyers, 1)
	assert.Equal(t, "Active LLC", buyers[0].CompanyName)
}

func TestSQLite_LoadMarketStatistics(t *testing.T) {
	s := newSQLiteStore(t)
	seedBuyer(t, s, "Bluff City Capital", `{}`, 4)
	seedPurchase(t, s, "Bluff City Capital", "2026-03-10", 100000, 3, 2, 1200, 1990)
	seedPurchase(t, s, "Bluff City Capital", "2025-12-01", 150000, 3, 2.5, 1500, 2000)
	seedPurchase(t, s, "Bluff City Capital", "2025-06-20", 200000, 4, 2, 1800, 2010)

	stats, err := s.LoadMarketStatistics(context.Background(), []string{"bluff city capital"})
	require.NoError(t, err)
	require.Len(t, stats, 1)

	st := stats[0]
	assert.Equal(t, 150000.0, *st.MedianSaleAmount) // odd count: middle value
	assert.Equal(t, 3, *st.ModalBedrooms)
	assert.Equal(t, 2.0, *st.ModalBathrooms)
	assert.Equal(t, 1500.0, *st.MedianSquareFeet)
	assert.Equal(t, 2000, *st.MedianYearBuilt)
}

func TestSQLite_LoadMarketStatistics_UnknownCompany(t *testing.T) {
	s := newSQLiteStore(t)
	stats, err := s.LoadMarketStatistics(context.Background(), []string{"Nobody Here"})
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestMedianFloat_EvenCount(t *testing.T) {
	v, ok := medianFloat([]float64{100, 200, 300, 400})
	require.True(t, ok)
	assert.Equal(t, 250.0, v)
}

func TestMedianDiscreteInt(t *testing.T) {
	v, ok := medianDiscreteInt([]int{2010, 1990, 2000, 2020})
	require.True(t, ok)
	assert.Equal(t, 2000, v) // lower discrete median

	_, ok = medianDiscreteInt(nil)
	assert.False(t, ok)
}

func TestModeInt_TieBreaksLow(t *testing.T) {
	v, ok := modeInt([]int{4, 3, 4, 3})
	require.True(t, ok)
	assert.Equal(t, 3, v)
}
