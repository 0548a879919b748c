package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createWorkbook(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

var ingestNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestParseRosterXLSX(t *testing.T) {
	path := createWorkbook(t, map[string][][]string{
		"Transactions": {
			{"Company", "Sale Date", "Sale Amount", "Address", "Beds", "Baths", "Sqft", "Year Built", "Lat", "Lon"},
			{"Acme Holdings", "2025-04-20", "$150,000", "12 Oak St", "3", "2", "1480", "2003", "35.05", "-90.05"},
			{"Acme Holdings", "2024-01-15", "210000", "9 Elm St", "4", "2.5", "2100", "2010", "", ""},
			{"Blue Door LLC", "2025-05-01", "95000", "", "", "", "", "", "", ""},
		},
	})

	buyers, err := ParseRosterXLSX(path, XLSXOptions{SheetName: "Transactions"}, ingestNow)
	require.NoError(t, err)
	require.Len(t, buyers, 2)

	acme := buyers[0]
	assert.Equal(t, "Acme Holdings", acme.CompanyName)
	require.Len(t, acme.Purchases, 2)
	assert.Equal(t, 1, acme.RecentPurchaseCount, "only the 2025 purchase is inside the trailing year")

	first := acme.Purchases[0]
	assert.Equal(t, time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC), first.SaleDate)
	require.NotNil(t, first.SaleAmount)
	assert.Equal(t, 150000.0, *first.SaleAmount)
	assert.Equal(t, "12 Oak St", first.Address)
	require.NotNil(t, first.Bedrooms)
	assert.Equal(t, 3, *first.Bedrooms)
	require.NotNil(t, first.Latitude)
	assert.InDelta(t, 35.05, *first.Latitude, 1e-9)

	second := acme.Purchases[1]
	assert.Nil(t, second.Latitude, "blank cells stay unknown")

	blue := buyers[1]
	assert.Equal(t, "Blue Door LLC", blue.CompanyName)
	require.Len(t, blue.Purchases, 1)
	assert.Nil(t, blue.Purchases[0].Bedrooms)
}

func TestParseRosterXLSXGroupsByNormalizedName(t *testing.T) {
	path := createWorkbook(t, map[string][][]string{
		"Sheet1": {
			{"Company", "Sale Date"},
			{"ACME  Holdings", "2025-01-01"},
			{"acme holdings", "2025-02-01"},
		},
	})

	buyers, err := ParseRosterXLSX(path, XLSXOptions{}, ingestNow)
	require.NoError(t, err)
	require.Len(t, buyers, 1)
	assert.Len(t, buyers[0].Purchases, 2)
}

func TestParseRosterXLSXSkipsBlankCompanies(t *testing.T) {
	path := createWorkbook(t, map[string][][]string{
		"Sheet1": {
			{"Company", "Sale Date"},
			{"", "2025-01-01"},
			{"Acme Holdings", "2025-02-01"},
		},
	})

	buyers, err := ParseRosterXLSX(path, XLSXOptions{}, ingestNow)
	require.NoError(t, err)
	require.Len(t, buyers, 1)
}

func TestParseRosterXLSXRequiresCompanyColumn(t *testing.T) {
	path := createWorkbook(t, map[string][][]string{
		"Sheet1": {
			{"Sale Date", "Amount"},
			{"2025-01-01", "100"},
		},
	})

	_, err := ParseRosterXLSX(path, XLSXOptions{}, ingestNow)
	assert.Error(t, err)
}

func TestParseRosterXLSXMissingSheet(t *testing.T) {
	path := createWorkbook(t, map[string][][]string{"Sheet1": {{"Company"}}})

	_, err := ParseRosterXLSX(path, XLSXOptions{SheetName: "Missing"}, ingestNow)
	assert.Error(t, err)
}

func TestParseRosterJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	body := `[
		{"company_name":"Acme Holdings","recent_purchase_count":5,"profile":{"min_bedrooms":3,"counties":["Shelby County"]}},
		{"company_name":"Blue Door LLC"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	buyers, err := ParseRosterJSON(path)
	require.NoError(t, err)
	require.Len(t, buyers, 2)
	require.NotNil(t, buyers[0].Profile.MinBedrooms)
	assert.Equal(t, 3, *buyers[0].Profile.MinBedrooms)
	assert.Equal(t, []string{"Shelby County"}, buyers[0].Profile.Counties)
}

func TestParseFloatTolerantFormats(t *testing.T) {
	require.NotNil(t, parseFloat("$1,250,000"))
	assert.Equal(t, 1250000.0, *parseFloat("$1,250,000"))
	assert.Nil(t, parseFloat(""))
	assert.Nil(t, parseFloat("n/a"))

	require.NotNil(t, parseInt("1480.0"))
	assert.Equal(t, 1480, *parseInt("1480.0"))
}
