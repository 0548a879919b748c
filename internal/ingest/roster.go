package ingest

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/buyermatch/internal/model"
)

// headerAliases maps the spellings seen in vendor transaction exports to
// canonical column keys.
var headerAliases = map[string]string{
	"company":      "company",
	"company name": "company",
	"buyer":        "company",
	"buyer name":   "company",
	"sale date":    "sale_date",
	"date":         "sale_date",
	"sale amount":  "sale_amount",
	"amount":       "sale_amount",
	"sale price":   "sale_amount",
	"address":      "address",
	"bedrooms":     "bedrooms",
	"beds":         "bedrooms",
	"bathrooms":    "bathrooms",
	"baths":        "bathrooms",
	"square feet":  "square_feet",
	"sqft":         "square_feet",
	"year built":   "year_built",
	"year":         "year_built",
	"latitude":     "latitude",
	"lat":          "latitude",
	"longitude":    "longitude",
	"lon":          "longitude",
	"lng":          "longitude",
}

var dateLayouts = []string{"2006-01-02", "1/2/2006", "01-02-06", time.RFC3339}

// ParseRosterXLSX reads a transaction workbook — one row per purchase with a
// header row — and groups the rows into buyers in first-seen order. Each
// buyer's recent purchase count is computed from the parsed sale dates. Rows
// without a company name are skipped and counted in the log.
func ParseRosterXLSX(path string, opts XLSXOptions, now time.Time) ([]model.Buyer, error) {
	rows, err := readXLSX(path, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, eris.Errorf("ingest: workbook %s has no data rows", path)
	}

	cols, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	byCompany := make(map[string]*model.Buyer)
	var order []string
	skipped := 0
	for _, row := range rows[1:] {
		company := strings.TrimSpace(cell(row, cols, "company"))
		if company == "" {
			skipped++
			continue
		}

		key := model.NormalizeCompanyName(company)
		b, ok := byCompany[key]
		if !ok {
			b = &model.Buyer{CompanyName: company}
			byCompany[key] = b
			order = append(order, key)
		}
		b.Purchases = append(b.Purchases, parsePurchase(row, cols))
	}
	if skipped > 0 {
		zap.L().Warn("ingest: skipped rows without company name",
			zap.String("path", path),
			zap.Int("rows", skipped),
		)
	}

	cutoff := now.Add(-365 * 24 * time.Hour)
	buyers := make([]model.Buyer, 0, len(order))
	for _, key := range order {
		b := byCompany[key]
		for _, p := range b.Purchases {
			if !p.SaleDate.IsZero() && !p.SaleDate.Before(cutoff) {
				b.RecentPurchaseCount++
			}
		}
		buyers = append(buyers, *b)
	}
	return buyers, nil
}

// ParseRosterJSON reads a roster file of fully shaped buyers, profiles
// included. This is the format the prime endpoint accepts.
func ParseRosterJSON(path string) ([]model.Buyer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read roster file %s", path)
	}
	var buyers []model.Buyer
	if err := json.Unmarshal(raw, &buyers); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse roster file %s", path)
	}
	return buyers, nil
}

// mapHeader resolves the header row to canonical column indexes. A company
// column is the only hard requirement.
func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for i, h := range header {
		key, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	if _, ok := cols["company"]; !ok {
		return nil, eris.New("ingest: no company column found in header")
	}
	return cols, nil
}

func parsePurchase(row []string, cols map[string]int) model.Purchase {
	p := model.Purchase{
		Address:    strings.TrimSpace(cell(row, cols, "address")),
		SaleAmount: parseFloat(cell(row, cols, "sale_amount")),
		Bedrooms:   parseInt(cell(row, cols, "bedrooms")),
		Bathrooms:  parseFloat(cell(row, cols, "bathrooms")),
		SquareFeet: parseInt(cell(row, cols, "square_feet")),
		YearBuilt:  parseInt(cell(row, cols, "year_built")),
		Latitude:   parseFloat(cell(row, cols, "latitude")),
		Longitude:  parseFloat(cell(row, cols, "longitude")),
	}
	raw := strings.TrimSpace(cell(row, cols, "sale_date"))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			p.SaleDate = t
			break
		}
	}
	return p
}

func cell(row []string, cols map[string]int, key string) string {
	i, ok := cols[key]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseFloat returns nil for empty or malformed values; a blank cell means
// unknown, never zero. Thousands separators and a leading dollar sign are
// tolerated.
func parseFloat(raw string) *float64 {
	raw = strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(raw), "$"), ",", ""))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(raw string) *int {
	f := parseFloat(raw)
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}
