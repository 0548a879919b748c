// Package model defines the domain entities shared across the matching pipeline.
package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BuyerCategory labels how active a buyer currently is.
type BuyerCategory string

const (
	// CategoryActive marks buyers with three or more purchases in the
	// trailing twelve months.
	CategoryActive BuyerCategory = "active"
	// CategoryRecent marks every other buyer that survives hard filtering.
	CategoryRecent BuyerCategory = "recent"
)

// Likelihood is the three-tier purchase-likelihood label.
type Likelihood string

const (
	LikelihoodMost   Likelihood = "Most likely"
	LikelihoodLikely Likelihood = "Likely"
	LikelihoodLess   Likelihood = "Less likely"
)

// AcquisitionProfile holds a buyer's declared acquisition thresholds.
// Every threshold is optional; a nil field means the buyer declared no
// constraint, which is different from declaring zero.
type AcquisitionProfile struct {
	MinBedrooms   *int     `json:"min_bedrooms,omitempty"`
	MinBathrooms  *float64 `json:"min_bathrooms,omitempty"`
	MinSquareFeet *int     `json:"min_square_feet,omitempty"`
	MinYearBuilt  *int     `json:"min_year_built,omitempty"`

	// Counties restricts purchases to the listed counties when non-empty.
	Counties []string `json:"counties,omitempty"`

	PriceFloor   *float64 `json:"price_floor,omitempty"`
	PriceCeiling *float64 `json:"price_ceiling,omitempty"`

	// Buyer-type flags.
	Flipper    bool `json:"flipper,omitempty"`
	Landlord   bool `json:"landlord,omitempty"`
	Developer  bool `json:"developer,omitempty"`
	Wholesaler bool `json:"wholesaler,omitempty"`

	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

// Purchase is a single historical transaction by a buyer.
type Purchase struct {
	SaleDate   time.Time `json:"sale_date"`
	SaleAmount *float64  `json:"sale_amount,omitempty"`

	Address    string   `json:"address,omitempty"`
	Bedrooms   *int     `json:"bedrooms,omitempty"`
	Bathrooms  *float64 `json:"bathrooms,omitempty"`
	SquareFeet *int     `json:"square_feet,omitempty"`
	YearBuilt  *int     `json:"year_built,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (p Purchase) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Buyer is a prospective cash investor, candidate for matching against a
// subject property. Instances are rebuilt on every roster reload and must be
// treated as read-only during a ranking pass.
type Buyer struct {
	ID          int64              `json:"id"`
	CompanyName string             `json:"company_name"`
	Profile     AcquisitionProfile `json:"profile"`

	// RecentPurchaseCount is the storage-side aggregate of purchases in the
	// trailing twelve months. It backs activity scoring when the purchase
	// history was not loaded.
	RecentPurchaseCount int `json:"recent_purchase_count"`

	Purchases []Purchase `json:"purchases,omitempty"`
}

// nameFolder lowercases company names for stable statistics keying. A plain
// caser is enough here; buyer names come from a single US-English source.
var nameFolder = cases.Lower(language.AmericanEnglish)

// NormalizeCompanyName returns the canonical statistics key for a company
// name: trimmed, whitespace-collapsed, case-folded.
func NormalizeCompanyName(name string) string {
	folded := nameFolder.String(strings.TrimSpace(name))
	return strings.Join(strings.Fields(folded), " ")
}
