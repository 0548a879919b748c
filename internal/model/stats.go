package model

// BuyerMarketStats is the per-buyer aggregate computed from that buyer's full
// transaction history: medians for continuous values, modes for discrete
// counts, discrete median for year built. Keyed by normalized company name.
// Fields are nil when the underlying history had no usable values.
type BuyerMarketStats struct {
	CompanyName string `json:"company_name"`

	MedianSaleAmount *float64 `json:"median_sale_amount,omitempty"`
	ModalBedrooms    *int     `json:"modal_bedrooms,omitempty"`
	ModalBathrooms   *float64 `json:"modal_bathrooms,omitempty"`
	MedianSquareFeet *float64 `json:"median_square_feet,omitempty"`
	MedianYearBuilt  *int     `json:"median_year_built,omitempty"`
}

// ComponentScores breaks a total score down by dimension for transparency.
type ComponentScores struct {
	Geography       int `json:"geography"`
	Recency         int `json:"recency"`
	Price           int `json:"price"`
	Characteristics int `json:"characteristics"`
	Activity        int `json:"activity"`
}

// Sum returns the total of all components.
func (c ComponentScores) Sum() int {
	return c.Geography + c.Recency + c.Price + c.Characteristics + c.Activity
}

// RankedBuyer is one entry of a ranking result: the buyer, its total score,
// the likelihood and category labels, and the per-component breakdown.
type RankedBuyer struct {
	Buyer      Buyer           `json:"buyer"`
	TotalScore int             `json:"total_score"`
	Likelihood Likelihood      `json:"likelihood"`
	Category   BuyerCategory   `json:"category"`
	Components ComponentScores `json:"components"`
}
