package rank

import (
	"strings"

	"github.com/sells-group/buyermatch/internal/model"
)

// RejectReason identifies which acquisition-profile minimum a subject
// failed. Logged per excluded buyer so rankings stay auditable.
type RejectReason string

const (
	RejectBedrooms   RejectReason = "below_min_bedrooms"
	RejectBathrooms  RejectReason = "below_min_bathrooms"
	RejectSquareFeet RejectReason = "below_min_square_feet"
	RejectYearBuilt  RejectReason = "below_min_year_built"
	RejectCounty     RejectReason = "outside_counties"
	RejectPriceBand  RejectReason = "outside_price_band"
)

// evaluateFilters checks a subject against a buyer's hard acquisition
// minimums and returns every reason the buyer would pass on it. A check
// whose value is unknown on either side is skipped — only affirmative
// mismatches exclude a buyer.
func evaluateFilters(subject model.SubjectProperty, profile model.AcquisitionProfile) []RejectReason {
	var reasons []RejectReason

	if profile.MinBedrooms != nil && subject.Bedrooms != nil &&
		*subject.Bedrooms < *profile.MinBedrooms {
		reasons = append(reasons, RejectBedrooms)
	}
	if profile.MinBathrooms != nil && subject.Bathrooms != nil &&
		*subject.Bathrooms < *profile.MinBathrooms {
		reasons = append(reasons, RejectBathrooms)
	}
	if profile.MinSquareFeet != nil && subject.SquareFeet != nil &&
		*subject.SquareFeet < *profile.MinSquareFeet {
		reasons = append(reasons, RejectSquareFeet)
	}
	if profile.MinYearBuilt != nil && subject.YearBuilt != nil &&
		*subject.YearBuilt < *profile.MinYearBuilt {
		reasons = append(reasons, RejectYearBuilt)
	}
	if !countyMatches(subject.CountyToken(), profile.Counties) {
		reasons = append(reasons, RejectCounty)
	}
	if outsidePriceBand(subject.EstimatedPrice, profile) {
		reasons = append(reasons, RejectPriceBand)
	}

	return reasons
}

// countyMatches compares the subject's county token against the buyer's
// county list. Both sides are reduced to their first whitespace-delimited
// token and compared case-insensitively, so "Davidson County" matches
// "DAVIDSON". An empty county list or an unknown subject county passes.
func countyMatches(subjectToken string, counties []string) bool {
	if len(counties) == 0 || subjectToken == "" {
		return true
	}
	subjectToken = strings.ToLower(subjectToken)
	for _, county := range counties {
		fields := strings.Fields(county)
		if len(fields) == 0 {
			continue
		}
		if strings.ToLower(fields[0]) == subjectToken {
			return true
		}
	}
	return false
}

// outsidePriceBand checks the subject's estimated price against the buyer's
// declared floor and ceiling. Unknown price or an unset bound passes.
func outsidePriceBand(price *float64, profile model.AcquisitionProfile) bool {
	if price == nil {
		return false
	}
	if profile.PriceFloor != nil && *price < *profile.PriceFloor {
		return true
	}
	if profile.PriceCeiling != nil && *price > *profile.PriceCeiling {
		return true
	}
	return false
}
