package rank

import (
	"math"
	"time"

	"github.com/sells-group/buyermatch/internal/model"
)

const earthRadiusMiles = 3959.0

// haversineMiles returns the great-circle distance between two points in
// statute miles.
func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180
	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}

// scoreGeography awards points for the buyer's closest purchase to the
// subject. Requires subject coordinates and at least one purchase with
// coordinates; otherwise the component contributes zero.
func scoreGeography(b Bands, subject model.SubjectProperty, purchases []model.Purchase) int {
	if !subject.HasCoordinates() {
		return 0
	}
	closest := math.Inf(1)
	for _, p := range purchases {
		if !p.HasCoordinates() {
			continue
		}
		d := haversineMiles(*subject.Latitude, *subject.Longitude, *p.Latitude, *p.Longitude)
		if d < closest {
			closest = d
		}
	}
	if math.IsInf(closest, 1) {
		return 0
	}
	for _, band := range b.Geography {
		if closest <= band.MaxMiles {
			return band.Points
		}
	}
	return 0
}

// scoreRecency awards points for how recently the buyer last purchased.
func scoreRecency(b Bands, now time.Time, purchases []model.Purchase) int {
	var latest time.Time
	for _, p := range purchases {
		if p.SaleDate.After(latest) {
			latest = p.SaleDate
		}
	}
	if latest.IsZero() {
		return 0
	}
	days := int(now.Sub(latest).Hours() / 24)
	if days < 0 {
		days = 0
	}
	for _, band := range b.Recency {
		if days <= band.MaxDays {
			return band.Points
		}
	}
	return 0
}

// scorePrice awards points for how close the subject's estimated price sits
// to the buyer's median historical sale amount.
func scorePrice(b Bands, subject model.SubjectProperty, stats *model.BuyerMarketStats) int {
	if subject.EstimatedPrice == nil || stats == nil || stats.MedianSaleAmount == nil {
		return 0
	}
	median := *stats.MedianSaleAmount
	if median <= 0 {
		return 0
	}
	pct := math.Abs(*subject.EstimatedPrice-median) / median * 100
	for _, band := range b.Price {
		if pct <= band.MaxPercent {
			return band.Points
		}
	}
	return 0
}

// scoreCharacteristics awards points for how well the subject matches the
// buyer's typical purchase profile. The four sub-scores are independent: a
// missing value on either side zeroes only its own sub-score.
func scoreCharacteristics(b Bands, subject model.SubjectProperty, stats *model.BuyerMarketStats) int {
	if stats == nil {
		return 0
	}
	c := b.Characteristics
	total := 0

	if subject.Bedrooms != nil && stats.ModalBedrooms != nil {
		switch diff := abs(*subject.Bedrooms - *stats.ModalBedrooms); diff {
		case 0:
			total += c.BedroomsExact
		case 1:
			total += c.BedroomsOffByOne
		}
	}

	if subject.Bathrooms != nil && stats.ModalBathrooms != nil {
		delta := math.Abs(*subject.Bathrooms - *stats.ModalBathrooms)
		for _, band := range c.Bathrooms {
			if delta <= band.MaxDelta {
				total += band.Points
				break
			}
		}
	}

	if subject.SquareFeet != nil && stats.MedianSquareFeet != nil && *stats.MedianSquareFeet > 0 {
		pct := math.Abs(float64(*subject.SquareFeet)-*stats.MedianSquareFeet) / *stats.MedianSquareFeet * 100
		for _, band := range c.SquareFeet {
			if pct <= band.MaxPercent {
				total += band.Points
				break
			}
		}
	}

	if subject.YearBuilt != nil && stats.MedianYearBuilt != nil {
		delta := float64(abs(*subject.YearBuilt - *stats.MedianYearBuilt))
		for _, band := range c.YearBuilt {
			if delta <= band.MaxDelta {
				total += band.Points
				break
			}
		}
	}

	return total
}

// scoreActivity awards points for the buyer's purchase volume over the
// trailing year. When the purchase history is empty the stored
// recent-purchase count stands in, so buyers loaded through the no-history
// fallback still earn activity credit.
func scoreActivity(b Bands, now time.Time, buyer model.Buyer) int {
	count := 0
	if len(buyer.Purchases) > 0 {
		cutoff := now.Add(-365 * 24 * time.Hour)
		for _, p := range buyer.Purchases {
			if !p.SaleDate.Before(cutoff) && !p.SaleDate.After(now) {
				count++
			}
		}
	} else {
		count = buyer.RecentPurchaseCount
	}
	for _, band := range b.Activity {
		if count >= band.MinCount {
			return band.Points
		}
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
