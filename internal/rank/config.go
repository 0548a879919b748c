package rank

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DistanceBand awards points when the buyer's closest purchase is within
// MaxMiles of the subject.
type DistanceBand struct {
	MaxMiles float64 `yaml:"max_miles"`
	Points   int     `yaml:"points"`
}

// AgeBand awards points when the buyer's most recent purchase is at most
// MaxDays old.
type AgeBand struct {
	MaxDays int `yaml:"max_days"`
	Points  int `yaml:"points"`
}

// PctBand awards points when a percentage difference is at most MaxPercent.
type PctBand struct {
	MaxPercent float64 `yaml:"max_percent"`
	Points     int     `yaml:"points"`
}

// DeltaBand awards points when an absolute difference is at most MaxDelta.
type DeltaBand struct {
	MaxDelta float64 `yaml:"max_delta"`
	Points   int     `yaml:"points"`
}

// CountBand awards points when a purchase count is at least MinCount.
// Evaluated highest-first.
type CountBand struct {
	MinCount int `yaml:"min_count"`
	Points   int `yaml:"points"`
}

// CharacteristicsBands holds the four independent sub-scores of the
// characteristics component.
type CharacteristicsBands struct {
	BedroomsExact    int         `yaml:"bedrooms_exact"`
	BedroomsOffByOne int         `yaml:"bedrooms_off_by_one"`
	Bathrooms        []DeltaBand `yaml:"bathrooms"`
	SquareFeet       []PctBand   `yaml:"square_feet"`
	YearBuilt        []DeltaBand `yaml:"year_built"`
}

// Bands is the full scoring table. Band lists are evaluated in order and
// the first matching band wins, so each list must be sorted tightest-first.
type Bands struct {
	Geography       []DistanceBand       `yaml:"geography"`
	Recency         []AgeBand            `yaml:"recency"`
	Price           []PctBand            `yaml:"price"`
	Characteristics CharacteristicsBands `yaml:"characteristics"`
	Activity        []CountBand          `yaml:"activity"`

	// MostLikelyAbove and LikelyAbove are exclusive lower bounds on the
	// total score for the two upper likelihood labels.
	MostLikelyAbove int `yaml:"most_likely_above"`
	LikelyAbove     int `yaml:"likely_above"`

	// ActiveCategoryMin is the recent-purchase count at or above which a
	// buyer is labeled an active investor.
	ActiveCategoryMin int `yaml:"active_category_min"`
}

// DefaultBands returns the production scoring table.
func DefaultBands() Bands {
	return Bands{
		Geography: []DistanceBand{
			{MaxMiles: 2, Points: 30},
			{MaxMiles: 5, Points: 18},
			{MaxMiles: 10, Points: 10},
			{MaxMiles: 15, Points: 4},
			{MaxMiles: 20, Points: 1},
		},
		Recency: []AgeBand{
			{MaxDays: 90, Points: 24},
			{MaxDays: 180, Points: 14},
			{MaxDays: 365, Points: 6},
		},
		Price: []PctBand{
			{MaxPercent: 20, Points: 10},
			{MaxPercent: 40, Points: 4},
		},
		Characteristics: CharacteristicsBands{
			BedroomsExact:    8,
			BedroomsOffByOne: 4,
			Bathrooms: []DeltaBand{
				{MaxDelta: 0.5, Points: 6},
				{MaxDelta: 1.0, Points: 3},
			},
			SquareFeet: []PctBand{
				{MaxPercent: 20, Points: 6},
				{MaxPercent: 40, Points: 3},
			},
			YearBuilt: []DeltaBand{
				{MaxDelta: 10, Points: 6},
				{MaxDelta: 20, Points: 3},
			},
		},
		Activity: []CountBand{
			{MinCount: 8, Points: 10},
			{MinCount: 4, Points: 7},
			{MinCount: 2, Points: 4},
		},
		MostLikelyAbove:   60,
		LikelyAbove:       40,
		ActiveCategoryMin: 3,
	}
}

// LoadBands reads a scoring table from a YAML file. Fields omitted from the
// file fall back to the defaults, so an override file only needs the bands
// it changes.
func LoadBands(path string) (Bands, error) {
	b := DefaultBands()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Bands{}, eris.Wrapf(err, "rank: read bands file %s", path)
	}
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return Bands{}, eris.Wrapf(err, "rank: parse bands file %s", path)
	}
	if err := b.Validate(); err != nil {
		return Bands{}, err
	}
	return b, nil
}

// Validate checks band ordering so first-match evaluation is sound.
func (b Bands) Validate() error {
	for i := 1; i < len(b.Geography); i++ {
		if b.Geography[i].MaxMiles <= b.Geography[i-1].MaxMiles {
			return eris.New("rank: geography bands must be sorted by ascending max_miles")
		}
	}
	for i := 1; i < len(b.Recency); i++ {
		if b.Recency[i].MaxDays <= b.Recency[i-1].MaxDays {
			return eris.New("rank: recency bands must be sorted by ascending max_days")
		}
	}
	for i := 1; i < len(b.Price); i++ {
		if b.Price[i].MaxPercent <= b.Price[i-1].MaxPercent {
			return eris.New("rank: price bands must be sorted by ascending max_percent")
		}
	}
	for i := 1; i < len(b.Characteristics.Bathrooms); i++ {
		if b.Characteristics.Bathrooms[i].MaxDelta <= b.Characteristics.Bathrooms[i-1].MaxDelta {
			return eris.New("rank: bathroom bands must be sorted by ascending max_delta")
		}
	}
	for i := 1; i < len(b.Characteristics.SquareFeet); i++ {
		if b.Characteristics.SquareFeet[i].MaxPercent <= b.Characteristics.SquareFeet[i-1].MaxPercent {
			return eris.New("rank: square-feet bands must be sorted by ascending max_percent")
		}
	}
	for i := 1; i < len(b.Characteristics.YearBuilt); i++ {
		if b.Characteristics.YearBuilt[i].MaxDelta <= b.Characteristics.YearBuilt[i-1].MaxDelta {
			return eris.New("rank: year-built bands must be sorted by ascending max_delta")
		}
	}
	for i := 1; i < len(b.Activity); i++ {
		if b.Activity[i].MinCount >= b.Activity[i-1].MinCount {
			return eris.New("rank: activity bands must be sorted by descending min_count")
		}
	}
	if b.LikelyAbove >= b.MostLikelyAbove {
		return eris.New("rank: likely_above must be below most_likely_above")
	}
	return nil
}
