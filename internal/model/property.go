package model

import "strings"

// SubjectProperty is the property being evaluated for buyer matching. Every
// field is optional: a missing value degrades the score components that need
// it to zero and is never an error. Numeric fields use pointers so that a
// genuine zero is distinguishable from "unknown"; empty strings mean unknown
// for the text fields.
type SubjectProperty struct {
	Bedrooms       *int     `json:"bedrooms,omitempty"`
	Bathrooms      *float64 `json:"bathrooms,omitempty"`
	SquareFeet     *int     `json:"square_feet,omitempty"`
	YearBuilt      *int     `json:"year_built,omitempty"`
	ZipCode        string   `json:"zip_code,omitempty"`
	City           string   `json:"city,omitempty"`
	County         string   `json:"county,omitempty"`
	EstimatedPrice *float64 `json:"estimated_price,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (s SubjectProperty) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// CountyToken returns the primary county token: the first whitespace-delimited
// word of the county string, or "" when the county is unknown.
func (s SubjectProperty) CountyToken() string {
	fields := strings.Fields(s.County)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
