package types

import "strings"

// Waypoint is a pickup or dropoff point handed to delivery partners.
// Stored as JSONB on deliveries.
type Waypoint struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone,omitempty"`
	Line1   string  `json:"line1"`
	Line2   *string `json:"line2,omitempty"`
	City    string  `json:"city"`
	State   string  `json:"state,omitempty"`
	Postal  string  `json:"postal_code"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Validate reports the first missing required field, or "".
func (w Waypoint) Validate() string {
	switch {
	case strings.TrimSpace(w.Name) == "":
		return "name"
	case strings.TrimSpace(w.Line1) == "":
		return "line1"
	case strings.TrimSpace(w.City) == "":
		return "city"
	case strings.TrimSpace(w.Postal) == "":
		return "postal_code"
	}
	return ""
}

// FormattedAddress joins the address parts into a single provider-friendly line.
func (w Waypoint) FormattedAddress() string {
	parts := make([]string, 0, 5)
	for _, part := range []string{w.Line1, w.City, w.State, w.Postal, w.Country} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, ", ")
}
