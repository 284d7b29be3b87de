package models

// GeoLocation is the result of resolving a visitor IP against the GeoIP database
type GeoLocation struct {
	IP            string  `json:"ip"`
	ContinentCode string  `json:"continentCode"`
	CountryCode   string  `json:"countryCode"`
	City          string  `json:"city"`
	Latitude      float64 `json:"lat"`
	Longitude     float64 `json:"lon"`
}

// IsValid checks if the geo location carries a country and non-null-island coordinates
func (g *GeoLocation) IsValid() bool {
	if g == nil || g.CountryCode == "" {
		return false
	}
	return g.Latitude != 0 || g.Longitude != 0
}
