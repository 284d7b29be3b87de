package services

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"github.com/kyvra-tech/geoipmap-backend/internal/models"
	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
)

// ErrLocationUnknown is returned when the database has no usable position for an IP.
var ErrLocationUnknown = errors.New("location unknown")

// Locator resolves visitor IPs to locations.
type Locator interface {
	Locate(ip string) (*models.GeoLocation, error)
}

// continentCodes maps MaxMind continent codes onto the codes stored in continentcountry.
var continentCodes = map[string]string{
	"AF": "afr",
	"AN": "ant",
	"AS": "asi",
	"EU": "eur",
	"NA": "amn",
	"OC": "oce",
	"SA": "ams",
}

// GeoIPLocator looks IPs up in a MaxMind City database.
type GeoIPLocator struct {
	reader *geoip2.Reader
}

// OpenGeoIPLocator opens the database at path. An empty path yields nil, nil.
func OpenGeoIPLocator(path string) (*GeoIPLocator, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &GeoIPLocator{reader: reader}, nil
}

func (l *GeoIPLocator) Locate(ip string) (*models.GeoLocation, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return nil, errors.InvalidInputf("geoip: invalid ip %q", ip)
	}

	record, err := l.reader.City(parsed)
	if err != nil {
		return nil, fmt.Errorf("geoip: lookup city: %w", err)
	}

	loc := &models.GeoLocation{
		IP:            parsed.String(),
		ContinentCode: continentCodes[record.Continent.Code],
		CountryCode:   strings.ToLower(record.Country.IsoCode),
		City:          record.City.Names["en"],
		Latitude:      record.Location.Latitude,
		Longitude:     record.Location.Longitude,
	}
	if !loc.IsValid() || loc.ContinentCode == "" {
		return nil, ErrLocationUnknown
	}

	return loc, nil
}

// Close closes the underlying database reader.
func (l *GeoIPLocator) Close() error {
	if l == nil || l.reader == nil {
		return nil
	}
	return l.reader.Close()
}
