package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/kyvra-tech/geoipmap-backend/internal/datatable"
)

// GeoVisitsRecord is the archive record name holding location-keyed aggregates.
const GeoVisitsRecord = "GeoIPMap_visits"

// Column names shared by the archived and live geo tables.
const (
	ColumnLabel          = "label"
	ColumnContinent      = "location_continent"
	ColumnCountry        = "location_country"
	ColumnCity           = "location_city"
	ColumnLatitude       = "location_latitude"
	ColumnLongitude      = "location_longitude"
	ColumnLastActionTime = "visit_last_action_time"
	MetadataLatitude     = "location_latitude"
	MetadataLongitude    = "location_longitude"
	labelSeparator       = "|"
)

// VisitColumns is the column order of geo tables.
var VisitColumns = []string{
	ColumnLabel,
	ColumnContinent,
	ColumnCountry,
	ColumnCity,
	ColumnLatitude,
	ColumnLongitude,
	datatable.MetricColumn(datatable.IndexNbUniqVisitors),
	datatable.MetricColumn(datatable.IndexNbVisits),
	ColumnLastActionTime,
}

// VisitAggregateRow is one geographic bucket of visit activity.
type VisitAggregateRow struct {
	Label          string    `json:"label"`
	Continent      string    `json:"continent"`
	Country        string    `json:"country"`
	City           string    `json:"city"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	UniqueVisitors int64     `json:"nbUniqVisitors"`
	Visits         int64     `json:"nbVisits"`
	LastActionTime time.Time `json:"lastActionTime"`
}

// HasLocation reports whether both coordinates are present.
func (r VisitAggregateRow) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Valid checks the bucket invariants: coordinates paired, visits >= unique visitors >= 0.
func (r VisitAggregateRow) Valid() bool {
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return false
	}
	return r.UniqueVisitors >= 0 && r.Visits >= r.UniqueVisitors
}

// Values returns the row's cells in VisitColumns order.
func (r VisitAggregateRow) Values() []interface{} {
	var lat, lon interface{}
	if r.Latitude != nil {
		lat = *r.Latitude
	}
	if r.Longitude != nil {
		lon = *r.Longitude
	}
	return []interface{}{
		r.Label,
		r.Continent,
		r.Country,
		r.City,
		lat,
		lon,
		r.UniqueVisitors,
		r.Visits,
		r.LastActionTime.UTC().Format("2006-01-02 15:04:05"),
	}
}

// VisitTable wraps aggregate rows in a generic table.
func VisitTable(rows []VisitAggregateRow) *datatable.Table {
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, r.Values())
	}
	t := datatable.New()
	t.AddRowsFromSimpleArray(VisitColumns, values)
	return t
}

// LocationLabel builds the composite "longitude|latitude" label.
func LocationLabel(longitude, latitude float64) string {
	return formatCoordinate(longitude) + labelSeparator + formatCoordinate(latitude)
}

// SplitLocationLabel splits a "longitude|latitude" label. ok is false unless the label
// has exactly two parts.
func SplitLocationLabel(label string) (longitude, latitude string, ok bool) {
	parts := strings.Split(label, labelSeparator)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// QueryWindow bounds a live query: [Start, End).
type QueryWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// UnlocatedVisit is a logged visit with an IP but no resolved coordinates.
type UnlocatedVisit struct {
	IDVisit int64
	IP      string
}
