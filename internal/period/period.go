package period

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kyvra-tech/geoipmap-backend/pkg/errors"
)

const dateLayout = "2006-01-02"

// Period names accepted by Parse.
const (
	Day   = "day"
	Week  = "week"
	Month = "month"
	Year  = "year"
	Span  = "range"
)

var (
	utcOffsetRegexp = regexp.MustCompile(`^UTC([+-])(\d{1,2})(?:\.(\d+))?$`)
	lastNRegexp     = regexp.MustCompile(`^(last|previous)(\d+)$`)
)

// Range is a half-open interval [Start, End) in the site's timezone.
type Range struct {
	Period string
	Start  time.Time
	End    time.Time
}

// Date1 is the first calendar day of the range.
func (r Range) Date1() string {
	return r.Start.Format(dateLayout)
}

// Date2 is the last calendar day of the range, inclusive.
func (r Range) Date2() string {
	return r.End.Add(-time.Nanosecond).Format(dateLayout)
}

// Key identifies the range in archive storage.
func (r Range) Key() string {
	return r.Date1() + "," + r.Date2()
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r Range) String() string {
	return r.Period + "(" + r.Key() + ")"
}

// LoadLocation resolves a site timezone: IANA names, "UTC", or fixed offsets like "UTC+5.5".
func LoadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}

	if m := utcOffsetRegexp.FindStringSubmatch(tz); m != nil {
		hours, _ := strconv.Atoi(m[2])
		fraction := 0.0
		if m[3] != "" {
			fraction, _ = strconv.ParseFloat("0."+m[3], 64)
		}
		offset := int(math.Round((float64(hours) + fraction) * 3600))
		if offset > 14*3600 {
			return nil, errors.InvalidInputf("timezone %q out of range", tz)
		}
		if m[1] == "-" {
			offset = -offset
		}
		return time.FixedZone(tz, offset), nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.InvalidInputf("unknown timezone %q", tz)
	}
	return loc, nil
}

// DayStart returns local midnight of the day containing t.
func DayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// ParseDate resolves a single date keyword or YYYY-MM-DD in loc.
func ParseDate(date string, loc *time.Location, now time.Time) (time.Time, error) {
	switch strings.TrimSpace(date) {
	case "today":
		return DayStart(now, loc), nil
	case "now":
		return now.In(loc), nil
	case "yesterday":
		return DayStart(now, loc).AddDate(0, 0, -1), nil
	case "yesterdaySameTime":
		return now.In(loc).Add(-24 * time.Hour), nil
	}

	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, errors.InvalidInputf("invalid date %q", date)
	}
	return t, nil
}

// ForDate builds the period of the given type containing t.
func ForDate(periodType string, t time.Time, loc *time.Location) (Range, error) {
	start := DayStart(t, loc)

	switch periodType {
	case Day:
		return Range{Period: Day, Start: start, End: start.AddDate(0, 0, 1)}, nil
	case Week:
		offset := (int(start.Weekday()) + 6) % 7
		monday := start.AddDate(0, 0, -offset)
		return Range{Period: Week, Start: monday, End: monday.AddDate(0, 0, 7)}, nil
	case Month:
		first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, loc)
		return Range{Period: Month, Start: first, End: first.AddDate(0, 1, 0)}, nil
	case Year:
		first := time.Date(start.Year(), time.January, 1, 0, 0, 0, 0, loc)
		return Range{Period: Year, Start: first, End: first.AddDate(1, 0, 0)}, nil
	}
	return Range{}, errors.InvalidInputf("unsupported period %q", periodType)
}

// Parse resolves a (period, date) pair as accepted by the reporting API.
func Parse(periodType, date string, loc *time.Location, now time.Time) (Range, error) {
	periodType = strings.TrimSpace(periodType)
	date = strings.TrimSpace(date)
	if date == "" {
		return Range{}, errors.InvalidInputf("date is required")
	}

	if periodType == Span {
		return parseSpan(date, loc, now)
	}

	t, err := ParseDate(date, loc, now)
	if err != nil {
		return Range{}, err
	}
	return ForDate(periodType, t, loc)
}

func parseSpan(date string, loc *time.Location, now time.Time) (Range, error) {
	today := DayStart(now, loc)

	if m := lastNRegexp.FindStringSubmatch(date); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil || n < 1 {
			return Range{}, errors.InvalidInputf("invalid range %q", date)
		}
		end := today.AddDate(0, 0, 1)
		if m[1] == "previous" {
			end = today
		}
		return Range{Period: Span, Start: end.AddDate(0, 0, -n), End: end}, nil
	}

	parts := strings.Split(date, ",")
	if len(parts) != 2 {
		return Range{}, errors.InvalidInputf("range must be start,end: %q", date)
	}
	from, err := ParseDate(parts[0], loc, now)
	if err != nil {
		return Range{}, err
	}
	to, err := ParseDate(parts[1], loc, now)
	if err != nil {
		return Range{}, err
	}
	from, to = DayStart(from, loc), DayStart(to, loc)
	if to.Before(from) {
		return Range{}, errors.InvalidInputf("range end %s before start %s", parts[1], parts[0])
	}
	return Range{Period: Span, Start: from, End: to.AddDate(0, 0, 1)}, nil
}

// MustLoadLocation is LoadLocation for constant inputs in tests and defaults.
func MustLoadLocation(tz string) *time.Location {
	loc, err := LoadLocation(tz)
	if err != nil {
		panic(fmt.Sprintf("period: %v", err))
	}
	return loc
}
