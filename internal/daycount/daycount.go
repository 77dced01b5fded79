// Package daycount represents calendar time as a count of days since the
// Unix epoch (1970-01-01 UTC). Whole days identify a calendar date; the
// fractional part carries the time of day. All stored timestamps and due
// dates use this representation.
package daycount

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// Date is a day-granularity timestamp: fractional days since the Unix epoch.
type Date float64

const secondsPerDay = 24 * 60 * 60

var isoRe = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`)

// Now returns the current moment as a Date.
func Now() Date {
	return FromTime(time.Now())
}

// Today returns the current date truncated to a whole day.
func Today() Date {
	return Now().Floor()
}

// FromTime converts a time.Time to a Date.
func FromTime(t time.Time) Date {
	return Date(float64(t.UnixMilli()) / (1000 * secondsPerDay))
}

// Time converts a Date back to a time.Time in UTC.
func (d Date) Time() time.Time {
	return time.UnixMilli(int64(float64(d) * 1000 * secondsPerDay)).UTC()
}

// Floor truncates a Date to the start of its day.
func (d Date) Floor() Date {
	return Date(math.Floor(float64(d)))
}

// Add returns the Date shifted by n days.
func (d Date) Add(days float64) Date {
	return d + Date(days)
}

// IsZero reports whether the Date is unset.
func (d Date) IsZero() bool {
	return d == 0
}

// String formats the Date as an ISO calendar date (YYYY-MM-DD).
func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

// MarshalJSON renders the Date as an ISO calendar string, the only date
// format that crosses the module boundary.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// Parse interprets a boundary date value relative to today. Two forms are
// accepted: an ISO calendar date ("1999-06-14") and a signed integer day
// offset ("-7", "+30", "0") counted from today.
func Parse(s string, today Date) (Date, error) {
	if isoRe.MatchString(s) {
		t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
		if err != nil {
			return 0, fmt.Errorf("parse date %q: %w", s, err)
		}
		return FromTime(t), nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return today.Floor().Add(float64(n)), nil
	}
	return 0, fmt.Errorf("unparseable date %q: want YYYY-MM-DD or a signed day offset", s)
}
