package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the canonical wire format for due dates.
const TimeLayout = "2006-01-02 15:04:05"

const dateLayout = "2006-01-02"

var ErrBadTimestamp = errors.New("invalid timestamp")

// WallTime is a calendar timestamp with no attached zone. A record's due
// date is stored as a WallTime and resolved against the active timezone at
// read time, so switching the timezone re-judges which records are due
// without touching any stored value.
type WallTime struct {
	t time.Time // carrier; always UTC, the zone is meaningless here
}

// ParseWall parses the canonical "YYYY-MM-DD HH:MM:SS" form. A date-only
// "YYYY-MM-DD" is also accepted and means midnight. Anything else — wrong
// separators, missing zero padding, trailing characters — is rejected.
func ParseWall(s string) (WallTime, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return WallTime{t}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return WallTime{t}, nil
	}
	return WallTime{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

// WallOf captures the wall-clock reading of t in its own location.
func WallOf(t time.Time) WallTime {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return WallTime{time.Date(y, mo, d, h, mi, s, 0, time.UTC)}
}

// Resolve pins the wall-clock reading to loc, producing an absolute instant.
func (w WallTime) Resolve(loc *time.Location) time.Time {
	y, mo, d := w.t.Date()
	h, mi, s := w.t.Clock()
	return time.Date(y, mo, d, h, mi, s, 0, loc)
}

// String renders the canonical form.
func (w WallTime) String() string {
	return w.t.Format(TimeLayout)
}

func (w WallTime) IsZero() bool {
	return w.t.IsZero()
}

func (w WallTime) Equal(other WallTime) bool {
	return w.t.Equal(other.t)
}

// AddMonths shifts the calendar month, clamping the day-of-month to the last
// valid day of the target month (Jan 31 + 1 month = Feb 28/29, never Mar 3).
func (w WallTime) AddMonths(n int) WallTime {
	y, mo, d := w.t.Date()
	h, mi, s := w.t.Clock()

	m := int(mo) - 1 + n
	y += m / 12
	m %= 12
	if m < 0 {
		m += 12
		y--
	}
	month := time.Month(m + 1)
	if last := daysIn(y, month); d > last {
		d = last
	}
	return WallTime{time.Date(y, month, d, h, mi, s, 0, time.UTC)}
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
