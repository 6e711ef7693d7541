package recurrence

import (
	"errors"
	"strings"
	"time"
)

// Cadence represents supported recurrence intervals.
type Cadence string

const (
	// CadenceDaily repeats every calendar day.
	CadenceDaily Cadence = "daily"
	// CadenceWeekly repeats every seven calendar days.
	CadenceWeekly Cadence = "weekly"
	// CadenceFortnightly repeats every fourteen calendar days.
	CadenceFortnightly Cadence = "fortnightly"
	// CadenceMonthly repeats on the same day of each calendar month, clamped to the month length.
	CadenceMonthly Cadence = "monthly"
	// CadenceYearly repeats on the same calendar date each year, clamped for February 29.
	CadenceYearly Cadence = "yearly"
)

// ErrUnsupportedCadence indicates the cadence is not one of the supported intervals.
var ErrUnsupportedCadence = errors.New("recurrence: unsupported cadence")

// Cadences lists every supported cadence in ascending interval order.
func Cadences() []Cadence {
	return []Cadence{CadenceDaily, CadenceWeekly, CadenceFortnightly, CadenceMonthly, CadenceYearly}
}

// ParseCadence converts user input into a Cadence.
func ParseCadence(value string) (Cadence, error) {
	c := Cadence(strings.ToLower(strings.TrimSpace(value)))
	if !c.Valid() {
		return "", ErrUnsupportedCadence
	}
	return c, nil
}

// Valid reports whether c is a supported cadence.
func (c Cadence) Valid() bool {
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceFortnightly, CadenceMonthly, CadenceYearly:
		return true
	default:
		return false
	}
}

func (c Cadence) String() string {
	return string(c)
}

// Shift returns the start of the k-th occurrence after anchor. Every shift is
// computed from the anchor so month clamping never accumulates.
func (c Cadence) Shift(anchor time.Time, k int) time.Time {
	switch c {
	case CadenceDaily:
		return anchor.AddDate(0, 0, k)
	case CadenceWeekly:
		return anchor.AddDate(0, 0, 7*k)
	case CadenceFortnightly:
		return anchor.AddDate(0, 0, 14*k)
	case CadenceMonthly:
		return addMonthsClamped(anchor, k)
	case CadenceYearly:
		return addMonthsClamped(anchor, 12*k)
	default:
		return anchor
	}
}

// addMonthsClamped adds calendar months, pinning the day to the last day of
// the target month when the anchor day does not exist there.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
