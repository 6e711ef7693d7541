package recurrence

import (
	"errors"
	"time"
)

// MaxOccurrences bounds how many occurrences a single expansion may produce.
const MaxOccurrences = 5000

// ErrInvalidDuration indicates the base event duration is invalid.
var ErrInvalidDuration = errors.New("recurrence: event duration must be positive")

// ErrTooManyOccurrences indicates the cutoff would produce more than the engine limit.
var ErrTooManyOccurrences = errors.New("recurrence: too many occurrences before cutoff")

// Occurrence represents a generated instance of a recurring event.
type Occurrence struct {
	// Sequence is the 1-based position of the occurrence after the base event.
	Sequence int
	Start    time.Time
	End      time.Time
}

// Engine expands a base event into shifted occurrences.
type Engine struct {
	location *time.Location
	limit    int
}

// NewEngine constructs an Engine that performs calendar arithmetic in loc.
// Month clamping and day steps follow the wall clock of loc, so an event at
// 09:00 stays at 09:00 across DST changes. If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc, limit: MaxOccurrences}
}

// Location returns the zone the engine reads calendar dates in.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// WithLimit returns a copy of the engine with a different occurrence limit.
func (e *Engine) WithLimit(limit int) *Engine {
	clone := *e
	if limit > 0 {
		clone.limit = limit
	}
	return &clone
}

// Expand produces the occurrences that follow the base event.
//
// The engine enforces the following semantics:
//   - Occurrence k starts at cadence.Shift(baseStart, k) for k >= 1; the base
//     event itself is never part of the result.
//   - Each occurrence keeps the base duration.
//   - Generation stops at the first start that is not strictly before cutoff.
//   - A baseStart at or after cutoff yields an empty, non-nil slice.
func (e *Engine) Expand(baseStart, baseEnd time.Time, cadence Cadence, cutoff time.Time) ([]Occurrence, error) {
	if !cadence.Valid() {
		return nil, ErrUnsupportedCadence
	}
	if !baseEnd.After(baseStart) {
		return nil, ErrInvalidDuration
	}

	loc := e.Location()
	limit := e.limit
	if limit <= 0 {
		limit = MaxOccurrences
	}

	anchor := baseStart.In(loc)
	duration := baseEnd.Sub(baseStart)

	occurrences := make([]Occurrence, 0)
	for k := 1; ; k++ {
		start := cadence.Shift(anchor, k)
		if !start.Before(cutoff) {
			break
		}
		if len(occurrences) == limit {
			return nil, ErrTooManyOccurrences
		}
		occurrences = append(occurrences, Occurrence{
			Sequence: k,
			Start:    start,
			End:      start.Add(duration),
		})
	}

	return occurrences, nil
}

// Expand runs the default UTC engine.
func Expand(baseStart, baseEnd time.Time, cadence Cadence, cutoff time.Time) ([]Occurrence, error) {
	return NewEngine(nil).Expand(baseStart, baseEnd, cadence, cutoff)
}
