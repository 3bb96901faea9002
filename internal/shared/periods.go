package shared

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange indicates a report window whose end precedes its start.
var ErrInvalidRange = errors.New("date range end precedes start")

// DateRange is an inclusive calendar-day window used by period reports.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Validate ensures both bounds are set and ordered.
func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("%w: from and to required", ErrInvalidInput)
	}
	if StartOfDay(r.To, time.UTC).Before(StartOfDay(r.From, time.UTC)) {
		return ErrInvalidRange
	}
	return nil
}

// Start returns midnight in loc of the date From carries.
func (r DateRange) Start(loc *time.Location) time.Time {
	return onDate(r.From, loc)
}

// End returns the last instant in loc of the date To carries.
func (r DateRange) End(loc *time.Location) time.Time {
	return onDate(r.To, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// onDate places t's calendar date, as written and not converted, at midnight in loc.
func onDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndOfDay returns the last nanosecond of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
