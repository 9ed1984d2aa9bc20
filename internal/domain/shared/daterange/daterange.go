package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: end must be after start")
	ErrStartMissing = errors.New("daterange: start is required")
)

const (
	day        = 24 * time.Hour
	windowForm = "2006-01-02"
)

// DateRange is a half-open interval [Start, End). A zero End marks a
// single-date range such as a tour departure.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// New builds a closed range and requires End to be strictly after Start.
func New(start, end time.Time) (DateRange, error) {
	dr := DateRange{Start: start.UTC(), End: end.UTC()}
	if start.IsZero() {
		return DateRange{}, ErrStartMissing
	}
	if end.IsZero() || !dr.End.After(dr.Start) {
		return DateRange{}, ErrInvalidRange
	}
	return dr, nil
}

// Single builds a range with only a start date.
func Single(start time.Time) (DateRange, error) {
	if start.IsZero() {
		return DateRange{}, ErrStartMissing
	}
	return DateRange{Start: start.UTC()}, nil
}

func (dr DateRange) Open() bool {
	return dr.End.IsZero()
}

// Days returns the number of started days in the range, rounding partial days up.
func (dr DateRange) Days() int {
	if dr.Open() || !dr.End.After(dr.Start) {
		return 0
	}
	span := dr.End.Sub(dr.Start)
	days := span / day
	if span%day != 0 {
		days++
	}
	return int(days)
}

// Overlaps reports whether two ranges share any instant. Open ranges occupy
// the calendar day of their start.
func (dr DateRange) Overlaps(other DateRange) bool {
	a, b := dr.closed(), other.closed()
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Window is the UTC calendar day of Start, used to bucket tour slots.
func (dr DateRange) Window() string {
	return dr.Start.UTC().Format(windowForm)
}

func (dr DateRange) closed() DateRange {
	if !dr.Open() {
		return dr
	}
	start := dr.Start.UTC().Truncate(day)
	return DateRange{Start: start, End: start.Add(day)}
}
