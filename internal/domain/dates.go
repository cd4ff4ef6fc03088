package domain

import (
	"time"

	"github.com/stayware/bookingcore/internal/pkg/errors"
)

// DayFormat is the canonical calendar-day encoding used in storage and APIs.
const DayFormat = "2006-01-02"

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StayRange is a half-open [CheckIn, CheckOut) range of calendar days.
// A guest occupying the range consumes inventory for every night from
// check-in up to, but not including, check-out.
type StayRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// NewStayRange normalizes both endpoints to calendar days and validates
// that the range covers at least one night.
func NewStayRange(checkIn, checkOut time.Time) (StayRange, error) {
	r := StayRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if !r.CheckOut.After(r.CheckIn) {
		return StayRange{}, errors.InvalidDateRange("check-out must be after check-in")
	}
	return r, nil
}

// Nights returns every occupied calendar day in ascending order.
// Ascending order doubles as the deterministic lock order for multi-day
// ledger mutations.
func (r StayRange) Nights() []time.Time {
	var nights []time.Time
	for d := r.CheckIn; d.Before(r.CheckOut); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d)
	}
	return nights
}

// NightCount returns the number of nights in the range.
func (r StayRange) NightCount() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}

// StartsBefore reports whether check-in falls before the calendar day of now.
func (r StayRange) StartsBefore(now time.Time) bool {
	return r.CheckIn.Before(Day(now))
}

// Overlaps reports whether two ranges share at least one night.
func (r StayRange) Overlaps(other StayRange) bool {
	return r.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(r.CheckOut)
}
