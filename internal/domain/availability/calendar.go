package availability

import (
	"time"

	"homestay/internal/domain/listings"
	"homestay/internal/domain/reservations"
	"homestay/internal/domain/shared/daterange"
)

// Day is the state of one calendar date.
type Day struct {
	Date      time.Time
	Available bool
}

// Calendar maps every date of a window to its availability.
type Calendar struct {
	ListingID listings.ListingID
	Window    daterange.DateRange
	days      map[time.Time]bool
}

// Compute marks a date unavailable when an active reservation's half-open
// stay contains it. Day rates play no part in availability.
func Compute(listing listings.ListingID, window daterange.DateRange, booked []*reservations.Reservation) Calendar {
	c := Calendar{ListingID: listing, Window: window, days: make(map[time.Time]bool)}
	for d := range window.Days() {
		c.days[d] = true
	}
	for _, r := range booked {
		if r == nil || !r.Active() || r.ListingID != listing {
			continue
		}
		for d := range r.Stay.Days() {
			if _, ok := c.days[d]; ok {
				c.days[d] = false
			}
		}
	}
	return c
}

// Available reports the flag for a date; dates outside the window report false.
func (c Calendar) Available(date time.Time) bool {
	return c.days[daterange.Truncate(date)]
}

func (c Calendar) Len() int { return len(c.days) }

// Days returns the window's entries in date order.
func (c Calendar) Days() []Day {
	out := make([]Day, 0, len(c.days))
	for d := range c.Window.Days() {
		out = append(out, Day{Date: d, Available: c.days[d]})
	}
	return out
}

// Months returns the window covering count consecutive months starting at
// the given one.
func Months(year int, month time.Month, count int) daterange.DateRange {
	if count < 1 {
		count = 1
	}
	first := daterange.MonthWindow(year, month)
	return daterange.DateRange{CheckIn: first.CheckIn, CheckOut: first.CheckIn.AddDate(0, count, 0)}
}
