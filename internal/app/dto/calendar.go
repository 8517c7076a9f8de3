package dto

import (
	"homestay/internal/domain/availability"
	"homestay/internal/domain/shared/daterange"
	"homestay/internal/domain/shared/money"
)

type CalendarDay struct {
	Date      string       `json:"date"`
	Available bool         `json:"available"`
	Price     *money.Money `json:"price,omitempty"`
}

type CalendarMonth struct {
	Month string        `json:"month"`
	Days  []CalendarDay `json:"days"`
}

type Calendar struct {
	ListingID string          `json:"listing_id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Months    []CalendarMonth `json:"months"`
}

// MapCalendar groups days by month. prices is optional decoration keyed by
// YYYY-MM-DD.
func MapCalendar(cal availability.Calendar, prices map[string]money.Money) Calendar {
	out := Calendar{
		ListingID: string(cal.ListingID),
		From:      cal.Window.CheckIn.Format(daterange.DateLayout),
		To:        cal.Window.CheckOut.Format(daterange.DateLayout),
		Months:    []CalendarMonth{},
	}
	for _, d := range cal.Days() {
		key := d.Date.Format(daterange.DateLayout)
		month := d.Date.Format("2006-01")
		if n := len(out.Months); n == 0 || out.Months[n-1].Month != month {
			out.Months = append(out.Months, CalendarMonth{Month: month})
		}
		day := CalendarDay{Date: key, Available: d.Available}
		if p, ok := prices[key]; ok {
			price := p
			day.Price = &price
		}
		last := &out.Months[len(out.Months)-1]
		last.Days = append(last.Days, day)
	}
	return out
}
