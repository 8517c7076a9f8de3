package dto

import (
	"time"

	domainpricing "homestay/internal/domain/pricing"
	"homestay/internal/domain/shared/daterange"
	"homestay/internal/domain/shared/money"
)

type PriceTag struct {
	ID          string      `json:"id"`
	StartDate   string      `json:"start_date"`
	EndDate     string      `json:"end_date"`
	Price       money.Money `json:"price"`
	Description string      `json:"description,omitempty"`
	Nights      int         `json:"nights"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func MapPriceTag(t *domainpricing.PriceTag) PriceTag {
	return PriceTag{
		ID:          string(t.ID),
		StartDate:   t.Span.Start.Format(daterange.DateLayout),
		EndDate:     t.Span.End.Format(daterange.DateLayout),
		Price:       t.Price,
		Description: t.Description,
		Nights:      t.Span.Len(),
		UpdatedAt:   t.UpdatedAt,
	}
}

// SavedPriceTag reports the tag and how many day rates were written.
type SavedPriceTag struct {
	PriceTag PriceTag `json:"price_tag"`
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Removed  int      `json:"removed"`
}

type DayRate struct {
	Date       string      `json:"date"`
	Price      money.Money `json:"price"`
	PriceTagID string      `json:"price_tag_id"`
}

func MapDayRates(rates []domainpricing.DayRate) []DayRate {
	out := make([]DayRate, 0, len(rates))
	for _, r := range rates {
		out = append(out, DayRate{
			Date:       r.Date.Format(daterange.DateLayout),
			Price:      r.Price,
			PriceTagID: string(r.PriceTagID),
		})
	}
	return out
}

type Quote struct {
	CheckIn        string      `json:"check_in"`
	CheckOut       string      `json:"check_out"`
	Nights         int         `json:"nights"`
	Total          money.Money `json:"total"`
	Rates          []DayRate   `json:"rates"`
	UnpricedNights []string    `json:"unpriced_nights"`
}

func MapQuote(q domainpricing.Quote) Quote {
	return Quote{
		CheckIn:        q.Stay.CheckIn.Format(daterange.DateLayout),
		CheckOut:       q.Stay.CheckOut.Format(daterange.DateLayout),
		Nights:         q.Nights,
		Total:          q.Total,
		Rates:          MapDayRates(q.Rates),
		UnpricedNights: formatDates(q.UnpricedNights),
	}
}

func formatDates(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(daterange.DateLayout))
	}
	return out
}
