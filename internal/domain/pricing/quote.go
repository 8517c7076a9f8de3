package pricing

import (
	"time"

	"homestay/internal/domain/shared/daterange"
	"homestay/internal/domain/shared/money"
)

// Quote is the price of a stay computed from day rates. Nights without a rate
// are listed in UnpricedNights and contribute nothing to Total.
type Quote struct {
	Stay           daterange.DateRange
	Nights         int
	Total          money.Money
	Rates          []DayRate
	UnpricedNights []time.Time
}

func (q Quote) FullyPriced() bool { return len(q.UnpricedNights) == 0 }

// QuoteStay sums the rates of every night in the half-open stay. currency is
// used when no night is priced.
func QuoteStay(stay daterange.DateRange, rates []DayRate, currency string) (Quote, error) {
	if err := stay.Validate(); err != nil {
		return Quote{}, err
	}
	byDate := make(map[time.Time]DayRate, len(rates))
	for _, r := range rates {
		byDate[daterange.Truncate(r.Date)] = r
	}
	total := money.Zero(currency)
	if len(rates) > 0 {
		total = money.Zero(rates[0].Price.Currency)
	}
	q := Quote{Stay: stay}
	for night := range stay.Days() {
		q.Nights++
		rate, ok := byDate[night]
		if !ok {
			q.UnpricedNights = append(q.UnpricedNights, night)
			continue
		}
		sum, err := total.Add(rate.Price)
		if err != nil {
			return Quote{}, err
		}
		total = sum
		q.Rates = append(q.Rates, rate)
	}
	q.Total = total
	return q, nil
}

// NightsSpan converts a half-open stay into the inclusive span of nights.
func NightsSpan(stay daterange.DateRange) (daterange.Span, error) {
	if err := stay.Validate(); err != nil {
		return daterange.Span{}, err
	}
	return daterange.NewSpan(stay.CheckIn, stay.CheckOut.AddDate(0, 0, -1))
}
