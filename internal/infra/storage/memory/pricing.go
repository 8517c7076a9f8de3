package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	domainlistings "homestay/internal/domain/listings"
	domainpricing "homestay/internal/domain/pricing"
	"homestay/internal/domain/shared/daterange"
)

type priceTagRepository struct{ u *Unit }

func (r priceTagRepository) ByID(_ context.Context, id domainpricing.PriceTagID) (*domainpricing.PriceTag, error) {
	tag, ok := r.u.data().priceTags[id]
	if !ok {
		return nil, domainpricing.ErrTagNotFound
	}
	return tag.Clone(), nil
}

func (r priceTagRepository) ByListing(_ context.Context, listing domainlistings.ListingID) ([]*domainpricing.PriceTag, error) {
	out := make([]*domainpricing.PriceTag, 0)
	for _, tag := range r.u.data().priceTags {
		if tag.ListingID == listing {
			out = append(out, tag.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Span.Start.Equal(out[j].Span.Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Span.Start.Before(out[j].Span.Start)
	})
	return out, nil
}

func (r priceTagRepository) Save(_ context.Context, tag *domainpricing.PriceTag) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, ok := r.u.data().listings[tag.ListingID]; !ok {
		return domainlistings.ErrNotFound
	}
	tag.Version++
	r.u.data().priceTags[tag.ID] = tag.Clone()
	return nil
}

func (r priceTagRepository) Delete(_ context.Context, id domainpricing.PriceTagID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, ok := r.u.data().priceTags[id]; !ok {
		return domainpricing.ErrTagNotFound
	}
	delete(r.u.data().priceTags, id)
	return nil
}

// dayRateRepository enforces one rate per (listing, date) through the map key.
type dayRateRepository struct{ u *Unit }

func (r dayRateRepository) InSpan(_ context.Context, listing domainlistings.ListingID, span daterange.Span) ([]domainpricing.DayRate, error) {
	rates := r.u.data().dayRates[listing]
	out := make([]domainpricing.DayRate, 0)
	for d := range span.Days() {
		if rate, ok := rates[d]; ok {
			out = append(out, rate)
		}
	}
	return out, nil
}

func (r dayRateRepository) ByPriceTag(_ context.Context, tag domainpricing.PriceTagID) ([]domainpricing.DayRate, error) {
	out := make([]domainpricing.DayRate, 0)
	for _, rates := range r.u.data().dayRates {
		for _, rate := range rates {
			if rate.PriceTagID == tag {
				out = append(out, rate)
			}
		}
	}
	sortRates(out)
	return out, nil
}

func (r dayRateRepository) Apply(_ context.Context, listing domainlistings.ListingID, m domainpricing.Materialization) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	d := r.u.data()
	rates := d.dayRates[listing]
	if rates == nil {
		rates = make(map[time.Time]domainpricing.DayRate)
		d.dayRates[listing] = rates
	}
	for _, date := range m.Delete {
		key := daterange.Truncate(date)
		if rates[key].PriceTagID == m.Tag {
			delete(rates, key)
		}
	}
	for _, rate := range m.Update {
		key := daterange.Truncate(rate.Date)
		current, ok := rates[key]
		if !ok || current.PriceTagID != rate.PriceTagID {
			return fmt.Errorf("memory: day rate %s changed owner", key.Format(daterange.DateLayout))
		}
		rates[key] = rate
	}
	for _, rate := range m.Create {
		key := daterange.Truncate(rate.Date)
		if _, exists := rates[key]; exists {
			return &domainpricing.OverlapError{ListingID: listing, Dates: []time.Time{key}}
		}
		rate.Date = key
		rate.ListingID = listing
		rates[key] = rate
	}
	return nil
}

func (r dayRateRepository) DeleteByPriceTag(_ context.Context, tag domainpricing.PriceTagID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	for _, rates := range r.u.data().dayRates {
		for date, rate := range rates {
			if rate.PriceTagID == tag {
				delete(rates, date)
			}
		}
	}
	return nil
}

func sortRates(rates []domainpricing.DayRate) {
	sort.Slice(rates, func(i, j int) bool { return rates[i].Date.Before(rates[j].Date) })
}
