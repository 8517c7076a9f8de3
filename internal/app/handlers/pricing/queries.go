package pricing

import (
	"context"
	"errors"
	"time"

	"homestay/internal/app/apperr"
	"homestay/internal/app/dto"
	handlersupport "homestay/internal/app/handlers/support"
	"homestay/internal/app/queries"
	"homestay/internal/app/uow"
	domainlistings "homestay/internal/domain/listings"
	domainpricing "homestay/internal/domain/pricing"
	"homestay/internal/domain/shared/daterange"
	"homestay/internal/domain/shared/money"
)

const (
	listPriceTagsKey = "pricing.tags.list"
	listDayRatesKey  = "pricing.day_rates.list"
	quoteStayKey     = "pricing.quote"

	maxDayRateWindow = 366
)

type ListPriceTagsQuery struct {
	Slug string `validate:"required"`
}

func (ListPriceTagsQuery) Key() string { return listPriceTagsKey }

// ListDayRatesQuery selects rates dated From..To inclusive. Empty bounds
// default to the current and the next month.
type ListDayRatesQuery struct {
	Slug string `validate:"required"`
	From string `json:"from" validate:"omitempty,date"`
	To   string `json:"to" validate:"omitempty,date"`
}

func (ListDayRatesQuery) Key() string { return listDayRatesKey }

type QuoteQuery struct {
	Slug     string `validate:"required"`
	CheckIn  string `json:"check_in" validate:"required,date"`
	CheckOut string `json:"check_out" validate:"required,date"`
}

func (QuoteQuery) Key() string { return quoteStayKey }

type QueryHandlers struct {
	UoWFactory   uow.UoWFactory
	BaseCurrency string
	Now          func() time.Time
}

func (h *QueryHandlers) ListTags() queries.Handler[ListPriceTagsQuery, []dto.PriceTag] {
	return queries.HandlerFunc[ListPriceTagsQuery, []dto.PriceTag](h.listTags)
}

func (h *QueryHandlers) ListDayRates() queries.Handler[ListDayRatesQuery, []dto.DayRate] {
	return queries.HandlerFunc[ListDayRatesQuery, []dto.DayRate](h.listDayRates)
}

func (h *QueryHandlers) Quote() queries.Handler[QuoteQuery, dto.Quote] {
	return queries.HandlerFunc[QuoteQuery, dto.Quote](h.quote)
}

func (h *QueryHandlers) listTags(ctx context.Context, q ListPriceTagsQuery) ([]dto.PriceTag, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().BySlug(execCtx, q.Slug)
	if err != nil {
		return nil, err
	}
	tags, err := unit.PriceTags().ByListing(execCtx, listing.ID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PriceTag, 0, len(tags))
	for _, t := range tags {
		out = append(out, dto.MapPriceTag(t))
	}
	return out, nil
}

func (h *QueryHandlers) listDayRates(ctx context.Context, q ListDayRatesQuery) ([]dto.DayRate, error) {
	span, err := h.window(q.From, q.To)
	if err != nil {
		return nil, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().BySlug(execCtx, q.Slug)
	if err != nil {
		return nil, err
	}
	rates, err := unit.DayRates().InSpan(execCtx, listing.ID, span)
	if err != nil {
		return nil, err
	}
	return dto.MapDayRates(rates), nil
}

func (h *QueryHandlers) quote(ctx context.Context, q QuoteQuery) (dto.Quote, error) {
	stay, err := ParseStay(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Quote{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Quote{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().BySlug(execCtx, q.Slug)
	if err != nil {
		return dto.Quote{}, err
	}
	quote, err := QuoteStay(execCtx, unit.DayRates(), listing.ID, stay, h.BaseCurrency)
	if err != nil {
		return dto.Quote{}, err
	}
	return dto.MapQuote(quote), nil
}

func (h *QueryHandlers) window(from, to string) (daterange.Span, error) {
	verr := &apperr.ValidationError{}
	today := daterange.Truncate(handlersupport.Now(h.Now))
	start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 2, -1)
	if from != "" {
		parsed, err := daterange.ParseDate(from)
		if err != nil {
			verr.Add("from", err.Error())
		}
		start = parsed
	}
	if to != "" {
		parsed, err := daterange.ParseDate(to)
		if err != nil {
			verr.Add("to", err.Error())
		}
		end = parsed
	}
	if err := verr.OrNil(); err != nil {
		return daterange.Span{}, err
	}
	span, err := daterange.NewSpan(start, end)
	if err != nil {
		return daterange.Span{}, apperr.NewValidation("to", err.Error())
	}
	if span.Len() > maxDayRateWindow {
		return daterange.Span{}, apperr.NewValidation("to", "window must not exceed 366 days")
	}
	return span, nil
}

// QuoteStay prices a half-open stay from the listing's day rates.
func QuoteStay(ctx context.Context, rates domainpricing.DayRateRepository, listing domainlistings.ListingID, stay daterange.DateRange, currency string) (domainpricing.Quote, error) {
	nights, err := domainpricing.NightsSpan(stay)
	if err != nil {
		return domainpricing.Quote{}, err
	}
	found, err := rates.InSpan(ctx, listing, nights)
	if err != nil {
		return domainpricing.Quote{}, err
	}
	quote, err := domainpricing.QuoteStay(stay, found, currency)
	if errors.Is(err, money.ErrOverflow) {
		return domainpricing.Quote{}, apperr.NewValidation("price", "stay total exceeds the supported amount")
	}
	return quote, err
}

// ParseStay reads a half-open stay and reports field errors.
func ParseStay(checkIn, checkOut string) (daterange.DateRange, error) {
	verr := &apperr.ValidationError{}
	in, err := daterange.ParseDate(checkIn)
	if err != nil {
		verr.Add("check_in", err.Error())
	}
	out, err := daterange.ParseDate(checkOut)
	if err != nil {
		verr.Add("check_out", err.Error())
	}
	if err := verr.OrNil(); err != nil {
		return daterange.DateRange{}, err
	}
	stay, err := daterange.New(in, out)
	if err != nil {
		return daterange.DateRange{}, apperr.NewValidation("check_out", err.Error())
	}
	return stay, nil
}
