package pricing

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"homestay/internal/app/apperr"
	domainlistings "homestay/internal/domain/listings"
	domainpricing "homestay/internal/domain/pricing"
	"homestay/internal/domain/shared/daterange"
	"homestay/internal/domain/shared/money"
)

type staticRates []domainpricing.DayRate

func (r staticRates) InSpan(context.Context, domainlistings.ListingID, daterange.Span) ([]domainpricing.DayRate, error) {
	return r, nil
}

func (r staticRates) ByPriceTag(context.Context, domainpricing.PriceTagID) ([]domainpricing.DayRate, error) {
	return nil, nil
}

func (r staticRates) Apply(context.Context, domainlistings.ListingID, domainpricing.Materialization) error {
	return nil
}

func (r staticRates) DeleteByPriceTag(context.Context, domainpricing.PriceTagID) error { return nil }

func TestQuoteStayReportsOverflowAsPriceError(t *testing.T) {
	first := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	rates := staticRates{
		{ListingID: "l1", Date: first, PriceTagID: "t1", Price: money.Must(math.MaxInt64, "USD")},
		{ListingID: "l1", Date: first.AddDate(0, 0, 1), PriceTagID: "t1", Price: money.Must(math.MaxInt64, "USD")},
	}
	stay, err := daterange.New(first, first.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("stay: %v", err)
	}

	_, err = QuoteStay(context.Background(), rates, "l1", stay, "USD")
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) || verr.Fields["price"] == "" {
		t.Fatalf("expected a price validation error, got %v", err)
	}
	if apperr.Classify(err) != apperr.KindValidation {
		t.Fatalf("overflow classified as %v", apperr.Classify(err))
	}

	q, err := QuoteStay(context.Background(), rates[:1], "l1", stay, "USD")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Total.Amount != math.MaxInt64 || len(q.UnpricedNights) != 1 {
		t.Fatalf("unexpected quote %+v", q)
	}
}
