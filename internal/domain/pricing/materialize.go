package pricing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"homestay/internal/domain/listings"
	"homestay/internal/domain/shared/daterange"
)

// ErrOverlap marks an attempt to cover a date already priced by another tag.
var ErrOverlap = errors.New("pricing: overlapping date range")

// OverlapError lists every date of a tag's span owned by a different tag.
type OverlapError struct {
	ListingID listings.ListingID
	Dates     []time.Time
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%s: there are day rates for dates %s", ErrOverlap, strings.Join(e.DateStrings(), ", "))
}

func (e *OverlapError) Is(target error) bool { return target == ErrOverlap }

func (e *OverlapError) DateStrings() []string {
	out := make([]string, 0, len(e.Dates))
	for _, d := range e.Dates {
		out = append(out, d.Format(daterange.DateLayout))
	}
	return out
}

// Materialization is the set of day rate writes needed to bring the table in
// line with one tag.
type Materialization struct {
	Tag    PriceTagID
	Create []DayRate
	Update []DayRate
	// Delete holds dates Tag owned before a revision shrank its span. Rates
	// of other tags on those dates are never removed.
	Delete []time.Time
}

func (m Materialization) Empty() bool {
	return len(m.Create) == 0 && len(m.Update) == 0 && len(m.Delete) == 0
}

// Plan expands a tag into day rates against the current rates of its listing.
// existing must contain every rate dated within the tag's span and every rate
// the tag owns. No write is described unless the whole span is free of rates
// owned by other tags.
func Plan(tag *PriceTag, existing []DayRate) (Materialization, error) {
	if tag.Price.IsNegative() {
		return Materialization{}, ErrNegativePrice
	}
	byDate := make(map[time.Time]DayRate, len(existing))
	for _, rate := range existing {
		if rate.ListingID != tag.ListingID {
			continue
		}
		byDate[daterange.Truncate(rate.Date)] = rate
	}

	var (
		plan      Materialization
		conflicts []time.Time
	)
	plan.Tag = tag.ID
	for d := range tag.Span.Days() {
		rate, ok := byDate[d]
		switch {
		case !ok:
			plan.Create = append(plan.Create, DayRate{
				ListingID:  tag.ListingID,
				Date:       d,
				PriceTagID: tag.ID,
				Price:      tag.Price,
			})
		case rate.PriceTagID == tag.ID:
			if !rate.Price.Equal(tag.Price) {
				rate.Price = tag.Price
				plan.Update = append(plan.Update, rate)
			}
		default:
			conflicts = append(conflicts, d)
		}
	}
	if len(conflicts) > 0 {
		return Materialization{}, &OverlapError{ListingID: tag.ListingID, Dates: conflicts}
	}

	for d, rate := range byDate {
		if rate.PriceTagID == tag.ID && !tag.Span.Contains(d) {
			plan.Delete = append(plan.Delete, d)
		}
	}
	slices.SortFunc(plan.Delete, time.Time.Compare)
	return plan, nil
}

// Materializer keeps the day rate table consistent with price tags. It must
// run inside the unit of work that persists the tag.
type Materializer struct {
	Rates DayRateRepository
}

// Prepare loads the relevant rates and plans the expansion without writing.
func (m Materializer) Prepare(ctx context.Context, tag *PriceTag) (Materialization, error) {
	if m.Rates == nil {
		return Materialization{}, errors.New("pricing: day rate repository missing")
	}
	inSpan, err := m.Rates.InSpan(ctx, tag.ListingID, tag.Span)
	if err != nil {
		return Materialization{}, err
	}
	owned, err := m.Rates.ByPriceTag(ctx, tag.ID)
	if err != nil {
		return Materialization{}, err
	}
	return Plan(tag, append(inSpan, owned...))
}

func (m Materializer) Apply(ctx context.Context, tag *PriceTag, plan Materialization) error {
	if plan.Empty() {
		return nil
	}
	return m.Rates.Apply(ctx, tag.ListingID, plan)
}

// Materialize plans and applies in one step.
func (m Materializer) Materialize(ctx context.Context, tag *PriceTag) (Materialization, error) {
	plan, err := m.Prepare(ctx, tag)
	if err != nil {
		return Materialization{}, err
	}
	if err := m.Apply(ctx, tag, plan); err != nil {
		return Materialization{}, err
	}
	return plan, nil
}
