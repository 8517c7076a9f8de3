package availability

import (
	"context"
	"fmt"
	"time"

	"homestay/internal/app/apperr"
	"homestay/internal/app/dto"
	handlersupport "homestay/internal/app/handlers/support"
	"homestay/internal/app/queries"
	"homestay/internal/app/uow"
	domainavailability "homestay/internal/domain/availability"
	domainpricing "homestay/internal/domain/pricing"
	"homestay/internal/domain/shared/daterange"
	"homestay/internal/domain/shared/money"
)

const (
	getCalendarKey = "availability.calendar"

	DefaultMonths = 2
	MaxMonths     = 12
)

// GetCalendarQuery asks for Months consecutive months starting at Month
// (YYYYMM). An empty Month means the current one.
type GetCalendarQuery struct {
	Slug   string `json:"slug" validate:"required"`
	Month  string `json:"month" validate:"omitempty,len=6,numeric"`
	Months int    `json:"months" validate:"min=0,max=12"`
}

func (GetCalendarQuery) Key() string { return getCalendarKey }

func (q GetCalendarQuery) CacheKey() string {
	if q.Month == "" {
		// relative to today; not stable enough to cache
		return ""
	}
	return fmt.Sprintf("%s:%s:%d", q.Slug, q.Month, q.months())
}

func (q GetCalendarQuery) CacheTags() []string { return []string{handlersupport.ListingTag(q.Slug)} }

func (GetCalendarQuery) ResultPrototype() any { return &dto.Calendar{} }

func (q GetCalendarQuery) months() int {
	if q.Months <= 0 {
		return DefaultMonths
	}
	return q.Months
}

type GetCalendarHandler struct {
	UoWFactory uow.UoWFactory
	Now        func() time.Time
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	window, err := h.window(q)
	if err != nil {
		return dto.Calendar{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Calendar{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().BySlug(execCtx, q.Slug)
	if err != nil {
		return dto.Calendar{}, err
	}
	booked, err := unit.Reservations().Overlapping(execCtx, listing.ID, window)
	if err != nil {
		return dto.Calendar{}, err
	}
	nights, err := domainpricing.NightsSpan(window)
	if err != nil {
		return dto.Calendar{}, err
	}
	rates, err := unit.DayRates().InSpan(execCtx, listing.ID, nights)
	if err != nil {
		return dto.Calendar{}, err
	}
	prices := make(map[string]money.Money, len(rates))
	for _, r := range rates {
		prices[r.Date.Format(daterange.DateLayout)] = r.Price
	}
	cal := domainavailability.Compute(listing.ID, window, booked)
	return dto.MapCalendar(cal, prices), nil
}

func (h *GetCalendarHandler) window(q GetCalendarQuery) (daterange.DateRange, error) {
	if q.Months > MaxMonths {
		return daterange.DateRange{}, apperr.NewValidation("months", fmt.Sprintf("must be at most %d", MaxMonths))
	}
	today := handlersupport.Now(h.Now)
	year, month := today.Year(), today.Month()
	if q.Month != "" {
		var err error
		year, month, err = daterange.ParseMonth(q.Month)
		if err != nil {
			return daterange.DateRange{}, apperr.NewValidation("month", err.Error())
		}
	}
	return domainavailability.Months(year, month, q.months()), nil
}

var _ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
