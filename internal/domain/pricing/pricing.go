package pricing

import (
	"context"
	"errors"
	"strings"
	"time"

	"homestay/internal/domain/listings"
	"homestay/internal/domain/shared/daterange"
	"homestay/internal/domain/shared/events"
	"homestay/internal/domain/shared/money"
)

var (
	ErrNegativePrice      = errors.New("pricing: price must be non-negative")
	ErrTagNotFound        = errors.New("pricing: price tag not found")
	ErrDescriptionTooLong = errors.New("pricing: description must be at most 512 characters")
	ErrTagListingMismatch = errors.New("pricing: price tag belongs to another listing")
)

const MaxDescriptionLength = 512

type PriceTagID string

// PriceTag is a declared price for an inclusive span of dates on one listing.
type PriceTag struct {
	ID          PriceTagID
	ListingID   listings.ListingID
	Span        daterange.Span
	Price       money.Money
	Description string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	events.EventRecorder
}

// DayRate is the price of a single calendar date, copied from the tag that owns it.
type DayRate struct {
	ListingID  listings.ListingID
	Date       time.Time
	PriceTagID PriceTagID
	Price      money.Money
}

type PriceTagRepository interface {
	ByID(ctx context.Context, id PriceTagID) (*PriceTag, error)
	// ByListing returns tags ordered by start date.
	ByListing(ctx context.Context, listing listings.ListingID) ([]*PriceTag, error)
	Save(ctx context.Context, tag *PriceTag) error
	Delete(ctx context.Context, id PriceTagID) error
}

type DayRateRepository interface {
	// InSpan returns the listing's rates dated within span, ordered by date.
	InSpan(ctx context.Context, listing listings.ListingID, span daterange.Span) ([]DayRate, error)
	ByPriceTag(ctx context.Context, tag PriceTagID) ([]DayRate, error)
	// Apply writes a materialization. Creating a rate for an occupied
	// (listing, date) must fail with ErrOverlap.
	Apply(ctx context.Context, listing listings.ListingID, m Materialization) error
	DeleteByPriceTag(ctx context.Context, tag PriceTagID) error
}

type NewPriceTagParams struct {
	ID          PriceTagID
	ListingID   listings.ListingID
	Start       time.Time
	End         time.Time
	Price       money.Money
	Description string
	Now         time.Time
}

func NewPriceTag(p NewPriceTagParams) (*PriceTag, error) {
	if strings.TrimSpace(string(p.ID)) == "" {
		return nil, errors.New("pricing: id is required")
	}
	if strings.TrimSpace(string(p.ListingID)) == "" {
		return nil, errors.New("pricing: listing is required")
	}
	span, err := validate(p.Start, p.End, p.Price, p.Description)
	if err != nil {
		return nil, err
	}
	now := p.Now.UTC()
	return &PriceTag{
		ID:          p.ID,
		ListingID:   p.ListingID,
		Span:        span,
		Price:       p.Price,
		Description: strings.TrimSpace(p.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Revise changes the span, price and description of an existing tag.
func (t *PriceTag) Revise(start, end time.Time, price money.Money, description string, now time.Time) error {
	span, err := validate(start, end, price, description)
	if err != nil {
		return err
	}
	t.Span = span
	t.Price = price
	t.Description = strings.TrimSpace(description)
	t.UpdatedAt = now.UTC()
	return nil
}

// MarkSaved records the outcome of a materialization pass.
func (t *PriceTag) MarkSaved(m Materialization, created bool) {
	t.Record(PriceTagSavedEvent{
		ListingID:  t.ListingID,
		PriceTagID: t.ID,
		Start:      t.Span.Start,
		End:        t.Span.End,
		Price:      t.Price,
		Created:    created,
		Inserted:   len(m.Create),
		Updated:    len(m.Update),
		Removed:    len(m.Delete),
		At:         t.UpdatedAt,
	})
}

func (t *PriceTag) MarkDeleted(now time.Time) {
	t.Record(PriceTagDeletedEvent{ListingID: t.ListingID, PriceTagID: t.ID, At: now.UTC()})
}

func (t *PriceTag) Clone() *PriceTag {
	c := *t
	c.EventRecorder = events.EventRecorder{}
	return &c
}

func validate(start, end time.Time, price money.Money, description string) (daterange.Span, error) {
	span, err := daterange.NewSpan(start, end)
	if err != nil {
		return daterange.Span{}, err
	}
	if price.IsNegative() {
		return daterange.Span{}, ErrNegativePrice
	}
	if price.Currency == "" {
		return daterange.Span{}, money.ErrInvalidCurrency
	}
	if len([]rune(strings.TrimSpace(description))) > MaxDescriptionLength {
		return daterange.Span{}, ErrDescriptionTooLong
	}
	return span, nil
}
