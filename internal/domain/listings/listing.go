package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"homestay/internal/domain/shared/events"
)

var (
	ErrNotFound         = errors.New("listings: listing not found")
	ErrSlugTaken        = errors.New("listings: slug already in use")
	ErrTitleRequired    = errors.New("listings: title is required")
	ErrTitleTooLong     = errors.New("listings: title must be at most 64 characters")
	ErrGuestsLimit      = errors.New("listings: max guests must be at least 1")
	ErrBedrooms         = errors.New("listings: bedrooms must be at least 1")
	ErrBeds             = errors.New("listings: beds must be at least 1")
	ErrBathrooms        = errors.New("listings: bathrooms must be non-negative")
	ErrInvalidTimeOfDay = errors.New("listings: time must be formatted as HH:MM")
)

const (
	MaxTitleLength  = 64
	timeOfDayLayout = "15:04"
)

type ListingID string

type Listing struct {
	ID             ListingID
	Slug           string
	ObjectTypeID   string
	Title          string
	Description    string
	MaxGuests      int
	Bedrooms       int
	Beds           int
	Bathrooms      int
	Amenities      []string
	HouseRules     []string
	CheckInTime    string
	CheckOutTime   string
	InstantBooking bool
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	events.EventRecorder
}

type ListingRepository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	BySlug(ctx context.Context, slug string) (*Listing, error)
	Search(ctx context.Context, params SearchParams) (SearchResult, error)
	Save(ctx context.Context, listing *Listing) error
	// Delete removes the listing together with everything it owns.
	Delete(ctx context.Context, id ListingID) error
}

// Details holds the editable attributes shared by create and update.
type Details struct {
	ObjectTypeID   string
	Title          string
	Description    string
	MaxGuests      int
	Bedrooms       int
	Beds           int
	Bathrooms      int
	Amenities      []string
	HouseRules     []string
	CheckInTime    string
	CheckOutTime   string
	InstantBooking bool
}

func (d Details) validate() error {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return ErrTitleRequired
	}
	if len([]rune(title)) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if d.MaxGuests < 1 {
		return ErrGuestsLimit
	}
	if d.Bedrooms < 1 {
		return ErrBedrooms
	}
	if d.Beds < 1 {
		return ErrBeds
	}
	if d.Bathrooms < 0 {
		return ErrBathrooms
	}
	for _, raw := range []string{d.CheckInTime, d.CheckOutTime} {
		if raw == "" {
			continue
		}
		if _, err := time.Parse(timeOfDayLayout, raw); err != nil {
			return ErrInvalidTimeOfDay
		}
	}
	return nil
}

type CreateListingParams struct {
	ID      ListingID
	Slug    string
	Details Details
	Now     time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("listings: id is required")
	}
	if err := params.Details.validate(); err != nil {
		return nil, err
	}
	s := params.Slug
	if s == "" {
		s = BaseSlug(params.Details.Title)
	}
	listing := &Listing{
		ID:        params.ID,
		Slug:      s,
		CreatedAt: params.Now.UTC(),
	}
	listing.apply(params.Details, params.Now)
	listing.Record(ListingCreatedEvent{ListingID: listing.ID, Slug: listing.Slug, At: listing.CreatedAt})
	return listing, nil
}

// Update replaces the editable attributes. The slug is kept stable so that
// existing links continue to resolve.
func (l *Listing) Update(details Details, now time.Time) error {
	if err := details.validate(); err != nil {
		return err
	}
	l.apply(details, now)
	l.Record(ListingUpdatedEvent{ListingID: l.ID, At: l.UpdatedAt})
	return nil
}

func (l *Listing) apply(d Details, now time.Time) {
	l.ObjectTypeID = strings.TrimSpace(d.ObjectTypeID)
	l.Title = strings.TrimSpace(d.Title)
	l.Description = strings.TrimSpace(d.Description)
	l.MaxGuests = d.MaxGuests
	l.Bedrooms = d.Bedrooms
	l.Beds = d.Beds
	l.Bathrooms = d.Bathrooms
	l.Amenities = dedupe(d.Amenities)
	l.HouseRules = dedupe(d.HouseRules)
	l.CheckInTime = d.CheckInTime
	l.CheckOutTime = d.CheckOutTime
	l.InstantBooking = d.InstantBooking
	l.UpdatedAt = now.UTC()
}

// Clone returns a copy safe to mutate independently of the receiver.
func (l *Listing) Clone() *Listing {
	c := *l
	c.Amenities = append([]string(nil), l.Amenities...)
	c.HouseRules = append([]string(nil), l.HouseRules...)
	c.EventRecorder = events.EventRecorder{}
	return &c
}

// BaseSlug derives the URL-safe identifier from a title.
func BaseSlug(title string) string {
	s := slug.Make(title)
	if s == "" {
		s = "listing"
	}
	return s
}

// AlternativeSlug appends a short random suffix to a taken slug.
func AlternativeSlug(base string) string {
	return base + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// MarkDeleted records the removal of the listing.
func (l *Listing) MarkDeleted(now time.Time) {
	l.Record(ListingDeletedEvent{ListingID: l.ID, Slug: l.Slug, At: now.UTC()})
}
