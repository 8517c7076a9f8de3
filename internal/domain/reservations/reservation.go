package reservations

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
	ErrNotFound          = errors.New("reservations: reservation not found")
	ErrInvalidTransition = errors.New("reservations: invalid status transition")
	ErrOverlappingStay   = errors.New("reservations: stay overlaps an active reservation")
	ErrUserRequired      = errors.New("reservations: user is required")
	ErrCommentTooLong    = errors.New("reservations: comment must be at most 1024 characters")
)

const MaxCommentLength = 1024

type ReservationID string

type Status string

const (
	StatusNew       Status = "NEW"
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusCancelled Status = "CANCELLED"
)

type Reservation struct {
	ID             ReservationID
	ListingID      listings.ListingID
	UserID         string
	Stay           daterange.DateRange
	Comment        string
	Status         Status
	Cost           money.Money
	UnpricedNights []time.Time
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ReservationID) (*Reservation, error)
	// ByListing returns reservations ordered by check-in.
	ByListing(ctx context.Context, listing listings.ListingID) ([]*Reservation, error)
	// Overlapping returns the listing's reservations whose stay intersects window.
	Overlapping(ctx context.Context, listing listings.ListingID, window daterange.DateRange) ([]*Reservation, error)
	// Lock claims the listing's calendar for the current unit. Another unit
	// holding the same claim makes this call, or its commit, fail with a
	// retryable conflict.
	Lock(ctx context.Context, listing listings.ListingID) error
	Save(ctx context.Context, r *Reservation) error
}

type CreateParams struct {
	ID             ReservationID
	ListingID      listings.ListingID
	UserID         string
	Stay           daterange.DateRange
	Comment        string
	Cost           money.Money
	UnpricedNights []time.Time
	Now            time.Time
}

// New creates a reservation in the NEW status. existing must hold the
// listing's reservations that intersect the stay.
func New(params CreateParams, existing []*Reservation) (*Reservation, error) {
	if strings.TrimSpace(params.UserID) == "" {
		return nil, ErrUserRequired
	}
	if err := params.Stay.Validate(); err != nil {
		return nil, err
	}
	comment := strings.TrimSpace(params.Comment)
	if len([]rune(comment)) > MaxCommentLength {
		return nil, ErrCommentTooLong
	}
	for _, other := range existing {
		if other.ListingID == params.ListingID && other.Active() && other.Stay.Overlaps(params.Stay) {
			return nil, ErrOverlappingStay
		}
	}
	now := params.Now.UTC()
	r := &Reservation{
		ID:             params.ID,
		ListingID:      params.ListingID,
		UserID:         strings.TrimSpace(params.UserID),
		Stay:           params.Stay,
		Comment:        comment,
		Status:         StatusNew,
		Cost:           params.Cost,
		UnpricedNights: append([]time.Time(nil), params.UnpricedNights...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.Record(ReservationCreatedEvent{
		ReservationID: r.ID,
		ListingID:     r.ListingID,
		UserID:        r.UserID,
		CheckIn:       r.Stay.CheckIn,
		CheckOut:      r.Stay.CheckOut,
		Cost:          r.Cost,
		At:            now,
	})
	return r, nil
}

func (r *Reservation) Active() bool { return r.Status != StatusCancelled }

// InProgress reports whether today falls strictly inside the stay.
func (r *Reservation) InProgress(today time.Time) bool {
	today = daterange.Truncate(today)
	return r.Stay.CheckIn.Before(today) && today.Before(r.Stay.CheckOut)
}

func (r *Reservation) Submit(now time.Time) error {
	return r.transition(StatusNew, StatusPending, now)
}

func (r *Reservation) Approve(now time.Time) error {
	return r.transition(StatusPending, StatusApproved, now)
}

func (r *Reservation) Cancel(now time.Time) error {
	if r.Status == StatusCancelled {
		return ErrInvalidTransition
	}
	return r.transition(r.Status, StatusCancelled, now)
}

func (r *Reservation) transition(from, to Status, now time.Time) error {
	if r.Status != from {
		return ErrInvalidTransition
	}
	r.Status = to
	r.UpdatedAt = now.UTC()
	r.Record(ReservationStatusChangedEvent{
		ReservationID: r.ID,
		ListingID:     r.ListingID,
		From:          from,
		To:            to,
		At:            r.UpdatedAt,
	})
	return nil
}

func (r *Reservation) Clone() *Reservation {
	c := *r
	c.UnpricedNights = append([]time.Time(nil), r.UnpricedNights...)
	c.EventRecorder = events.EventRecorder{}
	return &c
}
