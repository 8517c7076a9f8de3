package reservations

import (
	"time"

	"homestay/internal/domain/listings"
	"homestay/internal/domain/shared/money"
)

type ReservationCreatedEvent struct {
	ReservationID ReservationID      `json:"reservation_id"`
	ListingID     listings.ListingID `json:"listing_id"`
	UserID        string             `json:"user_id"`
	CheckIn       time.Time          `json:"check_in"`
	CheckOut      time.Time          `json:"check_out"`
	Cost          money.Money        `json:"cost"`
	At            time.Time          `json:"at"`
}

func (e ReservationCreatedEvent) EventName() string     { return "reservation.created" }
func (e ReservationCreatedEvent) AggregateID() string   { return string(e.ListingID) }
func (e ReservationCreatedEvent) OccurredAt() time.Time { return e.At }

type ReservationStatusChangedEvent struct {
	ReservationID ReservationID      `json:"reservation_id"`
	ListingID     listings.ListingID `json:"listing_id"`
	From          Status             `json:"from"`
	To            Status             `json:"to"`
	At            time.Time          `json:"at"`
}

func (e ReservationStatusChangedEvent) EventName() string     { return "reservation.status_changed" }
func (e ReservationStatusChangedEvent) AggregateID() string   { return string(e.ListingID) }
func (e ReservationStatusChangedEvent) OccurredAt() time.Time { return e.At }
