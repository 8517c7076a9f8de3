package dto

import (
	"time"

	domainreservations "homestay/internal/domain/reservations"
	"homestay/internal/domain/shared/daterange"
	"homestay/internal/domain/shared/money"
)

type Reservation struct {
	ID             string      `json:"id"`
	ListingID      string      `json:"listing_id"`
	UserID         string      `json:"user_id"`
	CheckIn        string      `json:"check_in"`
	CheckOut       string      `json:"check_out"`
	Nights         int         `json:"nights"`
	Comment        string      `json:"comment,omitempty"`
	Status         string      `json:"status"`
	Cost           money.Money `json:"cost"`
	UnpricedNights []string    `json:"unpriced_nights"`
	InProgress     bool        `json:"in_progress"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func MapReservation(r *domainreservations.Reservation, today time.Time) Reservation {
	return Reservation{
		ID:             string(r.ID),
		ListingID:      string(r.ListingID),
		UserID:         r.UserID,
		CheckIn:        r.Stay.CheckIn.Format(daterange.DateLayout),
		CheckOut:       r.Stay.CheckOut.Format(daterange.DateLayout),
		Nights:         r.Stay.Nights(),
		Comment:        r.Comment,
		Status:         string(r.Status),
		Cost:           r.Cost,
		UnpricedNights: formatDates(r.UnpricedNights),
		InProgress:     r.InProgress(today),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
