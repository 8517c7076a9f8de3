package memory

import (
	"context"
	"sort"

	domainlistings "homestay/internal/domain/listings"
	domainreservations "homestay/internal/domain/reservations"
	"homestay/internal/domain/shared/daterange"
)

type reservationRepository struct{ u *Unit }

func (r reservationRepository) ByID(_ context.Context, id domainreservations.ReservationID) (*domainreservations.Reservation, error) {
	res, ok := r.u.data().reservations[id]
	if !ok {
		return nil, domainreservations.ErrNotFound
	}
	return res.Clone(), nil
}

func (r reservationRepository) ByListing(_ context.Context, listing domainlistings.ListingID) ([]*domainreservations.Reservation, error) {
	return r.filter(func(res *domainreservations.Reservation) bool { return res.ListingID == listing }), nil
}

func (r reservationRepository) Overlapping(_ context.Context, listing domainlistings.ListingID, window daterange.DateRange) ([]*domainreservations.Reservation, error) {
	return r.filter(func(res *domainreservations.Reservation) bool {
		return res.ListingID == listing && res.Stay.Overlaps(window)
	}), nil
}

// Lock only validates the unit: write units already hold the store exclusively.
func (r reservationRepository) Lock(_ context.Context, listing domainlistings.ListingID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, ok := r.u.data().listings[listing]; !ok {
		return domainlistings.ErrNotFound
	}
	return nil
}

func (r reservationRepository) Save(_ context.Context, res *domainreservations.Reservation) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, ok := r.u.data().listings[res.ListingID]; !ok {
		return domainlistings.ErrNotFound
	}
	res.Version++
	r.u.data().reservations[res.ID] = res.Clone()
	return nil
}

func (r reservationRepository) filter(keep func(*domainreservations.Reservation) bool) []*domainreservations.Reservation {
	out := make([]*domainreservations.Reservation, 0)
	for _, res := range r.u.data().reservations {
		if keep(res) {
			out = append(out, res.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stay.CheckIn.Equal(out[j].Stay.CheckIn) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Stay.CheckIn.Before(out[j].Stay.CheckIn)
	})
	return out
}
