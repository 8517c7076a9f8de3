package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"homestay/internal/app/uow"
	domainlistings "homestay/internal/domain/listings"
	domainreservations "homestay/internal/domain/reservations"
	"homestay/internal/domain/shared/daterange"
	"homestay/internal/domain/shared/money"
)

type ReservationRepository struct {
	col      *mongo.Collection
	listings *mongo.Collection
}

func (r ReservationRepository) ByID(ctx context.Context, id domainreservations.ReservationID) (*domainreservations.Reservation, error) {
	var doc reservationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if isNotFound(err) {
			return nil, domainreservations.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r ReservationRepository) ByListing(ctx context.Context, listing domainlistings.ListingID) ([]*domainreservations.Reservation, error) {
	return r.find(ctx, bson.M{"listing_id": string(listing)})
}

// Overlapping uses the half-open test checkIn < window.end && window.start < checkOut.
func (r ReservationRepository) Overlapping(ctx context.Context, listing domainlistings.ListingID, window daterange.DateRange) ([]*domainreservations.Reservation, error) {
	return r.find(ctx, bson.M{
		"listing_id": string(listing),
		"check_in":   bson.M{"$lt": window.CheckOut},
		"check_out":  bson.M{"$gt": window.CheckIn},
	})
}

func (r ReservationRepository) find(ctx context.Context, filter bson.M) ([]*domainreservations.Reservation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}, {Key: "created_at", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []reservationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainreservations.Reservation, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

// Lock bumps reservation_seq on the listing document. Two transactions booking
// the same listing then write the same document, and the loser gets a write
// conflict instead of both passing the overlap check.
func (r ReservationRepository) Lock(ctx context.Context, listing domainlistings.ListingID) error {
	res, err := r.listings.UpdateOne(ctx, bson.M{"_id": string(listing)}, bson.M{"$inc": bson.M{"reservation_seq": 1}})
	if err != nil {
		return lockError(err)
	}
	if res.MatchedCount == 0 {
		return domainlistings.ErrNotFound
	}
	return nil
}

func lockError(err error) error {
	if errors.Is(transient(err), uow.ErrTransient) {
		return fmt.Errorf("%w: %w", ErrConcurrentUpdate, err)
	}
	return err
}

func (r ReservationRepository) Save(ctx context.Context, res *domainreservations.Reservation) error {
	doc := newReservationDocument(res)
	filter := bson.M{"_id": doc.ID, "version": res.Version}
	doc.Version = res.Version + 1
	update := bson.M{"$set": doc}
	result, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if result.MatchedCount == 0 && result.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	res.Version = doc.Version
	return nil
}

type reservationDocument struct {
	ID             string      `bson:"_id"`
	ListingID      string      `bson:"listing_id"`
	UserID         string      `bson:"user_id"`
	CheckIn        time.Time   `bson:"check_in"`
	CheckOut       time.Time   `bson:"check_out"`
	Comment        string      `bson:"comment"`
	Status         string      `bson:"status"`
	Cost           money.Money `bson:"cost"`
	UnpricedNights []time.Time `bson:"unpriced_nights"`
	Version        int64       `bson:"version"`
	CreatedAt      time.Time   `bson:"created_at"`
	UpdatedAt      time.Time   `bson:"updated_at"`
}

func newReservationDocument(r *domainreservations.Reservation) reservationDocument {
	return reservationDocument{
		ID:             string(r.ID),
		ListingID:      string(r.ListingID),
		UserID:         r.UserID,
		CheckIn:        r.Stay.CheckIn,
		CheckOut:       r.Stay.CheckOut,
		Comment:        r.Comment,
		Status:         string(r.Status),
		Cost:           r.Cost,
		UnpricedNights: r.UnpricedNights,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (d reservationDocument) toAggregate() *domainreservations.Reservation {
	nights := make([]time.Time, 0, len(d.UnpricedNights))
	for _, n := range d.UnpricedNights {
		nights = append(nights, utcDate(n))
	}
	return &domainreservations.Reservation{
		ID:             domainreservations.ReservationID(d.ID),
		ListingID:      domainlistings.ListingID(d.ListingID),
		UserID:         d.UserID,
		Stay:           daterange.DateRange{CheckIn: utcDate(d.CheckIn), CheckOut: utcDate(d.CheckOut)},
		Comment:        d.Comment,
		Status:         domainreservations.Status(d.Status),
		Cost:           d.Cost,
		UnpricedNights: nights,
		Version:        d.Version,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}
