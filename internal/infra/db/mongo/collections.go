package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"homestay/internal/app/apperr"
	"homestay/internal/app/uow"
)

const (
	colListings     = "listings"
	colPhotos       = "listing_photos"
	colPriceTags    = "price_tags"
	colDayRates     = "day_rates"
	colReservations = "reservations"
	colObjectTypes  = "object_types"
	colCategories   = "categories"
	colAmenities    = "amenities"
	colHouseRules   = "house_rules"
)

// ErrConcurrentUpdate is returned when a save loses an optimistic version check.
var ErrConcurrentUpdate = fmt.Errorf("mongo: concurrent update detected: %w: %w", apperr.ErrConflict, uow.ErrTransient)

// EnsureIndexes creates the indexes the repositories rely on. The unique
// (listing_id, date) index on day rates is what rejects overlapping tags under
// concurrent writers.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		colListings: {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colPhotos: {
			{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "index", Value: 1}}},
		},
		colPriceTags: {
			{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "start", Value: 1}}},
		},
		colDayRates: {
			{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "price_tag_id", Value: 1}}},
		},
		colReservations: {
			{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "check_in", Value: 1}}},
		},
	}
	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// dates are stored as UTC midnight; decoding can hand back local times.
func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
