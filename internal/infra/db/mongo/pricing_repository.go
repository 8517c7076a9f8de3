package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "homestay/internal/domain/listings"
	domainpricing "homestay/internal/domain/pricing"
	"homestay/internal/domain/shared/daterange"
	"homestay/internal/domain/shared/money"
)

type PriceTagRepository struct {
	col *mongo.Collection
}

func (r PriceTagRepository) ByID(ctx context.Context, id domainpricing.PriceTagID) (*domainpricing.PriceTag, error) {
	var doc priceTagDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if isNotFound(err) {
			return nil, domainpricing.ErrTagNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r PriceTagRepository) ByListing(ctx context.Context, listing domainlistings.ListingID) ([]*domainpricing.PriceTag, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"listing_id": string(listing)}, opts)
	if err != nil {
		return nil, err
	}
	var docs []priceTagDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainpricing.PriceTag, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func (r PriceTagRepository) Save(ctx context.Context, tag *domainpricing.PriceTag) error {
	doc := priceTagDocument{
		ID:          string(tag.ID),
		ListingID:   string(tag.ListingID),
		Start:       tag.Span.Start,
		End:         tag.Span.End,
		Price:       tag.Price,
		Description: tag.Description,
		Version:     tag.Version + 1,
		CreatedAt:   tag.CreatedAt,
		UpdatedAt:   tag.UpdatedAt,
	}
	filter := bson.M{"_id": doc.ID, "version": tag.Version}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	tag.Version = doc.Version
	return nil
}

func (r PriceTagRepository) Delete(ctx context.Context, id domainpricing.PriceTagID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainpricing.ErrTagNotFound
	}
	return nil
}

type priceTagDocument struct {
	ID          string      `bson:"_id"`
	ListingID   string      `bson:"listing_id"`
	Start       time.Time   `bson:"start"`
	End         time.Time   `bson:"end"`
	Price       money.Money `bson:"price"`
	Description string      `bson:"description"`
	Version     int64       `bson:"version"`
	CreatedAt   time.Time   `bson:"created_at"`
	UpdatedAt   time.Time   `bson:"updated_at"`
}

func (d priceTagDocument) toAggregate() *domainpricing.PriceTag {
	return &domainpricing.PriceTag{
		ID:          domainpricing.PriceTagID(d.ID),
		ListingID:   domainlistings.ListingID(d.ListingID),
		Span:        daterange.Span{Start: utcDate(d.Start), End: utcDate(d.End)},
		Price:       d.Price,
		Description: d.Description,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// DayRateRepository stores one document per (listing, date); the unique index
// created by EnsureIndexes turns a concurrent double booking of a date into a
// duplicate key error.
type DayRateRepository struct {
	col *mongo.Collection
}

func (r DayRateRepository) InSpan(ctx context.Context, listing domainlistings.ListingID, span daterange.Span) ([]domainpricing.DayRate, error) {
	filter := bson.M{
		"listing_id": string(listing),
		"date":       bson.M{"$gte": span.Start, "$lte": span.End},
	}
	return r.find(ctx, filter)
}

func (r DayRateRepository) ByPriceTag(ctx context.Context, tag domainpricing.PriceTagID) ([]domainpricing.DayRate, error) {
	return r.find(ctx, bson.M{"price_tag_id": string(tag)})
}

func (r DayRateRepository) find(ctx context.Context, filter bson.M) ([]domainpricing.DayRate, error) {
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []dayRateDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domainpricing.DayRate, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toRate())
	}
	return out, nil
}

func (r DayRateRepository) Apply(ctx context.Context, listing domainlistings.ListingID, m domainpricing.Materialization) error {
	if len(m.Delete) > 0 {
		if _, err := r.col.DeleteMany(ctx, shrinkFilter(listing, m)); err != nil {
			return err
		}
	}
	for _, rate := range m.Update {
		filter := bson.M{"listing_id": string(listing), "date": rate.Date, "price_tag_id": string(rate.PriceTagID)}
		res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"price": rate.Price}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: day rate %s changed owner", ErrConcurrentUpdate, rate.Date.Format(daterange.DateLayout))
		}
	}
	if len(m.Create) == 0 {
		return nil
	}
	docs := make([]any, 0, len(m.Create))
	for _, rate := range m.Create {
		docs = append(docs, dayRateDocument{
			ListingID:  string(listing),
			Date:       rate.Date,
			PriceTagID: string(rate.PriceTagID),
			Price:      rate.Price,
		})
	}
	if _, err := r.col.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return insertOverlap(listing, m)
		}
		return err
	}
	return nil
}

func shrinkFilter(listing domainlistings.ListingID, m domainpricing.Materialization) bson.M {
	return bson.M{
		"listing_id":   string(listing),
		"price_tag_id": string(m.Tag),
		"date":         bson.M{"$in": m.Delete},
	}
}

// insertOverlap reports the dates a failed insert tried to claim. A duplicate
// key aborts the transaction, so the current owners cannot be read back.
func insertOverlap(listing domainlistings.ListingID, m domainpricing.Materialization) *domainpricing.OverlapError {
	dates := make([]time.Time, 0, len(m.Create))
	for _, rate := range m.Create {
		dates = append(dates, rate.Date)
	}
	return &domainpricing.OverlapError{ListingID: listing, Dates: dates}
}

func (r DayRateRepository) DeleteByPriceTag(ctx context.Context, tag domainpricing.PriceTagID) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"price_tag_id": string(tag)})
	return err
}

type dayRateDocument struct {
	ListingID  string      `bson:"listing_id"`
	Date       time.Time   `bson:"date"`
	PriceTagID string      `bson:"price_tag_id"`
	Price      money.Money `bson:"price"`
}

func (d dayRateDocument) toRate() domainpricing.DayRate {
	return domainpricing.DayRate{
		ListingID:  domainlistings.ListingID(d.ListingID),
		Date:       utcDate(d.Date),
		PriceTagID: domainpricing.PriceTagID(d.PriceTagID),
		Price:      d.Price,
	}
}
