package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "homestay/internal/domain/listings"
)

type ListingRepository struct {
	db *mongo.Database
}

func (r ListingRepository) col() *mongo.Collection { return r.db.Collection(colListings) }

func (r ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r ListingRepository) BySlug(ctx context.Context, slug string) (*domainlistings.Listing, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r ListingRepository) findOne(ctx context.Context, filter bson.M) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col().FindOne(ctx, filter).Decode(&doc); err != nil {
		if isNotFound(err) {
			return nil, domainlistings.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r ListingRepository) Search(ctx context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	params = params.Normalize()
	filter := bson.M{}
	if params.ObjectTypeID != "" {
		filter["object_type_id"] = params.ObjectTypeID
	}
	if params.MinGuests > 0 {
		filter["max_guests"] = bson.M{"$gte": params.MinGuests}
	}
	if params.InstantBooking != nil {
		filter["instant_booking"] = *params.InstantBooking
	}
	if len(params.Amenities) > 0 {
		filter["amenities"] = bson.M{"$all": params.Amenities}
	}
	total, err := r.col().CountDocuments(ctx, filter)
	if err != nil {
		return domainlistings.SearchResult{}, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "slug", Value: 1}}).
		SetSkip(int64(params.Offset)).
		SetLimit(int64(params.Limit))
	cur, err := r.col().Find(ctx, filter, opts)
	if err != nil {
		return domainlistings.SearchResult{}, err
	}
	var docs []listingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return domainlistings.SearchResult{}, err
	}
	res := domainlistings.SearchResult{Total: int(total)}
	for _, d := range docs {
		res.Items = append(res.Items, d.toAggregate())
	}
	return res, nil
}

func (r ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	doc := newListingDocument(listing)
	filter := bson.M{"_id": doc.ID, "version": listing.Version}
	doc.Version = listing.Version + 1
	res, err := r.col().UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if listing.Version == 0 {
				return domainlistings.ErrSlugTaken
			}
			return r.classifyDuplicate(ctx, listing)
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	listing.Version = doc.Version
	return nil
}

// classifyDuplicate tells a slug collision apart from a lost version race.
func (r ListingRepository) classifyDuplicate(ctx context.Context, listing *domainlistings.Listing) error {
	other, err := r.BySlug(ctx, listing.Slug)
	if err == nil && other.ID != listing.ID {
		return domainlistings.ErrSlugTaken
	}
	return ErrConcurrentUpdate
}

func (r ListingRepository) Delete(ctx context.Context, id domainlistings.ListingID) error {
	res, err := r.col().DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainlistings.ErrNotFound
	}
	owned := bson.M{"listing_id": string(id)}
	for _, name := range []string{colPhotos, colPriceTags, colDayRates, colReservations} {
		if _, err := r.db.Collection(name).DeleteMany(ctx, owned); err != nil {
			return err
		}
	}
	return nil
}

type listingDocument struct {
	ID             string    `bson:"_id"`
	Slug           string    `bson:"slug"`
	ObjectTypeID   string    `bson:"object_type_id"`
	Title          string    `bson:"title"`
	Description    string    `bson:"description"`
	MaxGuests      int       `bson:"max_guests"`
	Bedrooms       int       `bson:"bedrooms"`
	Beds           int       `bson:"beds"`
	Bathrooms      int       `bson:"bathrooms"`
	Amenities      []string  `bson:"amenities"`
	HouseRules     []string  `bson:"house_rules"`
	CheckInTime    string    `bson:"check_in_time"`
	CheckOutTime   string    `bson:"check_out_time"`
	InstantBooking bool      `bson:"instant_booking"`
	Version        int64     `bson:"version"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	return listingDocument{
		ID:             string(l.ID),
		Slug:           l.Slug,
		ObjectTypeID:   l.ObjectTypeID,
		Title:          l.Title,
		Description:    l.Description,
		MaxGuests:      l.MaxGuests,
		Bedrooms:       l.Bedrooms,
		Beds:           l.Beds,
		Bathrooms:      l.Bathrooms,
		Amenities:      l.Amenities,
		HouseRules:     l.HouseRules,
		CheckInTime:    l.CheckInTime,
		CheckOutTime:   l.CheckOutTime,
		InstantBooking: l.InstantBooking,
		Version:        l.Version,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func (d listingDocument) toAggregate() *domainlistings.Listing {
	return &domainlistings.Listing{
		ID:             domainlistings.ListingID(d.ID),
		Slug:           d.Slug,
		ObjectTypeID:   d.ObjectTypeID,
		Title:          d.Title,
		Description:    d.Description,
		MaxGuests:      d.MaxGuests,
		Bedrooms:       d.Bedrooms,
		Beds:           d.Beds,
		Bathrooms:      d.Bathrooms,
		Amenities:      d.Amenities,
		HouseRules:     d.HouseRules,
		CheckInTime:    d.CheckInTime,
		CheckOutTime:   d.CheckOutTime,
		InstantBooking: d.InstantBooking,
		Version:        d.Version,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

type PhotoRepository struct {
	col *mongo.Collection
}

func (r PhotoRepository) ByListing(ctx context.Context, listing domainlistings.ListingID) ([]*domainlistings.Photo, error) {
	opts := options.Find().SetSort(bson.D{{Key: "index", Value: 1}, {Key: "created_at", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"listing_id": string(listing)}, opts)
	if err != nil {
		return nil, err
	}
	var docs []photoDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainlistings.Photo, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func (r PhotoRepository) Save(ctx context.Context, photo *domainlistings.Photo) error {
	doc := photoDocument{
		ID:        string(photo.ID),
		ListingID: string(photo.ListingID),
		Index:     photo.Index,
		Title:     photo.Title,
		ObjectKey: photo.ObjectKey,
		URL:       photo.URL,
		IsCover:   photo.IsCover,
		CreatedAt: photo.CreatedAt,
	}
	_, err := r.col.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

func (r PhotoRepository) ClearCover(ctx context.Context, listing domainlistings.ListingID) error {
	_, err := r.col.UpdateMany(ctx, bson.M{"listing_id": string(listing), "is_cover": true}, bson.M{"$set": bson.M{"is_cover": false}})
	return err
}

type photoDocument struct {
	ID        string    `bson:"_id"`
	ListingID string    `bson:"listing_id"`
	Index     int       `bson:"index"`
	Title     string    `bson:"title"`
	ObjectKey string    `bson:"object_key"`
	URL       string    `bson:"url"`
	IsCover   bool      `bson:"is_cover"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d photoDocument) toAggregate() *domainlistings.Photo {
	return &domainlistings.Photo{
		ID:        domainlistings.PhotoID(d.ID),
		ListingID: domainlistings.ListingID(d.ListingID),
		Index:     d.Index,
		Title:     d.Title,
		ObjectKey: d.ObjectKey,
		URL:       d.URL,
		IsCover:   d.IsCover,
		CreatedAt: d.CreatedAt.UTC(),
	}
}
