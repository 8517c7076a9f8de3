package mongo

import (
	"context"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainreferences "homestay/internal/domain/references"
)

type ReferenceRepository struct {
	db *mongo.Database
}

func (r ReferenceRepository) Catalog(ctx context.Context) (domainreferences.Catalog, error) {
	var c domainreferences.Catalog
	if err := findAll(ctx, r.db.Collection(colObjectTypes), &c.ObjectTypes); err != nil {
		return c, err
	}
	if err := findAll(ctx, r.db.Collection(colCategories), &c.Categories); err != nil {
		return c, err
	}
	if err := findAll(ctx, r.db.Collection(colAmenities), &c.Amenities); err != nil {
		return c, err
	}
	if err := findAll(ctx, r.db.Collection(colHouseRules), &c.HouseRules); err != nil {
		return c, err
	}
	return c, nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, out *[]T) error {
	cur, err := col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	items := make([]T, 0)
	if err := cur.All(ctx, &items); err != nil {
		return err
	}
	*out = items
	return nil
}

func (r ReferenceRepository) ObjectTypeByName(ctx context.Context, name string) (domainreferences.ObjectType, error) {
	var t domainreferences.ObjectType
	filter := bson.M{"name": bson.M{"$regex": "^" + regexp.QuoteMeta(name) + "$", "$options": "i"}}
	if err := r.db.Collection(colObjectTypes).FindOne(ctx, filter).Decode(&t); err != nil {
		if isNotFound(err) {
			return t, domainreferences.ErrNotFound
		}
		return t, err
	}
	return t, nil
}

func (r ReferenceRepository) MissingObjectTypes(ctx context.Context, ids []string) ([]string, error) {
	return missingIDs(ctx, r.db.Collection(colObjectTypes), ids)
}

func (r ReferenceRepository) MissingAmenities(ctx context.Context, ids []string) ([]string, error) {
	return missingIDs(ctx, r.db.Collection(colAmenities), ids)
}

func (r ReferenceRepository) MissingHouseRules(ctx context.Context, ids []string) ([]string, error) {
	return missingIDs(ctx, r.db.Collection(colHouseRules), ids)
}

func missingIDs(ctx context.Context, col *mongo.Collection, ids []string) ([]string, error) {
	wanted := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			wanted = append(wanted, id)
		}
	}
	if len(wanted) == 0 {
		return nil, nil
	}
	cur, err := col.Find(ctx, bson.M{"_id": bson.M{"$in": wanted}}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var found []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &found); err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(found))
	for _, f := range found {
		known[f.ID] = true
	}
	var out []string
	for _, id := range wanted {
		if !known[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r ReferenceRepository) Upsert(ctx context.Context, c domainreferences.Catalog) error {
	for _, v := range c.ObjectTypes {
		if err := upsertByID(ctx, r.db.Collection(colObjectTypes), v.ID, v); err != nil {
			return err
		}
	}
	for _, v := range c.Categories {
		if err := upsertByID(ctx, r.db.Collection(colCategories), v.ID, v); err != nil {
			return err
		}
	}
	for _, v := range c.Amenities {
		if err := upsertByID(ctx, r.db.Collection(colAmenities), v.ID, v); err != nil {
			return err
		}
	}
	for _, v := range c.HouseRules {
		if err := upsertByID(ctx, r.db.Collection(colHouseRules), v.ID, v); err != nil {
			return err
		}
	}
	return nil
}

func upsertByID(ctx context.Context, col *mongo.Collection, id string, doc any) error {
	_, err := col.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}
