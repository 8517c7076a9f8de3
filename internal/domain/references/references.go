package references

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound     = errors.New("references: not found")
	ErrNameRequired = errors.New("references: name is required")
)

// DefaultObjectType is assigned to listings created without an explicit type.
const DefaultObjectType = "Apartment"

type ObjectType struct {
	ID          string `json:"id" bson:"_id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description" bson:"description"`
}

type Category struct {
	ID          string `json:"id" bson:"_id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description" bson:"description"`
}

type Amenity struct {
	ID          string `json:"id" bson:"_id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description" bson:"description"`
	CategoryID  string `json:"category_id" bson:"category_id"`
}

type HouseRule struct {
	ID          string `json:"id" bson:"_id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description" bson:"description"`
}

// Catalog is the full set of reference data.
type Catalog struct {
	ObjectTypes []ObjectType `json:"object_types"`
	Categories  []Category   `json:"categories"`
	Amenities   []Amenity    `json:"amenities"`
	HouseRules  []HouseRule  `json:"house_rules"`
}

type Repository interface {
	Catalog(ctx context.Context) (Catalog, error)
	ObjectTypeByName(ctx context.Context, name string) (ObjectType, error)
	// Missing* return the subset of ids that are not known.
	MissingObjectTypes(ctx context.Context, ids []string) ([]string, error)
	MissingAmenities(ctx context.Context, ids []string) ([]string, error)
	MissingHouseRules(ctx context.Context, ids []string) ([]string, error)
	Upsert(ctx context.Context, catalog Catalog) error
}

// Validate checks names and category links inside a catalog that is about
// to be loaded.
func (c Catalog) Validate() error {
	categories := make(map[string]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return ErrNameRequired
		}
		categories[cat.ID] = struct{}{}
	}
	for _, a := range c.Amenities {
		if strings.TrimSpace(a.Name) == "" {
			return ErrNameRequired
		}
		if _, ok := categories[a.CategoryID]; !ok {
			return errors.New("references: amenity " + a.ID + " refers to unknown category " + a.CategoryID)
		}
	}
	for _, t := range c.ObjectTypes {
		if strings.TrimSpace(t.Name) == "" {
			return ErrNameRequired
		}
	}
	for _, r := range c.HouseRules {
		if strings.TrimSpace(r.Name) == "" {
			return ErrNameRequired
		}
	}
	return nil
}

// Defaults is the catalog loaded when no fixtures file is configured.
func Defaults() Catalog {
	return Catalog{
		ObjectTypes: []ObjectType{
			{ID: "apartment", Name: DefaultObjectType},
			{ID: "room", Name: "Room"},
			{ID: "house", Name: "House"},
			{ID: "hut", Name: "Hut"},
		},
		Categories: []Category{
			{ID: "basic", Name: "Basic", Description: "Things most guests expect"},
			{ID: "kitchen", Name: "Kitchen"},
			{ID: "safety", Name: "Safety"},
		},
		Amenities: []Amenity{
			{ID: "wifi", Name: "Wi-Fi", CategoryID: "basic"},
			{ID: "heating", Name: "Heating", CategoryID: "basic"},
			{ID: "towels", Name: "Towels", CategoryID: "basic"},
			{ID: "stove", Name: "Stove", CategoryID: "kitchen"},
			{ID: "fridge", Name: "Refrigerator", CategoryID: "kitchen"},
			{ID: "smoke_alarm", Name: "Smoke alarm", CategoryID: "safety"},
		},
		HouseRules: []HouseRule{
			{ID: "no_smoking", Name: "No smoking"},
			{ID: "no_pets", Name: "No pets"},
			{ID: "no_parties", Name: "No parties or events"},
		},
	}
}
