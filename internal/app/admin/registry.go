// Package admin keeps the table describing how each entity is listed and
// edited in back-office tooling. The table is filled once by NewRegistry
// and is read-only afterwards.
package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"homestay/internal/app/dto"
)

const listEntitiesKey = "admin.entities.list"

var ErrDuplicateEntity = errors.New("admin: entity registered twice")

type Registry struct {
	entities map[string]dto.AdminEntity
}

// NewRegistry registers every known entity. A duplicate name is a
// programming error and is reported to the caller at startup.
func NewRegistry() (*Registry, error) {
	r := &Registry{entities: make(map[string]dto.AdminEntity)}
	for _, e := range builtin() {
		if err := r.register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(e dto.AdminEntity) error {
	if _, exists := r.entities[e.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, e.Name)
	}
	r.entities[e.Name] = e
	return nil
}

func (r *Registry) Lookup(name string) (dto.AdminEntity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Entities returns descriptors ordered by name.
func (r *Registry) Entities() []dto.AdminEntity {
	out := make([]dto.AdminEntity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type ListEntitiesQuery struct{}

func (ListEntitiesQuery) Key() string { return listEntitiesKey }

type ListEntitiesHandler struct {
	Registry *Registry
}

func (h *ListEntitiesHandler) Handle(ctx context.Context, _ ListEntitiesQuery) (dto.AdminEntityList, error) {
	if h.Registry == nil {
		return dto.AdminEntityList{Items: []dto.AdminEntity{}}, nil
	}
	return dto.AdminEntityList{Items: h.Registry.Entities()}, nil
}

func builtin() []dto.AdminEntity {
	text := func(name string, required bool) dto.AdminField {
		return dto.AdminField{Name: name, Type: "text", Required: required}
	}
	number := func(name string) dto.AdminField {
		return dto.AdminField{Name: name, Type: "integer", Required: true}
	}
	date := func(name string) dto.AdminField {
		return dto.AdminField{Name: name, Type: "date", Required: true}
	}
	return []dto.AdminEntity{
		{
			Name:  "listing",
			Title: "Listings",
			Fields: []dto.AdminField{
				{Name: "slug", Type: "slug", ReadOnly: true},
				text("title", true),
				text("description", false),
				{Name: "object_type", Type: "reference", Required: true},
				number("max_guests"),
				number("bedrooms"),
				number("beds"),
				number("bathrooms"),
				{Name: "amenities", Type: "reference_list"},
				{Name: "house_rules", Type: "reference_list"},
				{Name: "check_in_time", Type: "time"},
				{Name: "check_out_time", Type: "time"},
				{Name: "instant_booking", Type: "boolean"},
			},
			ListDisplay:  []string{"title", "slug", "object_type", "max_guests"},
			SearchFields: []string{"title", "slug"},
			Inlines:      []string{"photo", "price_tag"},
		},
		{
			Name:  "photo",
			Title: "Photos",
			Fields: []dto.AdminField{
				number("index"),
				text("title", true),
				{Name: "file", Type: "image", Required: true},
				{Name: "is_cover", Type: "boolean"},
			},
			ListDisplay: []string{"index", "title", "is_cover"},
		},
		{
			Name:  "price_tag",
			Title: "Price tags",
			Fields: []dto.AdminField{
				date("start_date"),
				date("end_date"),
				{Name: "price", Type: "money", Required: true},
				text("description", false),
			},
			ListDisplay: []string{"start_date", "end_date", "price"},
		},
		{
			Name:  "day_rate",
			Title: "Day rates",
			Fields: []dto.AdminField{
				{Name: "date", Type: "date", ReadOnly: true},
				{Name: "price", Type: "money", ReadOnly: true},
				{Name: "price_tag", Type: "reference", ReadOnly: true},
			},
			ListDisplay: []string{"date", "price", "price_tag"},
		},
		{
			Name:  "reservation",
			Title: "Reservations",
			Fields: []dto.AdminField{
				{Name: "user", Type: "reference", Required: true},
				date("check_in"),
				date("check_out"),
				text("comment", false),
				{Name: "status", Type: "choice", Required: true},
			},
			ListDisplay:  []string{"user", "check_in", "check_out", "status"},
			SearchFields: []string{"user"},
		},
		{
			Name:        "object_type",
			Title:       "Object types",
			Fields:      []dto.AdminField{text("name", true), text("description", false)},
			ListDisplay: []string{"name"},
		},
		{
			Name:        "category",
			Title:       "Amenity categories",
			Fields:      []dto.AdminField{text("name", true), text("description", false)},
			ListDisplay: []string{"name"},
		},
		{
			Name:  "amenity",
			Title: "Amenities",
			Fields: []dto.AdminField{
				text("name", true),
				text("description", false),
				{Name: "category", Type: "reference", Required: true},
			},
			ListDisplay:  []string{"name", "category"},
			SearchFields: []string{"name"},
		},
		{
			Name:        "house_rule",
			Title:       "House rules",
			Fields:      []dto.AdminField{text("name", true), text("description", false)},
			ListDisplay: []string{"name"},
		},
	}
}
