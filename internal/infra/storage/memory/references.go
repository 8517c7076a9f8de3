package memory

import (
	"context"
	"sort"
	"strings"

	domainreferences "homestay/internal/domain/references"
)

type referenceRepository struct{ u *Unit }

func (r referenceRepository) Catalog(_ context.Context) (domainreferences.Catalog, error) {
	d := r.u.data()
	c := domainreferences.Catalog{
		ObjectTypes: make([]domainreferences.ObjectType, 0, len(d.objectTypes)),
		Categories:  make([]domainreferences.Category, 0, len(d.categories)),
		Amenities:   make([]domainreferences.Amenity, 0, len(d.amenities)),
		HouseRules:  make([]domainreferences.HouseRule, 0, len(d.houseRules)),
	}
	for _, v := range d.objectTypes {
		c.ObjectTypes = append(c.ObjectTypes, v)
	}
	for _, v := range d.categories {
		c.Categories = append(c.Categories, v)
	}
	for _, v := range d.amenities {
		c.Amenities = append(c.Amenities, v)
	}
	for _, v := range d.houseRules {
		c.HouseRules = append(c.HouseRules, v)
	}
	sort.Slice(c.ObjectTypes, func(i, j int) bool { return c.ObjectTypes[i].ID < c.ObjectTypes[j].ID })
	sort.Slice(c.Categories, func(i, j int) bool { return c.Categories[i].ID < c.Categories[j].ID })
	sort.Slice(c.Amenities, func(i, j int) bool { return c.Amenities[i].ID < c.Amenities[j].ID })
	sort.Slice(c.HouseRules, func(i, j int) bool { return c.HouseRules[i].ID < c.HouseRules[j].ID })
	return c, nil
}

func (r referenceRepository) ObjectTypeByName(_ context.Context, name string) (domainreferences.ObjectType, error) {
	for _, t := range r.u.data().objectTypes {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return domainreferences.ObjectType{}, domainreferences.ErrNotFound
}

func (r referenceRepository) MissingObjectTypes(_ context.Context, ids []string) ([]string, error) {
	return missing(ids, func(id string) bool { _, ok := r.u.data().objectTypes[id]; return ok }), nil
}

func (r referenceRepository) MissingAmenities(_ context.Context, ids []string) ([]string, error) {
	return missing(ids, func(id string) bool { _, ok := r.u.data().amenities[id]; return ok }), nil
}

func (r referenceRepository) MissingHouseRules(_ context.Context, ids []string) ([]string, error) {
	return missing(ids, func(id string) bool { _, ok := r.u.data().houseRules[id]; return ok }), nil
}

func (r referenceRepository) Upsert(_ context.Context, c domainreferences.Catalog) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	d := r.u.data()
	for _, v := range c.ObjectTypes {
		d.objectTypes[v.ID] = v
	}
	for _, v := range c.Categories {
		d.categories[v.ID] = v
	}
	for _, v := range c.Amenities {
		d.amenities[v.ID] = v
	}
	for _, v := range c.HouseRules {
		d.houseRules[v.ID] = v
	}
	return nil
}

func missing(ids []string, known func(string) bool) []string {
	var out []string
	for _, id := range ids {
		if id == "" || known(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
