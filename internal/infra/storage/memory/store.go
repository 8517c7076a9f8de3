package memory

import (
	"sync"
	"time"

	domainlistings "homestay/internal/domain/listings"
	domainpricing "homestay/internal/domain/pricing"
	domainreferences "homestay/internal/domain/references"
	domainreservations "homestay/internal/domain/reservations"
)

// Store holds every aggregate of the application. Access goes through a Unit,
// which holds mu for its whole lifetime: write units exclusively and read
// units shared.
type Store struct {
	mu   sync.RWMutex
	data *dataset
}

type dataset struct {
	listings     map[domainlistings.ListingID]*domainlistings.Listing
	photos       map[domainlistings.ListingID][]*domainlistings.Photo
	priceTags    map[domainpricing.PriceTagID]*domainpricing.PriceTag
	dayRates     map[domainlistings.ListingID]map[time.Time]domainpricing.DayRate
	reservations map[domainreservations.ReservationID]*domainreservations.Reservation

	objectTypes map[string]domainreferences.ObjectType
	categories  map[string]domainreferences.Category
	amenities   map[string]domainreferences.Amenity
	houseRules  map[string]domainreferences.HouseRule
}

func NewStore() *Store {
	return &Store{data: newDataset()}
}

func newDataset() *dataset {
	return &dataset{
		listings:     make(map[domainlistings.ListingID]*domainlistings.Listing),
		photos:       make(map[domainlistings.ListingID][]*domainlistings.Photo),
		priceTags:    make(map[domainpricing.PriceTagID]*domainpricing.PriceTag),
		dayRates:     make(map[domainlistings.ListingID]map[time.Time]domainpricing.DayRate),
		reservations: make(map[domainreservations.ReservationID]*domainreservations.Reservation),
		objectTypes:  make(map[string]domainreferences.ObjectType),
		categories:   make(map[string]domainreferences.Category),
		amenities:    make(map[string]domainreferences.Amenity),
		houseRules:   make(map[string]domainreferences.HouseRule),
	}
}

// snapshot deep-copies the dataset so that a write unit can be undone.
func (d *dataset) snapshot() *dataset {
	c := newDataset()
	for k, v := range d.listings {
		c.listings[k] = v.Clone()
	}
	for k, photos := range d.photos {
		cp := make([]*domainlistings.Photo, 0, len(photos))
		for _, p := range photos {
			cp = append(cp, p.Clone())
		}
		c.photos[k] = cp
	}
	for k, v := range d.priceTags {
		c.priceTags[k] = v.Clone()
	}
	for k, rates := range d.dayRates {
		cp := make(map[time.Time]domainpricing.DayRate, len(rates))
		for date, r := range rates {
			cp[date] = r
		}
		c.dayRates[k] = cp
	}
	for k, v := range d.reservations {
		c.reservations[k] = v.Clone()
	}
	for k, v := range d.objectTypes {
		c.objectTypes[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.amenities {
		c.amenities[k] = v
	}
	for k, v := range d.houseRules {
		c.houseRules[k] = v
	}
	return c
}
