package dto

import (
	"time"

	domainlistings "homestay/internal/domain/listings"
)

type Listing struct {
	ID             string    `json:"id"`
	Slug           string    `json:"slug"`
	ObjectType     string    `json:"object_type"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	MaxGuests      int       `json:"max_guests"`
	Bedrooms       int       `json:"bedrooms"`
	Beds           int       `json:"beds"`
	Bathrooms      int       `json:"bathrooms"`
	Amenities      []string  `json:"amenities"`
	HouseRules     []string  `json:"house_rules"`
	CheckInTime    string    `json:"check_in_time,omitempty"`
	CheckOutTime   string    `json:"check_out_time,omitempty"`
	InstantBooking bool      `json:"instant_booking"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ListingPage struct {
	Items  []Listing `json:"items"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

func MapListing(l *domainlistings.Listing) Listing {
	if l == nil {
		return Listing{}
	}
	return Listing{
		ID:             string(l.ID),
		Slug:           l.Slug,
		ObjectType:     l.ObjectTypeID,
		Title:          l.Title,
		Description:    l.Description,
		MaxGuests:      l.MaxGuests,
		Bedrooms:       l.Bedrooms,
		Beds:           l.Beds,
		Bathrooms:      l.Bathrooms,
		Amenities:      nonNil(l.Amenities),
		HouseRules:     nonNil(l.HouseRules),
		CheckInTime:    l.CheckInTime,
		CheckOutTime:   l.CheckOutTime,
		InstantBooking: l.InstantBooking,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

type Photo struct {
	ID        string    `json:"id"`
	Index     int       `json:"index"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Previews  []string  `json:"previews"`
	IsCover   bool      `json:"is_cover"`
	CreatedAt time.Time `json:"created_at"`
}

func MapPhoto(p *domainlistings.Photo, sizes []domainlistings.Size, format string) Photo {
	previews := make([]string, 0, len(sizes))
	for _, s := range sizes {
		previews = append(previews, p.VariantURL(s, format))
	}
	return Photo{
		ID:        string(p.ID),
		Index:     p.Index,
		Title:     p.Title,
		URL:       p.URL,
		Previews:  previews,
		IsCover:   p.IsCover,
		CreatedAt: p.CreatedAt,
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
