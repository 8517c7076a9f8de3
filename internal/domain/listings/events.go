package listings

import (
	"time"
)

type ListingCreatedEvent struct {
	ListingID ListingID `json:"listing_id"`
	Slug      string    `json:"slug"`
	At        time.Time `json:"at"`
}

func (e ListingCreatedEvent) EventName() string     { return "listing.created" }
func (e ListingCreatedEvent) AggregateID() string   { return string(e.ListingID) }
func (e ListingCreatedEvent) OccurredAt() time.Time { return e.At }

type ListingUpdatedEvent struct {
	ListingID ListingID `json:"listing_id"`
	At        time.Time `json:"at"`
}

func (e ListingUpdatedEvent) EventName() string     { return "listing.updated" }
func (e ListingUpdatedEvent) AggregateID() string   { return string(e.ListingID) }
func (e ListingUpdatedEvent) OccurredAt() time.Time { return e.At }

type ListingDeletedEvent struct {
	ListingID ListingID `json:"listing_id"`
	Slug      string    `json:"slug"`
	At        time.Time `json:"at"`
}

func (e ListingDeletedEvent) EventName() string     { return "listing.deleted" }
func (e ListingDeletedEvent) AggregateID() string   { return string(e.ListingID) }
func (e ListingDeletedEvent) OccurredAt() time.Time { return e.At }

// PhotoUploadedEvent triggers the asynchronous thumbnail job.
type PhotoUploadedEvent struct {
	ListingID ListingID `json:"listing_id"`
	PhotoID   PhotoID   `json:"photo_id"`
	ObjectKey string    `json:"object_key"`
	Sizes     []Size    `json:"sizes"`
	Format    string    `json:"format"`
	At        time.Time `json:"at"`
}

func (e PhotoUploadedEvent) EventName() string     { return "photo.uploaded" }
func (e PhotoUploadedEvent) AggregateID() string   { return string(e.ListingID) }
func (e PhotoUploadedEvent) OccurredAt() time.Time { return e.At }
