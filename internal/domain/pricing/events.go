package pricing

import (
	"time"

	"homestay/internal/domain/listings"
	"homestay/internal/domain/shared/money"
)

type PriceTagSavedEvent struct {
	ListingID  listings.ListingID `json:"listing_id"`
	PriceTagID PriceTagID         `json:"price_tag_id"`
	Start      time.Time          `json:"start"`
	End        time.Time          `json:"end"`
	Price      money.Money        `json:"price"`
	Created    bool               `json:"created"`
	Inserted   int                `json:"inserted"`
	Updated    int                `json:"updated"`
	Removed    int                `json:"removed"`
	At         time.Time          `json:"at"`
}

func (e PriceTagSavedEvent) EventName() string     { return "pricing.tag_saved" }
func (e PriceTagSavedEvent) AggregateID() string   { return string(e.ListingID) }
func (e PriceTagSavedEvent) OccurredAt() time.Time { return e.At }

type PriceTagDeletedEvent struct {
	ListingID  listings.ListingID `json:"listing_id"`
	PriceTagID PriceTagID         `json:"price_tag_id"`
	At         time.Time          `json:"at"`
}

func (e PriceTagDeletedEvent) EventName() string     { return "pricing.tag_deleted" }
func (e PriceTagDeletedEvent) AggregateID() string   { return string(e.ListingID) }
func (e PriceTagDeletedEvent) OccurredAt() time.Time { return e.At }
