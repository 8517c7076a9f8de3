package support

import (
	"context"
	"time"

	"homestay/internal/app/middleware"
	"homestay/internal/app/outbox"
	"homestay/internal/domain/shared/events"
)

// EventSource is implemented by aggregates embedding events.EventRecorder.
type EventSource interface {
	Drain() []events.DomainEvent
}

// RecordEvents drains every source into box inside the current unit of work.
func RecordEvents(ctx context.Context, box outbox.Outbox, encoder outbox.EventEncoder, sources ...EventSource) error {
	var pending []events.DomainEvent
	for _, src := range sources {
		if src == nil {
			continue
		}
		pending = append(pending, src.Drain()...)
	}
	return outbox.RecordDomainEvents(ctx, box, encoder, pending)
}

// Now returns clock() when set, otherwise the wall clock, in UTC.
func Now(clock func() time.Time) time.Time {
	if clock != nil {
		return clock().UTC()
	}
	return time.Now().UTC()
}

// ListingTag is the cache tag covering every cached answer about a listing.
func ListingTag(slug string) string { return "listing:" + slug }

// TouchListing marks the listing's cached answers stale once the running
// command commits.
func TouchListing(ctx context.Context, slugs ...string) {
	for _, slug := range slugs {
		if slug != "" {
			middleware.TouchCache(ctx, ListingTag(slug))
		}
	}
}
