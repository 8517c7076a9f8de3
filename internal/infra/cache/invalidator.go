package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	handlersupport "homestay/internal/app/handlers/support"
	"homestay/internal/app/middleware"
	"homestay/internal/app/uow"
	domainlistings "homestay/internal/domain/listings"
	"homestay/internal/infra/broker/kafka"
)

type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// SlugResolver maps a listing id to the slug its cache entries are tagged with.
type SlugResolver func(ctx context.Context, listingID string) (string, error)

// Invalidator consumes domain events and drops the cached answers of the
// listing they concern. Redelivered events are skipped through Inbox.
type Invalidator struct {
	Cache   middleware.Cache
	Inbox   Inbox
	Resolve SlugResolver
	Logger  *slog.Logger
}

type cloudEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
}

type eventData struct {
	ListingID string `json:"listing_id"`
	Slug      string `json:"slug"`
}

var errMalformedEvent = errors.New("cache: malformed event")

func (i *Invalidator) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt cloudEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		i.log().Warn("dropping undecodable event", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		return nil
	}
	if evt.ID == "" {
		evt.ID = kafka.Header(msg, "ce-id")
	}
	if evt.ID == "" {
		i.log().Warn("dropping event without id", "topic", msg.Topic, "offset", msg.Offset)
		return nil
	}

	var data eventData
	if len(evt.Data) > 0 {
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return fmt.Errorf("%w: %v", errMalformedEvent, err)
		}
	}
	slug := data.Slug
	if slug == "" {
		listingID := data.ListingID
		if listingID == "" {
			listingID = evt.Subject
		}
		if listingID == "" || i.Resolve == nil {
			return nil
		}
		resolved, err := i.Resolve(ctx, listingID)
		if errors.Is(err, domainlistings.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		slug = resolved
	}

	if i.Inbox != nil {
		seen, err := i.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	if err := i.Cache.Invalidate(ctx, handlersupport.ListingTag(slug)); err != nil {
		return err
	}
	i.log().Debug("cache invalidated", "event", evt.Type, "event_id", evt.ID, "slug", slug)
	return nil
}

func (i *Invalidator) log() *slog.Logger {
	if i.Logger != nil {
		return i.Logger
	}
	return slog.Default()
}

// ListingSlugs resolves slugs through a read-only unit of work.
func ListingSlugs(factory uow.UoWFactory) SlugResolver {
	return func(ctx context.Context, listingID string) (string, error) {
		unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
		if err != nil {
			return "", err
		}
		defer unit.Rollback(ctx)
		listing, err := unit.Listings().ByID(uow.Bind(ctx, unit), domainlistings.ListingID(listingID))
		if err != nil {
			return "", err
		}
		return listing.Slug, nil
	}
}

var _ kafka.MessageHandler = (*Invalidator)(nil)
