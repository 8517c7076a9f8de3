package listings

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"homestay/internal/app/apperr"
	"homestay/internal/app/commands"
	"homestay/internal/app/dto"
	handlersupport "homestay/internal/app/handlers/support"
	"homestay/internal/app/outbox"
	domainlistings "homestay/internal/domain/listings"
	domainreferences "homestay/internal/domain/references"
)

const (
	createListingKey = "listings.create"
	updateListingKey = "listings.update"
	deleteListingKey = "listings.delete"

	slugAttempts = 5
)

// ListingPayload is the editable part of a listing as accepted from clients.
type ListingPayload struct {
	ObjectType     string   `json:"object_type"`
	Title          string   `json:"title" validate:"required,max=64"`
	Description    string   `json:"description" validate:"max=4096"`
	MaxGuests      int      `json:"max_guests" validate:"min=1"`
	Bedrooms       int      `json:"bedrooms" validate:"min=1"`
	Beds           int      `json:"beds" validate:"min=1"`
	Bathrooms      int      `json:"bathrooms" validate:"min=0"`
	Amenities      []string `json:"amenities"`
	HouseRules     []string `json:"house_rules"`
	CheckInTime    string   `json:"check_in_time" validate:"hhmm"`
	CheckOutTime   string   `json:"check_out_time" validate:"hhmm"`
	InstantBooking bool     `json:"instant_booking"`
}

func (p ListingPayload) details(objectType string) domainlistings.Details {
	return domainlistings.Details{
		ObjectTypeID:   objectType,
		Title:          p.Title,
		Description:    p.Description,
		MaxGuests:      p.MaxGuests,
		Bedrooms:       p.Bedrooms,
		Beds:           p.Beds,
		Bathrooms:      p.Bathrooms,
		Amenities:      p.Amenities,
		HouseRules:     p.HouseRules,
		CheckInTime:    p.CheckInTime,
		CheckOutTime:   p.CheckOutTime,
		InstantBooking: p.InstantBooking,
	}
}

type CreateListingCommand struct {
	ListingPayload
}

func (CreateListingCommand) Key() string { return createListingKey }

type UpdateListingCommand struct {
	Slug string `json:"slug" validate:"required"`
	ListingPayload
}

func (UpdateListingCommand) Key() string { return updateListingKey }

type DeleteListingCommand struct {
	Slug string `json:"slug" validate:"required"`
}

func (DeleteListingCommand) Key() string { return deleteListingKey }

// CommandHandlers serves listing writes. Each method expects the unit of work
// opened by the transaction middleware.
type CommandHandlers struct {
	Logger  *slog.Logger
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Now     func() time.Time
}

func (h *CommandHandlers) Create() commands.Handler[CreateListingCommand, dto.Listing] {
	return commands.HandlerFunc[CreateListingCommand, dto.Listing](h.create)
}

func (h *CommandHandlers) Update() commands.Handler[UpdateListingCommand, dto.Listing] {
	return commands.HandlerFunc[UpdateListingCommand, dto.Listing](h.update)
}

func (h *CommandHandlers) Delete() commands.Handler[DeleteListingCommand, struct{}] {
	return commands.HandlerFunc[DeleteListingCommand, struct{}](h.delete)
}

func (h *CommandHandlers) create(ctx context.Context, cmd CreateListingCommand) (dto.Listing, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return dto.Listing{}, err
	}
	objectType, err := resolveReferences(ctx, unit.References(), cmd.ListingPayload)
	if err != nil {
		return dto.Listing{}, err
	}
	slug, err := freeSlug(ctx, unit.Listings(), domainlistings.BaseSlug(cmd.ListingPayload.Title))
	if err != nil {
		return dto.Listing{}, err
	}
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:      domainlistings.ListingID(uuid.NewString()),
		Slug:    slug,
		Details: cmd.ListingPayload.details(objectType),
		Now:     handlersupport.Now(h.Now),
	})
	if err != nil {
		return dto.Listing{}, detailsError(err)
	}
	if err := unit.Listings().Save(ctx, listing); err != nil {
		return dto.Listing{}, err
	}
	result := dto.MapListing(listing)
	if err := handlersupport.RecordEvents(ctx, h.Outbox, h.Encoder, listing); err != nil {
		return dto.Listing{}, err
	}
	h.log().InfoContext(ctx, "listing created", "listing_id", listing.ID, "slug", listing.Slug)
	return result, nil
}

func (h *CommandHandlers) update(ctx context.Context, cmd UpdateListingCommand) (dto.Listing, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return dto.Listing{}, err
	}
	listing, err := unit.Listings().BySlug(ctx, cmd.Slug)
	if err != nil {
		return dto.Listing{}, err
	}
	objectType, err := resolveReferences(ctx, unit.References(), cmd.ListingPayload)
	if err != nil {
		return dto.Listing{}, err
	}
	if err := listing.Update(cmd.ListingPayload.details(objectType), handlersupport.Now(h.Now)); err != nil {
		return dto.Listing{}, detailsError(err)
	}
	if err := unit.Listings().Save(ctx, listing); err != nil {
		return dto.Listing{}, err
	}
	if err := handlersupport.RecordEvents(ctx, h.Outbox, h.Encoder, listing); err != nil {
		return dto.Listing{}, err
	}
	handlersupport.TouchListing(ctx, cmd.Slug, listing.Slug)
	return dto.MapListing(listing), nil
}

func (h *CommandHandlers) delete(ctx context.Context, cmd DeleteListingCommand) (struct{}, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return struct{}{}, err
	}
	listing, err := unit.Listings().BySlug(ctx, cmd.Slug)
	if err != nil {
		return struct{}{}, err
	}
	if err := unit.Listings().Delete(ctx, listing.ID); err != nil {
		return struct{}{}, err
	}
	listing.MarkDeleted(handlersupport.Now(h.Now))
	if err := handlersupport.RecordEvents(ctx, h.Outbox, h.Encoder, listing); err != nil {
		return struct{}{}, err
	}
	handlersupport.TouchListing(ctx, listing.Slug)
	h.log().InfoContext(ctx, "listing deleted", "listing_id", listing.ID, "slug", listing.Slug)
	return struct{}{}, nil
}

func (h *CommandHandlers) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// resolveReferences checks that every referenced id exists and returns the
// object type id to store, falling back to the default type.
func resolveReferences(ctx context.Context, refs domainreferences.Repository, p ListingPayload) (string, error) {
	objectType := p.ObjectType
	if objectType == "" {
		def, err := refs.ObjectTypeByName(ctx, domainreferences.DefaultObjectType)
		if err != nil {
			return "", err
		}
		objectType = def.ID
	}
	verr := &apperr.ValidationError{}
	missing, err := refs.MissingObjectTypes(ctx, []string{objectType})
	if err != nil {
		return "", err
	}
	if len(missing) > 0 {
		verr.Add("object_type", "unknown object type "+missing[0])
	}
	if missing, err = refs.MissingAmenities(ctx, p.Amenities); err != nil {
		return "", err
	}
	if len(missing) > 0 {
		verr.Add("amenities", "unknown amenities: "+joinIDs(missing))
	}
	if missing, err = refs.MissingHouseRules(ctx, p.HouseRules); err != nil {
		return "", err
	}
	if len(missing) > 0 {
		verr.Add("house_rules", "unknown house rules: "+joinIDs(missing))
	}
	if err := verr.OrNil(); err != nil {
		return "", err
	}
	return objectType, nil
}

func freeSlug(ctx context.Context, repo domainlistings.ListingRepository, base string) (string, error) {
	candidate := base
	for i := 0; i < slugAttempts; i++ {
		_, err := repo.BySlug(ctx, candidate)
		if errors.Is(err, domainlistings.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = domainlistings.AlternativeSlug(base)
	}
	return "", domainlistings.ErrSlugTaken
}

var detailFields = map[error]string{
	domainlistings.ErrTitleRequired:    "title",
	domainlistings.ErrTitleTooLong:     "title",
	domainlistings.ErrGuestsLimit:      "max_guests",
	domainlistings.ErrBedrooms:         "bedrooms",
	domainlistings.ErrBeds:             "beds",
	domainlistings.ErrBathrooms:        "bathrooms",
	domainlistings.ErrInvalidTimeOfDay: "check_in_time",
}

func detailsError(err error) error {
	for target, field := range detailFields {
		if errors.Is(err, target) {
			return apperr.NewValidation(field, err.Error())
		}
	}
	return err
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ", ")
}
