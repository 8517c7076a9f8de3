package pricing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"homestay/internal/app/apperr"
	"homestay/internal/app/commands"
	"homestay/internal/app/dto"
	handlersupport "homestay/internal/app/handlers/support"
	"homestay/internal/app/outbox"
	"homestay/internal/app/uow"
	domainlistings "homestay/internal/domain/listings"
	domainpricing "homestay/internal/domain/pricing"
	"homestay/internal/domain/shared/daterange"
	"homestay/internal/domain/shared/money"
)

const (
	createPriceTagKey = "pricing.tags.create"
	updatePriceTagKey = "pricing.tags.update"
	deletePriceTagKey = "pricing.tags.delete"
)

// PriceTagPayload carries the price in minor units.
type PriceTagPayload struct {
	StartDate   string `json:"start_date" validate:"required,date"`
	EndDate     string `json:"end_date" validate:"required,date"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency" validate:"omitempty,len=3,alpha"`
	Description string `json:"description" validate:"max=512"`
}

type CreatePriceTagCommand struct {
	Slug string `json:"slug" validate:"required"`
	PriceTagPayload
}

func (CreatePriceTagCommand) Key() string { return createPriceTagKey }

type UpdatePriceTagCommand struct {
	Slug       string `json:"slug" validate:"required"`
	PriceTagID string `json:"id" validate:"required"`
	PriceTagPayload
}

func (UpdatePriceTagCommand) Key() string { return updatePriceTagKey }

type DeletePriceTagCommand struct {
	Slug       string `json:"slug" validate:"required"`
	PriceTagID string `json:"id" validate:"required"`
}

func (DeletePriceTagCommand) Key() string { return deletePriceTagKey }

// CommandHandlers persist price tags and keep the day rate table in step.
// A tag and its day rates are written by the same unit of work, so a failed
// materialization leaves neither behind.
type CommandHandlers struct {
	Logger       *slog.Logger
	Outbox       outbox.Outbox
	Encoder      outbox.EventEncoder
	BaseCurrency string
	Now          func() time.Time
}

func (h *CommandHandlers) Create() commands.Handler[CreatePriceTagCommand, dto.SavedPriceTag] {
	return commands.HandlerFunc[CreatePriceTagCommand, dto.SavedPriceTag](h.create)
}

func (h *CommandHandlers) Update() commands.Handler[UpdatePriceTagCommand, dto.SavedPriceTag] {
	return commands.HandlerFunc[UpdatePriceTagCommand, dto.SavedPriceTag](h.update)
}

func (h *CommandHandlers) Delete() commands.Handler[DeletePriceTagCommand, struct{}] {
	return commands.HandlerFunc[DeletePriceTagCommand, struct{}](h.delete)
}

func (h *CommandHandlers) create(ctx context.Context, cmd CreatePriceTagCommand) (dto.SavedPriceTag, error) {
	unit, listing, err := h.listing(ctx, cmd.Slug)
	if err != nil {
		return dto.SavedPriceTag{}, err
	}
	start, end, price, err := h.parse(cmd.PriceTagPayload)
	if err != nil {
		return dto.SavedPriceTag{}, err
	}
	tag, err := domainpricing.NewPriceTag(domainpricing.NewPriceTagParams{
		ID:          domainpricing.PriceTagID(uuid.NewString()),
		ListingID:   listing.ID,
		Start:       start,
		End:         end,
		Price:       price,
		Description: cmd.Description,
		Now:         handlersupport.Now(h.Now),
	})
	if err != nil {
		return dto.SavedPriceTag{}, tagError(err)
	}
	return h.persist(ctx, unit, tag, true)
}

func (h *CommandHandlers) update(ctx context.Context, cmd UpdatePriceTagCommand) (dto.SavedPriceTag, error) {
	unit, listing, err := h.listing(ctx, cmd.Slug)
	if err != nil {
		return dto.SavedPriceTag{}, err
	}
	tag, err := ownedTag(ctx, unit, listing, cmd.PriceTagID)
	if err != nil {
		return dto.SavedPriceTag{}, err
	}
	start, end, price, err := h.parse(cmd.PriceTagPayload)
	if err != nil {
		return dto.SavedPriceTag{}, err
	}
	if err := tag.Revise(start, end, price, cmd.Description, handlersupport.Now(h.Now)); err != nil {
		return dto.SavedPriceTag{}, tagError(err)
	}
	return h.persist(ctx, unit, tag, false)
}

// persist plans the day rates before any write so that an overlap is
// reported with every conflicting date and nothing is stored.
func (h *CommandHandlers) persist(ctx context.Context, unit uow.UnitOfWork, tag *domainpricing.PriceTag, created bool) (dto.SavedPriceTag, error) {
	materializer := domainpricing.Materializer{Rates: unit.DayRates()}
	plan, err := materializer.Prepare(ctx, tag)
	if err != nil {
		return dto.SavedPriceTag{}, err
	}
	if err := unit.PriceTags().Save(ctx, tag); err != nil {
		return dto.SavedPriceTag{}, err
	}
	if err := materializer.Apply(ctx, tag, plan); err != nil {
		return dto.SavedPriceTag{}, err
	}
	tag.MarkSaved(plan, created)
	if err := handlersupport.RecordEvents(ctx, h.Outbox, h.Encoder, tag); err != nil {
		return dto.SavedPriceTag{}, err
	}
	h.log().InfoContext(ctx, "price tag saved",
		"listing_id", tag.ListingID,
		"price_tag_id", tag.ID,
		"span", tag.Span.String(),
		"created", len(plan.Create),
		"updated", len(plan.Update),
		"removed", len(plan.Delete),
	)
	return dto.SavedPriceTag{
		PriceTag: dto.MapPriceTag(tag),
		Created:  len(plan.Create),
		Updated:  len(plan.Update),
		Removed:  len(plan.Delete),
	}, nil
}

func (h *CommandHandlers) delete(ctx context.Context, cmd DeletePriceTagCommand) (struct{}, error) {
	unit, listing, err := h.listing(ctx, cmd.Slug)
	if err != nil {
		return struct{}{}, err
	}
	tag, err := ownedTag(ctx, unit, listing, cmd.PriceTagID)
	if err != nil {
		return struct{}{}, err
	}
	if err := unit.DayRates().DeleteByPriceTag(ctx, tag.ID); err != nil {
		return struct{}{}, err
	}
	if err := unit.PriceTags().Delete(ctx, tag.ID); err != nil {
		return struct{}{}, err
	}
	tag.MarkDeleted(handlersupport.Now(h.Now))
	if err := handlersupport.RecordEvents(ctx, h.Outbox, h.Encoder, tag); err != nil {
		return struct{}{}, err
	}
	return struct{}{}, nil
}

func (h *CommandHandlers) listing(ctx context.Context, slug string) (uow.UnitOfWork, *domainlistings.Listing, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	listing, err := unit.Listings().BySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	handlersupport.TouchListing(ctx, listing.Slug)
	return unit, listing, nil
}

func (h *CommandHandlers) parse(p PriceTagPayload) (time.Time, time.Time, money.Money, error) {
	verr := &apperr.ValidationError{}
	start, err := daterange.ParseDate(p.StartDate)
	if err != nil {
		verr.Add("start_date", err.Error())
	}
	end, err := daterange.ParseDate(p.EndDate)
	if err != nil {
		verr.Add("end_date", err.Error())
	}
	currency := p.Currency
	if currency == "" {
		currency = h.BaseCurrency
	}
	price, err := money.New(p.Price, currency)
	if err != nil {
		verr.Add("currency", err.Error())
	}
	if err := verr.OrNil(); err != nil {
		return time.Time{}, time.Time{}, money.Money{}, err
	}
	return start, end, price, nil
}

func (h *CommandHandlers) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func ownedTag(ctx context.Context, unit uow.UnitOfWork, listing *domainlistings.Listing, id string) (*domainpricing.PriceTag, error) {
	tag, err := unit.PriceTags().ByID(ctx, domainpricing.PriceTagID(id))
	if err != nil {
		return nil, err
	}
	if tag.ListingID != listing.ID {
		return nil, domainpricing.ErrTagNotFound
	}
	return tag, nil
}

func tagError(err error) error {
	switch {
	case errors.Is(err, domainpricing.ErrNegativePrice):
		return apperr.NewValidation("price", err.Error())
	case errors.Is(err, daterange.ErrInvalidSpan):
		return apperr.NewValidation("end_date", err.Error())
	case errors.Is(err, domainpricing.ErrDescriptionTooLong):
		return apperr.NewValidation("description", err.Error())
	case errors.Is(err, money.ErrInvalidCurrency):
		return apperr.NewValidation("currency", err.Error())
	}
	return err
}
