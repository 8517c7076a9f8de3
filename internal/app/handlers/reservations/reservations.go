package reservations

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"homestay/internal/app/apperr"
	"homestay/internal/app/commands"
	"homestay/internal/app/dto"
	handlerspricing "homestay/internal/app/handlers/pricing"
	handlersupport "homestay/internal/app/handlers/support"
	"homestay/internal/app/outbox"
	"homestay/internal/app/queries"
	"homestay/internal/app/uow"
	domainreservations "homestay/internal/domain/reservations"
)

const (
	createReservationKey  = "reservations.create"
	submitReservationKey  = "reservations.submit"
	approveReservationKey = "reservations.approve"
	cancelReservationKey  = "reservations.cancel"
	listReservationsKey   = "reservations.list"
)

type CreateReservationCommand struct {
	Slug     string `json:"slug" validate:"required"`
	UserID   string `json:"user_id" validate:"required"`
	CheckIn  string `json:"check_in" validate:"required,date"`
	CheckOut string `json:"check_out" validate:"required,date"`
	Comment  string `json:"comment" validate:"max=1024"`

	RequestKey string `json:"-"`
}

func (CreateReservationCommand) Key() string { return createReservationKey }

func (c CreateReservationCommand) IdempotencyKey() string {
	if c.RequestKey == "" {
		return ""
	}
	return c.UserID + ":" + c.RequestKey
}

func (CreateReservationCommand) ResultPrototype() any { return &dto.Reservation{} }

// TransitionCommand moves a reservation along its status machine.
type TransitionCommand struct {
	ReservationID string `json:"id" validate:"required"`
	UserID        string `json:"user_id"`
	action        string
}

func (c TransitionCommand) Key() string { return c.action }

func SubmitCommand(id, user string) TransitionCommand {
	return TransitionCommand{ReservationID: id, UserID: user, action: submitReservationKey}
}

func ApproveCommand(id, user string) TransitionCommand {
	return TransitionCommand{ReservationID: id, UserID: user, action: approveReservationKey}
}

func CancelCommand(id, user string) TransitionCommand {
	return TransitionCommand{ReservationID: id, UserID: user, action: cancelReservationKey}
}

// TransitionKeys lists the bus keys served by Transition.
func TransitionKeys() []string {
	return []string{submitReservationKey, approveReservationKey, cancelReservationKey}
}

type Handlers struct {
	Logger       *slog.Logger
	Outbox       outbox.Outbox
	Encoder      outbox.EventEncoder
	BaseCurrency string
	Now          func() time.Time
	UoWFactory   uow.UoWFactory
}

func (h *Handlers) Create() commands.Handler[CreateReservationCommand, dto.Reservation] {
	return commands.HandlerFunc[CreateReservationCommand, dto.Reservation](h.create)
}

func (h *Handlers) Transition() commands.Handler[TransitionCommand, dto.Reservation] {
	return commands.HandlerFunc[TransitionCommand, dto.Reservation](h.transition)
}

func (h *Handlers) List() queries.Handler[ListReservationsQuery, []dto.Reservation] {
	return queries.HandlerFunc[ListReservationsQuery, []dto.Reservation](h.list)
}

func (h *Handlers) create(ctx context.Context, cmd CreateReservationCommand) (dto.Reservation, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return dto.Reservation{}, err
	}
	listing, err := unit.Listings().BySlug(ctx, cmd.Slug)
	if err != nil {
		return dto.Reservation{}, err
	}
	stay, err := handlerspricing.ParseStay(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return dto.Reservation{}, err
	}
	if err := unit.Reservations().Lock(ctx, listing.ID); err != nil {
		return dto.Reservation{}, err
	}
	existing, err := unit.Reservations().Overlapping(ctx, listing.ID, stay)
	if err != nil {
		return dto.Reservation{}, err
	}
	quote, err := handlerspricing.QuoteStay(ctx, unit.DayRates(), listing.ID, stay, h.BaseCurrency)
	if err != nil {
		return dto.Reservation{}, err
	}
	now := handlersupport.Now(h.Now)
	r, err := domainreservations.New(domainreservations.CreateParams{
		ID:             domainreservations.ReservationID(uuid.NewString()),
		ListingID:      listing.ID,
		UserID:         cmd.UserID,
		Stay:           stay,
		Comment:        cmd.Comment,
		Cost:           quote.Total,
		UnpricedNights: quote.UnpricedNights,
		Now:            now,
	}, existing)
	if err != nil {
		return dto.Reservation{}, apperr.Field("reservation", err)
	}
	if err := unit.Reservations().Save(ctx, r); err != nil {
		return dto.Reservation{}, err
	}
	if err := handlersupport.RecordEvents(ctx, h.Outbox, h.Encoder, r); err != nil {
		return dto.Reservation{}, err
	}
	handlersupport.TouchListing(ctx, listing.Slug)
	h.log().InfoContext(ctx, "reservation created",
		"reservation_id", r.ID,
		"listing_id", listing.ID,
		"nights", stay.Nights(),
		"unpriced_nights", len(quote.UnpricedNights),
	)
	return dto.MapReservation(r, now), nil
}

func (h *Handlers) transition(ctx context.Context, cmd TransitionCommand) (dto.Reservation, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return dto.Reservation{}, err
	}
	r, err := unit.Reservations().ByID(ctx, domainreservations.ReservationID(cmd.ReservationID))
	if err != nil {
		return dto.Reservation{}, err
	}
	now := handlersupport.Now(h.Now)
	switch cmd.Key() {
	case submitReservationKey:
		err = r.Submit(now)
	case approveReservationKey:
		err = r.Approve(now)
	case cancelReservationKey:
		err = r.Cancel(now)
	default:
		err = commands.ErrInvalidCommand
	}
	if err != nil {
		return dto.Reservation{}, err
	}
	if err := unit.Reservations().Save(ctx, r); err != nil {
		return dto.Reservation{}, err
	}
	if err := handlersupport.RecordEvents(ctx, h.Outbox, h.Encoder, r); err != nil {
		return dto.Reservation{}, err
	}
	listing, err := unit.Listings().ByID(ctx, r.ListingID)
	if err != nil {
		return dto.Reservation{}, err
	}
	handlersupport.TouchListing(ctx, listing.Slug)
	h.log().InfoContext(ctx, "reservation status changed", "reservation_id", r.ID, "status", r.Status, "actor", cmd.UserID)
	return dto.MapReservation(r, now), nil
}

type ListReservationsQuery struct {
	Slug string `validate:"required"`
}

func (ListReservationsQuery) Key() string { return listReservationsKey }

func (h *Handlers) list(ctx context.Context, q ListReservationsQuery) ([]dto.Reservation, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().BySlug(execCtx, q.Slug)
	if err != nil {
		return nil, err
	}
	items, err := unit.Reservations().ByListing(execCtx, listing.ID)
	if err != nil {
		return nil, err
	}
	today := handlersupport.Now(h.Now)
	out := make([]dto.Reservation, 0, len(items))
	for _, r := range items {
		out = append(out, dto.MapReservation(r, today))
	}
	return out, nil
}

func (h *Handlers) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
