// Package bootstrap registers every application handler on the command and
// query buses and wraps them in the middleware pipeline.
package bootstrap

import (
	"errors"
	"log/slog"
	"time"

	"homestay/internal/app/admin"
	"homestay/internal/app/commands"
	availabilityapp "homestay/internal/app/handlers/availability"
	listingapp "homestay/internal/app/handlers/listings"
	pricingapp "homestay/internal/app/handlers/pricing"
	referenceapp "homestay/internal/app/handlers/references"
	reservationapp "homestay/internal/app/handlers/reservations"
	"homestay/internal/app/middleware"
	"homestay/internal/app/outbox"
	"homestay/internal/app/policies"
	"homestay/internal/app/queries"
	"homestay/internal/app/uow"
	"homestay/internal/app/validation"
	domainlistings "homestay/internal/domain/listings"
)

var ErrMissingDependency = errors.New("bootstrap: missing dependency")

type Deps struct {
	Logger         *slog.Logger
	UoWFactory     uow.UoWFactory
	Outbox         outbox.Outbox
	Idempotency    middleware.IdempotencyStore
	IdempotencyTTL time.Duration
	// Cache is optional; without it queries always reach their handler.
	Cache        middleware.Cache
	CacheTTL     time.Duration
	Photos       policies.PhotoStorage
	ImageSizes   []domainlistings.Size
	ImageFormat  string
	BaseCurrency string
	Now          func() time.Time
}

type Buses struct {
	Commands    commands.Bus
	Queries     queries.Bus
	CommandKeys []string
	QueryKeys   []string
}

func Build(d Deps) (Buses, error) {
	switch {
	case d.UoWFactory == nil:
		return Buses{}, missing("unit of work factory")
	case d.Outbox == nil:
		return Buses{}, missing("outbox")
	case d.Idempotency == nil:
		return Buses{}, missing("idempotency store")
	case d.Photos == nil:
		return Buses{}, missing("photo storage")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	encoder := outbox.JSONEventEncoder{}

	registry, err := admin.NewRegistry()
	if err != nil {
		return Buses{}, err
	}

	listingCommands := &listingapp.CommandHandlers{
		Logger:  logger,
		Outbox:  d.Outbox,
		Encoder: encoder,
		Now:     d.Now,
	}
	listingQueries := &listingapp.QueryHandlers{UoWFactory: d.UoWFactory}
	photos := &listingapp.PhotoHandlers{
		Logger:     logger,
		Storage:    d.Photos,
		Outbox:     d.Outbox,
		Encoder:    encoder,
		Sizes:      d.ImageSizes,
		Format:     d.ImageFormat,
		Now:        d.Now,
		UoWFactory: d.UoWFactory,
	}
	pricingCommands := &pricingapp.CommandHandlers{
		Logger:       logger,
		Outbox:       d.Outbox,
		Encoder:      encoder,
		BaseCurrency: d.BaseCurrency,
		Now:          d.Now,
	}
	pricingQueries := &pricingapp.QueryHandlers{
		UoWFactory:   d.UoWFactory,
		BaseCurrency: d.BaseCurrency,
		Now:          d.Now,
	}
	reservations := &reservationapp.Handlers{
		Logger:       logger,
		Outbox:       d.Outbox,
		Encoder:      encoder,
		BaseCurrency: d.BaseCurrency,
		Now:          d.Now,
		UoWFactory:   d.UoWFactory,
	}
	references := &referenceapp.Handlers{Logger: logger, UoWFactory: d.UoWFactory}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, listingapp.CreateListingCommand{}.Key(), listingCommands.Create())
	commands.RegisterHandler(commandBus, listingapp.UpdateListingCommand{}.Key(), listingCommands.Update())
	commands.RegisterHandler(commandBus, listingapp.DeleteListingCommand{}.Key(), listingCommands.Delete())
	commands.RegisterHandler(commandBus, listingapp.UploadPhotoCommand{}.Key(), photos.Upload())
	commands.RegisterHandler(commandBus, pricingapp.CreatePriceTagCommand{}.Key(), pricingCommands.Create())
	commands.RegisterHandler(commandBus, pricingapp.UpdatePriceTagCommand{}.Key(), pricingCommands.Update())
	commands.RegisterHandler(commandBus, pricingapp.DeletePriceTagCommand{}.Key(), pricingCommands.Delete())
	commands.RegisterHandler(commandBus, reservationapp.CreateReservationCommand{}.Key(), reservations.Create())
	for _, key := range reservationapp.TransitionKeys() {
		commands.RegisterHandler(commandBus, key, reservations.Transition())
	}
	commands.RegisterHandler(commandBus, referenceapp.LoadReferencesCommand{}.Key(), references.Load())

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, listingapp.GetListingQuery{}.Key(), listingQueries.Get())
	queries.RegisterHandler(queryBus, listingapp.SearchListingsQuery{}.Key(), listingQueries.Search())
	queries.RegisterHandler(queryBus, listingapp.ListPhotosQuery{}.Key(), photos.List())
	queries.RegisterHandler(queryBus, pricingapp.ListPriceTagsQuery{}.Key(), pricingQueries.ListTags())
	queries.RegisterHandler(queryBus, pricingapp.ListDayRatesQuery{}.Key(), pricingQueries.ListDayRates())
	queries.RegisterHandler(queryBus, pricingapp.QuoteQuery{}.Key(), pricingQueries.Quote())
	queries.RegisterHandler(queryBus, reservationapp.ListReservationsQuery{}.Key(), reservations.List())
	queries.RegisterHandler(queryBus, availabilityapp.GetCalendarQuery{}.Key(), &availabilityapp.GetCalendarHandler{
		UoWFactory: d.UoWFactory,
		Now:        d.Now,
	})
	queries.RegisterHandler(queryBus, referenceapp.ListReferencesQuery{}.Key(), references.List())
	queries.RegisterHandler(queryBus, admin.ListEntitiesQuery{}.Key(), &admin.ListEntitiesHandler{Registry: registry})

	validator := validation.New()
	// OutboxFlush and CacheInvalidation sit outside Transaction so that they
	// only run after commit.
	commandMiddleware := []middleware.CommandMiddleware{
		middleware.Logging(logger),
		middleware.Validation(validator),
		middleware.Idempotency(d.Idempotency, nil, d.IdempotencyTTL),
		middleware.OutboxFlush(d.Outbox, logger),
	}
	if d.Cache != nil {
		commandMiddleware = append(commandMiddleware, middleware.CacheInvalidation(d.Cache, logger))
	}
	commandMiddleware = append(commandMiddleware, middleware.Transaction(d.UoWFactory, nil))
	commandPipeline := middleware.ChainCommands(commandBus, commandMiddleware...)

	queryMiddleware := []middleware.QueryMiddleware{
		middleware.QueryLogging(logger),
		middleware.QueryValidation(validator),
	}
	if d.Cache != nil {
		queryMiddleware = append(queryMiddleware, middleware.QueryCache(d.Cache, d.CacheTTL, logger))
	}
	queryPipeline := middleware.ChainQueries(queryBus, queryMiddleware...)

	return Buses{
		Commands:    commandPipeline,
		Queries:     queryPipeline,
		CommandKeys: commandBus.Keys(),
		QueryKeys:   queryBus.Keys(),
	}, nil
}

func missing(what string) error {
	return errors.Join(ErrMissingDependency, errors.New(what))
}
