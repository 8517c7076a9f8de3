package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"homestay/internal/app/uow"
	domainlistings "homestay/internal/domain/listings"
	domainpricing "homestay/internal/domain/pricing"
	domainreferences "homestay/internal/domain/references"
	domainreservations "homestay/internal/domain/reservations"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
// Repositories are stateless; the session travels in the context that
// uow.Bind prepares.
type Factory struct {
	DB *mongo.Database
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if opts.ReadOnly {
		txnOpts = txnOpts.SetReadPreference(readpref.Primary())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{db: f.DB, session: session}, nil
}

type Unit struct {
	db      *mongo.Database
	session mongo.Session
	once    sync.Once
}

func (u *Unit) Listings() domainlistings.ListingRepository {
	return ListingRepository{db: u.db}
}

func (u *Unit) Photos() domainlistings.PhotoRepository {
	return PhotoRepository{col: u.db.Collection(colPhotos)}
}

func (u *Unit) References() domainreferences.Repository {
	return ReferenceRepository{db: u.db}
}

func (u *Unit) PriceTags() domainpricing.PriceTagRepository {
	return PriceTagRepository{col: u.db.Collection(colPriceTags)}
}

func (u *Unit) DayRates() domainpricing.DayRateRepository {
	return DayRateRepository{col: u.db.Collection(colDayRates)}
}

func (u *Unit) Reservations() domainreservations.Repository {
	return ReservationRepository{col: u.db.Collection(colReservations), listings: u.db.Collection(colListings)}
}

func (u *Unit) Commit(ctx context.Context) error {
	err := errAlreadyFinished
	u.once.Do(func() {
		defer u.session.EndSession(ctx)
		err = u.session.CommitTransaction(ctx)
	})
	if errors.Is(err, errAlreadyFinished) {
		return nil
	}
	return transient(err)
}

// transient tags driver errors that the server labels as retryable.
func transient(err error) error {
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) &&
		(labeled.HasErrorLabel("TransientTransactionError") || labeled.HasErrorLabel("UnknownTransactionCommitResult")) {
		return fmt.Errorf("%w: %w", uow.ErrTransient, err)
	}
	return err
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.once.Do(func() {
		defer u.session.EndSession(ctx)
		_ = u.session.AbortTransaction(ctx)
	})
	return nil
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var errAlreadyFinished = errors.New("mongo: unit already finished")

var _ uow.UnitOfWork = (*Unit)(nil)
