package uow

import (
	"context"
	"errors"

	domainlistings "homestay/internal/domain/listings"
	domainpricing "homestay/internal/domain/pricing"
	domainreferences "homestay/internal/domain/references"
	domainreservations "homestay/internal/domain/reservations"
)

// UnitOfWork groups the repositories that must observe one consistent
// snapshot and commit or roll back together.
type UnitOfWork interface {
	Listings() domainlistings.ListingRepository
	Photos() domainlistings.PhotoRepository
	References() domainreferences.Repository
	PriceTags() domainpricing.PriceTagRepository
	DayRates() domainpricing.DayRateRepository
	Reservations() domainreservations.Repository

	// Commit and Rollback are idempotent; calling either after the other is a no-op.
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}

// ErrTransient marks failures caused by a competing transaction. The whole
// unit may be retried from the start.
var ErrTransient = errors.New("uow: transient transaction conflict")
