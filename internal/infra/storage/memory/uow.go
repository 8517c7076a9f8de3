package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "homestay/internal/app/outbox"
	"homestay/internal/app/uow"
	domainlistings "homestay/internal/domain/listings"
	domainpricing "homestay/internal/domain/pricing"
	domainreferences "homestay/internal/domain/references"
	domainreservations "homestay/internal/domain/reservations"
)

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory opens units of work over a Store. Write units serialize with each
// other and with readers; rolling one back restores the state it started from.
type Factory struct {
	Store  *Store
	Outbox *Outbox
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u := &Unit{store: f.Store, outbox: f.Outbox, readOnly: opts.ReadOnly}
	if opts.ReadOnly {
		f.Store.mu.RLock()
	} else {
		f.Store.mu.Lock()
		u.before = f.Store.data.snapshot()
	}
	return u, nil
}

type Unit struct {
	store    *Store
	outbox   *Outbox
	readOnly bool
	before   *dataset

	once   sync.Once
	staged []appoutbox.EventRecord
}

func (u *Unit) Listings() domainlistings.ListingRepository {
	return listingRepository{u}
}

func (u *Unit) Photos() domainlistings.PhotoRepository {
	return photoRepository{u}
}

func (u *Unit) References() domainreferences.Repository {
	return referenceRepository{u}
}

func (u *Unit) PriceTags() domainpricing.PriceTagRepository {
	return priceTagRepository{u}
}

func (u *Unit) DayRates() domainpricing.DayRateRepository {
	return dayRateRepository{u}
}

func (u *Unit) Reservations() domainreservations.Repository {
	return reservationRepository{u}
}

func (u *Unit) Commit(ctx context.Context) error {
	u.once.Do(func() {
		staged := u.staged
		u.release()
		if u.outbox != nil && len(staged) > 0 {
			u.outbox.append(staged)
		}
	})
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.once.Do(func() {
		if !u.readOnly {
			u.store.data = u.before
		}
		u.release()
	})
	return nil
}

func (u *Unit) release() {
	u.staged = nil
	u.before = nil
	if u.readOnly {
		u.store.mu.RUnlock()
		return
	}
	u.store.mu.Unlock()
}

func (u *Unit) data() *dataset { return u.store.data }

// writable reports an error for writes attempted through a read-only unit.
func (u *Unit) writable() error {
	if u.readOnly {
		return errReadOnly
	}
	return nil
}

var errReadOnly = errors.New("memory: write attempted in read-only unit of work")

var _ uow.UnitOfWork = (*Unit)(nil)
