package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"homestay/internal/app/commands"
	"homestay/internal/app/middleware"
	"homestay/internal/app/queries"
	"homestay/internal/app/uow"
	"homestay/internal/app/validation"
	"homestay/internal/infra/cache"
	"homestay/internal/infra/storage/memory"
)

type bookCommand struct {
	Slug       string `json:"slug" validate:"required"`
	RequestKey string `json:"-"`
}

func (bookCommand) Key() string              { return "test.book" }
func (c bookCommand) IdempotencyKey() string { return c.RequestKey }
func (bookCommand) ResultPrototype() any     { return &bookResult{} }

type bookResult struct {
	ID    string `json:"id"`
	Calls int    `json:"calls"`
}

type fakeUnit struct {
	uow.UnitOfWork
	commits   int
	rollbacks int
}

func (u *fakeUnit) Commit(context.Context) error   { u.commits++; return nil }
func (u *fakeUnit) Rollback(context.Context) error { u.rollbacks++; return nil }

type fakeFactory struct{ units []*fakeUnit }

func (f *fakeFactory) Begin(context.Context, uow.TxOptions) (uow.UnitOfWork, error) {
	u := &fakeUnit{}
	f.units = append(f.units, u)
	return u, nil
}

type mapStore struct {
	records map[string]middleware.IdempotencyRecord
}

func (s *mapStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	rec, ok := s.records[key]
	return rec, ok, nil
}

func (s *mapStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.records[rec.Key] = rec
	return nil
}

func bookingBus(handler func(ctx context.Context, cmd bookCommand) (bookResult, error)) *commands.InMemoryBus {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, bookCommand{}.Key(), commands.HandlerFunc[bookCommand, bookResult](handler))
	return bus
}

func TestChainRunsFirstMiddlewareOutermost(t *testing.T) {
	var order []string
	trace := func(name string) middleware.CommandMiddleware {
		return func(next commands.Bus) commands.Bus {
			return commandBus(func(ctx context.Context, cmd commands.Command) (any, error) {
				order = append(order, name)
				return next.Dispatch(ctx, cmd)
			})
		}
	}
	bus := middleware.ChainCommands(bookingBus(func(context.Context, bookCommand) (bookResult, error) {
		order = append(order, "handler")
		return bookResult{}, nil
	}), trace("outer"), trace("inner"))

	if _, err := bus.Dispatch(context.Background(), bookCommand{Slug: "loft"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	want := []string{"outer", "inner", "handler"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

type commandBus func(ctx context.Context, cmd commands.Command) (any, error)

func (f commandBus) Dispatch(ctx context.Context, cmd commands.Command) (any, error) { return f(ctx, cmd) }

func TestTransactionCommitsOnlyOnSuccess(t *testing.T) {
	factory := &fakeFactory{}
	fail := errors.New("boom")
	bus := middleware.ChainCommands(bookingBus(func(ctx context.Context, cmd bookCommand) (bookResult, error) {
		if _, ok := uow.FromContext(ctx); !ok {
			t.Fatal("handler ran without a unit of work")
		}
		if cmd.Slug == "bad" {
			return bookResult{}, fail
		}
		return bookResult{ID: "ok"}, nil
	}), middleware.Transaction(factory, nil))

	if _, err := bus.Dispatch(context.Background(), bookCommand{Slug: "loft"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := bus.Dispatch(context.Background(), bookCommand{Slug: "bad"}); !errors.Is(err, fail) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if len(factory.units) != 2 {
		t.Fatalf("expected a unit per command, got %d", len(factory.units))
	}
	if ok := factory.units[0]; ok.commits != 1 || ok.rollbacks != 0 {
		t.Fatalf("successful unit: commits=%d rollbacks=%d", ok.commits, ok.rollbacks)
	}
	if bad := factory.units[1]; bad.commits != 0 || bad.rollbacks != 1 {
		t.Fatalf("failed unit: commits=%d rollbacks=%d", bad.commits, bad.rollbacks)
	}
}

func TestTransactionRetriesTransientConflicts(t *testing.T) {
	factory := &fakeFactory{}
	attempts, conflicts := 0, 1
	bus := middleware.ChainCommands(bookingBus(func(context.Context, bookCommand) (bookResult, error) {
		attempts++
		if attempts <= conflicts {
			return bookResult{}, fmt.Errorf("write conflict: %w", uow.ErrTransient)
		}
		return bookResult{ID: "ok"}, nil
	}), middleware.Transaction(factory, nil))

	if _, err := bus.Dispatch(context.Background(), bookCommand{Slug: "loft"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if attempts != 2 || len(factory.units) != 2 {
		t.Fatalf("expected a fresh unit per attempt, got %d attempts and %d units", attempts, len(factory.units))
	}
	if first := factory.units[0]; first.rollbacks != 1 || first.commits != 0 {
		t.Fatalf("conflicting unit: commits=%d rollbacks=%d", first.commits, first.rollbacks)
	}

	attempts, conflicts = 0, 100
	if _, err := bus.Dispatch(context.Background(), bookCommand{Slug: "loft"}); !errors.Is(err, uow.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if attempts != middleware.MaxTxAttempts {
		t.Fatalf("expected %d attempts, got %d", middleware.MaxTxAttempts, attempts)
	}
}

func TestTransactionReleasesUnitWhenHandlerPanics(t *testing.T) {
	factory := memory.Factory{Store: memory.NewStore(), Outbox: memory.NewOutbox()}
	bus := middleware.ChainCommands(bookingBus(func(context.Context, bookCommand) (bookResult, error) {
		panic("handler exploded")
	}), middleware.Transaction(factory, nil))

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the handler panic to propagate")
			}
		}()
		_, _ = bus.Dispatch(context.Background(), bookCommand{Slug: "loft"})
	}()

	begun := make(chan error, 1)
	go func() {
		unit, err := factory.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
		if err == nil {
			err = unit.Rollback(context.Background())
		}
		begun <- err
	}()
	select {
	case err := <-begun:
		if err != nil {
			t.Fatalf("begin after panic: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("store still locked by the panicked unit")
	}
}

func TestIdempotencyReplaysSuccessOnly(t *testing.T) {
	store := &mapStore{records: map[string]middleware.IdempotencyRecord{}}
	calls := 0
	failNext := true
	bus := middleware.ChainCommands(bookingBus(func(context.Context, bookCommand) (bookResult, error) {
		calls++
		if failNext {
			failNext = false
			return bookResult{}, errors.New("transient")
		}
		return bookResult{ID: "r-1", Calls: calls}, nil
	}), middleware.Idempotency(store, nil, time.Hour))

	ctx := context.Background()
	cmd := bookCommand{Slug: "loft", RequestKey: "k1"}
	if _, err := commands.Dispatch[bookCommand, bookResult](ctx, bus, cmd); err == nil {
		t.Fatal("expected the first attempt to fail")
	}
	first, err := commands.Dispatch[bookCommand, bookResult](ctx, bus, cmd)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	replay, err := commands.Dispatch[bookCommand, bookResult](ctx, bus, cmd)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected the handler to run twice, ran %d times", calls)
	}
	if replay != first {
		t.Fatalf("replay %+v differs from %+v", replay, first)
	}

	if _, err := commands.Dispatch[bookCommand, bookResult](ctx, bus, bookCommand{Slug: "loft"}); err != nil {
		t.Fatalf("keyless dispatch: %v", err)
	}
	if calls != 3 {
		t.Fatalf("commands without a key must always run, calls=%d", calls)
	}
}

func TestValidationStopsInvalidCommands(t *testing.T) {
	ran := false
	bus := middleware.ChainCommands(bookingBus(func(context.Context, bookCommand) (bookResult, error) {
		ran = true
		return bookResult{}, nil
	}), middleware.Validation(validation.New()))

	if _, err := bus.Dispatch(context.Background(), bookCommand{}); err == nil {
		t.Fatal("expected a validation error")
	}
	if ran {
		t.Fatal("handler ran for an invalid command")
	}
}

type calendarQuery struct {
	Slug string
}

func (calendarQuery) Key() string           { return "test.calendar" }
func (q calendarQuery) CacheKey() string    { return q.Slug }
func (q calendarQuery) CacheTags() []string { return []string{"listing:" + q.Slug} }
func (calendarQuery) ResultPrototype() any  { return &[]string{} }

func TestQueryCacheServesUntilInvalidated(t *testing.T) {
	store := cache.NewMemory()
	calls := 0
	base := queries.NewInMemoryBus()
	queries.RegisterHandler(base, calendarQuery{}.Key(), queries.HandlerFunc[calendarQuery, []string](func(context.Context, calendarQuery) ([]string, error) {
		calls++
		return []string{"2030-03-01"}, nil
	}))
	bus := middleware.ChainQueries(base, middleware.QueryCache(store, time.Minute, nil))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		days, err := queries.Ask[calendarQuery, []string](ctx, bus, calendarQuery{Slug: "loft"})
		if err != nil {
			t.Fatalf("ask: %v", err)
		}
		if len(days) != 1 || days[0] != "2030-03-01" {
			t.Fatalf("unexpected answer %v", days)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one handler call, got %d", calls)
	}

	if err := store.Invalidate(ctx, "listing:loft"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := queries.Ask[calendarQuery, []string](ctx, bus, calendarQuery{Slug: "loft"}); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a fresh call after invalidation, got %d", calls)
	}
}

func TestQueryCacheDropsAnswersOutdatedWhileComputing(t *testing.T) {
	store := cache.NewMemory()
	ctx := context.Background()
	reserved := false
	base := queries.NewInMemoryBus()
	queries.RegisterHandler(base, calendarQuery{}.Key(), queries.HandlerFunc[calendarQuery, []string](func(ctx context.Context, _ calendarQuery) ([]string, error) {
		answer := []string{"2024-02-01:free"}
		if reserved {
			return []string{"2024-02-01:booked"}, nil
		}
		// a reservation commits and is invalidated after this read
		reserved = true
		if err := store.Invalidate(ctx, "listing:loft"); err != nil {
			t.Fatalf("invalidate: %v", err)
		}
		return answer, nil
	}))
	bus := middleware.ChainQueries(base, middleware.QueryCache(store, time.Minute, nil))

	if _, err := queries.Ask[calendarQuery, []string](ctx, bus, calendarQuery{Slug: "loft"}); err != nil {
		t.Fatalf("ask: %v", err)
	}
	days, err := queries.Ask[calendarQuery, []string](ctx, bus, calendarQuery{Slug: "loft"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(days) != 1 || days[0] != "2024-02-01:booked" {
		t.Fatalf("outdated calendar served from cache: %v", days)
	}
}

func TestCacheInvalidationRunsAfterSuccessOnly(t *testing.T) {
	store := cache.NewMemory()
	ctx := context.Background()
	seed := func(key string) {
		stamp, _ := store.Stamp(ctx, []string{"listing:loft"})
		if kept, err := store.Set(ctx, key, []byte("{}"), stamp, time.Minute); err != nil || !kept {
			t.Fatalf("seed: kept=%v err=%v", kept, err)
		}
	}
	bus := middleware.ChainCommands(bookingBus(func(ctx context.Context, cmd bookCommand) (bookResult, error) {
		middleware.TouchCache(ctx, "listing:"+cmd.Slug)
		if cmd.RequestKey == "fail" {
			return bookResult{}, errors.New("boom")
		}
		return bookResult{ID: "ok"}, nil
	}), middleware.CacheInvalidation(store, nil))

	seed("calendar")
	if _, err := bus.Dispatch(ctx, bookCommand{Slug: "loft", RequestKey: "fail"}); err == nil {
		t.Fatal("expected handler error")
	}
	if _, hit, _ := store.Get(ctx, "calendar"); !hit {
		t.Fatal("a failed command must not invalidate")
	}
	if _, err := bus.Dispatch(ctx, bookCommand{Slug: "loft"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, hit, _ := store.Get(ctx, "calendar"); hit {
		t.Fatal("a successful command must invalidate the touched tags")
	}
}
