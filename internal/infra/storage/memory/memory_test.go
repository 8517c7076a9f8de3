package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"homestay/internal/app/commands"
	"homestay/internal/app/dto"
	pricinghandlers "homestay/internal/app/handlers/pricing"
	"homestay/internal/app/middleware"
	"homestay/internal/app/uow"
	domainlistings "homestay/internal/domain/listings"
	domainpricing "homestay/internal/domain/pricing"
	"homestay/internal/domain/shared/daterange"
	"homestay/internal/infra/storage/memory"
)

func seedListing(t *testing.T, factory memory.Factory, slug string) *domainlistings.Listing {
	t.Helper()
	ctx := context.Background()
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:   domainlistings.ListingID("id-" + slug),
		Slug: slug,
		Details: domainlistings.Details{
			ObjectTypeID: "apartment",
			Title:        "Loft " + slug,
			MaxGuests:    2,
			Bedrooms:     1,
			Beds:         1,
		},
		Now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("new listing: %v", err)
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := unit.Listings().Save(ctx, listing); err != nil {
		t.Fatalf("save listing: %v", err)
	}
	if err := unit.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return listing
}

func span(t *testing.T, start, end string) daterange.Span {
	t.Helper()
	s, _ := daterange.ParseDate(start)
	e, _ := daterange.ParseDate(end)
	out, err := daterange.NewSpan(s, e)
	if err != nil {
		t.Fatalf("span: %v", err)
	}
	return out
}

func ratesIn(t *testing.T, factory memory.Factory, listing domainlistings.ListingID, sp daterange.Span) []domainpricing.DayRate {
	t.Helper()
	ctx := context.Background()
	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer unit.Rollback(ctx)
	rates, err := unit.DayRates().InSpan(ctx, listing, sp)
	if err != nil {
		t.Fatalf("in span: %v", err)
	}
	return rates
}

func TestRollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	factory := memory.Factory{Store: memory.NewStore(), Outbox: memory.NewOutbox()}
	listing := seedListing(t, factory, "loft")

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := unit.Listings().Delete(ctx, listing.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := unit.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	_ = unit.Commit(ctx)

	read, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer read.Rollback(ctx)
	if _, err := read.Listings().BySlug(ctx, "loft"); err != nil {
		t.Fatalf("listing should survive rollback: %v", err)
	}
}

func TestReadOnlyUnitRejectsWrites(t *testing.T) {
	ctx := context.Background()
	factory := memory.Factory{Store: memory.NewStore()}
	listing := seedListing(t, factory, "loft")

	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer unit.Rollback(ctx)
	if err := unit.Listings().Delete(ctx, listing.ID); err == nil {
		t.Fatal("expected write through read-only unit to fail")
	}
}

func TestReservationLockNeedsWritableUnitAndListing(t *testing.T) {
	ctx := context.Background()
	factory := memory.Factory{Store: memory.NewStore()}
	listing := seedListing(t, factory, "loft")

	reader, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := reader.Reservations().Lock(ctx, listing.ID); err == nil {
		t.Fatal("expected lock through read-only unit to fail")
	}
	_ = reader.Rollback(ctx)

	writer, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer writer.Rollback(ctx)
	if err := writer.Reservations().Lock(ctx, listing.ID); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := writer.Reservations().Lock(ctx, "missing"); !errors.Is(err, domainlistings.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSlugMustBeUnique(t *testing.T) {
	ctx := context.Background()
	factory := memory.Factory{Store: memory.NewStore()}
	seedListing(t, factory, "loft")

	other, _ := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:      "other",
		Slug:    "loft",
		Details: domainlistings.Details{Title: "Other", MaxGuests: 1, Bedrooms: 1, Beds: 1},
	})
	unit, _ := factory.Begin(ctx, uow.TxOptions{})
	defer unit.Rollback(ctx)
	if err := unit.Listings().Save(ctx, other); !errors.Is(err, domainlistings.ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestApplyRejectsOccupiedDate(t *testing.T) {
	ctx := context.Background()
	factory := memory.Factory{Store: memory.NewStore()}
	listing := seedListing(t, factory, "loft")
	date, _ := daterange.ParseDate("2024-01-05")

	unit, _ := factory.Begin(ctx, uow.TxOptions{})
	defer unit.Rollback(ctx)
	first := domainpricing.Materialization{Create: []domainpricing.DayRate{{Date: date, PriceTagID: "t1"}}}
	if err := unit.DayRates().Apply(ctx, listing.ID, first); err != nil {
		t.Fatalf("apply: %v", err)
	}
	second := domainpricing.Materialization{Create: []domainpricing.DayRate{{Date: date, PriceTagID: "t2"}}}
	if err := unit.DayRates().Apply(ctx, listing.ID, second); !errors.Is(err, domainpricing.ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}
}

func TestApplyDeletesOnlyRatesOfThePlannedTag(t *testing.T) {
	ctx := context.Background()
	factory := memory.Factory{Store: memory.NewStore()}
	listing := seedListing(t, factory, "loft")
	date, _ := daterange.ParseDate("2024-01-05")

	unit, _ := factory.Begin(ctx, uow.TxOptions{})
	defer unit.Rollback(ctx)
	seed := domainpricing.Materialization{Tag: "t2", Create: []domainpricing.DayRate{{Date: date, PriceTagID: "t2"}}}
	if err := unit.DayRates().Apply(ctx, listing.ID, seed); err != nil {
		t.Fatalf("apply: %v", err)
	}
	shrink := domainpricing.Materialization{Tag: "t1", Delete: []time.Time{date}}
	if err := unit.DayRates().Apply(ctx, listing.ID, shrink); err != nil {
		t.Fatalf("apply shrink: %v", err)
	}
	rates, err := unit.DayRates().ByPriceTag(ctx, "t2")
	if err != nil {
		t.Fatalf("by tag: %v", err)
	}
	if len(rates) != 1 {
		t.Fatalf("shrinking t1 removed a rate of t2: %v", rates)
	}
}

func newPricingBus(factory memory.Factory, box *memory.Outbox) commands.Bus {
	h := &pricinghandlers.CommandHandlers{Outbox: box, BaseCurrency: "USD"}
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, pricinghandlers.CreatePriceTagCommand{}.Key(), h.Create())
	commands.RegisterHandler(bus, pricinghandlers.UpdatePriceTagCommand{}.Key(), h.Update())
	commands.RegisterHandler(bus, pricinghandlers.DeletePriceTagCommand{}.Key(), h.Delete())
	return middleware.ChainCommands(bus,
		middleware.OutboxFlush(box, nil),
		middleware.Transaction(factory, nil),
	)
}

func createTag(ctx context.Context, bus commands.Bus, start, end string, price int64) (dto.SavedPriceTag, error) {
	return commands.Dispatch[pricinghandlers.CreatePriceTagCommand, dto.SavedPriceTag](ctx, bus, pricinghandlers.CreatePriceTagCommand{
		Slug: "loft",
		PriceTagPayload: pricinghandlers.PriceTagPayload{
			StartDate: start,
			EndDate:   end,
			Price:     price,
		},
	})
}

func TestOverlappingTagLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	box := memory.NewOutbox()
	factory := memory.Factory{Store: memory.NewStore(), Outbox: box}
	listing := seedListing(t, factory, "loft")
	bus := newPricingBus(factory, box)

	saved, err := createTag(ctx, bus, "2024-01-01", "2024-01-10", 10000)
	if err != nil {
		t.Fatalf("first tag: %v", err)
	}
	if saved.Created != 10 {
		t.Fatalf("expected 10 day rates, got %d", saved.Created)
	}

	_, err = createTag(ctx, bus, "2024-01-05", "2024-01-15", 9000)
	var overlap *domainpricing.OverlapError
	if !errors.As(err, &overlap) {
		t.Fatalf("expected *OverlapError, got %v", err)
	}
	if got := overlap.DateStrings(); len(got) != 6 || got[0] != "2024-01-05" || got[5] != "2024-01-10" {
		t.Fatalf("unexpected conflicting dates %v", got)
	}

	if rates := ratesIn(t, factory, listing.ID, span(t, "2024-01-11", "2024-01-15")); len(rates) != 0 {
		t.Fatalf("expected no rates after the failed tag, got %d", len(rates))
	}
	rates := ratesIn(t, factory, listing.ID, span(t, "2024-01-01", "2024-01-10"))
	if len(rates) != 10 {
		t.Fatalf("expected the first tag's 10 rates, got %d", len(rates))
	}
	for _, r := range rates {
		if r.Price.Amount != 10000 || string(r.PriceTagID) != saved.PriceTag.ID {
			t.Fatalf("rate rewritten by failed tag: %+v", r)
		}
	}

	unit, _ := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	tags, err := unit.PriceTags().ByListing(ctx, listing.ID)
	_ = unit.Rollback(ctx)
	if err != nil || len(tags) != 1 {
		t.Fatalf("expected only the first tag to be stored, got %d (%v)", len(tags), err)
	}

	pending := box.Pending()
	if len(pending) != 1 || pending[0] != "pricing.tag_saved" {
		t.Fatalf("expected a single committed pricing event, got %v", pending)
	}
}

func TestDeleteTagRemovesItsRates(t *testing.T) {
	ctx := context.Background()
	factory := memory.Factory{Store: memory.NewStore()}
	listing := seedListing(t, factory, "loft")
	bus := newPricingBus(factory, memory.NewOutbox())

	saved, err := createTag(ctx, bus, "2024-03-01", "2024-03-03", 5000)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = commands.Dispatch[pricinghandlers.DeletePriceTagCommand, struct{}](ctx, bus, pricinghandlers.DeletePriceTagCommand{Slug: "loft", PriceTagID: saved.PriceTag.ID})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rates := ratesIn(t, factory, listing.ID, span(t, "2024-03-01", "2024-03-03")); len(rates) != 0 {
		t.Fatalf("expected rates to be removed, got %d", len(rates))
	}
	if _, err := createTag(ctx, bus, "2024-03-02", "2024-03-04", 6000); err != nil {
		t.Fatalf("dates should be free again: %v", err)
	}
}
