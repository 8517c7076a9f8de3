package pricing

import (
	"errors"
	"testing"
	"time"

	"homestay/internal/domain/shared/daterange"
	"homestay/internal/domain/shared/money"
)

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := daterange.ParseDate(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return d
}

func newTag(t *testing.T, id, start, end string, amount int64) *PriceTag {
	t.Helper()
	tag, err := NewPriceTag(NewPriceTagParams{
		ID:        PriceTagID(id),
		ListingID: "listing-1",
		Start:     day(t, start),
		End:       day(t, end),
		Price:     money.Must(amount, "USD"),
		Now:       time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("new tag %s: %v", id, err)
	}
	return tag
}

func mustPlan(t *testing.T, tag *PriceTag, existing []DayRate) Materialization {
	t.Helper()
	plan, err := Plan(tag, existing)
	if err != nil {
		t.Fatalf("plan %s: %v", tag.ID, err)
	}
	return plan
}

// materialize applies a plan to an in-test rate table the way a repository would.
func materialize(table map[time.Time]DayRate, plan Materialization) {
	for _, r := range plan.Create {
		table[r.Date] = r
	}
	for _, r := range plan.Update {
		table[r.Date] = r
	}
	for _, d := range plan.Delete {
		if table[d].PriceTagID == plan.Tag {
			delete(table, d)
		}
	}
}

func rows(table map[time.Time]DayRate) []DayRate {
	out := make([]DayRate, 0, len(table))
	for _, r := range table {
		out = append(out, r)
	}
	return out
}

func TestPlanCreatesOneRatePerDate(t *testing.T) {
	tag := newTag(t, "t1", "2024-01-01", "2024-01-10", 10000)
	plan, err := Plan(tag, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Create) != 10 {
		t.Fatalf("expected 10 rates, got %d", len(plan.Create))
	}
	if len(plan.Update) != 0 || len(plan.Delete) != 0 {
		t.Fatalf("expected create-only plan, got %+v", plan)
	}
	for i, r := range plan.Create {
		want := day(t, "2024-01-01").AddDate(0, 0, i)
		if !r.Date.Equal(want) {
			t.Fatalf("rate %d dated %s, want %s", i, r.Date, want)
		}
		if r.PriceTagID != "t1" || r.Price.Amount != 10000 {
			t.Fatalf("unexpected rate %+v", r)
		}
	}
}

func TestPlanSingleDaySpan(t *testing.T) {
	tag := newTag(t, "t1", "2024-03-05", "2024-03-05", 500)
	plan, err := Plan(tag, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Create) != 1 || !plan.Create[0].Date.Equal(day(t, "2024-03-05")) {
		t.Fatalf("expected a single rate for 2024-03-05, got %+v", plan.Create)
	}
}

func TestPlanIsIdempotent(t *testing.T) {
	table := map[time.Time]DayRate{}
	tag := newTag(t, "t1", "2024-01-01", "2024-01-10", 10000)
	plan, err := Plan(tag, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	materialize(table, plan)

	again, err := Plan(tag, rows(table))
	if err != nil {
		t.Fatalf("second plan: %v", err)
	}
	if !again.Empty() {
		t.Fatalf("expected no writes on resave, got %+v", again)
	}
}

func TestPlanUpdatesPriceInPlace(t *testing.T) {
	table := map[time.Time]DayRate{}
	tag := newTag(t, "t1", "2024-01-01", "2024-01-10", 10000)
	materialize(table, mustPlan(t, tag, nil))
	neighbour := newTag(t, "t2", "2024-01-11", "2024-01-15", 7000)
	materialize(table, mustPlan(t, neighbour, rows(table)))

	if err := tag.Revise(tag.Span.Start, tag.Span.End, money.Must(12000, "USD"), "", time.Now()); err != nil {
		t.Fatalf("revise: %v", err)
	}
	plan := mustPlan(t, tag, rows(table))
	if len(plan.Create) != 0 || len(plan.Update) != 10 || len(plan.Delete) != 0 {
		t.Fatalf("expected 10 updates, got %+v", plan)
	}
	for _, r := range plan.Update {
		if r.PriceTagID != "t1" {
			t.Fatalf("plan touches a rate of %s: %+v", r.PriceTagID, r)
		}
	}
	materialize(table, plan)
	if len(table) != 15 {
		t.Fatalf("expected 15 rates, got %d", len(table))
	}
	for _, r := range table {
		switch r.PriceTagID {
		case "t1":
			if r.Price.Amount != 12000 {
				t.Fatalf("unexpected rate after update %+v", r)
			}
		case "t2":
			if r.Price.Amount != 7000 || r.Date.Before(day(t, "2024-01-11")) {
				t.Fatalf("neighbouring rate changed %+v", r)
			}
		default:
			t.Fatalf("unexpected owner %+v", r)
		}
	}
}

func TestPlanRejectsOverlapWithEveryConflictingDate(t *testing.T) {
	table := map[time.Time]DayRate{}
	first := newTag(t, "t1", "2024-01-01", "2024-01-10", 10000)
	materialize(table, mustPlan(t, first, nil))

	second := newTag(t, "t2", "2024-01-05", "2024-01-15", 9000)
	_, err := Plan(second, rows(table))
	if !errors.Is(err, ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}
	var overlap *OverlapError
	if !errors.As(err, &overlap) {
		t.Fatalf("expected *OverlapError, got %T", err)
	}
	want := []string{"2024-01-05", "2024-01-06", "2024-01-07", "2024-01-08", "2024-01-09", "2024-01-10"}
	got := overlap.DateStrings()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestPlanShrinkRemovesOwnedRatesOutsideSpan(t *testing.T) {
	table := map[time.Time]DayRate{}
	tag := newTag(t, "t1", "2024-01-01", "2024-01-10", 10000)
	materialize(table, mustPlan(t, tag, nil))

	if err := tag.Revise(day(t, "2024-01-03"), day(t, "2024-01-05"), tag.Price, "", time.Now()); err != nil {
		t.Fatalf("revise: %v", err)
	}
	plan := mustPlan(t, tag, rows(table))
	if plan.Tag != "t1" {
		t.Fatalf("plan not attributed to its tag: %q", plan.Tag)
	}
	if len(plan.Delete) != 7 {
		t.Fatalf("expected 7 removals, got %d", len(plan.Delete))
	}
	if !plan.Delete[0].Equal(day(t, "2024-01-01")) || !plan.Delete[6].Equal(day(t, "2024-01-10")) {
		t.Fatalf("removals not ordered: %v", plan.Delete)
	}
	materialize(table, plan)
	if len(table) != 3 {
		t.Fatalf("expected 3 remaining rates, got %d", len(table))
	}
}

func TestNewPriceTagValidation(t *testing.T) {
	base := NewPriceTagParams{
		ID:        "t1",
		ListingID: "listing-1",
		Start:     day(t, "2024-01-01"),
		End:       day(t, "2024-01-10"),
		Price:     money.Must(100, "USD"),
	}

	negative := base
	negative.Price = money.Must(-1, "USD")
	if _, err := NewPriceTag(negative); !errors.Is(err, ErrNegativePrice) {
		t.Fatalf("expected ErrNegativePrice, got %v", err)
	}

	reversed := base
	reversed.Start, reversed.End = base.End, base.Start
	if _, err := NewPriceTag(reversed); !errors.Is(err, daterange.ErrInvalidSpan) {
		t.Fatalf("expected ErrInvalidSpan, got %v", err)
	}

	free := base
	free.Price = money.Must(0, "USD")
	if _, err := NewPriceTag(free); err != nil {
		t.Fatalf("zero price should be allowed: %v", err)
	}
}

func TestQuoteStaySumsNightsAndReportsGaps(t *testing.T) {
	tag := newTag(t, "t1", "2024-01-01", "2024-01-03", 10000)
	plan := mustPlan(t, tag, nil)

	stay, err := daterange.New(day(t, "2024-01-02"), day(t, "2024-01-06"))
	if err != nil {
		t.Fatalf("stay: %v", err)
	}
	q, err := QuoteStay(stay, plan.Create, "USD")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Nights != 4 {
		t.Fatalf("expected 4 nights, got %d", q.Nights)
	}
	if q.Total.Amount != 20000 || q.Total.Currency != "USD" {
		t.Fatalf("expected 200.00 USD, got %s", q.Total)
	}
	if len(q.UnpricedNights) != 2 || q.FullyPriced() {
		t.Fatalf("expected 2 unpriced nights, got %v", q.UnpricedNights)
	}
}

func TestNightsSpanExcludesCheckout(t *testing.T) {
	stay, _ := daterange.New(day(t, "2024-02-10"), day(t, "2024-02-12"))
	span, err := NightsSpan(stay)
	if err != nil {
		t.Fatalf("span: %v", err)
	}
	if span.String() != "2024-02-10..2024-02-11" {
		t.Fatalf("unexpected span %s", span)
	}
}
