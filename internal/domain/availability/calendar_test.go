package availability

import (
	"testing"
	"time"

	"homestay/internal/domain/reservations"
	"homestay/internal/domain/shared/daterange"
)

func reservation(t *testing.T, id, in, out string) *reservations.Reservation {
	t.Helper()
	checkIn, _ := daterange.ParseDate(in)
	checkOut, _ := daterange.ParseDate(out)
	stay, err := daterange.New(checkIn, checkOut)
	if err != nil {
		t.Fatalf("stay: %v", err)
	}
	r, err := reservations.New(reservations.CreateParams{
		ID:        reservations.ReservationID(id),
		ListingID: "listing-1",
		UserID:    "user-1",
		Stay:      stay,
		Now:       time.Now(),
	}, nil)
	if err != nil {
		t.Fatalf("reservation: %v", err)
	}
	return r
}

func TestComputeHalfOpenStay(t *testing.T) {
	window := daterange.MonthWindow(2024, time.February)
	cal := Compute("listing-1", window, []*reservations.Reservation{
		reservation(t, "r1", "2024-02-01", "2024-02-05"),
	})

	if cal.Len() != 29 {
		t.Fatalf("expected 29 days in February 2024, got %d", cal.Len())
	}
	for _, raw := range []string{"2024-02-01", "2024-02-02", "2024-02-03", "2024-02-04"} {
		d, _ := daterange.ParseDate(raw)
		if cal.Available(d) {
			t.Errorf("%s should be unavailable", raw)
		}
	}
	for _, raw := range []string{"2024-02-05", "2024-02-29"} {
		d, _ := daterange.ParseDate(raw)
		if !cal.Available(d) {
			t.Errorf("%s should be available", raw)
		}
	}
}

func TestComputeIgnoresCancelledAndForeignReservations(t *testing.T) {
	cancelled := reservation(t, "r1", "2024-02-10", "2024-02-12")
	if err := cancelled.Cancel(time.Now()); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	foreign := reservation(t, "r2", "2024-02-10", "2024-02-12")
	foreign.ListingID = "listing-2"

	cal := Compute("listing-1", daterange.MonthWindow(2024, time.February), []*reservations.Reservation{cancelled, foreign})
	for _, day := range cal.Days() {
		if !day.Available {
			t.Fatalf("%s should be available", day.Date.Format(daterange.DateLayout))
		}
	}
}

func TestComputeClipsStayToWindow(t *testing.T) {
	cal := Compute("listing-1", daterange.MonthWindow(2024, time.March), []*reservations.Reservation{
		reservation(t, "r1", "2024-02-27", "2024-03-03"),
	})
	days := cal.Days()
	if len(days) != 31 {
		t.Fatalf("expected 31 days, got %d", len(days))
	}
	if days[0].Available || days[1].Available || !days[2].Available {
		t.Fatalf("unexpected head of March: %+v", days[:3])
	}
}

func TestMonthsSpansConsecutiveMonths(t *testing.T) {
	w := Months(2024, time.December, 2)
	if w.CheckIn.Format(daterange.DateLayout) != "2024-12-01" || w.CheckOut.Format(daterange.DateLayout) != "2025-02-01" {
		t.Fatalf("unexpected window %v..%v", w.CheckIn, w.CheckOut)
	}
}
