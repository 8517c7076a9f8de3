package daterange

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
	ErrInvalidSpan  = errors.New("daterange: end date must not be before start date")
	ErrInvalidMonth = errors.New("daterange: month must be formatted as YYYYMM")
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateRange represents a half-open interval [checkIn, checkOut)
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Truncate(checkIn), CheckOut: Truncate(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) Nights() int {
	return int(dr.CheckOut.Sub(dr.CheckIn).Hours() / 24)
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = Truncate(t)
	return (t.Equal(dr.CheckIn) || t.After(dr.CheckIn)) && t.Before(dr.CheckOut)
}

// Days iterates every night of the range; the checkout date is excluded.
func (dr DateRange) Days() iter.Seq[time.Time] {
	return Days(dr.CheckIn, dr.CheckOut.AddDate(0, 0, -1))
}

// Span is an inclusive interval [Start, End] of calendar dates.
type Span struct {
	Start time.Time
	End   time.Time
}

func NewSpan(start, end time.Time) (Span, error) {
	s := Span{Start: Truncate(start), End: Truncate(end)}
	if s.Start.IsZero() || s.End.IsZero() {
		return Span{}, ErrInvalidSpan
	}
	if s.End.Before(s.Start) {
		return Span{}, ErrInvalidSpan
	}
	return s, nil
}

// Len returns the number of dates in the span.
func (s Span) Len() int {
	if s.End.Before(s.Start) {
		return 0
	}
	return int(s.End.Sub(s.Start).Hours()/24) + 1
}

func (s Span) Contains(t time.Time) bool {
	t = Truncate(t)
	return !t.Before(s.Start) && !t.After(s.End)
}

func (s Span) Days() iter.Seq[time.Time] {
	return Days(s.Start, s.End)
}

func (s Span) String() string {
	return s.Start.Format(DateLayout) + ".." + s.End.Format(DateLayout)
}

// Days yields every calendar date from start to end, both inclusive, in
// ascending order. The sequence is empty when start is after end. Each call
// to the returned function restarts from start.
func Days(start, end time.Time) iter.Seq[time.Time] {
	start, end = Truncate(start), Truncate(end)
	return func(yield func(time.Time) bool) {
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			if !yield(d) {
				return
			}
		}
	}
}

// Truncate drops the clock part and pins the date to UTC.
func Truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("daterange: invalid date %q, expected YYYY-MM-DD", raw)
	}
	return Truncate(t), nil
}

// MonthWindow returns [first of month, first of next month).
func MonthWindow(year int, month time.Month) DateRange {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return DateRange{CheckIn: from, CheckOut: from.AddDate(0, 1, 0)}
}

// ParseMonth reads a YYYYMM value.
func ParseMonth(raw string) (int, time.Month, error) {
	if len(raw) != 6 {
		return 0, 0, ErrInvalidMonth
	}
	year, err := strconv.Atoi(raw[:4])
	if err != nil {
		return 0, 0, ErrInvalidMonth
	}
	month, err := strconv.Atoi(raw[4:])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, ErrInvalidMonth
	}
	return year, time.Month(month), nil
}
