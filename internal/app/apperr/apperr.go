// Package apperr classifies failures so that transports can map them to
// status codes without knowing every domain error.
package apperr

import (
	"errors"
	"sort"
	"strings"

	"homestay/internal/domain/listings"
	"homestay/internal/domain/pricing"
	"homestay/internal/domain/references"
	"homestay/internal/domain/reservations"
	"homestay/internal/domain/shared/daterange"
	"homestay/internal/domain/shared/money"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
)

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *ValidationError) Empty() bool { return e == nil || len(e.Fields) == 0 }

// OrNil returns nil when no field was flagged.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
)

// Classify maps an error chain to its kind.
func Classify(err error) Kind {
	var verr *ValidationError
	switch {
	case err == nil:
		return KindInternal
	case errors.As(err, &verr):
		return KindValidation
	case errors.Is(err, ErrNotFound),
		errors.Is(err, listings.ErrNotFound),
		errors.Is(err, pricing.ErrTagNotFound),
		errors.Is(err, reservations.ErrNotFound),
		errors.Is(err, references.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict),
		errors.Is(err, pricing.ErrOverlap),
		errors.Is(err, listings.ErrSlugTaken),
		errors.Is(err, reservations.ErrOverlappingStay),
		errors.Is(err, reservations.ErrInvalidTransition):
		return KindConflict
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case isDomainValidation(err):
		return KindValidation
	}
	return KindInternal
}

var domainValidation = []error{
	daterange.ErrInvalidRange,
	daterange.ErrInvalidSpan,
	daterange.ErrInvalidMonth,
	money.ErrInvalidCurrency,
	money.ErrCurrencyMismatch,
	pricing.ErrNegativePrice,
	pricing.ErrDescriptionTooLong,
	listings.ErrTitleRequired,
	listings.ErrTitleTooLong,
	listings.ErrGuestsLimit,
	listings.ErrBedrooms,
	listings.ErrBeds,
	listings.ErrBathrooms,
	listings.ErrInvalidTimeOfDay,
	listings.ErrPhotoTitleRequired,
	listings.ErrPhotoIndex,
	listings.ErrPhotoFileRequired,
	reservations.ErrUserRequired,
	reservations.ErrCommentTooLong,
	references.ErrNameRequired,
}

func isDomainValidation(err error) bool {
	for _, target := range domainValidation {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Field wraps a domain validation error into a ValidationError for field.
func Field(field string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainValidation(err) {
		return NewValidation(field, err.Error())
	}
	return err
}
