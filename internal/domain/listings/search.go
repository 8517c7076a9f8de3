package listings

import (
	"slices"
	"strings"
)

const (
	defaultSearchLimit = 24
	maxSearchLimit     = 60
)

// SearchParams describe list filters and paging options.
type SearchParams struct {
	ObjectTypeID   string
	MinGuests      int
	Amenities      []string
	InstantBooking *bool
	Limit          int
	Offset         int
}

// Normalize clamps paging values and cleans filter tokens.
func (p SearchParams) Normalize() SearchParams {
	normalized := p
	normalized.ObjectTypeID = strings.TrimSpace(p.ObjectTypeID)
	normalized.Amenities = dedupe(p.Amenities)
	if normalized.MinGuests < 0 {
		normalized.MinGuests = 0
	}
	if normalized.Limit <= 0 {
		normalized.Limit = defaultSearchLimit
	}
	if normalized.Limit > maxSearchLimit {
		normalized.Limit = maxSearchLimit
	}
	if normalized.Offset < 0 {
		normalized.Offset = 0
	}
	return normalized
}

// Matches reports whether a listing passes the filters (paging excluded).
func (p SearchParams) Matches(l *Listing) bool {
	if p.ObjectTypeID != "" && l.ObjectTypeID != p.ObjectTypeID {
		return false
	}
	if p.MinGuests > 0 && l.MaxGuests < p.MinGuests {
		return false
	}
	if p.InstantBooking != nil && l.InstantBooking != *p.InstantBooking {
		return false
	}
	for _, a := range p.Amenities {
		if !slices.Contains(l.Amenities, a) {
			return false
		}
	}
	return true
}

// SearchResult wraps search hits with meta.
type SearchResult struct {
	Items []*Listing
	Total int
}
