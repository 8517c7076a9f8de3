package listings

import (
	"context"

	"homestay/internal/app/dto"
	handlersupport "homestay/internal/app/handlers/support"
	"homestay/internal/app/queries"
	"homestay/internal/app/uow"
	domainlistings "homestay/internal/domain/listings"
)

const (
	getListingKey     = "listings.get"
	searchListingsKey = "listings.search"
)

type GetListingQuery struct {
	Slug string `validate:"required"`
}

func (GetListingQuery) Key() string { return getListingKey }

type SearchListingsQuery struct {
	ObjectType     string
	MinGuests      int `json:"min_guests" validate:"min=0"`
	Amenities      []string
	InstantBooking *bool
	Limit          int `json:"limit" validate:"min=0,max=60"`
	Offset         int `json:"offset" validate:"min=0"`
}

func (SearchListingsQuery) Key() string { return searchListingsKey }

type QueryHandlers struct {
	UoWFactory uow.UoWFactory
}

func (h *QueryHandlers) Get() queries.Handler[GetListingQuery, dto.Listing] {
	return queries.HandlerFunc[GetListingQuery, dto.Listing](h.get)
}

func (h *QueryHandlers) Search() queries.Handler[SearchListingsQuery, dto.ListingPage] {
	return queries.HandlerFunc[SearchListingsQuery, dto.ListingPage](h.search)
}

func (h *QueryHandlers) get(ctx context.Context, q GetListingQuery) (dto.Listing, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Listing{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().BySlug(execCtx, q.Slug)
	if err != nil {
		return dto.Listing{}, err
	}
	return dto.MapListing(listing), nil
}

func (h *QueryHandlers) search(ctx context.Context, q SearchListingsQuery) (dto.ListingPage, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ListingPage{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	params := domainlistings.SearchParams{
		ObjectTypeID:   q.ObjectType,
		MinGuests:      q.MinGuests,
		Amenities:      append([]string(nil), q.Amenities...),
		InstantBooking: q.InstantBooking,
		Limit:          q.Limit,
		Offset:         q.Offset,
	}.Normalize()
	res, err := unit.Listings().Search(execCtx, params)
	if err != nil {
		return dto.ListingPage{}, err
	}
	page := dto.ListingPage{
		Items:  make([]dto.Listing, 0, len(res.Items)),
		Total:  res.Total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}
	for _, l := range res.Items {
		page.Items = append(page.Items, dto.MapListing(l))
	}
	return page, nil
}
