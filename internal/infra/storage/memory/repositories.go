package memory

import (
	"context"
	"sort"

	domainlistings "homestay/internal/domain/listings"
)

type listingRepository struct{ u *Unit }

func (r listingRepository) ByID(_ context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	l, ok := r.u.data().listings[id]
	if !ok {
		return nil, domainlistings.ErrNotFound
	}
	return l.Clone(), nil
}

func (r listingRepository) BySlug(_ context.Context, slug string) (*domainlistings.Listing, error) {
	for _, l := range r.u.data().listings {
		if l.Slug == slug {
			return l.Clone(), nil
		}
	}
	return nil, domainlistings.ErrNotFound
}

// Search orders results by creation time, newest first.
func (r listingRepository) Search(_ context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	params = params.Normalize()
	matched := make([]*domainlistings.Listing, 0)
	for _, l := range r.u.data().listings {
		if params.Matches(l) {
			matched = append(matched, l)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].Slug < matched[j].Slug
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	res := domainlistings.SearchResult{Total: len(matched)}
	if params.Offset >= len(matched) {
		return res, nil
	}
	end := params.Offset + params.Limit
	if end > len(matched) {
		end = len(matched)
	}
	for _, l := range matched[params.Offset:end] {
		res.Items = append(res.Items, l.Clone())
	}
	return res, nil
}

func (r listingRepository) Save(_ context.Context, listing *domainlistings.Listing) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	for id, other := range r.u.data().listings {
		if id != listing.ID && other.Slug == listing.Slug {
			return domainlistings.ErrSlugTaken
		}
	}
	listing.Version++
	r.u.data().listings[listing.ID] = listing.Clone()
	return nil
}

// Delete removes the listing and everything it owns.
func (r listingRepository) Delete(_ context.Context, id domainlistings.ListingID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	d := r.u.data()
	if _, ok := d.listings[id]; !ok {
		return domainlistings.ErrNotFound
	}
	delete(d.listings, id)
	delete(d.photos, id)
	delete(d.dayRates, id)
	for tagID, tag := range d.priceTags {
		if tag.ListingID == id {
			delete(d.priceTags, tagID)
		}
	}
	for resID, res := range d.reservations {
		if res.ListingID == id {
			delete(d.reservations, resID)
		}
	}
	return nil
}

type photoRepository struct{ u *Unit }

// ByListing orders photos by index, then upload time.
func (r photoRepository) ByListing(_ context.Context, listing domainlistings.ListingID) ([]*domainlistings.Photo, error) {
	photos := r.u.data().photos[listing]
	out := make([]*domainlistings.Photo, 0, len(photos))
	for _, p := range photos {
		out = append(out, p.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Index == out[j].Index {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

func (r photoRepository) Save(_ context.Context, photo *domainlistings.Photo) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	d := r.u.data()
	if _, ok := d.listings[photo.ListingID]; !ok {
		return domainlistings.ErrNotFound
	}
	photos := d.photos[photo.ListingID]
	for i, p := range photos {
		if p.ID == photo.ID {
			photos[i] = photo.Clone()
			return nil
		}
	}
	d.photos[photo.ListingID] = append(photos, photo.Clone())
	return nil
}

func (r photoRepository) ClearCover(_ context.Context, listing domainlistings.ListingID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	for _, p := range r.u.data().photos[listing] {
		p.IsCover = false
	}
	return nil
}
