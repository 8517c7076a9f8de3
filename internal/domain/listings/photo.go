package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"homestay/internal/domain/shared/events"
)

var (
	ErrPhotoTitleRequired = errors.New("listings: photo title is required")
	ErrPhotoIndex         = errors.New("listings: photo index must be non-negative")
	ErrPhotoFileRequired  = errors.New("listings: photo file is required")
)

type PhotoID string

// Size is a presentation size for generated previews.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Photo struct {
	ID        PhotoID
	ListingID ListingID
	Index     int
	Title     string
	ObjectKey string
	URL       string
	IsCover   bool
	CreatedAt time.Time
	events.EventRecorder
}

type PhotoRepository interface {
	ByListing(ctx context.Context, listing ListingID) ([]*Photo, error)
	Save(ctx context.Context, photo *Photo) error
	// ClearCover drops the cover flag from every photo of the listing.
	ClearCover(ctx context.Context, listing ListingID) error
}

type NewPhotoParams struct {
	ID        PhotoID
	ListingID ListingID
	Index     int
	Title     string
	ObjectKey string
	URL       string
	IsCover   bool
	Sizes     []Size
	Format    string
	Now       time.Time
}

func NewPhoto(p NewPhotoParams) (*Photo, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, ErrPhotoTitleRequired
	}
	if p.Index < 0 {
		return nil, ErrPhotoIndex
	}
	if strings.TrimSpace(p.ObjectKey) == "" {
		return nil, ErrPhotoFileRequired
	}
	photo := &Photo{
		ID:        p.ID,
		ListingID: p.ListingID,
		Index:     p.Index,
		Title:     strings.TrimSpace(p.Title),
		ObjectKey: p.ObjectKey,
		URL:       p.URL,
		IsCover:   p.IsCover,
		CreatedAt: p.Now.UTC(),
	}
	photo.Record(PhotoUploadedEvent{
		ListingID: p.ListingID,
		PhotoID:   p.ID,
		ObjectKey: p.ObjectKey,
		Sizes:     append([]Size(nil), p.Sizes...),
		Format:    p.Format,
		At:        photo.CreatedAt,
	})
	return photo, nil
}

// VariantURL is the location the thumbnail job writes a preview of the given
// size to: "<name>_<w>x<h>.<format>".
func (p *Photo) VariantURL(size Size, format string) string {
	base := p.URL
	if dot := strings.LastIndex(base, "."); dot > strings.LastIndex(base, "/") {
		base = base[:dot]
	}
	return fmt.Sprintf("%s_%dx%d.%s", base, size.Width, size.Height, format)
}

func (p *Photo) Clone() *Photo {
	c := *p
	c.EventRecorder = events.EventRecorder{}
	return &c
}
