package listings

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"homestay/internal/app/apperr"
	"homestay/internal/app/commands"
	"homestay/internal/app/dto"
	handlersupport "homestay/internal/app/handlers/support"
	"homestay/internal/app/outbox"
	"homestay/internal/app/policies"
	"homestay/internal/app/queries"
	"homestay/internal/app/uow"
	domainlistings "homestay/internal/domain/listings"
)

const (
	uploadPhotoKey = "listings.photos.upload"
	listPhotosKey  = "listings.photos.list"
)

type UploadPhotoCommand struct {
	Slug        string `json:"slug" validate:"required"`
	Index       int    `json:"index" validate:"min=0"`
	Title       string `json:"title" validate:"required,max=128"`
	IsCover     bool   `json:"is_cover"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"file" validate:"required"`
}

func (UploadPhotoCommand) Key() string { return uploadPhotoKey }

// PhotoHandlers stores photo originals and announces them so that previews
// can be generated out of band.
type PhotoHandlers struct {
	Logger     *slog.Logger
	Storage    policies.PhotoStorage
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Sizes      []domainlistings.Size
	Format     string
	Now        func() time.Time
	UoWFactory uow.UoWFactory
}

func (h *PhotoHandlers) Upload() commands.Handler[UploadPhotoCommand, dto.Photo] {
	return commands.HandlerFunc[UploadPhotoCommand, dto.Photo](h.upload)
}

func (h *PhotoHandlers) List() queries.Handler[ListPhotosQuery, []dto.Photo] {
	return queries.HandlerFunc[ListPhotosQuery, []dto.Photo](h.list)
}

func (h *PhotoHandlers) upload(ctx context.Context, cmd UploadPhotoCommand) (res dto.Photo, err error) {
	if h.Storage == nil {
		return dto.Photo{}, fmt.Errorf("photo storage unavailable")
	}
	if len(cmd.Data) == 0 {
		return dto.Photo{}, apperr.NewValidation("file", domainlistings.ErrPhotoFileRequired.Error())
	}
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return dto.Photo{}, err
	}
	listing, err := unit.Listings().BySlug(ctx, cmd.Slug)
	if err != nil {
		return dto.Photo{}, err
	}

	photoID := domainlistings.PhotoID(uuid.NewString())
	objectKey := path.Join("listings", string(listing.ID), string(photoID)+extension(cmd.FileName, cmd.ContentType))
	url, err := h.Storage.Upload(ctx, objectKey, bytes.NewReader(cmd.Data), cmd.ContentType)
	if err != nil {
		return dto.Photo{}, fmt.Errorf("upload photo: %w", err)
	}
	defer func() {
		if err != nil {
			h.discard(ctx, objectKey)
		}
	}()

	photo, err := domainlistings.NewPhoto(domainlistings.NewPhotoParams{
		ID:        photoID,
		ListingID: listing.ID,
		Index:     cmd.Index,
		Title:     cmd.Title,
		ObjectKey: objectKey,
		URL:       url,
		IsCover:   cmd.IsCover,
		Sizes:     h.Sizes,
		Format:    h.format(),
		Now:       handlersupport.Now(h.Now),
	})
	if err != nil {
		return dto.Photo{}, apperr.Field("photo", err)
	}
	if photo.IsCover {
		if err := unit.Photos().ClearCover(ctx, listing.ID); err != nil {
			return dto.Photo{}, err
		}
	}
	if err := unit.Photos().Save(ctx, photo); err != nil {
		return dto.Photo{}, err
	}
	result := dto.MapPhoto(photo, h.Sizes, h.format())
	if err := handlersupport.RecordEvents(ctx, h.Outbox, h.Encoder, photo); err != nil {
		return dto.Photo{}, err
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "listing photo uploaded", "listing_id", listing.ID, "photo_id", photo.ID, "object_key", objectKey)
	}
	return result, nil
}

type ListPhotosQuery struct {
	Slug string `validate:"required"`
}

func (ListPhotosQuery) Key() string { return listPhotosKey }

func (h *PhotoHandlers) list(ctx context.Context, q ListPhotosQuery) ([]dto.Photo, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().BySlug(execCtx, q.Slug)
	if err != nil {
		return nil, err
	}
	photos, err := unit.Photos().ByListing(execCtx, listing.ID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.Photo, 0, len(photos))
	for _, p := range photos {
		out = append(out, dto.MapPhoto(p, h.Sizes, h.format()))
	}
	return out, nil
}

// discard drops an object whose metadata could not be saved.
func (h *PhotoHandlers) discard(ctx context.Context, key string) {
	if err := h.Storage.Remove(context.WithoutCancel(ctx), key); err != nil && h.Logger != nil {
		h.Logger.WarnContext(ctx, "orphaned photo object", "object_key", key, "err", err)
	}
}

func (h *PhotoHandlers) format() string {
	if h.Format == "" {
		return "webp"
	}
	return h.Format
}

func extension(fileName, contentType string) string {
	if ext := strings.ToLower(path.Ext(fileName)); ext != "" {
		return ext
	}
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
