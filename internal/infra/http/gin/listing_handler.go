package ginserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"homestay/internal/app/commands"
	"homestay/internal/app/dto"
	listingapp "homestay/internal/app/handlers/listings"
	"homestay/internal/app/queries"
)

const maxPhotoSize = 10 << 20

type ListingHTTP interface {
	Search(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	ListPhotos(c *gin.Context)
	UploadPhoto(c *gin.Context)
}

type ListingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h ListingHandler) Search(c *gin.Context) {
	q := listingapp.SearchListingsQuery{
		ObjectType:     strings.TrimSpace(c.Query("object_type")),
		MinGuests:      parseInt(c.Query("guests")),
		Amenities:      splitCSV(c.Query("amenities")),
		InstantBooking: parseOptionalBool(c.Query("instant_booking")),
		Limit:          parseInt(c.Query("limit")),
		Offset:         parseInt(c.Query("offset")),
	}
	page, err := queries.Ask[listingapp.SearchListingsQuery, dto.ListingPage](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h ListingHandler) Get(c *gin.Context) {
	listing, err := queries.Ask[listingapp.GetListingQuery, dto.Listing](c.Request.Context(), h.Queries, listingapp.GetListingQuery{
		Slug: c.Param("slug"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h ListingHandler) Create(c *gin.Context) {
	var payload listingapp.ListingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	listing, err := commands.Dispatch[listingapp.CreateListingCommand, dto.Listing](c.Request.Context(), h.Commands, listingapp.CreateListingCommand{
		ListingPayload: payload,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Header("Location", "/api/v1/listings/"+listing.Slug)
	c.JSON(http.StatusCreated, listing)
}

func (h ListingHandler) Update(c *gin.Context) {
	var payload listingapp.ListingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	listing, err := commands.Dispatch[listingapp.UpdateListingCommand, dto.Listing](c.Request.Context(), h.Commands, listingapp.UpdateListingCommand{
		Slug:           c.Param("slug"),
		ListingPayload: payload,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h ListingHandler) Delete(c *gin.Context) {
	_, err := commands.Dispatch[listingapp.DeleteListingCommand, struct{}](c.Request.Context(), h.Commands, listingapp.DeleteListingCommand{
		Slug: c.Param("slug"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h ListingHandler) ListPhotos(c *gin.Context) {
	photos, err := queries.Ask[listingapp.ListPhotosQuery, []dto.Photo](c.Request.Context(), h.Queries, listingapp.ListPhotosQuery{
		Slug: c.Param("slug"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": photos})
}

// UploadPhoto expects a multipart form with the image under "file" and the
// title, index and is_cover fields next to it.
func (h ListingHandler) UploadPhoto(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, errors.New("file is required"))
		return
	}
	if fileHeader.Size > maxPhotoSize {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large (max 10MB)"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		badRequest(c, errors.New("cannot read file"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxPhotoSize+1))
	if err != nil {
		badRequest(c, errors.New("cannot read file"))
		return
	}
	contentType := imageType(fileHeader.Header.Get("Content-Type"), data)
	if !isAllowedImageType(contentType) {
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, errorResponse{Error: "unsupported file type"})
		return
	}

	photo, err := commands.Dispatch[listingapp.UploadPhotoCommand, dto.Photo](c.Request.Context(), h.Commands, listingapp.UploadPhotoCommand{
		Slug:        c.Param("slug"),
		Index:       parseInt(c.PostForm("index")),
		Title:       strings.TrimSpace(c.PostForm("title")),
		IsCover:     parseBool(c.PostForm("is_cover")),
		FileName:    fileHeader.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, photo)
}

// imageType trusts the part header unless it is missing or generic, in
// which case the content is sniffed.
func imageType(declared string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(data)
}

func isAllowedImageType(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/jpg", "image/png", "image/webp":
		return true
	default:
		return false
	}
}

var _ ListingHTTP = ListingHandler{}
