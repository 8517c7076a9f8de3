package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"homestay/internal/app/commands"
	"homestay/internal/app/dto"
	pricingapp "homestay/internal/app/handlers/pricing"
	"homestay/internal/app/queries"
)

type PricingHTTP interface {
	ListTags(c *gin.Context)
	CreateTag(c *gin.Context)
	UpdateTag(c *gin.Context)
	DeleteTag(c *gin.Context)
	DayRates(c *gin.Context)
	Quote(c *gin.Context)
}

type PricingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h PricingHandler) ListTags(c *gin.Context) {
	tags, err := queries.Ask[pricingapp.ListPriceTagsQuery, []dto.PriceTag](c.Request.Context(), h.Queries, pricingapp.ListPriceTagsQuery{
		Slug: c.Param("slug"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": tags})
}

// CreateTag answers 409 with the occupied dates when the span overlaps
// another tag of the listing.
func (h PricingHandler) CreateTag(c *gin.Context) {
	var payload pricingapp.PriceTagPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	saved, err := commands.Dispatch[pricingapp.CreatePriceTagCommand, dto.SavedPriceTag](c.Request.Context(), h.Commands, pricingapp.CreatePriceTagCommand{
		Slug:            c.Param("slug"),
		PriceTagPayload: payload,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h PricingHandler) UpdateTag(c *gin.Context) {
	var payload pricingapp.PriceTagPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	saved, err := commands.Dispatch[pricingapp.UpdatePriceTagCommand, dto.SavedPriceTag](c.Request.Context(), h.Commands, pricingapp.UpdatePriceTagCommand{
		Slug:            c.Param("slug"),
		PriceTagID:      c.Param("id"),
		PriceTagPayload: payload,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h PricingHandler) DeleteTag(c *gin.Context) {
	_, err := commands.Dispatch[pricingapp.DeletePriceTagCommand, struct{}](c.Request.Context(), h.Commands, pricingapp.DeletePriceTagCommand{
		Slug:       c.Param("slug"),
		PriceTagID: c.Param("id"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h PricingHandler) DayRates(c *gin.Context) {
	rates, err := queries.Ask[pricingapp.ListDayRatesQuery, []dto.DayRate](c.Request.Context(), h.Queries, pricingapp.ListDayRatesQuery{
		Slug: c.Param("slug"),
		From: c.Query("from"),
		To:   c.Query("to"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rates})
}

func (h PricingHandler) Quote(c *gin.Context) {
	quote, err := queries.Ask[pricingapp.QuoteQuery, dto.Quote](c.Request.Context(), h.Queries, pricingapp.QuoteQuery{
		Slug:     c.Param("slug"),
		CheckIn:  c.Query("check_in"),
		CheckOut: c.Query("check_out"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

var _ PricingHTTP = PricingHandler{}
