package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"homestay/internal/app/dto"
	availabilityapp "homestay/internal/app/handlers/availability"
	"homestay/internal/app/queries"
)

type AvailabilityHTTP interface {
	Calendar(c *gin.Context)
}

type AvailabilityHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h AvailabilityHandler) Calendar(c *gin.Context) {
	q := availabilityapp.GetCalendarQuery{
		Slug:  c.Param("slug"),
		Month: strings.TrimSpace(c.Query("month")),
	}
	if raw := c.Query("months"); raw != "" {
		q.Months = parseInt(raw)
	}
	cal, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, cal)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
