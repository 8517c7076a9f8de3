package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"homestay/internal/app/admin"
	"homestay/internal/app/dto"
	referenceapp "homestay/internal/app/handlers/references"
	"homestay/internal/app/queries"
	domainreferences "homestay/internal/domain/references"
)

type ReferenceHTTP interface {
	Catalog(c *gin.Context)
	AdminEntities(c *gin.Context)
}

// ReferenceHandler serves the read-only dictionaries and the admin entity
// registry.
type ReferenceHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h ReferenceHandler) Catalog(c *gin.Context) {
	catalog, err := queries.Ask[referenceapp.ListReferencesQuery, domainreferences.Catalog](c.Request.Context(), h.Queries, referenceapp.ListReferencesQuery{})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, catalog)
}

func (h ReferenceHandler) AdminEntities(c *gin.Context) {
	list, err := queries.Ask[admin.ListEntitiesQuery, dto.AdminEntityList](c.Request.Context(), h.Queries, admin.ListEntitiesQuery{})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

var _ ReferenceHTTP = ReferenceHandler{}
