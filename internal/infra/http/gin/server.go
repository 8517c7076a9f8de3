package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"homestay/internal/infra/config"
	"homestay/internal/infra/obs"
)

type Handlers struct {
	Listing      ListingHTTP
	Pricing      PricingHTTP
	Reservation  ReservationHTTP
	Availability AvailabilityHTTP
	Reference    ReferenceHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.MaxMultipartMemory = maxPhotoSize
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", userHeader, idempotencyHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"Location",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Listing != nil {
		api.GET("/listings", h.Listing.Search)
		api.POST("/listings", h.Listing.Create)
		api.GET("/listings/:slug", h.Listing.Get)
		api.PUT("/listings/:slug", h.Listing.Update)
		api.DELETE("/listings/:slug", h.Listing.Delete)
		api.GET("/listings/:slug/photos", h.Listing.ListPhotos)
		api.POST("/listings/:slug/photos", h.Listing.UploadPhoto)
	}
	if h.Pricing != nil {
		api.GET("/listings/:slug/price-tags", h.Pricing.ListTags)
		api.POST("/listings/:slug/price-tags", h.Pricing.CreateTag)
		api.PUT("/listings/:slug/price-tags/:id", h.Pricing.UpdateTag)
		api.DELETE("/listings/:slug/price-tags/:id", h.Pricing.DeleteTag)
		api.GET("/listings/:slug/day-rates", h.Pricing.DayRates)
		api.GET("/listings/:slug/quote", h.Pricing.Quote)
	}
	if h.Reservation != nil {
		api.GET("/listings/:slug/reservations", h.Reservation.List)
		api.POST("/listings/:slug/reservations", h.Reservation.Create)
		reservations := api.Group("/reservations/:id")
		reservations.POST("/submit", h.Reservation.Submit)
		reservations.POST("/approve", h.Reservation.Approve)
		reservations.POST("/cancel", h.Reservation.Cancel)
	}
	if h.Availability != nil {
		api.GET("/listings/:slug/availability", h.Availability.Calendar)
	}
	if h.Reference != nil {
		api.GET("/references", h.Reference.Catalog)
		api.GET("/admin/entities", h.Reference.AdminEntities)
	}

	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
