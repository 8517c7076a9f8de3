package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"homestay/internal/app/commands"
	"homestay/internal/app/dto"
	reservationapp "homestay/internal/app/handlers/reservations"
	"homestay/internal/app/queries"
)

const idempotencyHeader = "Idempotency-Key"

type ReservationHTTP interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Submit(c *gin.Context)
	Approve(c *gin.Context)
	Cancel(c *gin.Context)
}

type ReservationHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createReservationRequest struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Comment  string `json:"comment"`
}

func (h ReservationHandler) List(c *gin.Context) {
	items, err := queries.Ask[reservationapp.ListReservationsQuery, []dto.Reservation](c.Request.Context(), h.Queries, reservationapp.ListReservationsQuery{
		Slug: c.Param("slug"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Create books a stay for the caller named by X-User-ID. Retries carrying
// the same Idempotency-Key replay the first successful answer.
func (h ReservationHandler) Create(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := commands.Dispatch[reservationapp.CreateReservationCommand, dto.Reservation](c.Request.Context(), h.Commands, reservationapp.CreateReservationCommand{
		Slug:       c.Param("slug"),
		UserID:     currentUser(c),
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		Comment:    req.Comment,
		RequestKey: strings.TrimSpace(c.GetHeader(idempotencyHeader)),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h ReservationHandler) Submit(c *gin.Context) {
	h.transition(c, reservationapp.SubmitCommand(c.Param("id"), currentUser(c)))
}

func (h ReservationHandler) Approve(c *gin.Context) {
	h.transition(c, reservationapp.ApproveCommand(c.Param("id"), currentUser(c)))
}

func (h ReservationHandler) Cancel(c *gin.Context) {
	h.transition(c, reservationapp.CancelCommand(c.Param("id"), currentUser(c)))
}

func (h ReservationHandler) transition(c *gin.Context, cmd reservationapp.TransitionCommand) {
	res, err := commands.Dispatch[reservationapp.TransitionCommand, dto.Reservation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

var _ ReservationHTTP = ReservationHandler{}
