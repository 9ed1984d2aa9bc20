package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"tripdesk/internal/app/commands"
	"tripdesk/internal/app/dto"
	bookinghandlers "tripdesk/internal/app/handlers/booking"
	"tripdesk/internal/app/policies"
	"tripdesk/internal/app/queries"
)

var (
	errInvalidLimit    = errors.New("limit must be a non-negative integer")
	errInvalidArchived = errors.New("include_archived must be a boolean")
)

// StaffHandler serves the dashboard endpoints. Role checks happen on the bus.
type StaffHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h StaffHandler) List(c *gin.Context) {
	q := bookinghandlers.ListBookingsQuery{
		Status: c.Query("status"),
		Kind:   c.Query("kind"),
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondBadRequest(c, errInvalidLimit)
			return
		}
		q.Limit = limit
	}
	if raw := strings.TrimSpace(c.Query("include_archived")); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			respondBadRequest(c, errInvalidArchived)
			return
		}
		q.IncludeArchived = include
	}
	result, err := queries.Ask[bookinghandlers.ListBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h StaffHandler) Get(c *gin.Context) {
	q := bookinghandlers.GetBookingQuery{BookingID: c.Param("id")}
	view, err := queries.Ask[bookinghandlers.GetBookingQuery, *dto.BookingView](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type transitionRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h StaffHandler) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	cmd := bookinghandlers.TransitionBookingCommand{
		BookingID: c.Param("id"),
		Status:    req.Status,
		Actor:     staffActor(c),
		Note:      req.Note,
	}
	if cmd.Actor == "" {
		respondError(c, h.Logger, policies.ErrUnauthenticated)
		return
	}
	view, err := commands.Dispatch[bookinghandlers.TransitionBookingCommand, *dto.BookingView](ctx, h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h StaffHandler) Archive(c *gin.Context) {
	cmd := bookinghandlers.ArchiveBookingCommand{
		BookingID: c.Param("id"),
		Actor:     staffActor(c),
	}
	ack, err := commands.Dispatch[bookinghandlers.ArchiveBookingCommand, *dto.ArchiveAck](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

func staffActor(c *gin.Context) string {
	p := policies.PrincipalFrom(c.Request.Context())
	if !p.Authenticated() {
		return ""
	}
	return "staff:" + string(p.AccountID)
}
