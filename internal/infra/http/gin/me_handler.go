package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"tripdesk/internal/app/dto"
	"tripdesk/internal/app/handlers/me"
	"tripdesk/internal/app/queries"
)

type MeHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h MeHandler) Bookings(c *gin.Context) {
	result, err := queries.Ask[me.ListMyBookingsQuery, dto.GuestBookingCollection](c.Request.Context(), h.Queries, me.ListMyBookingsQuery{})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
