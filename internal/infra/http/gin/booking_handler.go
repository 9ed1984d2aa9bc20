package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"tripdesk/internal/app/commands"
	"tripdesk/internal/app/dto"
	bookinghandlers "tripdesk/internal/app/handlers/booking"
	"tripdesk/internal/app/policies"
	"tripdesk/internal/app/queries"
)

var errInvalidDate = errors.New("dates must be YYYY-MM-DD or RFC 3339")

// BookingHandler serves the public guest endpoints.
type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

// flexibleTime accepts a plain calendar date as well as a full timestamp.
type flexibleTime struct {
	time.Time
}

func (t *flexibleTime) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339Nano} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return errInvalidDate
}

type proposeBookingRequest struct {
	ItemKind      string       `json:"item_kind"`
	ItemID        string       `json:"item_id"`
	GuestName     string       `json:"guest_name"`
	GuestEmail    string       `json:"guest_email"`
	GuestPhone    string       `json:"guest_phone"`
	Start         flexibleTime `json:"start"`
	End           flexibleTime `json:"end"`
	Guests        int          `json:"guests"`
	PaymentMethod string       `json:"payment_method"`
	TermsAgreed   bool         `json:"terms_agreed"`
}

func (h BookingHandler) Propose(c *gin.Context) {
	var req proposeBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	cmd := bookinghandlers.ProposeBookingCommand{
		ItemKind:        req.ItemKind,
		ItemID:          req.ItemID,
		GuestName:       req.GuestName,
		GuestEmail:      req.GuestEmail,
		GuestPhone:      req.GuestPhone,
		Start:           req.Start.Time,
		End:             req.End.Time,
		Guests:          req.Guests,
		PaymentMethod:   req.PaymentMethod,
		TermsAgreed:     req.TermsAgreed,
		IdempotencyKeyV: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	}
	if p := policies.PrincipalFrom(ctx); p.Authenticated() {
		cmd.Actor = "account:" + string(p.AccountID)
	}
	receipt, err := commands.Dispatch[bookinghandlers.ProposeBookingCommand, *dto.BookingReceipt](ctx, h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h BookingHandler) Lookup(c *gin.Context) {
	q := bookinghandlers.LookupBookingQuery{
		Reference: c.Query("reference"),
		Email:     c.Query("email"),
	}
	view, err := queries.Ask[bookinghandlers.LookupBookingQuery, *dto.GuestBookingView](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
