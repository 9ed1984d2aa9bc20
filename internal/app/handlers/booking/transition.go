package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"tripdesk/internal/app/commands"
	"tripdesk/internal/app/dto"
	handlersupport "tripdesk/internal/app/handlers/support"
	"tripdesk/internal/app/outbox"
	"tripdesk/internal/app/policies"
	"tripdesk/internal/app/uow"
	"tripdesk/internal/domain/account"
	domainbooking "tripdesk/internal/domain/booking"
)

const transitionBookingKey = "booking.transition"

type TransitionBookingCommand struct {
	BookingID string `validate:"required"`
	Status    string `validate:"required"`
	Actor     string `validate:"required"`
	Note      string
}

func (c TransitionBookingCommand) Key() string { return transitionBookingKey }

func (c TransitionBookingCommand) RequiredRole() account.Role { return account.RoleStaff }

// TransitionBookingHandler applies a staff decision. Rejected and cancelled
// bookings hand their inventory back in the same unit of work.
type TransitionBookingHandler struct {
	Clock   policies.Clock
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (h *TransitionBookingHandler) Handle(ctx context.Context, cmd TransitionBookingCommand) (*dto.BookingView, error) {
	unit, err := handlersupport.UnitFrom(ctx)
	if err != nil {
		return nil, err
	}
	target, err := domainbooking.ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	b, err := unit.Bookings().ByID(ctx, domainbooking.ID(strings.TrimSpace(cmd.BookingID)))
	if err != nil {
		return nil, err
	}
	from := b.Status
	if err := b.Transition(target, domainbooking.Actor(cmd.Actor), cmd.Note, now(h.Clock)); err != nil {
		return nil, err
	}
	if target.Releases() {
		if err := uow.Gate(unit).Release(ctx, b.Item, b.Range, string(b.Reference)); err != nil {
			return nil, err
		}
	}
	if err := unit.Bookings().Update(ctx, b); err != nil {
		return nil, err
	}
	evs := b.PendingEvents()
	b.ClearEvents()
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, evs); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking transitioned", "booking_id", b.ID, "reference", b.Reference, "from", from, "to", b.Status, "actor", cmd.Actor)
	}
	view := dto.MapBooking(b)
	return &view, nil
}

func now(clock policies.Clock) time.Time {
	if clock == nil {
		return policies.SystemClock{}.Now()
	}
	return clock.Now()
}

var _ commands.Handler[TransitionBookingCommand, *dto.BookingView] = (*TransitionBookingHandler)(nil)
