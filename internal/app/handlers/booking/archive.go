package booking

import (
	"context"
	"log/slog"
	"strings"

	"tripdesk/internal/app/commands"
	"tripdesk/internal/app/dto"
	handlersupport "tripdesk/internal/app/handlers/support"
	"tripdesk/internal/app/outbox"
	"tripdesk/internal/app/policies"
	"tripdesk/internal/domain/account"
	domainbooking "tripdesk/internal/domain/booking"
)

const archiveBookingKey = "booking.archive"

type ArchiveBookingCommand struct {
	BookingID string `validate:"required"`
	Actor     string
}

func (c ArchiveBookingCommand) Key() string { return archiveBookingKey }

func (c ArchiveBookingCommand) RequiredRole() account.Role { return account.RoleStaff }

type ArchiveBookingHandler struct {
	Clock   policies.Clock
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

// Handle archives the booking. Archiving an archived booking acknowledges
// without writing.
func (h *ArchiveBookingHandler) Handle(ctx context.Context, cmd ArchiveBookingCommand) (*dto.ArchiveAck, error) {
	unit, err := handlersupport.UnitFrom(ctx)
	if err != nil {
		return nil, err
	}
	b, err := unit.Bookings().ByID(ctx, domainbooking.ID(strings.TrimSpace(cmd.BookingID)))
	if err != nil {
		return nil, err
	}
	if b.Archive(now(h.Clock)) {
		if err := unit.Bookings().Update(ctx, b); err != nil {
			return nil, err
		}
		evs := b.PendingEvents()
		b.ClearEvents()
		if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, evs); err != nil {
			return nil, err
		}
		if h.Logger != nil {
			h.Logger.Info("booking archived", "booking_id", b.ID, "reference", b.Reference, "actor", cmd.Actor)
		}
	}
	return &dto.ArchiveAck{BookingID: string(b.ID), Archived: true, ArchivedAt: b.ArchivedAt}, nil
}

var _ commands.Handler[ArchiveBookingCommand, *dto.ArchiveAck] = (*ArchiveBookingHandler)(nil)
