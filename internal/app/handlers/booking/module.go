package booking

import (
	"log/slog"

	"tripdesk/internal/app/commands"
	"tripdesk/internal/app/dto"
	"tripdesk/internal/app/outbox"
	"tripdesk/internal/app/policies"
	"tripdesk/internal/app/queries"
	"tripdesk/internal/app/uow"
	"tripdesk/internal/domain/account"
	domainbooking "tripdesk/internal/domain/booking"
)

// Module holds the collaborators shared by the booking handlers.
type Module struct {
	UoWFactory uow.UoWFactory
	Clock      policies.Clock
	References domainbooking.ReferenceGenerator
	Accounts   account.Directory
	Encoder    outbox.EventEncoder
	NewID      func() string
	Logger     *slog.Logger
}

func (m Module) Register(cmds *commands.InMemoryBus, qs *queries.InMemoryBus) {
	commands.Register[ProposeBookingCommand, *dto.BookingReceipt](cmds, &ProposeBookingHandler{
		Clock:      m.Clock,
		References: m.References,
		Accounts:   m.Accounts,
		Encoder:    m.Encoder,
		NewID:      m.NewID,
		Logger:     m.Logger,
	})
	commands.Register[TransitionBookingCommand, *dto.BookingView](cmds, &TransitionBookingHandler{
		Clock: m.Clock, Encoder: m.Encoder, Logger: m.Logger,
	})
	commands.Register[ArchiveBookingCommand, *dto.ArchiveAck](cmds, &ArchiveBookingHandler{
		Clock: m.Clock, Encoder: m.Encoder, Logger: m.Logger,
	})
	queries.Register[GetBookingQuery, *dto.BookingView](qs, &GetBookingHandler{UoWFactory: m.UoWFactory})
	queries.Register[ListBookingsQuery, dto.BookingCollection](qs, &ListBookingsHandler{UoWFactory: m.UoWFactory, Logger: m.Logger})
	queries.Register[LookupBookingQuery, *dto.GuestBookingView](qs, &LookupBookingHandler{UoWFactory: m.UoWFactory})
}
