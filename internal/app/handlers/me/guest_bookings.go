package me

import (
	"context"
	"log/slog"

	"tripdesk/internal/app/dto"
	handlersupport "tripdesk/internal/app/handlers/support"
	"tripdesk/internal/app/policies"
	"tripdesk/internal/app/queries"
	"tripdesk/internal/app/uow"
	"tripdesk/internal/domain/account"
	domainbooking "tripdesk/internal/domain/booking"
)

const (
	listMyBookingsKey = "me.bookings.list"

	maxMyBookings = 100
)

// ListMyBookingsQuery lists the bookings linked to the calling account,
// archived ones included.
type ListMyBookingsQuery struct{}

func (q ListMyBookingsQuery) Key() string { return listMyBookingsKey }

func (q ListMyBookingsQuery) RequiredRole() account.Role { return account.RoleGuest }

type ListMyBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListMyBookingsHandler) Handle(ctx context.Context, q ListMyBookingsQuery) (dto.GuestBookingCollection, error) {
	p := policies.PrincipalFrom(ctx)
	if !p.Authenticated() {
		return dto.GuestBookingCollection{}, policies.ErrUnauthenticated
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.GuestBookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	bookings, err := unit.Bookings().List(execCtx, domainbooking.Filter{
		LinkedAccount:   string(p.AccountID),
		IncludeArchived: true,
		Limit:           maxMyBookings,
	})
	if err != nil {
		return dto.GuestBookingCollection{}, err
	}
	items := make([]dto.GuestBookingView, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, dto.MapGuestBooking(b))
	}
	if h.Logger != nil {
		h.Logger.Debug("guest bookings listed", "account_id", p.AccountID, "count", len(items))
	}
	return dto.GuestBookingCollection{Items: items}, nil
}

func Register(qs *queries.InMemoryBus, factory uow.UoWFactory, logger *slog.Logger) {
	queries.Register[ListMyBookingsQuery, dto.GuestBookingCollection](qs, &ListMyBookingsHandler{UoWFactory: factory, Logger: logger})
}

var _ queries.Handler[ListMyBookingsQuery, dto.GuestBookingCollection] = (*ListMyBookingsHandler)(nil)
