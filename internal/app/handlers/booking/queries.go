package booking

import (
	"context"
	"log/slog"
	"strings"

	"tripdesk/internal/app/dto"
	handlersupport "tripdesk/internal/app/handlers/support"
	"tripdesk/internal/app/queries"
	"tripdesk/internal/app/uow"
	"tripdesk/internal/domain/account"
	domainbooking "tripdesk/internal/domain/booking"
	"tripdesk/internal/domain/inventory"
)

const (
	getBookingKey    = "booking.get"
	listBookingsKey  = "booking.list"
	lookupBookingKey = "booking.lookup"

	defaultListLimit = 50
	maxListLimit     = 200
)

type GetBookingQuery struct {
	BookingID string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

func (q GetBookingQuery) RequiredRole() account.Role { return account.RoleStaff }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (*dto.BookingView, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, domainbooking.ID(strings.TrimSpace(q.BookingID)))
	if err != nil {
		return nil, err
	}
	view := dto.MapBooking(b)
	return &view, nil
}

// ListBookingsQuery filters the staff dashboard. Empty Status or Kind means
// any; archived bookings are hidden unless requested.
type ListBookingsQuery struct {
	Status          string
	Kind            string
	IncludeArchived bool
	Limit           int `validate:"gte=0"`
}

func (q ListBookingsQuery) Key() string { return listBookingsKey }

func (q ListBookingsQuery) RequiredRole() account.Role { return account.RoleStaff }

type ListBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListBookingsHandler) Handle(ctx context.Context, q ListBookingsQuery) (dto.BookingCollection, error) {
	filter := domainbooking.Filter{IncludeArchived: q.IncludeArchived, Limit: q.Limit}
	if strings.TrimSpace(q.Status) != "" {
		status, err := domainbooking.ParseStatus(q.Status)
		if err != nil {
			return dto.BookingCollection{}, err
		}
		filter.Status = status
	}
	if strings.TrimSpace(q.Kind) != "" {
		kind, err := inventory.ParseKind(q.Kind)
		if err != nil {
			return dto.BookingCollection{}, err
		}
		filter.Kind = kind
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}

	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	bookings, err := unit.Bookings().List(execCtx, filter)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	items := make([]dto.BookingView, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, dto.MapBooking(b))
	}
	if h.Logger != nil {
		h.Logger.Debug("bookings listed", "count", len(items), "status", filter.Status, "kind", filter.Kind)
	}
	return dto.BookingCollection{Items: items}, nil
}

// LookupBookingQuery is the guest self-service lookup. Both the reference and
// the booking email must match.
type LookupBookingQuery struct {
	Reference string `validate:"required"`
	Email     string `validate:"required,email"`
}

func (q LookupBookingQuery) Key() string { return lookupBookingKey }

type LookupBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *LookupBookingHandler) Handle(ctx context.Context, q LookupBookingQuery) (*dto.GuestBookingView, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	ref := domainbooking.Reference(strings.ToUpper(strings.TrimSpace(q.Reference)))
	b, err := unit.Bookings().ByReference(execCtx, ref)
	if err != nil {
		return nil, err
	}
	if account.NormalizeEmail(b.Guest.Email) != account.NormalizeEmail(q.Email) {
		return nil, domainbooking.ErrBookingNotFound
	}
	view := dto.MapGuestBooking(b)
	return &view, nil
}

var (
	_ queries.Handler[GetBookingQuery, *dto.BookingView]        = (*GetBookingHandler)(nil)
	_ queries.Handler[ListBookingsQuery, dto.BookingCollection]  = (*ListBookingsHandler)(nil)
	_ queries.Handler[LookupBookingQuery, *dto.GuestBookingView] = (*LookupBookingHandler)(nil)
)
