package booking_test

import (
	"context"
	"crypto/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tripdesk/internal/app/commands"
	"tripdesk/internal/app/dto"
	bookinghandlers "tripdesk/internal/app/handlers/booking"
	"tripdesk/internal/app/middleware"
	"tripdesk/internal/app/policies"
	"tripdesk/internal/app/queries"
	"tripdesk/internal/app/uow"
	"tripdesk/internal/domain/account"
	"tripdesk/internal/domain/availability"
	domainbooking "tripdesk/internal/domain/booking"
	"tripdesk/internal/domain/inventory"
	"tripdesk/internal/domain/shared/fault"
	"tripdesk/internal/domain/shared/money"
	"tripdesk/internal/infra/storage/memory"
)

// errWriteConflict stands in for a store-level write conflict. It is on the
// retry list the same way the production chain lists the Mongo one.
var errWriteConflict = fault.New(fault.Conflict, "write conflict")

var (
	newYear = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	van     = inventory.ItemRef{Kind: inventory.KindVehicle, ID: "van-1"}
	jeep    = inventory.ItemRef{Kind: inventory.KindVehicle, ID: "old-jeep"}
	hop     = inventory.ItemRef{Kind: inventory.KindTourPackage, ID: "island-hop"}
	lastHop = inventory.ItemRef{Kind: inventory.KindTourPackage, ID: "sunset-cruise"}
)

func fixtures() []inventory.Snapshot {
	return []inventory.Snapshot{
		{Ref: van, Name: "Van", Bookable: true, Pricing: inventory.VehiclePricing{PerDay: money.Must(1500, "PHP")}},
		{Ref: jeep, Name: "Jeep", Bookable: true, Archived: true, Pricing: inventory.VehiclePricing{PerDay: money.Must(900, "PHP")}},
		{Ref: hop, Name: "Island hop", Bookable: true, Pricing: inventory.TourPricing{PerGuest: money.Must(2500, "PHP")}},
		{Ref: lastHop, Name: "Sunset cruise", Bookable: true, Pricing: inventory.TourPricing{PerGuest: money.Must(3000, "PHP"), SlotsPerWindow: 1}},
	}
}

type harness struct {
	cmds     commands.Bus
	queries  queries.Bus
	factory  memory.Factory
	accounts *memory.AccountDirectory
	entropy  atomic.Int64
	wrap     func(uow.UnitOfWork) uow.UnitOfWork
}

type wrappingFactory struct {
	memory.Factory
	wrap func(uow.UnitOfWork) uow.UnitOfWork
}

func (f wrappingFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.Factory.Begin(ctx, opts)
	if err != nil || f.wrap == nil {
		return unit, err
	}
	return f.wrap(unit), nil
}

type option func(h *harness, m *bookinghandlers.Module)

func withEntropy(fn func(call int64) []byte) option {
	return func(h *harness, m *bookinghandlers.Module) {
		m.References = domainbooking.ReferenceGenerator{Entropy: func() ([]byte, error) {
			return fn(h.entropy.Add(1)), nil
		}}
	}
}

func withClock(c policies.Clock) option {
	return func(_ *harness, m *bookinghandlers.Module) { m.Clock = c }
}

func withUnits(wrap func(uow.UnitOfWork) uow.UnitOfWork) option {
	return func(h *harness, _ *bookinghandlers.Module) { h.wrap = wrap }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	catalog, err := memory.NewCatalog(fixtures()...)
	require.NoError(t, err)
	h := &harness{factory: memory.NewFactory(catalog), accounts: memory.NewAccountDirectory()}

	module := bookinghandlers.Module{
		Clock:    policies.FixedClock(newYear),
		Accounts: h.accounts,
	}
	module.References = domainbooking.ReferenceGenerator{Entropy: func() ([]byte, error) {
		h.entropy.Add(1)
		b := make([]byte, 7)
		_, err := rand.Read(b)
		return b, err
	}}
	for _, opt := range opts {
		opt(h, &module)
	}
	factory := wrappingFactory{Factory: h.factory, wrap: h.wrap}
	module.UoWFactory = factory

	cmdBus, queryBus := commands.NewInMemoryBus(), queries.NewInMemoryBus()
	module.Register(cmdBus, queryBus)
	validator := middleware.NewStructValidator()
	h.cmds = middleware.ChainCommands(cmdBus,
		middleware.Validation(validator),
		middleware.Authorization(policies.RoleAuthorizer{}),
		middleware.Retry(5, 0, domainbooking.ErrDuplicateReference, availability.ErrStaleCalendar, errWriteConflict),
		middleware.Transaction(factory, nil),
	)
	h.queries = middleware.ChainQueries(queryBus,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(policies.RoleAuthorizer{}),
	)
	return h
}

func staff(ctx context.Context) context.Context {
	return policies.WithPrincipal(ctx, policies.Principal{AccountID: "staff-1", Roles: []account.Role{account.RoleStaff}})
}

func vehicleProposal(start, end time.Time) bookinghandlers.ProposeBookingCommand {
	return bookinghandlers.ProposeBookingCommand{
		ItemKind:    string(van.Kind),
		ItemID:      string(van.ID),
		GuestName:   "Ana Cruz",
		GuestEmail:  "ana@example.com",
		Start:       start,
		End:         end,
		Guests:      2,
		TermsAgreed: true,
	}
}

func tourProposal(item inventory.ItemRef, guests int) bookinghandlers.ProposeBookingCommand {
	return bookinghandlers.ProposeBookingCommand{
		ItemKind:    string(item.Kind),
		ItemID:      string(item.ID),
		GuestName:   "Ben Reyes",
		GuestEmail:  "ben@example.com",
		Start:       newYear.AddDate(0, 0, 10),
		Guests:      guests,
		TermsAgreed: true,
	}
}

func (h *harness) propose(ctx context.Context, cmd bookinghandlers.ProposeBookingCommand) (*dto.BookingReceipt, error) {
	return commands.Dispatch[bookinghandlers.ProposeBookingCommand, *dto.BookingReceipt](ctx, h.cmds, cmd)
}

func (h *harness) transition(ctx context.Context, id, status, note string) (*dto.BookingView, error) {
	return commands.Dispatch[bookinghandlers.TransitionBookingCommand, *dto.BookingView](ctx, h.cmds,
		bookinghandlers.TransitionBookingCommand{BookingID: id, Status: status, Actor: "staff-1", Note: note})
}

func (h *harness) get(t *testing.T, id string) *dto.BookingView {
	t.Helper()
	view, err := queries.Ask[bookinghandlers.GetBookingQuery, *dto.BookingView](staff(context.Background()), h.queries,
		bookinghandlers.GetBookingQuery{BookingID: id})
	require.NoError(t, err)
	return view
}

func (h *harness) stored(t *testing.T) []*domainbooking.Booking {
	t.Helper()
	all, err := h.factory.Bookings.List(context.Background(), domainbooking.Filter{IncludeArchived: true})
	require.NoError(t, err)
	return all
}
