package uow

import (
	"context"
	"errors"

	"tripdesk/internal/app/outbox"
	"tripdesk/internal/domain/availability"
	"tripdesk/internal/domain/booking"
	"tripdesk/internal/domain/inventory"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

// UnitOfWork scopes every repository a command touches to one atomic
// boundary. Rollback undoes slot takes, calendar holds, booking writes and
// outbox records alike.
type UnitOfWork interface {
	Inventory() inventory.Reader
	Bookings() booking.Repository
	Slots() availability.SlotLedger
	Calendars() availability.CalendarRepository
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}

// Gate binds an availability gate to the unit's repositories.
func Gate(unit UnitOfWork) availability.Gate {
	return availability.Gate{Inventory: unit.Inventory(), Slots: unit.Slots(), Calendars: unit.Calendars()}
}

type ctxKey struct{}

func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(ctxKey{}).(UnitOfWork)
	return unit, ok
}

// Bind prepares execCtx for a unit: implementations that need a session on the
// context (Mongo) expose InjectContext.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ContextWithUnitOfWork(ctx, unit)
}
