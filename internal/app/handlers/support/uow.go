package support

import (
	"context"
	"time"

	"tripdesk/internal/app/uow"
)

// BeginReadOnlyUnit reuses the unit on ctx or starts a read-only one. The
// returned cleanup is nil when the unit was inherited.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := uow.Bind(ctx, unit)
	cleanup := func() {
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(execCtx), 5*time.Second)
		defer cancel()
		_ = unit.Rollback(rbCtx)
	}
	return unit, execCtx, cleanup, nil
}

// UnitFrom returns the unit bound by the transaction middleware.
func UnitFrom(ctx context.Context) (uow.UnitOfWork, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	return unit, nil
}
