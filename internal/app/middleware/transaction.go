package middleware

import (
	"context"
	"errors"
	"time"

	"tripdesk/internal/app/commands"
	"tripdesk/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction runs each command in its own unit of work. The unit is rolled
// back when the handler fails or the context is done before commit.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			unit, err := factory.Begin(ctx, opts)
			if err != nil {
				return nil, err
			}
			execCtx := uow.Bind(ctx, unit)
			committed := false
			defer func() {
				if committed {
					return
				}
				// The caller's context may already be cancelled.
				rbCtx, cancel := context.WithTimeout(context.WithoutCancel(execCtx), 5*time.Second)
				defer cancel()
				_ = unit.Rollback(rbCtx)
			}()

			res, err := next.Dispatch(execCtx, cmd)
			if err != nil {
				return nil, err
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := unit.Commit(execCtx); err != nil {
				return nil, errors.Join(ErrCommitFailed, err)
			}
			committed = true
			return res, nil
		})
	}
}

var ErrCommitFailed = errors.New("middleware: commit failed")
