package middleware

import (
	"context"
	"log/slog"
	"time"

	"tripdesk/internal/app/commands"
	"tripdesk/internal/app/queries"
	"tripdesk/internal/domain/shared/fault"
)

type CommandMiddleware func(next commands.Bus) commands.Bus

type QueryMiddleware func(next queries.Bus) queries.Bus

// ChainCommands wraps base with mws, outermost first.
func ChainCommands(base commands.Bus, mws ...CommandMiddleware) commands.Bus {
	wrapped := base
	for i := len(mws) - 1; i >= 0; i-- {
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

func ChainQueries(base queries.Bus, mws ...QueryMiddleware) queries.Bus {
	wrapped := base
	for i := len(mws) - 1; i >= 0; i-- {
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

type commandFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f commandFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}

type queryFunc func(ctx context.Context, query queries.Query) (any, error)

func (f queryFunc) Ask(ctx context.Context, q queries.Query) (any, error) {
	return f(ctx, q)
}

// Logging records every dispatched command with its outcome. Caller errors
// are logged at Info, unclassified and dependency failures at Error.
func Logging(logger *slog.Logger) CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := next.Dispatch(ctx, cmd)
			attrs := []any{"command", cmd.Key(), "duration", time.Since(start)}
			switch kind := fault.KindOf(err); {
			case err == nil:
				logger.Debug("command handled", attrs...)
			case kind == nil || kind == fault.DependencyFailure:
				logger.Error("command failed", append(attrs, "err", err)...)
			default:
				logger.Info("command rejected", append(attrs, "code", fault.Code(err), "reason", err.Error())...)
			}
			return res, err
		})
	}
}
