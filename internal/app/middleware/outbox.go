package middleware

import (
	"context"
	"log/slog"

	"tripdesk/internal/app/commands"
	"tripdesk/internal/app/outbox"
)

// OutboxFlush nudges the relay after a successful command. The command has
// already committed, so a failed nudge is only logged; the relay picks the
// records up on its next poll.
func OutboxFlush(flusher outbox.Flusher, logger *slog.Logger) CommandMiddleware {
	if flusher == nil {
		panic("middleware: outbox flusher required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := flusher.Flush(ctx); err != nil && logger != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "err", err)
			}
			return res, nil
		})
	}
}
