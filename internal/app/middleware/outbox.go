package middleware

import (
	"context"
	"log/slog"

	"rentacar/internal/app/commands"
	"rentacar/internal/app/outbox"
)

// OutboxFlush nudges the relay once the wrapped command has committed. It
// belongs outside Transaction in the chain. A flush failure is logged and
// never fails the command: the records are already durable.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil && logger != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
