package middleware

import (
	"context"
	"log/slog"

	"homestay/internal/app/commands"
	"homestay/internal/app/outbox"
)

// OutboxFlush nudges the outbox relay once the wrapped bus succeeded. It must
// sit outside Transaction: by the time it runs the records are committed, so
// a failed flush is only logged and the relay picks them up on its next poll.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				logger.WarnContext(ctx, "outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
