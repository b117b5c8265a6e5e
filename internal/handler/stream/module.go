package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/cenkalti/backoff/v4"
	"github.com/chatwire/chat-gateway/internal/adapter/pubsub"
	"go.uber.org/fx"
)

var Module = fx.Module("stream-handler",
	fx.Provide(NewMessageHandler),

	fx.Invoke(func(
		lc fx.Lifecycle,
		h *MessageHandler,
		subProvider *pubsub.SubscriberProvider,
		wmLogger watermill.LoggerAdapter,
		logger *slog.Logger,
	) {
		// A watermill router cannot be re-run once it has stopped, so every
		// supervised attempt assembles a fresh router over the same handlers.
		runOnce := func(ctx context.Context) error {
			router, err := NewWatermillRouter(wmLogger)
			if err != nil {
				return err
			}
			if err := h.RegisterHandlers(router, subProvider); err != nil {
				_ = router.Close()
				return err
			}

			// Run blocks until the router is closed; cancellation of ctx
			// closes it from the inside.
			runErr := router.Run(ctx)
			if runErr != nil {
				_ = router.Close()
			}
			return runErr
		}

		runCtx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					defer close(stopped)
					superviseRouter(runCtx, logger, runOnce, newRouterBackOff())
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				cancel()
				select {
				case <-stopped:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		})
	}),
)

func newRouterBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // retry until shutdown
	return bo
}

// superviseRouter keeps the consume pipeline alive for the whole process
// lifetime: when run returns with an error (broker unreachable at boot, fatal
// consumer-group error), it is restarted with capped exponential backoff.
// The gateway keeps serving sockets meanwhile; delivery resumes from the
// committed offsets once the broker is back.
func superviseRouter(ctx context.Context, logger *slog.Logger, run func(context.Context) error, bo backoff.BackOff) {
	for {
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// Run only returns nil after a clean close; nothing left to do.
			return
		}

		next := bo.NextBackOff()
		logger.Error("stream router stopped, restarting",
			"err", err,
			"retry_in", next.String(),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(next):
		}
	}
}
