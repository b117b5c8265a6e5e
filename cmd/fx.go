package cmd

import (
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/chatwire/chat-gateway/config"
	"github.com/chatwire/chat-gateway/internal/adapter/pubsub"
	"github.com/chatwire/chat-gateway/internal/auth"
	"github.com/chatwire/chat-gateway/internal/domain/registry"
	"github.com/chatwire/chat-gateway/internal/handler/stream"
	"github.com/chatwire/chat-gateway/internal/handler/ws"
	"github.com/chatwire/chat-gateway/internal/service"
	"github.com/chatwire/chat-gateway/internal/store"
	"go.uber.org/fx"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideVerifier,

			pubsub.NewKafkaPublisher,
			pubsub.NewSubscriberProvider,
			pubsub.NewEventDispatcher,
		),
		registry.Module,
		service.Module,
		store.Module,
		stream.Module,
		ws.Module,
	)
}

func ProvideLogger(cfg *config.Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.Level(),
	})).With("service", ServiceName)
	slog.SetDefault(logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

func ProvideVerifier(cfg *config.Config) auth.Verifier {
	return auth.NewVerifier(cfg.Auth.TokenSecret)
}
