package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"topicmon/internal/broker"
	"topicmon/internal/config"
	"topicmon/internal/logger"
)

// Base carries what every monitor process needs: configuration, the logger
// and the broker subscriber.
type Base struct {
	Config     *config.Config
	Logger     logger.Logger
	Subscriber broker.Subscriber
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) InitBroker(clientID string) error {
	subscriber, err := broker.NewSubscriber(b.Config.Broker, b.Logger,
		broker.WithClientID(clientID),
		broker.WithPayloadMode(b.Config.Monitor.PayloadMode),
	)
	if err != nil {
		return fmt.Errorf("failed to create subscriber: %w", err)
	}

	b.Subscriber = subscriber
	return nil
}

func (b *Base) ShutdownBroker() []error {
	if b.Subscriber == nil {
		return nil
	}
	if err := b.Subscriber.Close(); err != nil {
		return []error{fmt.Errorf("subscriber close error: %w", err)}
	}
	return nil
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.InfowCtx(ctx, "Shutting down application...")

	var errs []error
	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	b.Logger.InfowCtx(ctx, "Application exited successfully")
	return nil
}
