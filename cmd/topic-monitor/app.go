package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"topicmon/internal/classifier"
	"topicmon/internal/config"
	"topicmon/internal/constants"
	"topicmon/internal/emitter"
	"topicmon/internal/logger"
	"topicmon/internal/schema"
	"topicmon/internal/subscription"
	"topicmon/pkg/bootstrap"
	"topicmon/pkg/health"
	"topicmon/pkg/logging"
	"topicmon/pkg/metrics"
	"topicmon/pkg/middleware"
	"topicmon/pkg/retry"
	"topicmon/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	instanceID     string
	registry       *schema.Registry
	manager        *subscription.Manager
	tracerProvider *tracing.Provider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:       bootstrap.NewBase(cfg, log),
		instanceID: uuid.NewString(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	ctx = logging.WithServiceName(ctx, constants.ServiceName)

	tp, err := tracing.Init(a.Config.Tracing, tracing.Identity{
		InstanceID: a.instanceID,
		BrokerType: a.Config.Broker.Type,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.Register(prometheus.DefaultRegisterer)

	registry, err := schema.Load(a.Config.Monitor.JSONSchemaDir, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to load json schemas: %w", err)
	}
	a.registry = registry
	metrics.SetSchemasLoaded(registry.Len())

	cls, err := classifier.New(classifier.Config{
		Encoding:         a.Config.Monitor.MessageEncoding,
		GroupPartitioned: a.Config.Monitor.GroupPartitioned,
		Breakdown: classifier.BreakdownConfig{
			Expression: a.Config.Monitor.UserBreakdownJSONPath,
			Language:   a.Config.Monitor.BreakdownLanguage,
		},
	}, registry, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create classifier: %w", err)
	}

	em, err := emitter.New(emitter.Policy(a.Config.Monitor.TaggingPolicy), prometheus.DefaultRegisterer, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create emitter: %w", err)
	}

	if err := a.InitBroker(a.consumerName()); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	pipeline := subscription.NewPipeline(cls, em, a.Logger)
	a.manager = subscription.NewManager(a.Subscriber, pipeline.Handle, subscription.Config{
		Group:         a.Config.Monitor.ClientName,
		Patterns:      a.Config.Monitor.TopicsPatterns,
		FailurePolicy: subscription.FailurePolicy(a.Config.Monitor.SubscribeFailurePolicy),
		Retry:         retryPolicy(a.Config.Monitor.SubscribeRetry),
	}, a.Logger)

	a.initHTTPServer()

	a.Logger.InfowCtx(ctx, "Topic monitor initialized",
		"instance_id", a.instanceID,
		"schemas", registry.Names(),
		"breakdown_configured", a.Config.Monitor.BreakdownConfigured(),
		"tagging_policy", a.Config.Monitor.TaggingPolicy,
	)
	return nil
}

// consumerName is unique per process while the group stays the configured
// client name, so several monitors share the work of one subscription.
func (a *App) consumerName() string {
	return a.Config.Monitor.ClientName + "-" + a.instanceID[:8]
}

func retryPolicy(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
		Multiplier:      cfg.Multiplier,
	}
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewSubscriptionChecker(a.manager))
	healthRegistry.Register(health.NewSchemaChecker(a.registry, a.Config.Monitor.JSONSchemaDir != ""))

	mux.Handle("/health", healthRegistry.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: middleware.LoggerMiddleware(a.Logger, mux),
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if err := a.manager.Start(gCtx); err != nil {
			return fmt.Errorf("failed to start subscriptions: %w", err)
		}
		a.Logger.InfowCtx(gCtx, "Service running",
			"active_patterns", a.manager.Active(),
		)
		<-gCtx.Done()
		a.manager.Stop()
		return gCtx.Err()
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	if a.manager != nil {
		a.manager.Stop()
	}

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
