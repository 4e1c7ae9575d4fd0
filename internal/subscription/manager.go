// Package subscription owns the lifecycle of the topic pattern subscriptions.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"topicmon/internal/broker"
	"topicmon/internal/constants"
	"topicmon/internal/logger"
	"topicmon/pkg/circuitbreaker"
	apperrors "topicmon/pkg/errors"
	"topicmon/pkg/metrics"
	"topicmon/pkg/retry"
)

type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FailurePolicy decides what Start does when a pattern cannot be subscribed.
type FailurePolicy string

const (
	// FailureStrict aborts Start and releases every subscription opened so far.
	FailureStrict FailurePolicy = constants.FailurePolicyStrict
	// FailureLenient skips the pattern and keeps the others.
	FailureLenient FailurePolicy = constants.FailurePolicyLenient
)

type Config struct {
	// Group is the shared subscription identity; all patterns use it.
	Group         string
	Patterns      []string
	FailurePolicy FailurePolicy
	Retry         retry.Policy
	Breaker       circuitbreaker.Config
}

type Manager struct {
	subscriber broker.Subscriber
	handler    broker.Handler
	cfg        Config
	breaker    *circuitbreaker.Wrapper
	logger     logger.Logger

	mu    sync.Mutex
	state State
	subs  []broker.Subscription
}

func NewManager(subscriber broker.Subscriber, handler broker.Handler, cfg Config, log logger.Logger) *Manager {
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = FailureStrict
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = circuitbreaker.DefaultConfig("subscribe")
	}
	if cfg.Breaker.IsSuccessful == nil {
		// misconfigured patterns say nothing about broker health
		cfg.Breaker.IsSuccessful = func(err error) bool {
			return err == nil || retry.IsPermanent(err)
		}
	}
	if log == nil {
		log = logger.NopLogger()
	}

	return &Manager{
		subscriber: subscriber,
		handler:    handler,
		cfg:        cfg,
		breaker:    circuitbreaker.NewWrapper(cfg.Breaker),
		logger:     log,
		state:      StateStopped,
	}
}

// Start subscribes every configured pattern. It is only valid from STOPPED.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateStopped {
		state := m.state
		m.mu.Unlock()
		return apperrors.ErrInvalidState.WithDetail("state", state.String())
	}
	m.state = StateStarting
	m.mu.Unlock()

	m.logger.InfowCtx(ctx, "Starting subscriptions",
		"group", m.cfg.Group,
		"patterns", m.cfg.Patterns,
		"failure_policy", m.cfg.FailurePolicy,
	)

	opened := make([]broker.Subscription, 0, len(m.cfg.Patterns))
	for _, pattern := range m.cfg.Patterns {
		sub, err := m.subscribe(ctx, pattern)
		if err == nil {
			m.logger.InfowCtx(ctx, "Subscribed to topics pattern",
				"pattern", pattern,
			)
			opened = append(opened, sub)
			continue
		}

		metrics.IncSubscribeFailures(string(m.cfg.FailurePolicy))
		if m.cfg.FailurePolicy == FailureLenient {
			m.logger.WarnwCtx(ctx, "Cannot subscribe to topics pattern, skipping it",
				"pattern", pattern,
				"error", err,
			)
			continue
		}

		m.logger.ErrorwCtx(ctx, "Cannot subscribe to topics pattern, aborting startup",
			"pattern", pattern,
			"error", err,
		)
		closeAll(opened)
		m.mu.Lock()
		m.state = StateStopped
		m.mu.Unlock()
		return apperrors.ErrSubscribeFailed.
			WithCause(err).
			WithDetail("message", fmt.Sprintf("cannot subscribe to topics pattern %q", pattern)).
			WithDetail("pattern", pattern)
	}

	if len(opened) == 0 {
		m.logger.WarnwCtx(ctx, "No topics pattern subscribed, nothing will be monitored",
			"patterns", m.cfg.Patterns,
		)
	}

	m.mu.Lock()
	m.subs = opened
	m.state = StateRunning
	m.mu.Unlock()
	metrics.SetSubscriptionsActive(len(opened))

	return nil
}

func (m *Manager) subscribe(ctx context.Context, pattern string) (broker.Subscription, error) {
	var sub broker.Subscription
	err := retry.Do(ctx, m.cfg.Retry, func(ctx context.Context) error {
		err := m.breaker.Execute(ctx, func(ctx context.Context) error {
			s, err := m.subscriber.Subscribe(ctx, pattern, m.cfg.Group, m.handler)
			if err != nil {
				return err
			}
			sub = s
			return nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) {
			return retry.NewFatalError(err)
		}
		return err
	}, func(attempt int, err error, next time.Duration) {
		metrics.IncSubscribeRetryAttempts()
		m.logger.WarnwCtx(ctx, "Retrying subscription",
			"pattern", pattern,
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	})
	return sub, err
}

// Stop closes every subscription without waiting for the broker. Calling it
// on a stopped manager does nothing.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return
	}
	m.state = StateStopping
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()

	m.logger.Infow("Stopping subscriptions",
		"count", len(subs),
	)
	closeAll(subs)

	m.mu.Lock()
	m.state = StateStopped
	m.mu.Unlock()
	metrics.SetSubscriptionsActive(0)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Running() bool {
	return m.State() == StateRunning
}

// Active lists the patterns currently subscribed.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	patterns := make([]string, len(m.subs))
	for i, s := range m.subs {
		patterns[i] = s.Pattern()
	}
	return patterns
}

func closeAll(subs []broker.Subscription) {
	for _, s := range subs {
		s.Close()
	}
}
