package health

import (
	"context"
	"fmt"
)

type SubscriptionSource interface {
	Running() bool
	Active() []string
}

// SubscriptionChecker is unhealthy when the manager is not running and
// degraded when it runs without any subscription.
type SubscriptionChecker struct {
	source SubscriptionSource
}

func NewSubscriptionChecker(source SubscriptionSource) *SubscriptionChecker {
	return &SubscriptionChecker{source: source}
}

func (c *SubscriptionChecker) Name() string {
	return "subscriptions"
}

func (c *SubscriptionChecker) Check(_ context.Context) error {
	if !c.source.Running() {
		return fmt.Errorf("subscriptions are not running")
	}
	if len(c.source.Active()) == 0 {
		return Degraded("no active topics pattern subscription")
	}
	return nil
}

type SchemaSource interface {
	Len() int
}

// SchemaChecker reports degraded when a schema directory is configured but
// nothing could be loaded from it.
type SchemaChecker struct {
	source     SchemaSource
	configured bool
}

func NewSchemaChecker(source SchemaSource, configured bool) *SchemaChecker {
	return &SchemaChecker{source: source, configured: configured}
}

func (c *SchemaChecker) Name() string {
	return "json_schemas"
}

func (c *SchemaChecker) Check(_ context.Context) error {
	if c.configured && c.source.Len() == 0 {
		return Degraded("json schema directory configured but no schema loaded")
	}
	return nil
}
