package logging

import (
	"context"
)

type contextKey string

const (
	TopicKey        contextKey = "topic"
	SubscriptionKey contextKey = "subscription"
	MessageIDKey    contextKey = "message_id"
	ServiceNameKey  contextKey = "service_name"
)

func WithTopic(ctx context.Context, topic string) context.Context {
	return context.WithValue(ctx, TopicKey, topic)
}

func WithSubscription(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, SubscriptionKey, pattern)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetTopic(ctx context.Context) string {
	return getString(ctx, TopicKey)
}

func GetSubscription(ctx context.Context) string {
	return getString(ctx, SubscriptionKey)
}

func GetMessageID(ctx context.Context) string {
	return getString(ctx, MessageIDKey)
}

func GetServiceName(ctx context.Context) string {
	return getString(ctx, ServiceNameKey)
}

func getString(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetLogFields returns the request-scoped fields as zap sugared key/value pairs.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if subscription := GetSubscription(ctx); subscription != "" {
		fields = append(fields, string(SubscriptionKey), subscription)
	}

	if topic := GetTopic(ctx); topic != "" {
		fields = append(fields, string(TopicKey), topic)
	}

	if messageID := GetMessageID(ctx); messageID != "" {
		fields = append(fields, string(MessageIDKey), messageID)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, string(ServiceNameKey), serviceName)
	}

	return fields
}

// OneLine collapses a multi-line payload so it fits a single log field.
func OneLine(s string, max int) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' {
			r = ' '
		}
		out = append(out, r)
		if max > 0 && len(out) >= max {
			return string(out) + "..."
		}
	}
	return string(out)
}
