package broker

import (
	"context"
)

// Message is the inbound envelope handed to the monitor pipeline.
type Message struct {
	// Topic is the physical topic name; empty when the broker did not report one.
	Topic   string
	Payload []byte
	// Text is set when the subscription delivers already decoded string payloads.
	Text      *string
	Key       string
	ID        string
	Partition int
	Headers   map[string]string
}

// Size returns the payload length in bytes.
func (m Message) Size() int {
	if m.Text != nil && len(m.Payload) == 0 {
		return len(*m.Text)
	}
	return len(m.Payload)
}

// Delivery is one received message plus its acknowledgement handle.
type Delivery interface {
	Message() Message
	// Ack acknowledges asynchronously; it never blocks on the broker.
	Ack()
}

type Handler func(ctx context.Context, d Delivery)

// Subscription is one topics pattern bound to a group identity.
type Subscription interface {
	Pattern() string
	// Close stops delivery and releases broker resources without waiting.
	Close()
}

type Subscriber interface {
	// Subscribe starts delivering messages from every topic matched by
	// pattern, from the earliest retained position, under the shared group.
	Subscribe(ctx context.Context, pattern, group string, handler Handler) (Subscription, error)
	Close() error
}
