package broker

import (
	"fmt"

	"topicmon/internal/config"
	"topicmon/internal/constants"
	"topicmon/internal/logger"
)

type options struct {
	clientID    string
	payloadMode string
}

type Option func(*options)

// WithClientID names this process to the broker (kafka client id, pulsar consumer name).
func WithClientID(id string) Option {
	return func(o *options) {
		o.clientID = id
	}
}

// WithPayloadMode selects whether deliveries carry a decoded Text payload.
func WithPayloadMode(mode string) Option {
	return func(o *options) {
		o.payloadMode = mode
	}
}

func (o options) textPayload() bool {
	return o.payloadMode == constants.PayloadModeString
}

func NewSubscriber(cfg config.BrokerConfig, log logger.Logger, opts ...Option) (Subscriber, error) {
	o := options{
		clientID:    constants.ServiceName,
		payloadMode: constants.PayloadModeBytes,
	}
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Type {
	case constants.BrokerTypeKafka:
		return NewKafkaSubscriber(cfg.Kafka, o, log), nil
	case constants.BrokerTypePulsar:
		return NewPulsarSubscriber(cfg.Pulsar, o, log)
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
