package broker

import (
	"context"
	"sync"

	"github.com/apache/pulsar-client-go/pulsar"

	"topicmon/internal/config"
	"topicmon/internal/constants"
	"topicmon/internal/logger"
	apperrors "topicmon/pkg/errors"
	"topicmon/pkg/logging"
	"topicmon/pkg/metrics"
	"topicmon/pkg/tracing"
)

type PulsarSubscriber struct {
	client pulsar.Client
	opts   options
	logger logger.Logger

	mu     sync.Mutex
	subs   map[*pulsarSubscription]struct{}
	wg     sync.WaitGroup
	closed bool
}

func NewPulsarSubscriber(cfg config.PulsarConfig, opts options, log logger.Logger) (*PulsarSubscriber, error) {
	clientOpts := pulsar.ClientOptions{
		URL:               cfg.URL,
		OperationTimeout:  cfg.OperationTimeout,
		ConnectionTimeout: cfg.ConnectionTimeout,
	}
	if clientOpts.OperationTimeout <= 0 {
		clientOpts.OperationTimeout = constants.PulsarOperationTimeout
	}
	if clientOpts.ConnectionTimeout <= 0 {
		clientOpts.ConnectionTimeout = constants.PulsarConnectTimeout
	}
	if cfg.AuthToken != "" {
		clientOpts.Authentication = pulsar.NewAuthenticationToken(cfg.AuthToken)
	}

	client, err := pulsar.NewClient(clientOpts)
	if err != nil {
		return nil, apperrors.ErrConfigInvalid.WithCause(err).WithDetail("url", cfg.URL)
	}

	return &PulsarSubscriber{
		client: client,
		opts:   opts,
		logger: log,
		subs:   make(map[*pulsarSubscription]struct{}),
	}, nil
}

func (s *PulsarSubscriber) Subscribe(ctx context.Context, pattern, group string, handler Handler) (Subscription, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, apperrors.ErrBrokerClosed
	}

	s.logger.InfowCtx(ctx, "Creating Pulsar consumer",
		"pattern", pattern,
		"subscription_name", group,
		"consumer_name", s.opts.clientID,
	)

	consumer, err := s.client.Subscribe(s.consumerOptions(pattern, group))
	if err != nil {
		return nil, apperrors.ErrSubscribeFailed.WithCause(err).WithDetail("pattern", pattern)
	}

	runCtx, cancel := context.WithCancel(logging.WithSubscription(context.WithoutCancel(ctx), pattern))
	sub := &pulsarSubscription{
		pattern:  pattern,
		consumer: consumer,
		cancel:   cancel,
		owner:    s,
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sub.run(runCtx, handler)
	}()

	return sub, nil
}

// consumerOptions keeps one active consumer per partition across monitor
// instances sharing the subscription name.
func (s *PulsarSubscriber) consumerOptions(pattern, group string) pulsar.ConsumerOptions {
	return pulsar.ConsumerOptions{
		TopicsPattern:               pattern,
		SubscriptionName:            group,
		Name:                        s.opts.clientID,
		Type:                        pulsar.Failover,
		SubscriptionInitialPosition: pulsar.SubscriptionPositionEarliest,
		MessageChannel:              make(chan pulsar.ConsumerMessage, constants.PulsarChannelSize),
	}
}

func (s *PulsarSubscriber) forget(sub *pulsarSubscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

// Close stops every consumer, waits for the receive loops and closes the client.
func (s *PulsarSubscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := make([]*pulsarSubscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	s.wg.Wait()
	s.client.Close()
	return nil
}

type pulsarSubscription struct {
	pattern   string
	consumer  pulsar.Consumer
	cancel    context.CancelFunc
	owner     *PulsarSubscriber
	closeOnce sync.Once
}

func (p *pulsarSubscription) Pattern() string {
	return p.pattern
}

func (p *pulsarSubscription) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		p.owner.forget(p)
		go p.consumer.Close()
	})
}

func (p *pulsarSubscription) run(ctx context.Context, handler Handler) {
	log := p.owner.logger
	log.InfowCtx(ctx, "Started consuming")

	for {
		select {
		case <-ctx.Done():
			log.InfowCtx(ctx, "Stopped consuming",
				"reason", "subscription closed",
			)
			return
		case cm, ok := <-p.consumer.Chan():
			if !ok {
				log.InfowCtx(ctx, "Stopped consuming",
					"reason", "consumer channel closed",
				)
				return
			}

			msg := pulsarToMessage(cm.Message, p.owner.opts.textPayload())
			metrics.IncMessagesReceived(p.pattern, len(msg.Payload))

			msgCtx := tracing.ExtractFromMap(ctx, msg.Headers)
			msgCtx = logging.WithMessageID(msgCtx, msg.ID)
			handler(msgCtx, &pulsarDelivery{sub: p, consumer: cm.Consumer, raw: cm.Message, msg: msg})
		}
	}
}

type pulsarDelivery struct {
	sub      *pulsarSubscription
	consumer pulsar.Consumer
	raw      pulsar.Message
	msg      Message
}

func (d *pulsarDelivery) Message() Message {
	return d.msg
}

// Ack hands the acknowledgement to the client's ack tracker, which batches
// and sends it in the background.
func (d *pulsarDelivery) Ack() {
	if err := d.consumer.Ack(d.raw); err != nil {
		metrics.IncAckErrors(d.sub.pattern)
		d.sub.owner.logger.Warnw("Failed to acknowledge pulsar message",
			"subscription", d.sub.pattern,
			"message_id", d.msg.ID,
			"error", err,
		)
	}
}

func pulsarToMessage(m pulsar.Message, textPayload bool) Message {
	msg := Message{
		Topic:   m.Topic(),
		Payload: m.Payload(),
		Key:     m.Key(),
		Headers: m.Properties(),
	}
	if id := m.ID(); id != nil {
		msg.ID = id.String()
		msg.Partition = int(id.PartitionIdx())
	}
	if textPayload {
		text := string(m.Payload())
		msg.Text = &text
	}
	return msg
}
