package broker

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"topicmon/internal/config"
	"topicmon/internal/constants"
	"topicmon/internal/logger"
	apperrors "topicmon/pkg/errors"
	"topicmon/pkg/logging"
	"topicmon/pkg/metrics"
	"topicmon/pkg/tracing"
)

// KafkaSubscriber emulates pattern subscriptions on kafka: the pattern is an
// anchored regexp matched against the topics present when Subscribe runs.
type KafkaSubscriber struct {
	cfg    config.KafkaConfig
	opts   options
	dialer *kafka.Dialer
	logger logger.Logger

	mu     sync.Mutex
	subs   map[*kafkaSubscription]struct{}
	wg     sync.WaitGroup
	closed bool
}

func NewKafkaSubscriber(cfg config.KafkaConfig, opts options, log logger.Logger) *KafkaSubscriber {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = constants.KafkaDialTimeout
	}
	return &KafkaSubscriber{
		cfg:  cfg,
		opts: opts,
		dialer: &kafka.Dialer{
			Timeout:   timeout,
			DualStack: true,
			ClientID:  opts.clientID,
		},
		logger: log,
		subs:   make(map[*kafkaSubscription]struct{}),
	}
}

func (s *KafkaSubscriber) Subscribe(ctx context.Context, pattern, group string, handler Handler) (Subscription, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, apperrors.ErrBrokerClosed
	}

	matcher, err := compilePattern(pattern)
	if err != nil {
		return nil, apperrors.ErrSubscribeFailed.AsFatal().WithCause(err).WithDetail("pattern", pattern)
	}

	available, err := s.listTopics(ctx)
	if err != nil {
		return nil, apperrors.ErrSubscribeFailed.WithCause(err).WithDetail("pattern", pattern)
	}

	topics := matchTopics(matcher, available)
	if len(topics) == 0 {
		return nil, apperrors.ErrSubscribeFailed.
			WithCause(fmt.Errorf("no topic matches %q", pattern)).
			WithDetail("pattern", pattern)
	}

	s.logger.InfowCtx(ctx, "Creating Kafka group reader",
		"pattern", pattern,
		"topics", topics,
		"group_id", group,
		"brokers", s.cfg.Brokers,
	)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     s.cfg.Brokers,
		GroupID:     group,
		GroupTopics: topics,
		StartOffset: kafka.FirstOffset,
		Dialer:      s.dialer,
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	runCtx, cancel := context.WithCancel(logging.WithSubscription(context.WithoutCancel(ctx), pattern))
	sub := &kafkaSubscription{
		pattern: pattern,
		reader:  reader,
		cancel:  cancel,
		owner:   s,
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

func (s *KafkaSubscriber) listTopics(ctx context.Context) ([]string, error) {
	var lastErr error
	for _, addr := range s.cfg.Brokers {
		conn, err := s.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		partitions, err := conn.ReadPartitions()
		conn.Close()
		if err != nil {
			lastErr = err
			continue
		}

		seen := make(map[string]struct{}, len(partitions))
		topics := make([]string, 0, len(partitions))
		for _, p := range partitions {
			if _, ok := seen[p.Topic]; ok {
				continue
			}
			seen[p.Topic] = struct{}{}
			topics = append(topics, p.Topic)
		}
		return topics, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no kafka brokers configured")
	}
	return nil, fmt.Errorf("failed to list kafka topics: %w", lastErr)
}

func (s *KafkaSubscriber) forget(sub *kafkaSubscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

// Close stops every subscription and waits for their fetch loops to exit.
func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := make([]*kafkaSubscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	s.wg.Wait()
	return nil
}

type kafkaSubscription struct {
	pattern   string
	reader    *kafka.Reader
	cancel    context.CancelFunc
	owner     *KafkaSubscriber
	closeOnce sync.Once
}

func (k *kafkaSubscription) Pattern() string {
	return k.pattern
}

func (k *kafkaSubscription) Close() {
	k.closeOnce.Do(func() {
		k.cancel()
		k.owner.forget(k)
		go func() {
			if err := k.reader.Close(); err != nil {
				k.owner.logger.Warnw("Error closing Kafka reader",
					"pattern", k.pattern,
					"error", err,
				)
			}
		}()
	})
}

func (k *kafkaSubscription) run(ctx context.Context, handler Handler) {
	log := k.owner.logger
	log.InfowCtx(ctx, "Started consuming")

	for {
		m, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.InfowCtx(ctx, "Stopped consuming",
					"reason", "subscription closed",
				)
				return
			}
			metrics.IncFetchErrors(k.pattern)
			log.ErrorwCtx(ctx, "Error fetching kafka message",
				"error", err,
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(constants.KafkaFetchErrorPause):
			}
			continue
		}

		msg := kafkaToMessage(m, k.owner.opts.textPayload())
		metrics.IncMessagesReceived(k.pattern, len(m.Value))

		msgCtx := tracing.ExtractFromMap(ctx, msg.Headers)
		msgCtx = logging.WithMessageID(msgCtx, msg.ID)
		handler(msgCtx, &kafkaDelivery{sub: k, raw: m, msg: msg})
	}
}

type kafkaDelivery struct {
	sub *kafkaSubscription
	raw kafka.Message
	msg Message
}

func (d *kafkaDelivery) Message() Message {
	return d.msg
}

func (d *kafkaDelivery) Ack() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.KafkaCommitTimeout)
		defer cancel()
		if err := d.sub.reader.CommitMessages(ctx, d.raw); err != nil {
			metrics.IncAckErrors(d.sub.pattern)
			d.sub.owner.logger.Warnw("Failed to commit kafka message",
				"subscription", d.sub.pattern,
				"message_id", d.msg.ID,
				"error", err,
			)
		}
	}()
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")$")
}

func matchTopics(matcher *regexp.Regexp, topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if matcher.MatchString(t) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func kafkaToMessage(m kafka.Message, textPayload bool) Message {
	msg := Message{
		Topic:     m.Topic,
		Payload:   m.Value,
		Key:       string(m.Key),
		ID:        m.Topic + "/" + strconv.Itoa(m.Partition) + "/" + strconv.FormatInt(m.Offset, 10),
		Partition: m.Partition,
		Headers:   tracing.HeadersToMap(m.Headers),
	}
	if textPayload {
		text := string(m.Value)
		msg.Text = &text
	}
	return msg
}
