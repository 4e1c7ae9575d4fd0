// Package classifier turns one broker message into a classification result:
// normalized topic, JSON parse outcome, matched schema and user breakdown.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"topicmon/internal/broker"
	"topicmon/internal/constants"
	"topicmon/internal/logger"
	"topicmon/internal/schema"
	"topicmon/internal/topic"
	"topicmon/pkg/jsoncodec"
	"topicmon/pkg/logging"
	"topicmon/pkg/ratelimit"
	"topicmon/pkg/tracing"
)

type Config struct {
	Encoding         string
	GroupPartitioned bool
	Breakdown        BreakdownConfig
}

// Result is built per message and consumed by the emitter.
type Result struct {
	// Topic is the normalized topic name; empty when the broker reported none.
	Topic    string
	Parsed   bool
	Document any
	// Schema is nil when the payload did not parse or matched nothing.
	Schema              *schema.Record
	Breakdown           string
	HasBreakdown        bool
	BreakdownConfigured bool
}

func (r Result) SchemaName() (string, bool) {
	if r.Schema == nil {
		return "", false
	}
	return r.Schema.Name, true
}

type Classifier struct {
	registry   *schema.Registry
	normalizer topic.Normalizer
	encoding   encoding.Encoding
	breakdown  BreakdownConfig
	extractor  Extractor
	sampler    *ratelimit.Sampler
	logger     logger.Logger
}

func New(cfg Config, registry *schema.Registry, log logger.Logger) (*Classifier, error) {
	if log == nil {
		log = logger.NopLogger()
	}

	name := cfg.Encoding
	if name == "" {
		name = constants.DefaultMessageEncoding
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown message encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported message encoding %q", name)
	}

	c := &Classifier{
		registry:   registry,
		normalizer: topic.Normalizer{GroupPartitioned: cfg.GroupPartitioned},
		encoding:   enc,
		breakdown:  cfg.Breakdown,
		sampler: ratelimit.NewSampler("classifier", ratelimit.Config{
			Every: constants.LogSampleEvery,
			Burst: constants.LogSampleBurst,
		}),
		logger: log,
	}

	if cfg.Breakdown.Configured() {
		extractor, err := NewExtractor(cfg.Breakdown)
		if err != nil {
			log.Warnw("Invalid user breakdown expression, breakdown will always be absent",
				"expression", cfg.Breakdown.Expression,
				"language", cfg.Breakdown.Language,
				"error", err,
			)
		} else {
			c.extractor = extractor
		}
	}

	return c, nil
}

func (c *Classifier) Classify(ctx context.Context, msg broker.Message) Result {
	ctx, span := tracing.Tracer().Start(ctx, "classifier.classify")
	defer span.End()

	result := Result{
		Topic:               c.normalizer.Normalize(msg.Topic),
		BreakdownConfigured: c.breakdown.Configured(),
	}
	ctx = logging.WithTopic(ctx, result.Topic)

	text, ok := c.decode(ctx, msg)
	if ok {
		doc, err := jsoncodec.ParseString(text)
		if err != nil {
			if c.logger.DebugEnabled() && c.sampler.Allow(result.Topic) {
				c.logger.DebugwCtx(ctx, "Cannot parse message as JSON",
					"message", logging.OneLine(text, constants.DefaultTruncateLen),
					"error", err,
				)
			}
		} else {
			result.Parsed = true
			result.Document = doc
			if record, found := c.registry.Match(ctx, doc); found {
				result.Schema = record
			}
		}
	}

	if result.BreakdownConfigured && ok {
		result.Breakdown, result.HasBreakdown = c.extract(ctx, result.Topic, text)
	}

	span.SetAttributes(
		attribute.String("topic", result.Topic),
		attribute.Bool("parsed", result.Parsed),
		attribute.Bool("has_breakdown", result.HasBreakdown),
	)
	if name, found := result.SchemaName(); found {
		span.SetAttributes(attribute.String("schema", name))
	}

	return result
}

func (c *Classifier) decode(ctx context.Context, msg broker.Message) (string, bool) {
	if msg.Text != nil {
		// invalid sequences become U+FFFD, as in the decoder path
		return strings.ToValidUTF8(*msg.Text, "\uFFFD"), true
	}

	decoded, err := c.encoding.NewDecoder().Bytes(msg.Payload)
	if err != nil {
		c.logger.DebugwCtx(ctx, "Cannot decode message payload",
			"error", err,
		)
		return "", false
	}
	return string(decoded), true
}

func (c *Classifier) extract(ctx context.Context, topicName, text string) (string, bool) {
	if c.extractor == nil {
		return "", false
	}

	value, err := c.extractor.Extract(ctx, text)
	if err != nil {
		if c.logger.DebugEnabled() && c.sampler.Allow(topicName+"/breakdown") {
			c.logger.DebugwCtx(ctx, "Cannot read breakdown expression",
				"expression", c.extractor.Expression(),
				"message", logging.OneLine(text, constants.DefaultTruncateLen),
				"error", err,
			)
		}
		return "", false
	}
	return value, true
}

