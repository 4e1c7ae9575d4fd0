package subscription

import (
	"context"
	"time"

	"topicmon/internal/broker"
	"topicmon/internal/classifier"
	"topicmon/internal/emitter"
	"topicmon/internal/logger"
	apperrors "topicmon/pkg/errors"
	"topicmon/pkg/logging"
	"topicmon/pkg/metrics"
	"topicmon/pkg/tracing"
)

type Classifier interface {
	Classify(ctx context.Context, msg broker.Message) classifier.Result
}

// Pipeline is the broker.Handler of every subscription. The delivery is
// acknowledged before anything else happens, so classification can never
// hold back or prevent an ack.
type Pipeline struct {
	classifier Classifier
	emitter    emitter.Emitter
	logger     logger.Logger
}

func NewPipeline(c Classifier, e emitter.Emitter, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Pipeline{classifier: c, emitter: e, logger: log}
}

func (p *Pipeline) Handle(ctx context.Context, d broker.Delivery) {
	d.Ack()

	subscription := logging.GetSubscription(ctx)
	start := time.Now()

	msg := d.Message()
	ctx, span := tracing.StartConsume(ctx, msg.Topic, msg.Size())
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := apperrors.RecoverPanic(r)
			metrics.IncProcessingPanics(subscription)
			span.RecordError(err)
			p.logger.ErrorwCtx(ctx, "Panic recovered while classifying message",
				"error", err,
			)
		}
	}()

	result := p.classifier.Classify(ctx, msg)
	p.emitter.Emit(ctx, result)

	metrics.ObserveProcessingDuration(subscription, time.Since(start))
}
