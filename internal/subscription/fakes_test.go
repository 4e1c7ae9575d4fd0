package subscription

import (
	"context"
	"sync"
	"sync/atomic"

	"topicmon/internal/broker"
	"topicmon/internal/classifier"
)

type fakeSubscription struct {
	pattern string
	closed  atomic.Int32
}

func (s *fakeSubscription) Pattern() string { return s.pattern }
func (s *fakeSubscription) Close()          { s.closed.Add(1) }

type fakeSubscriber struct {
	mu       sync.Mutex
	failures map[string]error
	calls    map[string]int
	groups   []string
	opened   []*fakeSubscription
	handler  broker.Handler
}

func newFakeSubscriber(failures map[string]error) *fakeSubscriber {
	if failures == nil {
		failures = map[string]error{}
	}
	return &fakeSubscriber{failures: failures, calls: map[string]int{}}
}

func (f *fakeSubscriber) Subscribe(_ context.Context, pattern, group string, h broker.Handler) (broker.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[pattern]++
	f.groups = append(f.groups, group)
	if err, ok := f.failures[pattern]; ok {
		return nil, err
	}
	sub := &fakeSubscription{pattern: pattern}
	f.opened = append(f.opened, sub)
	f.handler = h
	return sub, nil
}

func (f *fakeSubscriber) Close() error { return nil }

func (f *fakeSubscriber) callCount(pattern string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[pattern]
}

// eventLog records the order of acks and classifications.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeDelivery struct {
	msg  broker.Message
	log  *eventLog
	acks atomic.Int32
}

func (d *fakeDelivery) Message() broker.Message { return d.msg }

func (d *fakeDelivery) Ack() {
	d.acks.Add(1)
	if d.log != nil {
		d.log.add("ack:" + d.msg.Topic)
	}
}

type fakeClassifier struct {
	log   *eventLog
	panic bool
}

func (c *fakeClassifier) Classify(_ context.Context, msg broker.Message) classifier.Result {
	if c.log != nil {
		c.log.add("classify:" + msg.Topic)
	}
	if c.panic {
		panic("classifier exploded")
	}
	return classifier.Result{Topic: msg.Topic, Parsed: true}
}

type fakeEmitter struct {
	mu      sync.Mutex
	results []classifier.Result
}

func (e *fakeEmitter) Emit(_ context.Context, r classifier.Result) {
	e.mu.Lock()
	e.results = append(e.results, r)
	e.mu.Unlock()
}

func (e *fakeEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.results)
}
