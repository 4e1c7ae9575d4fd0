package classifier

import (
	"context"
	"testing"
	"unicode/utf8"

	"github.com/kaptinlin/jsonschema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicmon/internal/broker"
	"topicmon/internal/constants"
	"topicmon/internal/logger"
	"topicmon/internal/schema"
	"topicmon/pkg/metrics"
)

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	compiled, err := jsonschema.NewCompiler().Compile([]byte(`{
		"title": "Order Event",
		"type": "object",
		"required": ["orderId"]
	}`))
	require.NoError(t, err)
	return schema.NewRegistry(nil, schema.Record{Name: "order-event", Schema: compiled})
}

func newClassifier(t *testing.T, cfg Config, reg *schema.Registry) *Classifier {
	t.Helper()
	c, err := New(cfg, reg, logger.NopLogger())
	require.NoError(t, err)
	return c
}

func msg(topic, payload string) broker.Message {
	return broker.Message{Topic: topic, Payload: []byte(payload)}
}

func TestClassify_MatchedSchema(t *testing.T) {
	c := newClassifier(t, Config{GroupPartitioned: true}, newRegistry(t))

	res := c.Classify(context.Background(), msg("orders-partition-3", `{"orderId":"o-1"}`))

	assert.Equal(t, "orders", res.Topic)
	assert.True(t, res.Parsed)
	require.NotNil(t, res.Schema)
	assert.Equal(t, "order-event", res.Schema.Name)
	assert.False(t, res.BreakdownConfigured)
	assert.False(t, res.HasBreakdown)
}

func TestClassify_NotJSONWithBreakdown(t *testing.T) {
	c := newClassifier(t, Config{Breakdown: BreakdownConfig{Expression: "$.id"}}, newRegistry(t))

	res := c.Classify(context.Background(), msg("orders", "not-json"))

	assert.False(t, res.Parsed)
	assert.Nil(t, res.Document)
	assert.Nil(t, res.Schema)
	assert.True(t, res.BreakdownConfigured)
	assert.False(t, res.HasBreakdown)
	assert.Empty(t, res.Breakdown)
}

func TestClassify_NoSchemaDirectory(t *testing.T) {
	reg, err := schema.Load("", logger.NopLogger())
	require.NoError(t, err)
	c := newClassifier(t, Config{}, reg)

	for _, payload := range []string{`{"orderId":"1"}`, `[1,2]`, `"text"`, `42`, `null`} {
		res := c.Classify(context.Background(), msg("orders", payload))
		assert.True(t, res.Parsed, payload)
		assert.Nil(t, res.Schema, payload)
	}
}

func TestClassify_MalformedJSONNeverMatches(t *testing.T) {
	anyObject, err := jsonschema.NewCompiler().Compile([]byte(`{"title":"Anything"}`))
	require.NoError(t, err)
	reg := schema.NewRegistry(nil, schema.Record{Name: "anything", Schema: anyObject})
	c := newClassifier(t, Config{Breakdown: BreakdownConfig{Expression: "$.a"}}, reg)

	inputs := []string{"", "{", `{"a":1`, "not-json", `{"a":1} trailing`, "{'a':1}", "\x00\x01", `[1,]`}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			res := c.Classify(context.Background(), msg("t", in))
			assert.False(t, res.Parsed, in)
			assert.Nil(t, res.Schema, in)
		})
	}
}

func TestClassify_Breakdown(t *testing.T) {
	c := newClassifier(t, Config{Breakdown: BreakdownConfig{Expression: "$.user"}}, newRegistry(t))

	res := c.Classify(context.Background(), msg("users", `{"user":"alice"}`))
	assert.True(t, res.HasBreakdown)
	assert.Equal(t, "alice", res.Breakdown)
	assert.Nil(t, res.Schema)

	res = c.Classify(context.Background(), msg("users", `{"other":"x"}`))
	assert.False(t, res.HasBreakdown)
}

func TestClassify_InvalidBreakdownExpression(t *testing.T) {
	c := newClassifier(t, Config{Breakdown: BreakdownConfig{Expression: "$.["}}, newRegistry(t))

	res := c.Classify(context.Background(), msg("users", `{"user":"alice"}`))
	assert.True(t, res.BreakdownConfigured)
	assert.False(t, res.HasBreakdown)
	assert.True(t, res.Parsed)
}

func TestClassify_TextPayloadAndEncoding(t *testing.T) {
	text := `{"orderId":"é"}`
	c := newClassifier(t, Config{}, newRegistry(t))
	res := c.Classify(context.Background(), broker.Message{Topic: "orders", Text: &text, Payload: []byte("ignored")})
	assert.True(t, res.Parsed)
	require.NotNil(t, res.Schema)

	latin1 := newClassifier(t, Config{Encoding: "ISO-8859-1", Breakdown: BreakdownConfig{Expression: "$.orderId"}}, newRegistry(t))
	res = latin1.Classify(context.Background(), broker.Message{
		Topic:   "orders",
		Payload: []byte{'{', '"', 'o', 'r', 'd', 'e', 'r', 'I', 'd', '"', ':', '"', 0xe9, '"', '}'},
	})
	assert.True(t, res.Parsed)
	assert.Equal(t, "é", res.Breakdown)
}

func TestClassify_TextPayloadInvalidUTF8(t *testing.T) {
	text := "{\"user\":\"a\xffb\"}"
	c := newClassifier(t, Config{Breakdown: BreakdownConfig{Expression: "$.user"}}, nil)

	fromText := c.Classify(context.Background(), broker.Message{Topic: "orders", Text: &text})
	fromBytes := c.Classify(context.Background(), msg("orders", text))

	assert.True(t, fromText.Parsed)
	assert.True(t, fromText.HasBreakdown)
	assert.Equal(t, "a\uFFFDb", fromText.Breakdown)
	assert.True(t, utf8.ValidString(fromText.Breakdown))
	assert.Equal(t, fromBytes.Breakdown, fromText.Breakdown)
}

func TestClassify_LogSamplingOnlyAtDebugLevel(t *testing.T) {
	cfg := Config{Breakdown: BreakdownConfig{Expression: "$.user"}}
	suppressed := func() float64 {
		return testutil.ToFloat64(metrics.LogsSuppressedTotal.WithLabelValues("classifier"))
	}

	info, err := New(cfg, nil, logger.NopLogger())
	require.NoError(t, err)
	before := suppressed()
	for i := 0; i < 3*constants.LogSampleBurst; i++ {
		info.Classify(context.Background(), msg("orders", "not-json"))
	}
	assert.Zero(t, info.sampler.Len())
	assert.Equal(t, before, suppressed())

	debugLog, err := logger.New("debug", "console")
	require.NoError(t, err)
	debug, err := New(cfg, nil, debugLog)
	require.NoError(t, err)
	before = suppressed()
	for i := 0; i < 3*constants.LogSampleBurst; i++ {
		debug.Classify(context.Background(), msg("orders", "not-json"))
	}
	assert.Equal(t, 2, debug.sampler.Len())
	assert.Greater(t, suppressed(), before)
}

func TestClassify_EmptyTopic(t *testing.T) {
	c := newClassifier(t, Config{GroupPartitioned: true}, nil)
	res := c.Classify(context.Background(), msg("", `{}`))
	assert.Equal(t, "", res.Topic)
	assert.True(t, res.Parsed)
	assert.Nil(t, res.Schema)
}

func TestNew_UnknownEncoding(t *testing.T) {
	_, err := New(Config{Encoding: "klingon-8"}, nil, nil)
	assert.Error(t, err)
}
