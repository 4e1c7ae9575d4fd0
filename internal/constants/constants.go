package constants

import "time"

const (
	ServiceName = "topic-monitor"
)

const (
	BrokerTypeKafka  = "kafka"
	BrokerTypePulsar = "pulsar"
)

const (
	TaggingPolicyCombined = "combined"
	TaggingPolicySeparate = "separate"
)

const (
	FailurePolicyStrict  = "strict"
	FailurePolicyLenient = "lenient"
)

const (
	PayloadModeBytes  = "bytes"
	PayloadModeString = "string"
)

const (
	BreakdownLanguageJSONPath = "jsonpath"
	BreakdownLanguageCEL      = "cel"
)

// UnknownTagValue replaces every absent label value.
const UnknownTagValue = "unknown"

const (
	ContentTypeJSON    = "json"
	ContentTypeUnknown = "unknown"
)

const (
	DefaultMessageEncoding = "UTF-8"
	DefaultServerPort      = 8080
)

const (
	KafkaDialTimeout       = 10 * time.Second
	KafkaFetchErrorPause   = time.Second
	KafkaCommitTimeout     = 5 * time.Second
	PulsarOperationTimeout = 30 * time.Second
	PulsarConnectTimeout   = 10 * time.Second
	PulsarChannelSize      = 1000
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	// DefaultTruncateLen bounds payload excerpts written to debug logs.
	DefaultTruncateLen = 256
	// LogSampleEvery bounds per-topic debug logging of unrecognized payloads.
	LogSampleEvery = time.Second
	LogSampleBurst = 5
)
