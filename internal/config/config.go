package config

import (
	"time"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Broker  BrokerConfig  `mapstructure:"broker"`
	Logging LoggingConfig `mapstructure:"logging"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type BrokerConfig struct {
	Type   string       `mapstructure:"type"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Pulsar PulsarConfig `mapstructure:"pulsar"`
}

type KafkaConfig struct {
	Brokers     []string      `mapstructure:"brokers"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type PulsarConfig struct {
	URL               string        `mapstructure:"url"`
	OperationTimeout  time.Duration `mapstructure:"operation_timeout"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	// AuthToken enables token authentication when set.
	AuthToken string `mapstructure:"auth_token"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MonitorConfig struct {
	ClientName             string      `mapstructure:"client_name"`
	TopicsPatterns         []string    `mapstructure:"topics_patterns"`
	JSONSchemaDir          string      `mapstructure:"json_schema_dir"`
	UserBreakdownJSONPath  string      `mapstructure:"user_breakdown_jsonpath"`
	BreakdownLanguage      string      `mapstructure:"breakdown_language"`
	GroupPartitioned       bool        `mapstructure:"group_partitioned"`
	MessageEncoding        string      `mapstructure:"message_encoding"`
	PayloadMode            string      `mapstructure:"payload_mode"`
	TaggingPolicy          string      `mapstructure:"tagging_policy"`
	SubscribeFailurePolicy string      `mapstructure:"subscribe_failure_policy"`
	SubscribeRetry         RetryConfig `mapstructure:"subscribe_retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

// BreakdownConfigured reports whether a user breakdown expression is set.
func (c MonitorConfig) BreakdownConfigured() bool {
	return c.UserBreakdownJSONPath != ""
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
