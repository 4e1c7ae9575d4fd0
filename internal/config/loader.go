package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"topicmon/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetConfigFile(configFile)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(v, &cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", constants.DefaultServerPort)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("broker.type", constants.BrokerTypePulsar)
	v.SetDefault("broker.pulsar.url", "pulsar://localhost:6650")
	v.SetDefault("broker.pulsar.operation_timeout", constants.PulsarOperationTimeout)
	v.SetDefault("broker.pulsar.connection_timeout", constants.PulsarConnectTimeout)
	v.SetDefault("broker.kafka.dial_timeout", constants.KafkaDialTimeout)

	v.SetDefault("monitor.client_name", constants.ServiceName)
	v.SetDefault("monitor.breakdown_language", constants.BreakdownLanguageJSONPath)
	v.SetDefault("monitor.group_partitioned", true)
	v.SetDefault("monitor.message_encoding", constants.DefaultMessageEncoding)
	v.SetDefault("monitor.payload_mode", constants.PayloadModeBytes)
	v.SetDefault("monitor.tagging_policy", constants.TaggingPolicyCombined)
	v.SetDefault("monitor.subscribe_failure_policy", constants.FailurePolicyStrict)
	v.SetDefault("monitor.subscribe_retry.max_attempts", 3)
	v.SetDefault("monitor.subscribe_retry.initial_interval", "500ms")
	v.SetDefault("monitor.subscribe_retry.max_interval", "5s")
	v.SetDefault("monitor.subscribe_retry.multiplier", 2.0)

	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.otlp.insecure", true)
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("broker.type", "BROKER_TYPE")
	v.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	v.BindEnv("broker.pulsar.url", "BROKER_PULSAR_URL")
	v.BindEnv("broker.pulsar.auth_token", "BROKER_PULSAR_AUTH_TOKEN")

	v.BindEnv("monitor.client_name", "MONITOR_CLIENT_NAME")
	v.BindEnv("monitor.topics_patterns", "MONITOR_TOPICS_PATTERNS")
	v.BindEnv("monitor.json_schema_dir", "MONITOR_JSON_SCHEMA_DIR")
	v.BindEnv("monitor.user_breakdown_jsonpath", "MONITOR_USER_BREAKDOWN_JSONPATH")
	v.BindEnv("monitor.group_partitioned", "MONITOR_GROUP_PARTITIONED")
	v.BindEnv("monitor.message_encoding", "MONITOR_MESSAGE_ENCODING")
	v.BindEnv("monitor.tagging_policy", "MONITOR_TAGGING_POLICY")
	v.BindEnv("monitor.subscribe_failure_policy", "MONITOR_SUBSCRIBE_FAILURE_POLICY")

	v.BindEnv("server.port", "SERVER_PORT")

	v.BindEnv("logging.level", "LOGGING_LEVEL")
	v.BindEnv("logging.format", "LOGGING_FORMAT")

	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
	v.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	v.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
}

// applyEnvOverrides splits comma separated list variables, which viper
// otherwise hands over as a single element.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if brokers := splitList(v.GetString("BROKER_KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.Broker.Kafka.Brokers = brokers
	}

	if patterns := splitList(v.GetString("MONITOR_TOPICS_PATTERNS")); len(patterns) > 0 {
		cfg.Monitor.TopicsPatterns = patterns
	}
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
