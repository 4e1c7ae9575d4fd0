package config

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"topicmon/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	errors = append(errors, validateMonitor(cfg.Monitor, cfg.Broker.Type)...)

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}
	return nil
}

func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case constants.BrokerTypeKafka:
		return validateKafka(cfg.Kafka)
	case constants.BrokerTypePulsar:
		return validatePulsar(cfg.Pulsar)
	case "":
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: pulsar, kafka)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	return nil
}

func validatePulsar(cfg PulsarConfig) error {
	if cfg.URL == "" {
		return &ValidationError{
			Field:   "broker.pulsar.url",
			Message: "Pulsar service URL is required",
		}
	}

	if !strings.HasPrefix(cfg.URL, "pulsar://") && !strings.HasPrefix(cfg.URL, "pulsar+ssl://") {
		return &ValidationError{
			Field:   "broker.pulsar.url",
			Message: "Pulsar URL must start with pulsar:// or pulsar+ssl://",
		}
	}

	return nil
}

func validateMonitor(cfg MonitorConfig, brokerType string) []error {
	var errs []error

	if strings.TrimSpace(cfg.ClientName) == "" {
		errs = append(errs, &ValidationError{
			Field:   "monitor.client_name",
			Message: "client name (subscription name) is required",
		})
	}

	if len(cfg.TopicsPatterns) == 0 {
		errs = append(errs, &ValidationError{
			Field:   "monitor.topics_patterns",
			Message: "at least one topics pattern is required",
		})
	}

	for i, pattern := range cfg.TopicsPatterns {
		if pattern == "" {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("monitor.topics_patterns[%d]", i),
				Message: "topics pattern cannot be empty",
			})
			continue
		}
		// Pulsar compiles the pattern broker side; kafka patterns are matched locally.
		if brokerType == constants.BrokerTypeKafka {
			if _, err := regexp.Compile(pattern); err != nil {
				errs = append(errs, &ValidationError{
					Field:   fmt.Sprintf("monitor.topics_patterns[%d]", i),
					Message: fmt.Sprintf("invalid regular expression: %v", err),
				})
			}
		}
	}

	if err := validateEncoding(cfg.MessageEncoding); err != nil {
		errs = append(errs, err)
	}

	if err := validateOneOf("monitor.payload_mode", cfg.PayloadMode,
		constants.PayloadModeBytes, constants.PayloadModeString); err != nil {
		errs = append(errs, err)
	}

	if err := validateOneOf("monitor.tagging_policy", cfg.TaggingPolicy,
		constants.TaggingPolicyCombined, constants.TaggingPolicySeparate); err != nil {
		errs = append(errs, err)
	}

	if err := validateOneOf("monitor.subscribe_failure_policy", cfg.SubscribeFailurePolicy,
		constants.FailurePolicyStrict, constants.FailurePolicyLenient); err != nil {
		errs = append(errs, err)
	}

	if err := validateOneOf("monitor.breakdown_language", cfg.BreakdownLanguage,
		constants.BreakdownLanguageJSONPath, constants.BreakdownLanguageCEL); err != nil {
		errs = append(errs, err)
	}

	if err := validateRetry(cfg.SubscribeRetry); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func validateEncoding(name string) error {
	if name == "" {
		return &ValidationError{
			Field:   "monitor.message_encoding",
			Message: "message encoding is required",
		}
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return &ValidationError{
			Field:   "monitor.message_encoding",
			Message: fmt.Sprintf("unsupported character encoding: %s", name),
		}
	}

	return nil
}

func validateRetry(cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "monitor.subscribe_retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 || cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   "monitor.subscribe_retry",
			Message: "intervals must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   "monitor.subscribe_retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Multiplier < 0 {
		return &ValidationError{
			Field:   "monitor.subscribe_retry.multiplier",
			Message: "multiplier must be non-negative",
		}
	}

	return nil
}

func validateOneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("invalid value: %q (valid: %s)", value, strings.Join(allowed, ", ")),
	}
}
