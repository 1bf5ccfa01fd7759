// Package config loads pipeline configuration from environment variables
// with an optional YAML settings file layered on top.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds pipeline configuration.
type Config struct {
	LogLevel string

	// RulesDir points to a directory of rule bundle files. Empty means
	// built-in defaults only.
	RulesDir string

	// EscalationThreshold is the confidence level at or above which a
	// finding recommends escalation.
	EscalationThreshold float64

	// AlternativesEnabled controls generation of alternative responses
	// for blocked and warning content.
	AlternativesEnabled bool

	// RedisAddr enables the Redis intervention store when non-empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AuditDBPath enables the SQLite audit store when non-empty.
	AuditDBPath string

	// OTLPEndpoint enables telemetry export when non-empty.
	OTLPEndpoint string
	Environment  string

	Channels map[string]ChannelSettings

	// EmergencyServices maps crisis types to emergency service names,
	// overriding the built-in directory.
	EmergencyServices map[string]string

	// SendTimeout bounds each notification delivery attempt.
	SendTimeout time.Duration
}

// ChannelSettings configures one notification channel.
type ChannelSettings struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	Recipients    []string      `yaml:"recipients,omitempty" json:"recipients,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	RatePerSecond float64       `yaml:"rate_per_second,omitempty" json:"rate_per_second,omitempty"`
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	threshold := 0.8
	if v := os.Getenv("SENTINEL_ESCALATION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			threshold = f
		}
	}

	alternatives := true
	if v := os.Getenv("SENTINEL_ALTERNATIVES"); v != "" {
		alternatives = v == "true" || v == "1"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	environment := os.Getenv("SENTINEL_ENV")
	if environment == "" {
		environment = "development"
	}

	sendTimeout := 10 * time.Second
	if v := os.Getenv("SENTINEL_SEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			sendTimeout = d
		}
	}

	return &Config{
		LogLevel:            logLevel,
		RulesDir:            os.Getenv("SENTINEL_RULES_DIR"),
		EscalationThreshold: threshold,
		AlternativesEnabled: alternatives,
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             redisDB,
		AuditDBPath:         os.Getenv("SENTINEL_AUDIT_DB"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Environment:         environment,
		Channels:            map[string]ChannelSettings{},
		EmergencyServices:   map[string]string{},
		SendTimeout:         sendTimeout,
	}
}
