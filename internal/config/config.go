// Package config loads the medium's configuration from environment
// variables (with an optional .env file for local development), in the
// same caarlos0/env + joho/godotenv style the broker's host services use.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config is the full configuration surface: broker knobs, transport and
// persistence connection settings, the default subscriber profile, and the
// reliability/task-pool tunables services wrap around broker calls.
type Config struct {
	// Broker
	ChannelBufferSize int     `env:"MEDIUM_CHANNEL_BUFFER_SIZE" envDefault:"1000"`
	MaxPropagation    uint32  `env:"MEDIUM_MAX_PROPAGATION" envDefault:"10"`
	AttenuationFactor float64 `env:"MEDIUM_ATTENUATION_FACTOR" envDefault:"0.95"`
	MinAmplitude      float64 `env:"MEDIUM_MIN_AMPLITUDE" envDefault:"0.01"`
	MaxPayloadBytes   int     `env:"MEDIUM_MAX_PAYLOAD_BYTES" envDefault:"1048576"`
	MaxChannelLength  int     `env:"MEDIUM_MAX_CHANNEL_LENGTH" envDefault:"128"`
	AuthToken         string  `env:"MEDIUM_AUTH_TOKEN" envDefault:""`
	AllowedSources    []string `env:"MEDIUM_ALLOWED_SOURCES" envSeparator:","`

	// Transport
	UseTransport        bool   `env:"MEDIUM_USE_TRANSPORT" envDefault:"true"`
	TransportBackend    string `env:"MEDIUM_TRANSPORT_BACKEND" envDefault:"nats"`
	TransportURL        string `env:"MEDIUM_TRANSPORT_URL" envDefault:"nats://127.0.0.1:4222"`
	TransportTLSRequired bool  `env:"MEDIUM_TRANSPORT_TLS_REQUIRED" envDefault:"false"`
	TransportMTLSCAPath   string `env:"MEDIUM_TRANSPORT_MTLS_CA_PATH" envDefault:""`
	TransportMTLSCertPath string `env:"MEDIUM_TRANSPORT_MTLS_CERT_PATH" envDefault:""`
	TransportMTLSKeyPath  string `env:"MEDIUM_TRANSPORT_MTLS_KEY_PATH" envDefault:""`
	KafkaBrokers          []string `env:"MEDIUM_KAFKA_BROKERS" envSeparator:","`
	KafkaConsumerGroup    string   `env:"MEDIUM_KAFKA_CONSUMER_GROUP" envDefault:"medium"`

	// Persistence
	PersistenceEnabled bool   `env:"MEDIUM_PERSISTENCE_ENABLED" envDefault:"false"`
	PersistencePath    string `env:"MEDIUM_PERSISTENCE_PATH" envDefault:"./medium.db"`
	SnapshotInterval   uint64 `env:"MEDIUM_SNAPSHOT_INTERVAL" envDefault:"1000"`

	// Default subscriber profile (individual vibrator processes may override)
	VibratorName            string   `env:"MEDIUM_VIBRATOR_NAME" envDefault:""`
	VibratorResonantChannels []string `env:"MEDIUM_VIBRATOR_RESONANT_CHANNELS" envSeparator:","`
	VibratorBufferSize       int      `env:"MEDIUM_VIBRATOR_BUFFER_SIZE" envDefault:"1000"`
	VibratorAuthToken        string   `env:"MEDIUM_VIBRATOR_AUTH_TOKEN" envDefault:""`
	VibratorNoiseFloor       float64  `env:"MEDIUM_VIBRATOR_NOISE_FLOOR" envDefault:"0.01"`

	// Reliability
	RetryMax                       int           `env:"MEDIUM_RETRY_MAX" envDefault:"3"`
	RetryBaseDelay                 time.Duration `env:"MEDIUM_RETRY_BASE_DELAY" envDefault:"100ms"`
	RetryMaxDelay                  time.Duration `env:"MEDIUM_RETRY_MAX_DELAY" envDefault:"5s"`
	Timeout                        time.Duration `env:"MEDIUM_TIMEOUT" envDefault:"2s"`
	CircuitBreakerFailureThreshold int           `env:"MEDIUM_CIRCUIT_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	CircuitBreakerOpenDuration     time.Duration `env:"MEDIUM_CIRCUIT_BREAKER_OPEN_DURATION" envDefault:"10s"`
	CircuitBreakerHalfOpenSuccesses int          `env:"MEDIUM_CIRCUIT_BREAKER_HALF_OPEN_SUCCESSES" envDefault:"2"`

	// Task pool
	MaxInflight    int     `env:"MEDIUM_MAX_INFLIGHT" envDefault:"64"`
	RateLimitPerSec float64 `env:"MEDIUM_RATE_LIMIT_PER_SEC" envDefault:"0"`

	// Ambient process concerns, carried from the teacher's config surface
	// even though the spec treats them as external collaborators.
	MetricsAddr string `env:"MEDIUM_METRICS_ADDR" envDefault:":9090"`
	HealthAddr  string `env:"MEDIUM_HEALTH_ADDR" envDefault:":8080"`
	LogLevel    string `env:"MEDIUM_LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"MEDIUM_LOG_FORMAT" envDefault:"json"`
	Environment string `env:"MEDIUM_ENVIRONMENT" envDefault:"development"`
}

// Load reads an optional .env file, then parses environment variables into
// a Config and validates it. Priority: real env vars > .env file > struct
// defaults.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks range, enum, and logical constraints across the
// configuration surface.
func (c *Config) Validate() error {
	if c.ChannelBufferSize < 1 {
		return fmt.Errorf("MEDIUM_CHANNEL_BUFFER_SIZE must be > 0, got %d", c.ChannelBufferSize)
	}
	if c.MaxPayloadBytes < 1 {
		return fmt.Errorf("MEDIUM_MAX_PAYLOAD_BYTES must be > 0, got %d", c.MaxPayloadBytes)
	}
	if c.MaxChannelLength < 1 {
		return fmt.Errorf("MEDIUM_MAX_CHANNEL_LENGTH must be > 0, got %d", c.MaxChannelLength)
	}
	if c.MinAmplitude < 0 || c.MinAmplitude > 1 {
		return fmt.Errorf("MEDIUM_MIN_AMPLITUDE must be 0-1, got %.4f", c.MinAmplitude)
	}

	if c.UseTransport {
		if c.TransportBackend != "nats" && c.TransportBackend != "kafka" {
			return fmt.Errorf("MEDIUM_TRANSPORT_BACKEND must be one of: nats, kafka (got: %s)", c.TransportBackend)
		}
		if c.TransportBackend == "nats" && c.TransportURL == "" {
			return fmt.Errorf("MEDIUM_TRANSPORT_URL is required when MEDIUM_TRANSPORT_BACKEND=nats")
		}
		if c.TransportBackend == "kafka" && len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("MEDIUM_KAFKA_BROKERS is required when MEDIUM_TRANSPORT_BACKEND=kafka")
		}
	}

	if c.PersistenceEnabled && c.PersistencePath == "" {
		return fmt.Errorf("MEDIUM_PERSISTENCE_PATH is required when MEDIUM_PERSISTENCE_ENABLED=true")
	}

	if c.RetryMax < 0 {
		return fmt.Errorf("MEDIUM_RETRY_MAX must be >= 0, got %d", c.RetryMax)
	}
	if c.CircuitBreakerFailureThreshold < 1 {
		return fmt.Errorf("MEDIUM_CIRCUIT_BREAKER_FAILURE_THRESHOLD must be > 0, got %d", c.CircuitBreakerFailureThreshold)
	}
	if c.CircuitBreakerHalfOpenSuccesses < 1 {
		return fmt.Errorf("MEDIUM_CIRCUIT_BREAKER_HALF_OPEN_SUCCESSES must be > 0, got %d", c.CircuitBreakerHalfOpenSuccesses)
	}
	if c.MaxInflight < 1 {
		return fmt.Errorf("MEDIUM_MAX_INFLIGHT must be > 0, got %d", c.MaxInflight)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("MEDIUM_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("MEDIUM_LOG_FORMAT must be one of: json, console (got: %s)", c.LogFormat)
	}

	return nil
}

// Print writes a human-readable configuration dump to stdout, for local
// debugging. Production code should prefer LogConfig.
func (c *Config) Print() {
	fmt.Println("=== Medium Configuration ===")
	fmt.Printf("Environment:       %s\n", c.Environment)
	fmt.Printf("Channel buffer:    %d\n", c.ChannelBufferSize)
	fmt.Printf("Max propagation:   %d\n", c.MaxPropagation)
	fmt.Printf("Min amplitude:     %.4f\n", c.MinAmplitude)
	fmt.Println("--- Transport ---")
	fmt.Printf("Enabled:           %t\n", c.UseTransport)
	fmt.Printf("Backend:           %s\n", c.TransportBackend)
	fmt.Printf("URL:               %s\n", c.TransportURL)
	fmt.Println("--- Persistence ---")
	fmt.Printf("Enabled:           %t\n", c.PersistenceEnabled)
	fmt.Printf("Path:              %s\n", c.PersistencePath)
	fmt.Println("--- Reliability ---")
	fmt.Printf("Retry max:         %d\n", c.RetryMax)
	fmt.Printf("Circuit threshold: %d\n", c.CircuitBreakerFailureThreshold)
	fmt.Printf("Max inflight:      %d\n", c.MaxInflight)
	fmt.Println("============================")
}

// LogConfig emits the configuration as one structured log line.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Int("channel_buffer_size", c.ChannelBufferSize).
		Uint32("max_propagation", c.MaxPropagation).
		Float64("min_amplitude", c.MinAmplitude).
		Bool("use_transport", c.UseTransport).
		Str("transport_backend", c.TransportBackend).
		Bool("persistence_enabled", c.PersistenceEnabled).
		Int("retry_max", c.RetryMax).
		Int("circuit_breaker_failure_threshold", c.CircuitBreakerFailureThreshold).
		Int("max_inflight", c.MaxInflight).
		Str("log_level", c.LogLevel).
		Msg("medium configuration loaded")
}
