package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		ChannelBufferSize:               1000,
		MaxPayloadBytes:                 1024,
		MaxChannelLength:                128,
		MinAmplitude:                    0.01,
		UseTransport:                    true,
		TransportBackend:                "nats",
		TransportURL:                    "nats://127.0.0.1:4222",
		RetryMax:                        3,
		CircuitBreakerFailureThreshold:  5,
		CircuitBreakerHalfOpenSuccesses: 2,
		MaxInflight:                     8,
		LogLevel:                        "info",
		LogFormat:                       "json",
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsUnknownTransportBackend(t *testing.T) {
	cfg := validConfig()
	cfg.TransportBackend = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresKafkaBrokersForKafkaBackend(t *testing.T) {
	cfg := validConfig()
	cfg.TransportBackend = "kafka"
	cfg.KafkaBrokers = nil
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresPersistencePathWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.PersistenceEnabled = true
	cfg.PersistencePath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangeMinAmplitude(t *testing.T) {
	cfg := validConfig()
	cfg.MinAmplitude = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveMaxInflight(t *testing.T) {
	cfg := validConfig()
	cfg.MaxInflight = 0
	assert.Error(t, cfg.Validate())
}
