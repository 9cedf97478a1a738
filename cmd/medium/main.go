// Command medium runs the broker process: the channel registry, its
// validation/attenuation/dispatch pipeline, and the optional transport
// bridge and durable log, with HTTP metrics and health endpoints.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/vibenet/medium/internal/broker"
	"github.com/vibenet/medium/internal/config"
	"github.com/vibenet/medium/internal/logging"
	"github.com/vibenet/medium/internal/obsmetrics"
	"github.com/vibenet/medium/internal/persistence"
	"github.com/vibenet/medium/internal/platform"
	"github.com/vibenet/medium/internal/transport"
)

func main() {
	bootLogger := logging.New(logging.Config{Level: "info", Format: "console", Service: "medium"})

	// automaxprocs sets GOMAXPROCS from the container CPU quota; it rounds
	// down, which is correct for the Go scheduler even though it
	// understates fractional cores.
	bootLogger.Info().Int("gomaxprocs", runtime.GOMAXPROCS(0)).Msg("starting medium")

	cfg, err := config.Load(&bootLogger)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "medium"})
	cfg.LogConfig(logger)

	monitor := platform.Get(15*time.Second, logger)
	healthSrv := platform.NewHealthServer(monitor)

	if memLimit, err := platform.MemoryLimitBytes(); err != nil {
		logger.Warn().Err(err).Msg("could not detect container memory limit")
	} else if memLimit > 0 {
		logger.Info().
			Int64("memory_limit_bytes", memLimit).
			Int("recommended_max_inflight", platform.RecommendedMaxInflight(memLimit)).
			Msg("detected container memory limit")
	}

	var log persistence.DurableLog
	if cfg.PersistenceEnabled {
		boltLog, err := persistence.OpenBoltLog(cfg.PersistencePath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.PersistencePath).Msg("failed to open durable log")
		}
		log = boltLog
		defer log.Close()
	}

	var tr transport.Transport
	if cfg.UseTransport {
		switch cfg.TransportBackend {
		case "kafka":
			tr = transport.NewKafkaTransport(transport.KafkaConfig{
				Brokers:       cfg.KafkaBrokers,
				ConsumerGroup: cfg.KafkaConsumerGroup,
			}, logger)
		default:
			tr = transport.NewNATSTransport(transport.NATSConfig{
				URL:             cfg.TransportURL,
				TLSRequired:     cfg.TransportTLSRequired,
				MTLSCACertPath:  cfg.TransportMTLSCAPath,
				MTLSCertPath:    cfg.TransportMTLSCertPath,
				MTLSKeyPath:     cfg.TransportMTLSKeyPath,
				MaxReconnects:   10,
				ReconnectWait:   2 * time.Second,
				ReconnectJitter: 500 * time.Millisecond,
			}, logger)
		}

		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := tr.Connect(connectCtx); err != nil {
			cancel()
			logger.Fatal().Err(err).Str("backend", cfg.TransportBackend).Msg("failed to connect to transport")
		}
		cancel()
	}

	brokerCfg := broker.Config{
		ChannelBufferSize:  cfg.ChannelBufferSize,
		MaxPropagation:     cfg.MaxPropagation,
		AttenuationFactor:  cfg.AttenuationFactor,
		MinAmplitude:       cfg.MinAmplitude,
		UseTransport:       cfg.UseTransport,
		AuthToken:          cfg.AuthToken,
		AllowedSources:     cfg.AllowedSources,
		MaxPayloadBytes:    cfg.MaxPayloadBytes,
		MaxChannelLength:   cfg.MaxChannelLength,
		PersistenceEnabled: cfg.PersistenceEnabled,
		SnapshotInterval:   cfg.SnapshotInterval,
	}
	b := broker.New(brokerCfg, tr, log, logger)

	if cfg.PersistenceEnabled {
		recovered, err := b.Recover()
		if err != nil {
			logger.Error().Err(err).Msg("failed to recover durable log on startup")
		} else {
			logger.Info().Int("waves_recovered", len(recovered)).Msg("recovered durable log")
		}
	}

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: obsmetrics.Handler()}
	healthHTTPSrv := &http.Server{Addr: cfg.HealthAddr, Handler: healthSrv.Handler()}

	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	go func() {
		logger.Info().Str("addr", cfg.HealthAddr).Msg("serving health checks")
		if err := healthHTTPSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("health server failed")
		}
	}()

	obsmetrics.ActiveChannels.Set(0)
	healthSrv.SetReady(true)
	logger.Info().Msg("medium ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down medium")
	healthSrv.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	_ = healthHTTPSrv.Shutdown(shutdownCtx)

	if err := b.Close(); err != nil {
		logger.Error().Err(err).Msg("error closing broker")
	}
	monitor.Stop()
}
