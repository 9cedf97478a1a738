// Command order is an example vibrator: it emits Query waves on
// "orders.inventory.check" asking inventory for stock levels, wrapping each
// query emit in a retry policy and circuit breaker the way a real service
// would wrap any cross-service call over the medium. The wait for the reply
// on "orders.inventory.reply" runs outside that wrapper.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/vibenet/medium/internal/broker"
	"github.com/vibenet/medium/internal/config"
	"github.com/vibenet/medium/internal/logging"
	"github.com/vibenet/medium/internal/persistence"
	"github.com/vibenet/medium/internal/reliability"
	"github.com/vibenet/medium/internal/transport"
	"github.com/vibenet/medium/internal/vibrator"
	"github.com/vibenet/medium/internal/wave"
)

const (
	inventoryQueryChannel  = "orders.inventory.check"
	inventoryReplyChannel  = "orders.inventory.reply"
	checkInterval          = 3 * time.Second
	stockCheckCallTimeout  = 2 * time.Second
)

func main() {
	bootLogger := logging.New(logging.Config{Level: "info", Format: "console", Service: "order"})

	cfg, err := config.Load(&bootLogger)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "order"})

	var tr transport.Transport
	if cfg.UseTransport {
		tr = transport.NewNATSTransport(transport.NATSConfig{URL: cfg.TransportURL}, logger)
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := tr.Connect(connectCtx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("order failed to connect to transport")
		}
		cancel()
	}

	var log persistence.DurableLog
	b := broker.New(broker.DefaultConfig(), tr, log, logger)
	defer b.Close()

	v := vibrator.New(vibrator.Config{Name: "order", NoiseFloor: vibrator.DefaultNoiseFloor}, b)
	if err := v.ResonateOnMany([]string{inventoryReplyChannel}); err != nil {
		logger.Fatal().Err(err).Msg("failed to resonate on inventory reply channel")
	}

	retryPolicy := reliability.NewRetryPolicy(cfg.RetryMax, cfg.RetryBaseDelay, cfg.RetryMaxDelay)
	breaker := reliability.NewCircuitBreaker(
		cfg.CircuitBreakerFailureThreshold,
		cfg.CircuitBreakerOpenDuration,
		cfg.CircuitBreakerHalfOpenSuccesses,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go runQueryLoop(ctx, v, breaker, retryPolicy, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down order")
	cancel()
}

func runQueryLoop(ctx context.Context, v *vibrator.Vibrator, breaker *reliability.CircuitBreaker, retryPolicy reliability.RetryPolicy, logger zerolog.Logger) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkStock(ctx, v, breaker, retryPolicy, logger)
		}
	}
}

func checkStock(ctx context.Context, v *vibrator.Vibrator, breaker *reliability.CircuitBreaker, retryPolicy reliability.RetryPolicy, logger zerolog.Logger) {
	_, err := reliability.RetryWithTimeout(ctx, retryPolicy, stockCheckCallTimeout, func(attemptCtx context.Context) (struct{}, error) {
		return struct{}{}, breaker.Call(attemptCtx, func(callCtx context.Context) error {
			query := wave.NewBuilder(wave.NewChannel(inventoryQueryChannel)).
				Type(wave.Query).
				Payload(map[string]any{"sku": "widget-001"}).
				Source("order").
				Build()
			return v.Emit(callCtx, &query)
		})
	})
	if err != nil {
		logger.Warn().Err(err).Msg("stock check failed after retries")
		return
	}

	reply, ok := v.ReceiveFrom(ctx, inventoryReplyChannel)
	if ok {
		logger.Info().Interface("reply", reply.Payload).Msg("received inventory reply")
	}
}
