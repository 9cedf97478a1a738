// Command inventory is an example vibrator: it answers Query waves on
// "orders.inventory.check" with a Response wave carrying a stock count,
// the mirror half of cmd/order's request/response exchange.
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
	inventoryQueryChannel = "orders.inventory.check"
	inventoryReplyChannel = "orders.inventory.reply"
	replyCallTimeout      = 2 * time.Second
)

var stockLevels = map[string]int{
	"widget-001": 42,
	"gadget-002": 7,
}

func main() {
	bootLogger := logging.New(logging.Config{Level: "info", Format: "console", Service: "inventory"})

	cfg, err := config.Load(&bootLogger)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "inventory"})

	var tr transport.Transport
	if cfg.UseTransport {
		tr = transport.NewNATSTransport(transport.NATSConfig{URL: cfg.TransportURL}, logger)
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := tr.Connect(connectCtx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("inventory failed to connect to transport")
		}
		cancel()
	}

	var log persistence.DurableLog
	b := broker.New(broker.DefaultConfig(), tr, log, logger)
	defer b.Close()

	v := vibrator.New(vibrator.Config{Name: "inventory", NoiseFloor: vibrator.DefaultNoiseFloor}, b)
	if err := v.ResonateOnMany([]string{inventoryQueryChannel}); err != nil {
		logger.Fatal().Err(err).Msg("failed to resonate on inventory query channel")
	}

	retryPolicy := reliability.NewRetryPolicy(cfg.RetryMax, cfg.RetryBaseDelay, cfg.RetryMaxDelay)
	breaker := reliability.NewCircuitBreaker(
		cfg.CircuitBreakerFailureThreshold,
		cfg.CircuitBreakerOpenDuration,
		cfg.CircuitBreakerHalfOpenSuccesses,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go serveQueries(ctx, v, breaker, retryPolicy, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down inventory")
	cancel()
}

func serveQueries(ctx context.Context, v *vibrator.Vibrator, breaker *reliability.CircuitBreaker, retryPolicy reliability.RetryPolicy, logger zerolog.Logger) {
	for {
		query, ok := v.ReceiveFrom(ctx, inventoryQueryChannel)
		if !ok {
			return
		}
		if query.Type != wave.Query {
			continue
		}

		sku, _ := query.Payload.(map[string]any)["sku"].(string)
		count, known := stockLevels[sku]
		if !known {
			count = 0
		}

		_, err := reliability.RetryWithTimeout(ctx, retryPolicy, replyCallTimeout, func(attemptCtx context.Context) (struct{}, error) {
			return struct{}{}, breaker.Call(attemptCtx, func(callCtx context.Context) error {
				reply := wave.NewBuilder(wave.NewChannel(inventoryReplyChannel)).
					Type(wave.Response).
					Payload(map[string]any{"sku": sku, "count": count}).
					Source("inventory").
					Build()
				return v.Emit(callCtx, &reply)
			})
		})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to send inventory reply")
		}
	}
}
