// Command gateway is the WebSocket edge service: it authenticates browser
// clients with a JWT, gives each connection its own vibrator identity, and
// pumps waves between the socket and the broker.
package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/vibenet/medium/internal/broker"
	"github.com/vibenet/medium/internal/config"
	"github.com/vibenet/medium/internal/logging"
	"github.com/vibenet/medium/internal/obsmetrics"
	"github.com/vibenet/medium/internal/persistence"
	"github.com/vibenet/medium/internal/platform"
	"github.com/vibenet/medium/internal/transport"
	"github.com/vibenet/medium/internal/vibrator"
)

const (
	gatewayAddr     = ":8081"
	writePumpPeriod = 50 * time.Millisecond
)

// inboundFrame is the wire shape a browser client sends to resonate on a
// channel or emit a wave.
type inboundFrame struct {
	Action  string `json:"action"` // "subscribe" or "emit"
	Channel string `json:"channel"`
	Payload any    `json:"payload,omitempty"`
}

type gatewayServer struct {
	b           *broker.Broker
	jwt         *JWTManager
	logger      zerolog.Logger
	guard       *platform.ConnectionGuard
	clientCount int64
}

const (
	maxGatewayConnections = 10000
	cpuRejectThreshold    = 90.0
	maxGatewayGoroutines  = 50000
)

func main() {
	bootLogger := logging.New(logging.Config{Level: "info", Format: "console", Service: "gateway"})

	cfg, err := config.Load(&bootLogger)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "gateway"})

	var tr transport.Transport
	if cfg.UseTransport {
		tr = transport.NewNATSTransport(transport.NATSConfig{
			URL:           cfg.TransportURL,
			MaxReconnects: 10,
			ReconnectWait: 2 * time.Second,
		}, logger)
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := tr.Connect(connectCtx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("gateway failed to connect to transport")
		}
		cancel()
	}

	var log persistence.DurableLog
	b := broker.New(broker.Config{
		ChannelBufferSize: cfg.ChannelBufferSize,
		MaxPropagation:    cfg.MaxPropagation,
		AttenuationFactor: cfg.AttenuationFactor,
		MinAmplitude:      cfg.MinAmplitude,
		UseTransport:      cfg.UseTransport,
		AuthToken:         cfg.AuthToken,
		AllowedSources:    cfg.AllowedSources,
		MaxPayloadBytes:   cfg.MaxPayloadBytes,
		MaxChannelLength:  cfg.MaxChannelLength,
	}, tr, log, logger)
	defer b.Close()

	jwtSecret := cfg.AuthToken
	if jwtSecret == "" {
		jwtSecret = "medium-gateway-dev-secret"
	}

	monitor := platform.Get(15*time.Second, logger)
	healthSrv := platform.NewHealthServer(monitor)
	healthSrv.SetReady(true)

	memLimit, err := platform.MemoryLimitBytes()
	if err != nil {
		logger.Warn().Err(err).Msg("could not detect container memory limit")
	}
	guard := platform.NewConnectionGuard(monitor, maxGatewayConnections, cpuRejectThreshold, memLimit, maxGatewayGoroutines)

	gw := &gatewayServer{
		b:      b,
		jwt:    NewJWTManager(jwtSecret, 24*time.Hour),
		logger: logger,
		guard:  guard,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.handleWebSocket)
	mux.Handle("/metrics", obsmetrics.Handler())
	mux.Handle("/", healthSrv.Handler())

	srv := &http.Server{Addr: gatewayAddr, Handler: mux}
	go func() {
		logger.Info().Str("addr", gatewayAddr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("gateway server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	monitor.Stop()
}

func (gw *gatewayServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token, err := ExtractToken(r)
	if err != nil {
		http.Error(w, "unauthorized: "+err.Error(), http.StatusUnauthorized)
		return
	}
	claims, err := gw.jwt.Verify(token)
	if err != nil {
		http.Error(w, "unauthorized: "+err.Error(), http.StatusUnauthorized)
		return
	}

	if accept, reason := gw.guard.ShouldAcceptConnection(); !accept {
		gw.logger.Warn().Str("reason", reason).Msg("connection rejected by guard")
		http.Error(w, "server overloaded: "+reason, http.StatusServiceUnavailable)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		gw.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	gw.guard.ConnectionOpened()
	defer gw.guard.ConnectionClosed()

	clientID := atomic.AddInt64(&gw.clientCount, 1)
	v := vibrator.New(vibrator.Config{
		Name:       claims.VibratorName,
		NoiseFloor: vibrator.DefaultNoiseFloor,
	}, gw.b)

	gw.logger.Info().Str("vibrator", claims.VibratorName).Int64("client_id", clientID).Msg("client connected")

	ctx, cancel := context.WithCancel(context.Background())
	go gw.writePump(ctx, conn, v)
	gw.readPump(ctx, cancel, conn, v)
}

func (gw *gatewayServer) readPump(ctx context.Context, cancel context.CancelFunc, conn net.Conn, v *vibrator.Vibrator) {
	defer cancel()
	defer conn.Close()

	for {
		msg, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			gw.logger.Debug().Err(err).Msg("client read ended")
			return
		}
		if op != ws.OpText {
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			continue
		}

		switch frame.Action {
		case "subscribe":
			if err := v.ResonateOn(frame.Channel); err != nil {
				gw.logger.Warn().Err(err).Str("channel", frame.Channel).Msg("subscribe failed")
			}
		case "emit":
			emitCtx, emitCancel := context.WithTimeout(ctx, 2*time.Second)
			err := v.EmitWave(emitCtx, frame.Channel, frame.Payload)
			emitCancel()
			if err != nil {
				gw.logger.Warn().Err(err).Str("channel", frame.Channel).Msg("emit failed")
			}
		}
	}
}

func (gw *gatewayServer) writePump(ctx context.Context, conn net.Conn, v *vibrator.Vibrator) {
	ticker := time.NewTicker(writePumpPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w, ok := v.Receive(ctx)
			if !ok {
				continue
			}
			data, err := json.Marshal(w)
			if err != nil {
				continue
			}
			if err := wsutil.WriteServerMessage(conn, ws.OpText, data); err != nil {
				return
			}
		}
	}
}
