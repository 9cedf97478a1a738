package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSConfig carries the connection and TLS settings for the NATS backend,
// mirroring the medium's transport_* configuration surface.
type NATSConfig struct {
	URL             string
	TLSRequired     bool
	MTLSCACertPath  string
	MTLSCertPath    string
	MTLSKeyPath     string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectJitter time.Duration
}

// NATSTransport implements Transport over a single shared *nats.Conn,
// connecting lazily on first Publish or Subscribe call.
type NATSTransport struct {
	cfg    NATSConfig
	logger zerolog.Logger

	mu   sync.Mutex
	conn *nats.Conn

	subMu sync.Mutex
	subs  []*nats.Subscription
}

// NewNATSTransport returns an unconnected NATS-backed Transport.
func NewNATSTransport(cfg NATSConfig, logger zerolog.Logger) *NATSTransport {
	return &NATSTransport{cfg: cfg, logger: logger}
}

// Connect dials NATS if not already connected. Safe for concurrent callers;
// only one dial is attempted.
func (t *NATSTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil && t.conn.IsConnected() {
		return nil
	}

	opts := []nats.Option{
		nats.MaxReconnects(t.cfg.MaxReconnects),
		nats.ReconnectWait(t.cfg.ReconnectWait),
		nats.ReconnectJitter(t.cfg.ReconnectJitter, t.cfg.ReconnectJitter),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				t.logger.Warn().Err(err).Msg("nats transport disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			t.logger.Info().Str("url", c.ConnectedUrl()).Msg("nats transport reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			t.logger.Warn().Err(err).Msg("nats transport error")
		}),
	}

	tlsConfig, err := t.tlsConfig()
	if err != nil {
		return WrapConnectError(err)
	}
	if tlsConfig != nil {
		opts = append(opts, nats.Secure(tlsConfig))
	} else if t.cfg.TLSRequired {
		opts = append(opts, nats.Secure())
	}

	conn, err := nats.Connect(t.cfg.URL, opts...)
	if err != nil {
		return WrapConnectError(err)
	}

	t.conn = conn
	t.logger.Info().Str("url", conn.ConnectedUrl()).Msg("nats transport connected")
	return nil
}

func (t *NATSTransport) tlsConfig() (*tls.Config, error) {
	if t.cfg.MTLSCertPath == "" && t.cfg.MTLSKeyPath == "" && t.cfg.MTLSCACertPath == "" {
		return nil, nil
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if t.cfg.MTLSCertPath != "" && t.cfg.MTLSKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(t.cfg.MTLSCertPath, t.cfg.MTLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load mtls keypair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if t.cfg.MTLSCACertPath != "" {
		pem, err := os.ReadFile(t.cfg.MTLSCACertPath)
		if err != nil {
			return nil, fmt.Errorf("read mtls ca cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("parse mtls ca cert: invalid PEM")
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// Translate maps CatchAllChannel to NATS's ">" wildcard; all other names
// pass through unchanged since dots are already NATS-native separators.
func (t *NATSTransport) Translate(channel string) string {
	if channel == CatchAllChannel {
		return ">"
	}
	return channel
}

// Publish connects lazily, then publishes data to subject's translation.
func (t *NATSTransport) Publish(ctx context.Context, subject string, data []byte) error {
	if err := t.Connect(ctx); err != nil {
		return err
	}
	if err := t.conn.Publish(t.Translate(subject), data); err != nil {
		return WrapTransmissionError(err)
	}
	return nil
}

// Subscribe connects lazily and returns a channel fed by a NATS async
// subscription until ctx is cancelled.
func (t *NATSTransport) Subscribe(ctx context.Context, subject string) (<-chan Message, error) {
	if err := t.Connect(ctx); err != nil {
		return nil, err
	}

	out := make(chan Message, 256)
	translated := t.Translate(subject)

	sub, err := t.conn.Subscribe(translated, func(msg *nats.Msg) {
		select {
		case out <- Message{Subject: msg.Subject, Data: msg.Data}:
		default:
			t.logger.Warn().Str("subject", msg.Subject).Msg("nats transport: subscriber channel full, dropping message")
		}
	})
	if err != nil {
		close(out)
		return nil, WrapConnectError(err)
	}

	t.subMu.Lock()
	t.subs = append(t.subs, sub)
	t.subMu.Unlock()

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		close(out)
	}()

	return out, nil
}

// Close unsubscribes everything and closes the connection.
func (t *NATSTransport) Close() error {
	t.subMu.Lock()
	for _, sub := range t.subs {
		_ = sub.Unsubscribe()
	}
	t.subs = nil
	t.subMu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	return nil
}
