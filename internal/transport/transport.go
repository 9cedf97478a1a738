// Package transport defines the pub/sub contract the broker bridges
// through when remote fan-out is enabled, plus NATS and Kafka backends.
package transport

import (
	"context"
	"errors"

	"github.com/vibenet/medium/internal/mediumerr"
)

// CatchAllChannel is the single local channel name that maps to the
// transport's native catch-all wildcard subject.
const CatchAllChannel = "*"

// Message is a transport-level envelope: a subject and its raw payload.
// The broker only ever puts serialized wave bytes in Data.
type Message struct {
	Subject string
	Data    []byte
}

// Transport is the external pub/sub contract the broker bridges through.
// Implementations connect lazily; Publish and Subscribe may be called
// before Connect and should connect on first use if not already connected.
type Transport interface {
	// Connect establishes the underlying connection. Safe to call multiple
	// times; subsequent calls after a successful connect are no-ops.
	Connect(ctx context.Context) error

	// Publish sends data to subject. NATSTransport translates the subject
	// with Translate first; KafkaTransport produces to the topic named
	// subject unchanged.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe starts delivering messages for subject (translated) to the
	// returned channel until ctx is cancelled, and closes the channel then.
	// Close stops delivery but does not itself close the returned channel.
	Subscribe(ctx context.Context, subject string) (<-chan Message, error)

	// Translate maps a local channel name to a transport subject, mapping
	// CatchAllChannel to the backend's native wildcard.
	Translate(channel string) string

	// Close tears down the connection and all active subscriptions.
	Close() error
}

// ErrNotConnected reports a transport with no live connection. Neither
// NATSTransport nor KafkaTransport returns it: a failed lazy connect in
// Publish/Subscribe surfaces as the error from WrapConnectError.
var ErrNotConnected = errors.New("transport: not connected")

// WrapConnectError wraps an underlying dial/auth failure as the medium's
// recoverable ConnectionFailed error.
func WrapConnectError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(mediumerr.ErrConnectionFailed, err)
}

// WrapTransmissionError wraps an underlying publish/serialize failure as
// the medium's recoverable TransmissionFailed error.
func WrapTransmissionError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(mediumerr.ErrTransmissionFailed, err)
}
