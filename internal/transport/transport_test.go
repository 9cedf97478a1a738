package transport

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/vibenet/medium/internal/mediumerr"
)

func discardLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestNATSTransportTranslateMapsCatchAllToGreaterThan(t *testing.T) {
	tr := NewNATSTransport(NATSConfig{}, discardLogger())
	assert.Equal(t, ">", tr.Translate(CatchAllChannel))
	assert.Equal(t, "orders.created", tr.Translate("orders.created"))
}

func TestKafkaTransportTranslateMapsCatchAllToRegex(t *testing.T) {
	tr := NewKafkaTransport(KafkaConfig{}, discardLogger())
	assert.Equal(t, catchAllTopicPattern, tr.Translate(CatchAllChannel))
	assert.Equal(t, "orders\\.created", tr.Translate("orders.created"))
}

func TestWrapConnectErrorPreservesSentinel(t *testing.T) {
	err := WrapConnectError(errors.New("dial refused"))
	assert.True(t, errors.Is(err, mediumerr.ErrConnectionFailed))
}

func TestWrapTransmissionErrorPreservesSentinel(t *testing.T) {
	err := WrapTransmissionError(errors.New("publish failed"))
	assert.True(t, errors.Is(err, mediumerr.ErrTransmissionFailed))
}

func TestWrapErrorsReturnNilForNilInput(t *testing.T) {
	assert.NoError(t, WrapConnectError(nil))
	assert.NoError(t, WrapTransmissionError(nil))
}
