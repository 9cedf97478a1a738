package transport

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaConfig carries the broker seed list and consumer group used by the
// Kafka-backed transport, an alternate to NATSTransport selected by
// configuration when a Kafka/Redpanda cluster is the deployment's bus of
// record instead of NATS.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
}

// catchAllTopicPattern is the regex franz-go subscribes to when the
// catch-all channel is requested; it matches any topic this medium
// instance produces to, since Kafka topics have no native wildcard
// subject analogous to NATS's ">".
const catchAllTopicPattern = ".*"

// KafkaTransport implements Transport over a shared franz-go client. One
// client handles both production and consumption; subscriptions spin up
// dedicated per-subject consume loops against that client.
type KafkaTransport struct {
	cfg    KafkaConfig
	logger zerolog.Logger

	mu     sync.Mutex
	client *kgo.Client
}

// NewKafkaTransport returns an unconnected Kafka-backed Transport.
func NewKafkaTransport(cfg KafkaConfig, logger zerolog.Logger) *KafkaTransport {
	return &KafkaTransport{cfg: cfg, logger: logger}
}

// Connect builds the shared franz-go client if it doesn't exist yet.
func (t *KafkaTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return nil
	}
	if len(t.cfg.Brokers) == 0 {
		return WrapConnectError(fmt.Errorf("at least one broker is required"))
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(t.cfg.Brokers...),
		kgo.ConsumerGroup(t.cfg.ConsumerGroup),
		kgo.ConsumeRegex(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.FetchMaxWait(500*time.Millisecond),
	)
	if err != nil {
		return WrapConnectError(err)
	}

	t.client = client
	t.logger.Info().Strs("brokers", t.cfg.Brokers).Msg("kafka transport connected")
	return nil
}

// Translate maps CatchAllChannel to a regex matching any topic; all other
// names pass through as literal topic names.
func (t *KafkaTransport) Translate(channel string) string {
	if channel == CatchAllChannel {
		return catchAllTopicPattern
	}
	return regexp.QuoteMeta(channel)
}

// Publish produces data to the topic named subject, unchanged: Translate's
// regex form is used only by Subscribe. A catch-all "*" subject is produced
// to a topic literally named "*".
func (t *KafkaTransport) Publish(ctx context.Context, subject string, data []byte) error {
	if err := t.Connect(ctx); err != nil {
		return err
	}

	record := &kgo.Record{Topic: subject, Value: data}
	result := t.client.ProduceSync(ctx, record)
	if err := result.FirstErr(); err != nil {
		return WrapTransmissionError(err)
	}
	return nil
}

// Subscribe adds subject's translated regex to the client's consume set and
// streams fetched records to the returned channel until ctx is cancelled.
func (t *KafkaTransport) Subscribe(ctx context.Context, subject string) (<-chan Message, error) {
	if err := t.Connect(ctx); err != nil {
		return nil, err
	}

	t.client.AddConsumeTopics(t.Translate(subject))
	out := make(chan Message, 256)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			fetches := t.client.PollFetches(ctx)
			if ctx.Err() != nil {
				return
			}
			fetches.EachError(func(topic string, partition int32, err error) {
				t.logger.Warn().Str("topic", topic).Int32("partition", partition).Err(err).Msg("kafka transport: fetch error")
			})
			fetches.EachRecord(func(r *kgo.Record) {
				select {
				case out <- Message{Subject: r.Topic, Data: r.Value}:
				case <-ctx.Done():
				default:
					t.logger.Warn().Str("topic", r.Topic).Msg("kafka transport: subscriber channel full, dropping message")
				}
			})
		}
	}()

	return out, nil
}

// Close flushes outstanding produces and shuts down the client.
func (t *KafkaTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		t.client.Close()
		t.client = nil
	}
	return nil
}
