package sink

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/IBM/sarama"
	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/confluxdata/conflux/pkg/logger"
	"github.com/confluxdata/conflux/pkg/sync/core"
	"github.com/confluxdata/conflux/pkg/syncerrors"
)

// KafkaConfig contains the settings for the Kafka event sink.
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	// TopicPrefix prefixes the per-entity-type topic name; events for
	// entity type "invoice" land on "<prefix>.invoice"
	TopicPrefix string `json:"topic_prefix"`
	// DefaultTopic receives events whose entity type is empty
	DefaultTopic string `json:"default_topic"`
	// ProducerAcks is one of: all, 1, 0
	ProducerAcks    string `json:"producer_acks"`
	ProducerRetries int    `json:"producer_retries"`
}

// KafkaSink publishes canonical events to Kafka through an async producer.
// Messages are keyed by event id: ids are deterministic over record
// identity, so redelivered pages land on the same partition and compacted
// topics retain one copy per change.
type KafkaSink struct {
	config   KafkaConfig
	producer sarama.AsyncProducer
	logger   *zap.Logger

	produced int64
	failed   int64
	done     chan struct{}
}

// NewKafkaSink connects an async producer to the configured brokers.
func NewKafkaSink(config KafkaConfig) (*KafkaSink, error) {
	if len(config.Brokers) == 0 {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "kafka brokers are required")
	}
	if config.TopicPrefix == "" {
		config.TopicPrefix = "conflux.events"
	}
	if config.DefaultTopic == "" {
		config.DefaultTopic = config.TopicPrefix
	}

	producer, err := sarama.NewAsyncProducer(config.Brokers, buildSaramaConfig(config))
	if err != nil {
		return nil, syncerrors.Wrap(err, syncerrors.ErrorTypeConnection, "failed to create kafka producer")
	}

	s := &KafkaSink{
		config:   config,
		producer: producer,
		logger:   logger.Get().With(zap.String("component", "kafka_sink")),
		done:     make(chan struct{}),
	}

	go s.handleProducerResults()

	return s, nil
}

func buildSaramaConfig(config KafkaConfig) *sarama.Config {
	saramaConfig := sarama.NewConfig()

	switch config.ProducerAcks {
	case "1":
		saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	case "0":
		saramaConfig.Producer.RequiredAcks = sarama.NoResponse
	default:
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	}

	retries := config.ProducerRetries
	if retries <= 0 {
		retries = 3
	}
	saramaConfig.Producer.Retry.Max = retries
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy

	return saramaConfig
}

// Emit serializes the event and hands it to the async producer. Delivery
// failures surface on the producer's error channel and are logged; the sync
// run is not stalled by broker hiccups.
func (s *KafkaSink) Emit(ctx context.Context, event core.CanonicalEvent) error {
	value, err := gojson.Marshal(event)
	if err != nil {
		return syncerrors.Wrap(err, syncerrors.ErrorTypeData, "failed to serialize event").
			WithDetail("event_id", event.ID)
	}

	message := &sarama.ProducerMessage{
		Topic: s.topicFor(event.EntityType),
		Key:   sarama.StringEncoder(event.ID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("entity_type"), Value: []byte(event.EntityType)},
			{Key: []byte("classification"), Value: []byte(event.Classification)},
			{Key: []byte("organization_id"), Value: []byte(event.Context.OrganizationID)},
		},
	}

	select {
	case s.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return syncerrors.Wrap(ctx.Err(), syncerrors.ErrorTypeTimeout, "event emission canceled")
	}
}

// topicFor maps an entity type to its topic. Entity type names with path
// separators (e.g. "res.partner") are kept verbatim; Kafka allows dots.
func (s *KafkaSink) topicFor(entityType string) string {
	if entityType == "" {
		return s.config.DefaultTopic
	}
	return s.config.TopicPrefix + "." + strings.ToLower(entityType)
}

// handleProducerResults drains the async producer's result channels,
// counting outcomes and logging failures.
func (s *KafkaSink) handleProducerResults() {
	defer close(s.done)

	successes := s.producer.Successes()
	errs := s.producer.Errors()

	for successes != nil || errs != nil {
		select {
		case _, ok := <-successes:
			if !ok {
				successes = nil
				continue
			}
			atomic.AddInt64(&s.produced, 1)
		case perr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			atomic.AddInt64(&s.failed, 1)
			s.logger.Error("event delivery failed",
				zap.String("topic", perr.Msg.Topic),
				zap.Error(perr.Err))
		}
	}
}

// Produced returns how many events were acknowledged by the brokers.
func (s *KafkaSink) Produced() int64 {
	return atomic.LoadInt64(&s.produced)
}

// Failed returns how many events failed delivery after retries.
func (s *KafkaSink) Failed() int64 {
	return atomic.LoadInt64(&s.failed)
}

// Close flushes in-flight messages and shuts the producer down.
func (s *KafkaSink) Close() error {
	err := s.producer.Close()
	<-s.done
	if err != nil {
		return syncerrors.Wrap(err, syncerrors.ErrorTypeConnection, "failed to close kafka producer")
	}
	return nil
}

var _ core.EventSink = (*KafkaSink)(nil)
