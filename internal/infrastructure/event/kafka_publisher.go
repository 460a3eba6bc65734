package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/souq/backend/internal/domain/shared"
	"github.com/souq/backend/internal/infrastructure/config"
)

// ErrKafkaNotConfigured is returned when Kafka delivery is enabled without brokers
var ErrKafkaNotConfigured = errors.New("event: kafka brokers not configured")

// messageWriter is the subset of *kafka.Writer used by the publisher
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards domain events to a Kafka topic. It subscribes to the
// in-memory bus as an ordinary handler, keyed by merchant so one merchant's
// events stay ordered within a partition.
type KafkaPublisher struct {
	writer     messageWriter
	serializer *EventSerializer
	topic      string
	eventTypes []string
	tracer     trace.Tracer
	logger     *zap.Logger
}

var _ shared.EventHandler = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher writing to cfg.KafkaTopic
func NewKafkaPublisher(cfg *config.NotificationsConfig, serializer *EventSerializer, logger *zap.Logger) (*KafkaPublisher, error) {
	brokers := make([]string, 0, len(cfg.KafkaBrokers))
	for _, b := range cfg.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, ErrKafkaNotConfigured
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, cfg.KafkaTopic, serializer, logger), nil
}

func newKafkaPublisher(writer messageWriter, topic string, serializer *EventSerializer, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{
		writer:     writer,
		serializer: serializer,
		topic:      topic,
		eventTypes: PublishedEventTypes(),
		tracer:     otel.Tracer("souq/event"),
		logger:     logger,
	}
}

// EventTypes returns the event types forwarded to Kafka
func (p *KafkaPublisher) EventTypes() []string {
	return p.eventTypes
}

// Handle writes one event to the topic
func (p *KafkaPublisher) Handle(ctx context.Context, event shared.DomainEvent) error {
	ctx, span := p.tracer.Start(ctx, "Kafka.Publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("event.type", event.EventType()),
	)

	data, err := p.serializer.Serialize(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize event")
		return err
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType())},
		{Key: "event_id", Value: []byte(event.EventID().String())},
		{Key: "merchant_id", Value: []byte(event.MerchantID().String())},
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.MerchantID().String()),
		Value:   data,
		Headers: headers,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish message")
		return fmt.Errorf("failed to publish %s to %s: %w", event.EventType(), p.topic, err)
	}

	p.logger.Debug("Published domain event",
		zap.String("topic", p.topic),
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
	)
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
