package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"resourcehive/pkg/logger"
)

var tracer = otel.Tracer("resourcehive-events")

// KafkaPublisher writes events to one topic keyed by batch id
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher connects a sync producer to brokers
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 3
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	logger.Logger.Info().Strs("brokers", brokers).Str("topic", topic).Msg("Kafka publisher initialized")
	return NewKafkaPublisherWithProducer(producer, topic), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "kafka.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", p.topic),
			attribute.Int("messaging.batch.message_count", len(events)),
		),
	)
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	msgs := make([]*sarama.ProducerMessage, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to marshal event")
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		headers := []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(e.Type)},
			{Key: []byte("event_id"), Value: []byte(e.ID)},
		}
		for k, v := range carrier {
			headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic:   p.topic,
			Key:     sarama.StringEncoder(e.BatchID.String()),
			Value:   sarama.ByteEncoder(data),
			Headers: headers,
		})
	}

	if err := p.producer.SendMessages(msgs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send messages")
		return fmt.Errorf("failed to send events to Kafka: %w", err)
	}
	span.SetStatus(codes.Ok, "events published")
	logger.Debug(ctx).Int("count", len(events)).Str("topic", p.topic).Msg("events published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
