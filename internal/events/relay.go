package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Record is a stored event waiting to be published.
type Record struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Source is the event log the relay drains.
type Source interface {
	FetchUnpublishedEvents(ctx context.Context, limit int) ([]Record, error)
	MarkEventsPublished(ctx context.Context, ids []int64) error
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Relay copies event_logs rows to Kafka and marks them published. A row is
// marked only after its message was accepted, so delivery is at-least-once.
type Relay struct {
	source    Source
	writer    MessageWriter
	logger    *zap.Logger
	batchSize int
}

func NewRelay(source Source, writer MessageWriter, logger *zap.Logger, batchSize int) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{source: source, writer: writer, logger: logger, batchSize: batchSize}
}

// PublishBatch relays up to one batch and returns how many rows it published.
func (r *Relay) PublishBatch(ctx context.Context) (int, error) {
	records, err := r.source.FetchUnpublishedEvents(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch unpublished events: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		msgs = append(msgs, toMessage(rec))
		ids = append(ids, rec.ID)
	}

	if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("write kafka messages: %w", err)
	}
	if err := r.source.MarkEventsPublished(ctx, ids); err != nil {
		return 0, fmt.Errorf("mark events published: %w", err)
	}

	r.logger.Debug("relayed events", zap.Int("count", len(ids)))
	return len(ids), nil
}

func toMessage(rec Record) kafka.Message {
	key := []byte(fmt.Sprintf("event-%d", rec.ID))
	if rec.AppointmentID != nil {
		key = []byte(rec.AppointmentID.String())
	}
	return kafka.Message{
		Key:   key,
		Value: rec.Payload,
		Time:  rec.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(fmt.Sprintf("%d", rec.ID))},
			{Key: "event_type", Value: []byte(rec.EventType)},
		},
	}
}
