package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/MohamedAzimStelco/outage-dashboard/internal/config"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/domain"
	"github.com/MohamedAzimStelco/outage-dashboard/internal/snapshot"
	kafkago "github.com/segmentio/kafka-go"
)

// EventSnapshotPublished is the event_type header on every message.
const EventSnapshotPublished = "snapshot.published"

// Writer produces snapshot events to a Kafka topic.
// It implements snapshot.Notifier.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSnapshotTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// SnapshotPublished emits one event for a stored snapshot. All events share
// the snapshot key so they land on one partition in publish order.
func (w *Writer) SnapshotPublished(ctx context.Context, snap domain.Snapshot) error {
	msg, err := serializeToMessage(snap)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write snapshot event: %w", err)
	}
	w.logger.Debug("snapshot event written", "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Snapshot into a Kafka message.
func serializeToMessage(snap domain.Snapshot) (kafkago.Message, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	var updatedAt string
	if snap.UpdatedAt != nil {
		updatedAt = snap.UpdatedAt.Format(time.RFC3339)
	}
	return kafkago.Message{
		Key:   []byte(snapshot.Key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventSnapshotPublished)},
			{Key: "updated_at", Value: []byte(updatedAt)},
		},
	}, nil
}
