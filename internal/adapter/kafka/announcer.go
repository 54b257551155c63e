// Package kafka publishes newly-detected change events to a topic so
// downstream consumers (dashboards, archival) can react without polling the
// sentinel. Announcing is optional; the core works without a broker.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/watershed-sentinel/internal/domain"
)

// Announcer produces change events to a Kafka topic.
// It implements scheduler.Announcer.
type Announcer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewAnnouncer creates a Kafka producer for the configured topic.
func NewAnnouncer(brokers []string, topic string, logger *slog.Logger) *Announcer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Announcer{writer: w, logger: logger}
}

// Publish serializes and writes a batch of change events in a single
// WriteMessages call.
func (a *Announcer) Publish(ctx context.Context, events []domain.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return a.writer.WriteMessages(ctx, msgs...)
}

func (a *Announcer) Close() error {
	return a.writer.Close()
}

// serializeToMessage marshals a ChangeEvent into a Kafka message keyed by
// event ID, with source and severity headers for broker-side filtering.
func serializeToMessage(event domain.ChangeEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize change event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(event.Source)},
			{Key: "severity", Value: []byte(event.Severity)},
			{Key: "detected_at", Value: []byte(event.DetectedAt.Format(time.RFC3339))},
		},
	}, nil
}
