// Package ingest consumes live bed state-change messages and appends them to
// the event store, keeping the rolling aggregate window current without the
// upstream systems writing to the database directly.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wardops/bedcast/internal/models"
)

// Appender is the slice of the event store the consumer needs.
type Appender interface {
	AppendEvent(ctx context.Context, class models.EventClass, ev models.Event) error
}

// Config controls the Kafka consumer.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// message is the wire shape of one state-change record.
type message struct {
	Class           string  `json:"class"`
	ResourceID      string  `json:"resource_id"`
	Ward            string  `json:"ward"`
	ChangeKind      string  `json:"change_kind"`
	Timestamp       string  `json:"timestamp"`
	ActorID         string  `json:"actor_id,omitempty"`
	EstimateMinutes float64 `json:"estimated_duration_minutes,omitempty"`
}

// Consumer reads state-change messages and appends them to the store.
// Malformed messages are dropped with a logged discrepancy; the loop only
// stops on context cancellation.
type Consumer struct {
	logger *slog.Logger
	reader *kafka.Reader
	store  Appender
}

// NewConsumer wires a Kafka reader against the event store.
func NewConsumer(logger *slog.Logger, cfg Config, store Appender) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		CommitInterval: time.Second,
	})
	return &Consumer{logger: logger, reader: reader, store: store}
}

// Run consumes until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		class, ev, err := decode(msg.Value)
		if err != nil {
			c.logger.Warn("malformed state-change message dropped",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.Any("error", err))
			continue
		}
		if err := c.store.AppendEvent(ctx, class, ev); err != nil {
			c.logger.Error("append event failed",
				slog.String("resource_id", ev.ResourceID),
				slog.Any("error", err))
		}
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func decode(value []byte) (models.EventClass, models.Event, error) {
	var m message
	if err := json.Unmarshal(value, &m); err != nil {
		return "", models.Event{}, err
	}
	return Parse(m.Class, m.ResourceID, m.Ward, m.ChangeKind, m.Timestamp, m.ActorID, m.EstimateMinutes)
}

// Parse validates raw state-change fields into a store-ready event.
func Parse(class, resourceID, ward, kind, timestamp, actorID string, estimate float64) (models.EventClass, models.Event, error) {
	var eventClass models.EventClass
	switch class {
	case string(models.ClassOccupancy):
		eventClass = models.ClassOccupancy
	case string(models.ClassCleaning):
		eventClass = models.ClassCleaning
	default:
		return "", models.Event{}, errors.New("unknown event class: " + class)
	}

	var changeKind models.ChangeKind
	switch kind {
	case string(models.ChangeStart):
		changeKind = models.ChangeStart
	case string(models.ChangeEnd):
		changeKind = models.ChangeEnd
	case string(models.ChangeOther):
		changeKind = models.ChangeOther
	default:
		return "", models.Event{}, errors.New("unknown change kind: " + kind)
	}

	if resourceID == "" {
		return "", models.Event{}, errors.New("resource_id is required")
	}
	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return "", models.Event{}, errors.New("timestamp must be RFC3339")
	}

	return eventClass, models.Event{
		ResourceID:      resourceID,
		Ward:            ward,
		Kind:            changeKind,
		Timestamp:       ts.UTC(),
		ActorID:         actorID,
		EstimateMinutes: estimate,
	}, nil
}
