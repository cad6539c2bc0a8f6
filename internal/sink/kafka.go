package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// MessageKey partitions all rate events together so consumers see them in order.
const MessageKey = "bullion-rates"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes snapshots as JSON events.
type Kafka struct {
	writer messageWriter
	topic  string
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Publish(ctx context.Context, s Snapshot) error {
	v, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(MessageKey),
		Value: v,
		Time:  s.RecordedAt,
		Headers: []kafka.Header{
			{Key: "snapshot_id", Value: []byte(s.ID.String())},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.writer.Close() }
