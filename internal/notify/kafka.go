package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Alert is the message published for every notification.
type Alert struct {
	Title  string    `json:"title"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// Kafka publishes alerts to a topic, keyed by title so one kind of alert
// lands on one partition.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka returns nil when no brokers are configured.
func NewKafka(brokers []string, topic string) *Kafka {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (k *Kafka) Send(ctx context.Context, title, text string) error {
	if k == nil || k.writer == nil {
		return ErrDisabled
	}
	payload, err := json.Marshal(Alert{Title: title, Text: text, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(title), Value: payload}); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
