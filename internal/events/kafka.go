package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
)

// KafkaPublisher writes status changes to a Kafka topic keyed by gateway reference,
// so every event for one transaction lands on the same partition.
type KafkaPublisher struct {
	client *kgo.Client
	logger *slog.Logger
	topic  string
}

// NewKafkaPublisher connects a franz-go producer to brokers
func NewKafkaPublisher(brokers []string, topic string, hooks *kprom.Metrics, logger *slog.Logger) (*KafkaPublisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if hooks != nil {
		opts = append(opts, kgo.WithHooks(hooks))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	logger.Info("kafka publisher ready", "brokers", brokers, "topic", topic)
	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

// PublishStatusChanged produces the event and waits for the broker acknowledgement
func (p *KafkaPublisher) PublishStatusChanged(ctx context.Context, event StatusChanged) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode status event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(string(event.GatewayKind) + ":" + event.GatewayReference),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event-type", Value: []byte("transaction.status_changed")},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce status event: %w", err)
	}
	return nil
}

// Close flushes buffered records and closes the client
func (p *KafkaPublisher) Close() {
	p.logger.Info("closing kafka publisher")
	p.client.Close()
}
