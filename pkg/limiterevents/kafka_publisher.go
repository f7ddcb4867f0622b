package limiterevents

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaPublisher publishes Events to a Kafka topic. Produce is
// asynchronous against the underlying producer's internal queue;
// delivery failures are counted but do not block Publish's caller.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	closed   atomic.Bool
	failures atomic.Int64
}

// NewKafkaPublisher builds a publisher over a fresh *kafka.Producer
// constructed from config, which must set "bootstrap.servers".
func NewKafkaPublisher(config *kafka.ConfigMap, topic string) (*KafkaPublisher, error) {
	if config == nil {
		return nil, fmt.Errorf("limiterevents: kafka config must not be nil")
	}
	if topic == "" {
		return nil, fmt.Errorf("limiterevents: topic must not be empty")
	}

	producer, err := kafka.NewProducer(config)
	if err != nil {
		return nil, fmt.Errorf("limiterevents: create kafka producer: %w", err)
	}

	p := &KafkaPublisher{producer: producer, topic: topic}
	go p.handleDeliveryReports()
	return p, nil
}

func (p *KafkaPublisher) handleDeliveryReports() {
	for e := range p.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			p.failures.Add(1)
		}
	}
}

// Publish enqueues ev for asynchronous delivery. It returns once the
// message is accepted onto the producer's internal queue, not once it
// reaches the broker.
func (p *KafkaPublisher) Publish(_ context.Context, ev Event) error {
	if p.closed.Load() {
		return fmt.Errorf("limiterevents: kafka publisher is closed")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("limiterevents: marshal event: %w", err)
	}

	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(ev.Name),
		Value:          payload,
	}, nil)
}

// Failures reports how many produced messages failed delivery, per the
// broker's delivery reports.
func (p *KafkaPublisher) Failures() int64 { return p.failures.Load() }

// Close flushes any queued messages (bounded by flushTimeout) and
// releases the underlying producer. Repeated calls are safe.
func (p *KafkaPublisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	const flushTimeout = 5 * time.Second
	remaining := p.producer.Flush(int(flushTimeout.Milliseconds()))
	p.producer.Close()
	if remaining > 0 {
		return fmt.Errorf("limiterevents: %d messages still queued at close", remaining)
	}
	return nil
}

var _ Sink = (*KafkaPublisher)(nil)
