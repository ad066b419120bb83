package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrNoBrokers is returned when publication is configured without brokers.
var ErrNoBrokers = errors.New("kafka: no seed brokers configured")

// producer is the part of *kgo.Client the publisher needs.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher publishes committed events to one topic, keyed by
// contributor id so a contributor's events land on one partition in order.
type KafkaPublisher struct {
	client producer
	topic  string
}

// NewKafkaPublisher connects to brokers. Extra options go to kgo.NewClient.
func NewKafkaPublisher(brokers []string, topic string, opts ...kgo.Opt) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	opts = append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}, opts...)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

// Handle publishes one envelope and waits for the broker acknowledgement.
func (p *KafkaPublisher) Handle(ctx context.Context, env Envelope) error {
	rec, err := p.record(env)
	if err != nil {
		return err
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", env.EventID, err)
	}
	return nil
}

func (p *KafkaPublisher) record(env Envelope) (*kgo.Record, error) {
	msg, err := NewMessage(env)
	if err != nil {
		return nil, err
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message %s: %w", env.EventID, err)
	}
	return &kgo.Record{
		Topic: p.topic,
		Key:   []byte(env.AggregateID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event-id", Value: []byte(env.EventID)},
			{Key: "event-kind", Value: []byte(msg.Kind)},
			{Key: "tag", Value: []byte(env.Tag)},
		},
	}, nil
}

// Close releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
