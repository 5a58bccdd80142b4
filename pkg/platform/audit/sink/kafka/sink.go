// Package kafka delivers audit events to a Kafka topic so downstream
// compliance consumers can build their own views of the trail.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "certledger/pkg/platform/audit"
)

// Sink publishes audit events to a single topic, keyed by issuer ID so
// per-issuer ordering is preserved within a partition.
type Sink struct {
	client *kgo.Client
	topic  string
}

// New connects a producer to the given brokers. Call Close when done.
func New(brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

// message is the wire shape of an audit event on the topic.
type message struct {
	Category      string    `json:"category"`
	Timestamp     time.Time `json:"timestamp"`
	IssuerID      string    `json:"issuer_id,omitempty"`
	CertificateID string    `json:"certificate_id,omitempty"`
	Action        string    `json:"action"`
	Subject       string    `json:"subject,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
}

// Deliver produces the event synchronously. Errors are reported to the
// publisher, which logs them; the store remains the system of record.
func (s *Sink) Deliver(ctx context.Context, event audit.Event) error {
	msg := message{
		Category:  string(event.Category),
		Timestamp: event.Timestamp,
		Action:    event.Action,
		Subject:   event.Subject,
		Reason:    event.Reason,
		RequestID: event.RequestID,
	}
	if !event.IssuerID.IsZero() {
		msg.IssuerID = event.IssuerID.String()
	}
	if !event.CertificateID.IsZero() {
		msg.CertificateID = event.CertificateID.String()
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(msg.IssuerID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes pending records and releases the client.
func (s *Sink) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.Flush(ctx)
	s.client.Close()
}
