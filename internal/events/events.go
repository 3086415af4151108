// Package events publishes scored transactions to downstream consumers.
// Publishing is best effort: a broker outage degrades the event feed, never
// the scoring path.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
	"github.com/fraudsentry/fraudsentry/internal/metrics"
)

// Publisher emits a scored-transaction event.
type Publisher interface {
	PublishScored(ctx context.Context, tx fraud.Transaction, result fraud.ScoringResult) error
	Close()
}

// ScoredEvent is the wire payload for a scored transaction.
type ScoredEvent struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Amount        float64   `json:"amount"`
	MerchantID    string    `json:"merchant_id,omitempty"`
	FraudScore    float64   `json:"fraud_score"`
	IsFraud       bool      `json:"is_fraud"`
	RiskFactors   []string  `json:"risk_factors"`
	ModelVersion  string    `json:"model_version"`
	ScoredAt      time.Time `json:"scored_at"`
}

// KafkaPublisher publishes scored events to a Kafka topic.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher connects a producer to the given brokers.
func NewKafkaPublisher(brokers, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": brokers})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	kp := &KafkaPublisher{producer: p, topic: topic, logger: logger}
	go kp.drainDeliveryReports()
	return kp, nil
}

// PublishScored enqueues the event for async delivery.
func (p *KafkaPublisher) PublishScored(_ context.Context, tx fraud.Transaction, result fraud.ScoringResult) error {
	payload, err := json.Marshal(ScoredEvent{
		TransactionID: result.TransactionID,
		UserID:        tx.UserID,
		Amount:        tx.Amount,
		MerchantID:    tx.MerchantID,
		FraudScore:    result.FraudScore,
		IsFraud:       result.IsFraud,
		RiskFactors:   result.RiskFactors,
		ModelVersion:  result.ModelVersion,
		ScoredAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal scored event: %w", err)
	}

	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(tx.UserID),
		Value:          payload,
	}, nil)
	if err != nil {
		metrics.KafkaPublishTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("produce scored event: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases the producer.
func (p *KafkaPublisher) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
}

func (p *KafkaPublisher) drainDeliveryReports() {
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				metrics.KafkaPublishTotal.WithLabelValues("error").Inc()
				p.logger.Warn("kafka delivery failed",
					"topic", p.topic, "error", ev.TopicPartition.Error)
			} else {
				metrics.KafkaPublishTotal.WithLabelValues("ok").Inc()
			}
		case kafka.Error:
			p.logger.Warn("kafka producer error", "error", ev)
		}
	}
}

// NoopPublisher discards events. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishScored(context.Context, fraud.Transaction, fraud.ScoringResult) error {
	return nil
}

func (NoopPublisher) Close() {}
