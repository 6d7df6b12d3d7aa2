package repository

import (
	"context"
	"time"

	"PriceDrop/internal/domain/models"
	domrepo "PriceDrop/internal/domain/repository"
)

// MessageProducer is the subset of the kafka producer used here.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// PredictionEvent is the payload announced for every new prediction.
type PredictionEvent struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"product_id"`
	Probability    float64   `json:"probability"`
	WillGoDown     bool      `json:"will_go_down"`
	Threshold      float64   `json:"threshold"`
	ModelVersion   string    `json:"model_version"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// KafkaPredictionPublisher implements PredictionPublisher for Kafka. Messages
// are keyed by product so per-product order is kept on a hash balancer.
type KafkaPredictionPublisher struct {
	producer MessageProducer
	topic    string
}

var _ domrepo.PredictionPublisher = (*KafkaPredictionPublisher)(nil)

func NewKafkaPredictionPublisher(producer MessageProducer, topic string) *KafkaPredictionPublisher {
	return &KafkaPredictionPublisher{producer: producer, topic: topic}
}

func (p *KafkaPredictionPublisher) PublishPrediction(ctx context.Context, pr *models.Prediction) error {
	return p.producer.Publish(ctx, p.topic, []byte(pr.ProductID), PredictionEvent{
		ID:             pr.ID,
		ProductID:      pr.ProductID,
		Probability:    pr.Probability,
		WillGoDown:     pr.WillGoDown,
		Threshold:      pr.Threshold,
		ModelVersion:   pr.ModelVersion,
		FallbackReason: pr.FallbackReason,
		CreatedAt:      pr.CreatedAt,
	})
}

func (p *KafkaPredictionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher drops events; used when publishing is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishPrediction(context.Context, *models.Prediction) error { return nil }
func (NoopPublisher) Close() error                                                { return nil }
