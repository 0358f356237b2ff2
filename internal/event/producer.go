package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/revu/pkg/kafka"
	"github.com/utafrali/revu/pkg/logger"
)

// Aggregate type constant.
const AggregateTypeProduct = "product"

// Source identifier for events originating from the review pipeline.
const SourceReviewPipeline = "revu-api"

// TopicReviewsRefreshed carries one message per successful review refresh.
var TopicReviewsRefreshed = kafka.Topic(AggregateTypeProduct, "reviews_refreshed")

// ReviewsRefreshedData is the payload for a product.reviews_refreshed event.
type ReviewsRefreshedData struct {
	ProductID   string    `json:"product_id"`
	Source      string    `json:"source"`
	ReviewCount int       `json:"review_count"`
	Rating      float64   `json:"rating"`
	Sentiment   string    `json:"sentiment"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Publisher writes event envelopes. *kafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// Producer publishes product domain events.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer. A nil publisher yields a producer
// that drops every event, used when Kafka is disabled.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  publisher,
		logger: logger,
	}
}

// PublishReviewsRefreshed publishes a product.reviews_refreshed event.
func (p *Producer) PublishReviewsRefreshed(ctx context.Context, data ReviewsRefreshedData) error {
	if p == nil || p.kafka == nil {
		return nil
	}

	event, err := kafka.NewEvent(TopicReviewsRefreshed, data.ProductID, AggregateTypeProduct, SourceReviewPipeline, data)
	if err != nil {
		return fmt.Errorf("create product.reviews_refreshed event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, TopicReviewsRefreshed, event); err != nil {
		return fmt.Errorf("publish product.reviews_refreshed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published product.reviews_refreshed event",
		slog.String("product_id", data.ProductID),
		slog.Int("review_count", data.ReviewCount),
	)

	return nil
}
