package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Payment lifecycle event types published to the payments topic.
const (
	PaymentInitiated = "payment.initiated"
	PaymentCompleted = "payment.completed"
	PaymentFailed    = "payment.failed"
	PaymentRefunded  = "payment.refunded"
)

// PaymentEvent is the JSON envelope written to Kafka.
type PaymentEvent struct {
	Event         string    `json:"event"`
	TransactionID string    `json:"transaction_id"`
	UserID        uuid.UUID `json:"user_id"`
	CourseID      uuid.UUID `json:"course_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	Timestamp     string    `json:"ts"`
}

// Publisher writes payment lifecycle events to Kafka. A nil Publisher (no
// brokers configured) is safe to use; publishing becomes a logged no-op.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher creates a Kafka publisher, or nil when brokers is empty.
func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(brokers) == 0 {
		logger.Info("Kafka disabled (no brokers configured)")
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
	}
	logger.Info("Kafka publisher initialized", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return &Publisher{writer: writer, logger: logger}
}

// Publish writes one event, keyed by transaction id. Errors are returned but
// callers treat publication as best-effort.
func (p *Publisher) Publish(ctx context.Context, evt PaymentEvent) error {
	if p == nil {
		return nil
	}
	evt.Timestamp = time.Now().UTC().Format(time.RFC3339)
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.TransactionID),
		Value: body,
	})
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// PublishAsync publishes in a goroutine, logging failures instead of
// propagating them. Used on the payment hot path.
func (p *Publisher) PublishAsync(evt PaymentEvent) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := p.Publish(ctx, evt); err != nil {
			p.logger.Warn("publish payment event failed",
				zap.String("event", evt.Event),
				zap.String("transaction_id", evt.TransactionID),
				zap.Error(err),
			)
		}
	}()
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
