package kafkarepo

import (
	"context"
	"encoding/json"
	"fmt"

	"payment-service/internal/models"

	"github.com/segmentio/kafka-go"
)

type EventRepository struct {
	writer *kafka.Writer
}

func NewEventRepository(writer *kafka.Writer) *EventRepository {
	return &EventRepository{
		writer: writer,
	}
}

// Publish sends a payment lifecycle event to Kafka.
// Keyed by userID so events for the same user keep their order.
func (r *EventRepository) Publish(ctx context.Context, event models.PaymentEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payment event: %w", err)
	}

	err = r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: msgBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to write event to kafka: %w", err)
	}

	return nil
}
