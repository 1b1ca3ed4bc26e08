package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"payment-service/internal/models"

	"github.com/IBM/sarama"
)

func (m *PartitionManager) runWorker(ctx context.Context, partition int, partitionConsumer sarama.PartitionConsumer, batchProcessor *BatchProcessor) {
	ticker := time.NewTicker(m.cfg.Worker.ProcessingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Partition %d: Shutdown signal received", partition)
			batchProcessor.FlushRemaining()
			return

		case msg := <-partitionConsumer.Messages():
			var event models.PaymentEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				log.Printf("Partition %d: Failed to unmarshal event: %v", partition, err)
				continue
			}
			batchProcessor.AddEvent(event)

		case err := <-partitionConsumer.Errors():
			log.Printf("Partition %d: Kafka error: %v", partition, err)

		case <-ticker.C:
			batchProcessor.Flush()
		}
	}
}
