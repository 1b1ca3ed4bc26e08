package worker

import (
	"context"
	"fmt"
	"log"
	"sync"

	"payment-service/internal/config"
	"payment-service/internal/repositories/postgresrepo"

	"github.com/IBM/sarama"
)

// PartitionManager runs one archiver worker per Kafka partition of the
// payment-event topic.
type PartitionManager struct {
	cfg     *config.Config
	archive *postgresrepo.ArchiveRepository
	wg      sync.WaitGroup
}

func NewPartitionManager(cfg *config.Config, archive *postgresrepo.ArchiveRepository) *PartitionManager {
	return &PartitionManager{
		cfg:     cfg,
		archive: archive,
	}
}

func (m *PartitionManager) Start(ctx context.Context) error {
	log.Printf("Starting archiver workers for %d partitions", m.cfg.Kafka.Partitions)

	consumer, err := sarama.NewConsumer(m.cfg.Kafka.Brokers, m.cfg.Kafka.GetSaramaConfig())
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	defer consumer.Close()

	for partition := 0; partition < m.cfg.Kafka.Partitions; partition++ {
		m.wg.Add(1)
		go m.startWorkerForPartition(ctx, consumer, partition)
	}

	m.wg.Wait()
	log.Println("All partition workers stopped")
	return nil
}

func (m *PartitionManager) startWorkerForPartition(ctx context.Context, consumer sarama.Consumer, partition int) {
	defer m.wg.Done()

	log.Printf("Starting archiver worker for partition %d", partition)

	partitionConsumer, err := consumer.ConsumePartition(
		m.cfg.Kafka.Topic,
		int32(partition),
		sarama.OffsetNewest,
	)
	if err != nil {
		log.Printf("Partition %d: Failed to create partition consumer: %v", partition, err)
		return
	}
	defer partitionConsumer.Close()

	batchProcessor := NewBatchProcessor(partition, m.archive)

	m.runWorker(ctx, partition, partitionConsumer, batchProcessor)
}
