package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"payment-service/internal/models"
	"payment-service/internal/repositories/postgresrepo"
)

const flushTimeout = 30 * time.Second

// BatchProcessor accumulates payment events for one partition and flushes
// them to the settlement archive in bulk. The insert is idempotent on event
// id, so a failed flush can safely be retried on the next tick.
type BatchProcessor struct {
	partitionID int
	archive     *postgresrepo.ArchiveRepository
	events      []models.PaymentEvent
	mutex       sync.Mutex
	lastFlushed time.Time
}

func NewBatchProcessor(partitionID int, archive *postgresrepo.ArchiveRepository) *BatchProcessor {
	return &BatchProcessor{
		partitionID: partitionID,
		archive:     archive,
		events:      make([]models.PaymentEvent, 0),
		lastFlushed: time.Now(),
	}
}

func (bp *BatchProcessor) AddEvent(event models.PaymentEvent) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	bp.events = append(bp.events, event)
}

func (bp *BatchProcessor) Flush() {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	bp.flushLocked()
}

// FlushRemaining drains whatever is buffered before shutdown.
func (bp *BatchProcessor) FlushRemaining() {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	if len(bp.events) > 0 {
		log.Printf("Partition %d: Flushing remaining %d events before shutdown",
			bp.partitionID, len(bp.events))
		bp.flushLocked()
	}
}

func (bp *BatchProcessor) flushLocked() {
	if len(bp.events) == 0 {
		return
	}

	log.Printf("Partition %d: Archiving batch of %d events", bp.partitionID, len(bp.events))

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := bp.archive.BulkInsertEvents(ctx, bp.events); err != nil {
		// Keep the batch; the idempotent insert lets the next tick retry it
		log.Printf("Partition %d: Failed to archive batch: %v", bp.partitionID, err)
		return
	}

	bp.events = bp.events[:0]
	bp.lastFlushed = time.Now()
}
