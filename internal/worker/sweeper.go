package worker

import (
	"context"
	"log"
	"time"

	"payment-service/internal/idempotency"
	"payment-service/internal/services"
)

// Sweeper periodically expires overdue pending orders and prunes expired
// idempotency records.
type Sweeper struct {
	orders    *services.OrderService
	idem      *idempotency.Cache
	interval  time.Duration
	batchSize int
}

func NewSweeper(orders *services.OrderService, idem *idempotency.Cache, interval time.Duration, batchSize int) *Sweeper {
	return &Sweeper{
		orders:    orders,
		idem:      idem,
		interval:  interval,
		batchSize: batchSize,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweeper: shutdown signal received")
			return

		case <-ticker.C:
			if count, err := s.orders.ExpireBatch(ctx, s.batchSize); err != nil {
				log.Printf("Sweeper: expire pass failed: %v", err)
			} else if count > 0 {
				log.Printf("Sweeper: expired %d orders", count)
			}

			if removed, err := s.idem.Sweep(ctx); err != nil {
				log.Printf("Sweeper: idempotency sweep failed: %v", err)
			} else if removed > 0 {
				log.Printf("Sweeper: removed %d idempotency records", removed)
			}
		}
	}
}
