package postgresrepo

import (
	"context"
	"fmt"
	"strings"

	"payment-service/internal/models"

	"github.com/jmoiron/sqlx"
)

type ArchiveRepository struct {
	db *sqlx.DB
}

func NewArchiveRepository(db *sqlx.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// BulkInsertEvents archives a batch of payment events for reconciliation.
// Inserts are keyed by event id, so a replayed batch is a no-op.
func (r *ArchiveRepository) BulkInsertEvents(ctx context.Context, events []models.PaymentEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Batch size to prevent too large requests
	batchSize := 100
	for i := 0; i < len(events); i += batchSize {
		end := i + batchSize
		if end > len(events) {
			end = len(events)
		}

		if err := r.insertBatch(ctx, events[i:end]); err != nil {
			return fmt.Errorf("failed to insert batch [%d:%d]: %w", i, end, err)
		}
	}

	return nil
}

func (r *ArchiveRepository) insertBatch(ctx context.Context, events []models.PaymentEvent) error {
	args := make([]interface{}, 0, 7*len(events))
	values := make([]string, 0, len(events))

	for i, e := range events {
		base := i*7 + 1
		values = append(values,
			fmt.Sprintf("($%d::uuid,$%d::text,$%d::uuid,$%d::text,$%d::bigint,$%d::text,$%d::timestamptz)",
				base, base+1, base+2, base+3, base+4, base+5, base+6,
			),
		)

		args = append(args,
			e.EventID,
			e.Type,
			e.OrderID,
			e.UserID,
			e.Amount,
			e.TransactionRef,
			e.OccurredAt,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO payment_events
			(event_id, type, order_id, user_id, amount, transaction_ref, occurred_at)
		VALUES %s
		ON CONFLICT (event_id) DO NOTHING
	`, strings.Join(values, ","))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("bulk INSERT VALUES failed: %w", err)
	}
	return nil
}
