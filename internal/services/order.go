package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"payment-service/internal/clock"
	"payment-service/internal/config"
	"payment-service/internal/lockmanager"
	"payment-service/internal/models"
	"payment-service/internal/repositories/kafkarepo"
	"payment-service/internal/store"

	"github.com/google/uuid"
)

const (
	orderKeyPrefix  = "order:"
	pendingIndexKey = "orders:pending"
)

// OrderService owns the order lifecycle: creation, verification, cancellation
// and expiry. Every transition out of PENDING happens under the per-order
// lock, and the wallet credit always commits before the SUCCESS write.
type OrderService struct {
	store   store.Store
	locks   *lockmanager.Manager
	wallets *WalletService
	events  *kafkarepo.EventRepository
	clock   clock.Clock
	payment config.PaymentConfig
	lockCfg config.LockConfig
}

func NewOrderService(
	st store.Store,
	locks *lockmanager.Manager,
	wallets *WalletService,
	events *kafkarepo.EventRepository,
	clk clock.Clock,
	payment config.PaymentConfig,
	lockCfg config.LockConfig,
) *OrderService {
	return &OrderService{
		store:   st,
		locks:   locks,
		wallets: wallets,
		events:  events,
		clock:   clk,
		payment: payment,
		lockCfg: lockCfg,
	}
}

func orderKey(orderID string) string {
	return orderKeyPrefix + orderID
}

// orderLockKey names the verification-scoped lock; the lock manager adds its
// own prefix in the store.
func orderLockKey(orderID string) string {
	return "order:" + orderID
}

// CreateOrder validates the request and persists a new PENDING order with a
// fixed expiry window.
func (s *OrderService) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	if req.UserID == "" {
		return nil, &models.ValidationError{Field: "userId", Reason: "required"}
	}
	if req.Amount < s.payment.MinAmount {
		return nil, &models.ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("must be at least %d", s.payment.MinAmount),
		}
	}
	if req.Amount > s.payment.MaxAmount {
		return nil, &models.ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("must not exceed %d", s.payment.MaxAmount),
		}
	}

	now := s.clock.Now()
	order := &models.Order{
		OrderID:       uuid.New().String(),
		UserID:        req.UserID,
		UserPhone:     req.UserPhone,
		UserName:      req.UserName,
		Amount:        req.Amount,
		DestinationID: s.payment.DestinationVPA,
		Status:        models.OrderStatusPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.payment.OrderExpiry),
	}

	if err := s.store.Set(ctx, orderKey(order.OrderID), order, 0); err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}
	if err := s.store.SetAdd(ctx, pendingIndexKey, order.OrderID); err != nil {
		log.Printf("warning: failed to index pending order %s: %v", order.OrderID, err)
	}

	s.publish(ctx, models.EventOrderCreated, order, "")
	return order, nil
}

// GetOrder returns the order, lazily expiring it when the window has passed.
// If another actor holds the order lock the expiry is skipped and the stored
// state is returned as-is.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Expired(s.clock.Now()) {
		updated, _, err := s.tryExpire(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if updated != nil {
			return updated, nil
		}
	}

	return order, nil
}

// VerifyPayment matches an externally-initiated UPI transfer against the
// order and credits the wallet exactly once. The credit commits before the
// status write; on credit failure the order stays PENDING with the
// transaction reference preserved for a retry.
func (s *OrderService) VerifyPayment(ctx context.Context, req models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error) {
	token, err := s.locks.Acquire(ctx, orderLockKey(req.OrderID), s.lockCfg.Timeout, s.lockCfg.MaxAttempts)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, orderLockKey(req.OrderID), token)

	order, err := s.loadOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if order.Terminal() {
		return nil, &models.StateConflictError{OrderID: order.OrderID, Status: order.Status, Op: "verify"}
	}
	if !now.Before(order.ExpiresAt) {
		s.markExpiredLocked(ctx, order)
		return nil, models.ErrOrderExpired
	}
	if !amountsMatch(req.Amount, order.Amount, s.payment.AmountEpsilon) {
		return nil, models.ErrAmountMismatch
	}
	if req.DestinationID != s.payment.DestinationVPA {
		return nil, models.ErrDestinationMismatch
	}

	newBalance, err := s.wallets.Credit(ctx, order.UserID, order.Amount, order.OrderID)
	if errors.Is(err, models.ErrDuplicateCredit) {
		// An earlier attempt credited the wallet but died before the status
		// write; pick up the committed balance and finish the transition.
		wallet, werr := s.wallets.GetWallet(ctx, order.UserID)
		if werr != nil {
			return nil, werr
		}
		newBalance, err = wallet.Balance, nil
	}
	if err != nil {
		s.annotateCreditFailure(ctx, order, req.TransactionID, err)
		return nil, &models.CreditError{OrderID: order.OrderID, UserID: order.UserID, Err: err}
	}

	verifiedAt := now
	order.Status = models.OrderStatusSuccess
	order.VerifiedAt = &verifiedAt
	order.TransactionRef = req.TransactionID
	order.LastError = ""

	if err := s.store.Set(ctx, orderKey(order.OrderID), order, 0); err != nil {
		// The credit is committed; keep PENDING annotated so a retry can
		// finish the transition through the duplicate-credit path.
		order.Status = models.OrderStatusPending
		order.VerifiedAt = nil
		s.annotateCreditFailure(ctx, order, req.TransactionID, err)
		return nil, fmt.Errorf("failed to record verification for order %s: %w", order.OrderID, err)
	}

	if err := s.store.SetRemove(ctx, pendingIndexKey, order.OrderID); err != nil {
		log.Printf("warning: failed to unindex order %s: %v", order.OrderID, err)
	}

	s.publish(ctx, models.EventOrderSuccess, order, req.TransactionID)
	s.publish(ctx, models.EventWalletCredited, order, req.TransactionID)

	return &models.VerifyPaymentResponse{
		OrderID:    order.OrderID,
		Status:     order.Status,
		NewBalance: newBalance,
	}, nil
}

// CancelOrder cancels a pending, unexpired order. Only the owning user may
// cancel.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID string) (*models.Order, error) {
	token, err := s.locks.Acquire(ctx, orderLockKey(orderID), s.lockCfg.Timeout, s.lockCfg.MaxAttempts)
	if err != nil {
		return nil, err
	}
	defer s.releaseLock(ctx, orderLockKey(orderID), token)

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.UserID != userID {
		return nil, models.ErrUnauthorized
	}
	if order.Terminal() {
		return nil, &models.StateConflictError{OrderID: order.OrderID, Status: order.Status, Op: "cancel"}
	}

	now := s.clock.Now()
	if !now.Before(order.ExpiresAt) {
		s.markExpiredLocked(ctx, order)
		return nil, models.ErrOrderExpired
	}

	order.Status = models.OrderStatusCancelled
	order.CancelledAt = &now
	order.CancelledBy = userID

	if err := s.store.Set(ctx, orderKey(orderID), order, 0); err != nil {
		return nil, fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	if err := s.store.SetRemove(ctx, pendingIndexKey, orderID); err != nil {
		log.Printf("warning: failed to unindex order %s: %v", orderID, err)
	}

	s.publish(ctx, models.EventOrderCancelled, order, "")
	return order, nil
}

// ExpireBatch sweeps the pending index and expires up to maxCount overdue
// orders. Orders whose lock is busy are skipped; another actor is handling
// them.
func (s *OrderService) ExpireBatch(ctx context.Context, maxCount int) (int, error) {
	ids, err := s.store.SetMembers(ctx, pendingIndexKey)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending orders: %w", err)
	}

	now := s.clock.Now()
	expired := 0

	for _, id := range ids {
		if maxCount > 0 && expired >= maxCount {
			break
		}

		order, err := s.loadOrder(ctx, id)
		if errors.Is(err, models.ErrOrderNotFound) {
			s.dropPendingIndex(ctx, id)
			continue
		}
		if err != nil {
			return expired, err
		}

		if order.Terminal() {
			// Stale index entry
			s.dropPendingIndex(ctx, id)
			continue
		}
		if now.Before(order.ExpiresAt) {
			continue
		}

		_, transitioned, err := s.tryExpire(ctx, id)
		if err != nil {
			return expired, err
		}
		if transitioned {
			expired++
		}
	}

	return expired, nil
}

// tryExpire acquires the order lock with a single attempt and expires the
// order if it is still pending and overdue. A busy lock returns (nil, false,
// nil): the expiry is simply skipped.
func (s *OrderService) tryExpire(ctx context.Context, orderID string) (*models.Order, bool, error) {
	token, err := s.locks.Acquire(ctx, orderLockKey(orderID), s.lockCfg.Timeout, 1)
	if err != nil {
		if errors.Is(err, models.ErrLockBusy) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer s.releaseLock(ctx, orderLockKey(orderID), token)

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}

	if !order.Expired(s.clock.Now()) {
		return order, false, nil
	}

	s.markExpiredLocked(ctx, order)
	return order, order.Status == models.OrderStatusExpired, nil
}

// markExpiredLocked transitions a pending order to EXPIRED. The caller must
// hold the order lock.
func (s *OrderService) markExpiredLocked(ctx context.Context, order *models.Order) {
	order.Status = models.OrderStatusExpired
	if err := s.store.Set(ctx, orderKey(order.OrderID), order, 0); err != nil {
		order.Status = models.OrderStatusPending
		log.Printf("warning: failed to mark order %s expired: %v", order.OrderID, err)
		return
	}
	s.dropPendingIndex(ctx, order.OrderID)
	s.publish(ctx, models.EventOrderExpired, order, "")
}

func (s *OrderService) loadOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.store.Get(ctx, orderKey(orderID), &order)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	return &order, nil
}

func (s *OrderService) annotateCreditFailure(ctx context.Context, order *models.Order, transactionRef string, cause error) {
	order.LastError = fmt.Sprintf("credit failed: %v", cause)
	order.TransactionRef = transactionRef
	if err := s.store.Set(ctx, orderKey(order.OrderID), order, 0); err != nil {
		log.Printf("warning: failed to annotate order %s after credit failure: %v", order.OrderID, err)
	}
}

func (s *OrderService) dropPendingIndex(ctx context.Context, orderID string) {
	if err := s.store.SetRemove(ctx, pendingIndexKey, orderID); err != nil {
		log.Printf("warning: failed to unindex order %s: %v", orderID, err)
	}
}

func (s *OrderService) releaseLock(ctx context.Context, key, token string) {
	if _, err := s.locks.Release(ctx, key, token); err != nil {
		log.Printf("warning: failed to release lock %s: %v", key, err)
	}
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order, transactionRef string) {
	if s.events == nil {
		return
	}

	event := models.PaymentEvent{
		EventID:        uuid.New().String(),
		Type:           eventType,
		OrderID:        order.OrderID,
		UserID:         order.UserID,
		Amount:         order.Amount,
		TransactionRef: transactionRef,
		OccurredAt:     s.clock.Now(),
	}

	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("warning: failed to publish %s event for order %s: %v", eventType, order.OrderID, err)
	}
}

func amountsMatch(submitted, expected, epsilon int64) bool {
	diff := submitted - expected
	if diff < 0 {
		diff = -diff
	}
	return diff <= epsilon
}
