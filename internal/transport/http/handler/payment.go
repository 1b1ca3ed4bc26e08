package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"payment-service/internal/idempotency"
	"payment-service/internal/models"
	"payment-service/internal/services"

	"github.com/go-playground/validator"
)

type Payment struct {
	orderService  *services.OrderService
	walletService *services.WalletService
	idem          *idempotency.Cache
	validate      *validator.Validate
}

func NewPayment(mux *http.ServeMux, orderService *services.OrderService, walletService *services.WalletService, idem *idempotency.Cache) *Payment {
	h := &Payment{
		orderService:  orderService,
		walletService: walletService,
		idem:          idem,
		validate:      validator.New(),
	}

	mux.HandleFunc("POST /api/v1/orders", h.createOrder)
	mux.HandleFunc("GET /api/v1/orders/{orderId}", h.getOrder)
	mux.HandleFunc("POST /api/v1/orders/{orderId}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /api/v1/payments/verify", h.verifyPayment)
	mux.HandleFunc("GET /api/v1/wallets/{userId}", h.getWallet)

	return h
}

// @Summary Create a payment order
// @Description Creates a time-boxed PENDING order for a tournament entry payment
// @Tags orders
// @Accept json
// @Produce json
// @Param order body models.CreateOrderRequest true "Order Request"
// @Success 201 {object} models.Order
// @Failure 400 {object} map[string]interface{}
// @Router /orders [post]
func (h *Payment) createOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(order)
}

// @Summary Get an order
// @Description Returns the order, lazily expiring it when its window has passed
// @Tags orders
// @Produce json
// @Param orderId path string true "Order ID (UUIDv4)"
// @Success 200 {object} models.Order
// @Failure 404 {object} map[string]interface{}
// @Router /orders/{orderId} [get]
func (h *Payment) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")

	if err := h.validate.Var(orderID, "required,uuid4"); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

// @Summary Cancel an order
// @Description Cancels a pending, unexpired order; only the owning user may cancel
// @Tags orders
// @Accept json
// @Produce json
// @Param orderId path string true "Order ID (UUIDv4)"
// @Param cancel body models.CancelOrderRequest true "Cancel Request"
// @Success 200 {object} models.Order
// @Failure 403 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /orders/{orderId}/cancel [post]
func (h *Payment) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")

	if err := h.validate.Var(orderID, "required,uuid4"); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	var req models.CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	order, err := h.orderService.CancelOrder(r.Context(), orderID, req.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

// @Summary Verify a UPI payment
// @Description Matches a submitted UPI transfer against the order and credits the wallet exactly once
// @Tags payments
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Idempotency key for safe retries"
// @Param verification body models.VerifyPaymentRequest true "Verification Request"
// @Success 200 {object} models.VerifyPaymentResponse
// @Failure 409 {object} map[string]interface{}
// @Failure 410 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /payments/verify [post]
func (h *Payment) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	// With an Idempotency-Key a retried request returns the original result
	// instead of re-running the verification
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		raw, hit, err := h.idem.Do(r.Context(), key, func(ctx context.Context) (interface{}, error) {
			return h.orderService.VerifyPayment(ctx, req)
		})
		if err != nil {
			h.writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if hit {
			w.Header().Set("X-Idempotency-Hit", "true")
		}
		w.Write(raw)
		return
	}

	resp, err := h.orderService.VerifyPayment(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// @Summary Get wallet
// @Description Returns the user's wallet, or an empty wallet when the user was never credited
// @Tags wallets
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} models.Wallet
// @Router /wallets/{userId} [get]
func (h *Payment) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	if err := h.validate.Var(userID, "required"); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	wallet, err := h.walletService.GetWallet(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wallet)
}

// writeServiceError maps domain errors onto HTTP statuses.
func (h *Payment) writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *models.ValidationError
	var conflictErr *models.StateConflictError
	var creditErr *models.CreditError

	switch {
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, models.ErrOrderNotFound), errors.Is(err, models.ErrWalletNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrLockBusy):
		h.writeError(w, http.StatusConflict, "Order is being processed by another request, retry shortly")
	case errors.As(err, &conflictErr):
		h.writeError(w, http.StatusConflict, conflictErr.Error())
	case errors.Is(err, models.ErrOrderExpired):
		h.writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, models.ErrAmountMismatch), errors.Is(err, models.ErrDestinationMismatch):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &creditErr):
		h.writeError(w, http.StatusBadGateway, "Credit failed; the order remains open for retry")
	default:
		h.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Internal error: %v", err))
	}
}

func (h *Payment) writeError(w http.ResponseWriter, statusCode int, message string) {
	errorResponse := map[string]interface{}{
		"error":   http.StatusText(statusCode),
		"message": message,
		"code":    statusCode,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse)
}
