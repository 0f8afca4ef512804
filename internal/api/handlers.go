package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/example/checkout-core/internal/catalog"
	"github.com/example/checkout-core/internal/checkout"
	"github.com/example/checkout-core/internal/domain/inventory"
	"github.com/example/checkout-core/internal/domain/order"
	"github.com/example/checkout-core/internal/domain/payment"
	"github.com/example/checkout-core/internal/money"
)

type Handlers struct {
	orchestrator *checkout.Orchestrator
	ledger       *inventory.Ledger
	orders       *order.Service
	payments     *payment.Service
	catalog      *catalog.Static
}

func NewHandlers(orchestrator *checkout.Orchestrator, ledger *inventory.Ledger, orders *order.Service, payments *payment.Service, cat *catalog.Static) *Handlers {
	return &Handlers{
		orchestrator: orchestrator,
		ledger:       ledger,
		orders:       orders,
		payments:     payments,
		catalog:      cat,
	}
}

// Checkout Handlers

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string              `json:"customer_id"`
		Lines      []checkout.CartLine `json:"lines"`
		Method     payment.Method      `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.CustomerID == "" {
		http.Error(w, "customer_id is required", http.StatusBadRequest)
		return
	}

	ord, err := h.orchestrator.Checkout(r.Context(), req.CustomerID, req.Lines, req.Method)
	if err != nil {
		respondCheckoutError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ord)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")
	id = strings.TrimSuffix(id, "/cancel")

	var req struct {
		CustomerID string `json:"customer_id"`
		Reason     string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ord, err := h.orchestrator.Cancel(r.Context(), id, req.CustomerID, req.Reason)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ord)
}

func (h *Handlers) RefundOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")
	id = strings.TrimSuffix(id, "/refund")

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ord, err := h.orchestrator.Refund(r.Context(), id, req.Reason)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ord)
}

// Order Handlers

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")
	ord, ok := h.orders.Get(id)
	if !ok {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		order.Order
		History []order.TransitionRecord `json:"history"`
	}{ord, h.orders.History(id)})
}

func (h *Handlers) GetOrderPayment(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")
	id = strings.TrimSuffix(id, "/payment")
	pay, ok := h.payments.GetByOrder(id)
	if !ok {
		http.Error(w, "Payment not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		payment.Payment
		Refunds []payment.Refund `json:"refunds"`
	}{pay, h.payments.Refunds(pay.ID)})
}

// Inventory Handlers

func (h *Handlers) GetInventory(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(extractPathParam(r.URL.Path, "/inventory/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		http.Error(w, "expected /inventory/{product_id}/{warehouse_id}", http.StatusBadRequest)
		return
	}
	snap, ok := h.ledger.View(parts[0], parts[1])
	if !ok {
		http.Error(w, "Inventory record not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handlers) AdjustInventory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID   string                 `json:"product_id"`
		WarehouseID string                 `json:"warehouse_id"`
		Delta       int                    `json:"delta"`
		Reason      inventory.AdjustReason `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.ledger.Adjust(r.Context(), req.ProductID, req.WarehouseID, req.Delta, req.Reason); err != nil {
		switch {
		case errors.Is(err, inventory.ErrInvalidAdjustment), errors.Is(err, inventory.ErrInvalidQuantity):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, inventory.ErrInsufficientStock):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	snap, _ := h.ledger.View(req.ProductID, req.WarehouseID)
	respondJSON(w, http.StatusOK, snap)
}

// Catalog Handlers

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
		Name      string `json:"name"`
		UnitPrice string `json:"unit_price"`
		Currency  string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	price, err := money.Parse(req.UnitPrice, req.Currency)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap := catalog.Snapshot{ProductID: req.ProductID, Name: req.Name, UnitPrice: price}
	h.catalog.Put(snap)
	respondJSON(w, http.StatusCreated, snap)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}

// respondCheckoutError maps a checkout failure reason onto an HTTP status
// so callers can tell a retryable outage from a definitive rejection.
func respondCheckoutError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]string{"error": err.Error()}

	if reason, ok := checkout.ReasonOf(err); ok {
		body["reason"] = string(reason)
		switch reason {
		case checkout.ReasonInsufficientStock:
			status = http.StatusConflict
		case checkout.ReasonPaymentDeclined:
			status = http.StatusPaymentRequired
		case checkout.ReasonProviderUnavailable:
			status = http.StatusServiceUnavailable
		}
	}
	respondJSON(w, status, body)
}

func respondOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, order.ErrNotOwner):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, order.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, payment.ErrNotRefundable), errors.Is(err, payment.ErrRefundExceedsBalance):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
