package api

import (
	"net/http"
	"strings"

	"github.com/example/transcribe-checkout/internal/api/middleware"
	"github.com/example/transcribe-checkout/internal/domain/order"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LookupOrder lets a guest find an order by id and the e-mail used at checkout.
func (h *Handlers) LookupOrder(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(r.URL.Query().Get("order_id"))
	email := r.URL.Query().Get("email")
	if orderID == "" || strings.TrimSpace(email) == "" {
		respondJSONError(w, "order_id and email are required", http.StatusBadRequest)
		return
	}

	o, err := h.queries.LookupGuestOrder(r.Context(), orderID, email)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// GetMyOrders lists the signed-in user's orders, newest first.
func (h *Handlers) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queries.ListOrdersByUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// Admin Handlers

func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.queries.Analytics(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, analytics)
}

func (h *Handlers) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queries.ListAllOrders(r.Context())
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	status, err := order.ParseStatus(req.Status)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.orders.UpdateStatus(r.Context(), id, status, req.Reason); err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	h.logger.Info("order status updated", zap.String("order_id", id), zap.String("status", string(status)))
	respondJSON(w, http.StatusOK, map[string]string{"order_id": id, "status": string(status)})
}
