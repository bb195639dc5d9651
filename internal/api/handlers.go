package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/transcribe-checkout/internal/catalog"
	"github.com/example/transcribe-checkout/internal/checkout"
	"github.com/example/transcribe-checkout/internal/discount"
	"github.com/example/transcribe-checkout/internal/domain/draft"
	"github.com/example/transcribe-checkout/internal/domain/order"
	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"github.com/example/transcribe-checkout/internal/pricing"
	"github.com/example/transcribe-checkout/internal/query"
	"github.com/example/transcribe-checkout/internal/session"
	"github.com/example/transcribe-checkout/internal/wizard"
	"go.uber.org/zap"
)

// StatusUpdater is the admin side of order.Service.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID string, target order.Status, reason string) error
}

type Dependencies struct {
	Sessions        *session.Registry
	Checkout        *checkout.Service
	Queries         *query.Handler
	Orders          StatusUpdater
	Catalog         *catalog.Catalog
	DiscountEnabled bool
	SecureCookies   bool
	Logger          *zap.Logger
}

type Handlers struct {
	sessions        *session.Registry
	checkout        *checkout.Service
	queries         *query.Handler
	orders          StatusUpdater
	catalog         *catalog.Catalog
	discountEnabled bool
	secureCookies   bool
	logger          *zap.Logger
}

func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		sessions:        deps.Sessions,
		checkout:        deps.Checkout,
		queries:         deps.Queries,
		orders:          deps.Orders,
		catalog:         deps.Catalog,
		discountEnabled: deps.DiscountEnabled,
		secureCookies:   deps.SecureCookies,
		logger:          deps.Logger,
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CatalogResponse is what the plan picker renders.
type CatalogResponse struct {
	Plans                []catalog.Plan                      `json:"plans"`
	AddOns               []catalog.AddOn                     `json:"add_ons"`
	Rules                map[catalog.PlanID]catalog.PlanRule `json:"rules"`
	DiscountCodesEnabled bool                                `json:"discount_codes_enabled"`
}

func (h *Handlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, CatalogResponse{
		Plans:                h.catalog.Plans(),
		AddOns:               h.catalog.AddOns(),
		Rules:                h.catalog.Rules(),
		DiscountCodesEnabled: h.discountEnabled,
	})
}

// Helper functions

type errorResponse struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, errorResponse{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// respondDomainError maps service errors to HTTP responses. Anything
// unrecognised is logged and reported as a 500.
func (h *Handlers) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *draft.ValidationError
	var cerr *checkout.Error

	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.As(err, &cerr):
		status := http.StatusServiceUnavailable
		if cerr.Kind == checkout.KindPaymentAuthorizationFailed {
			status = http.StatusPaymentRequired
		}
		respondJSON(w, status, errorResponse{Error: string(cerr.Kind), Retryable: cerr.Retryable})
	case errors.Is(err, draft.ErrInvalidDuration):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  "validation failed",
			Fields: map[string]string{draft.FieldDuration: err.Error()},
		})
	case errors.Is(err, catalog.ErrUnknownPlan):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  "validation failed",
			Fields: map[string]string{draft.FieldPlan: err.Error()},
		})
	case errors.Is(err, catalog.ErrUnknownAddOn),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, query.ErrLookupNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		respondJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, wizard.ErrStepIncomplete),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrInvalidOrder),
		errors.Is(err, pricing.ErrInvalidDiscount):
		respondJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, order.ErrPriceMismatch):
		respondJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Retryable: true})
	case errors.Is(err, checkout.ErrCheckoutInProgress),
		errors.Is(err, checkout.ErrAlreadyCheckedOut),
		errors.Is(err, discount.ErrDiscountDisabled),
		errors.Is(err, discount.ErrValidationInFlight),
		errors.Is(err, order.ErrOrderAlreadyPaid),
		errors.Is(err, order.ErrOrderNotPaid),
		errors.Is(err, order.ErrOrderFinished):
		respondJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, query.ErrLookupUnavailable):
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Retryable: true})
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
