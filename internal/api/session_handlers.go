package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/example/transcribe-checkout/internal/api/middleware"
	"github.com/example/transcribe-checkout/internal/catalog"
	"github.com/example/transcribe-checkout/internal/checkout"
	"github.com/example/transcribe-checkout/internal/discount"
	"github.com/example/transcribe-checkout/internal/domain/draft"
	"github.com/example/transcribe-checkout/internal/pricing"
	"github.com/example/transcribe-checkout/internal/session"
	"github.com/example/transcribe-checkout/internal/wizard"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type sessionContextKey struct{}

var errOrderPaid = errors.New("order is already paid; reset the session to start a new one")

// SessionView is the full state the checkout widget renders.
type SessionView struct {
	SessionID          string            `json:"session_id"`
	Order              draft.Order       `json:"order"`
	Display            pricing.Display   `json:"display"`
	Step               wizard.Step       `json:"step"`
	CanAdvance         bool              `json:"can_advance"`
	Discount           discount.Status   `json:"discount"`
	FieldErrors        map[string]string `json:"field_errors,omitempty"`
	CheckoutInProgress bool              `json:"checkout_in_progress"`
}

func (h *Handlers) view(s *session.Session) SessionView {
	o := s.Store.Snapshot()
	return SessionView{
		SessionID:          s.ID,
		Order:              o,
		Display:            o.Breakdown.Display(),
		Step:               s.Wizard.Step(),
		CanAdvance:         s.Wizard.CanAdvance(),
		Discount:           s.Discount.Status(),
		FieldErrors:        s.Store.FieldErrors(),
		CheckoutInProgress: h.checkout.InProgress(s.Store),
	}
}

// LoadSession resolves the checkout_session cookie into a session.
func (h *Handlers) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.CookieName)
		if err != nil {
			respondJSONError(w, "no checkout session", http.StatusNotFound)
			return
		}
		s, err := h.sessions.Get(cookie.Value)
		if err != nil {
			h.respondDomainError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey{}, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Editable rejects draft changes while a checkout runs or after payment.
func (h *Handlers) Editable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		if h.checkout.InProgress(s.Store) {
			h.respondDomainError(w, r, checkout.ErrCheckoutInProgress)
			return
		}
		if s.Store.Snapshot().Status != draft.StatusPending {
			respondJSONError(w, errOrderPaid.Error(), http.StatusConflict)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(sessionContextKey{}).(*session.Session)
	return s
}

type CreateSessionRequest struct {
	Guest bool `json:"guest"`
}

// CreateSession starts a checkout. Signed-in checkouts need a valid access token.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	if !req.Guest && userID == "" {
		respondJSONError(w, "sign in or continue as a guest", http.StatusUnauthorized)
		return
	}
	if req.Guest {
		userID = ""
	}

	if old, err := r.Cookie(session.CookieName); err == nil {
		h.sessions.Delete(old.Value)
	}

	s := h.sessions.Create(req.Guest, userID)
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusCreated, h.view(s))
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.view(sessionFrom(r)))
}

// ResetSession clears the draft so a new order can be started.
func (h *Handlers) ResetSession(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if h.checkout.InProgress(s.Store) {
		h.respondDomainError(w, r, checkout.ErrCheckoutInProgress)
		return
	}
	if err := s.Reset(); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view(s))
}

type SelectPlanRequest struct {
	PlanID string `json:"plan_id"`
}

func (h *Handlers) SelectPlan(w http.ResponseWriter, r *http.Request) {
	var req SelectPlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s := sessionFrom(r)
	plan, err := h.catalog.Plan(catalog.PlanID(strings.TrimSpace(req.PlanID)))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	if _, err := s.Discount.SelectPlan(plan); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view(s))
}

func (h *Handlers) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var patch draft.CustomerInfoPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	s := sessionFrom(r)
	s.Store.SetCustomerInfo(patch)
	if patch.Email != nil {
		if email := strings.TrimSpace(*patch.Email); email != "" && !draft.ValidateEmail(email) {
			s.Store.SetFieldError(draft.FieldEmail, "email is not valid")
		}
	}
	respondJSON(w, http.StatusOK, h.view(s))
}

// SetAudioRequest carries the metadata of the uploaded file. An empty
// file name clears the upload.
type SetAudioRequest struct {
	FileName        string  `json:"file_name"`
	Size            int64   `json:"size"`
	ContentType     string  `json:"content_type"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func (h *Handlers) SetAudio(w http.ResponseWriter, r *http.Request) {
	var req SetAudioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s := sessionFrom(r)
	if req.FileName == "" {
		if err := s.Store.SetAudioFile(nil); err != nil {
			h.respondDomainError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, h.view(s))
		return
	}

	minutes := pricing.MinutesFromSeconds(req.DurationSeconds)
	if minutes <= 0 {
		h.respondDomainError(w, r, draft.ErrInvalidDuration)
		return
	}
	file := &draft.FileRef{Name: req.FileName, Size: req.Size, ContentType: req.ContentType}
	if err := s.Store.SetAudioFile(file); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	if err := s.Store.SetAudioDuration(minutes); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view(s))
}

func (h *Handlers) ToggleAddOn(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	addOn, err := h.catalog.AddOn(chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	if _, err := s.Store.ToggleAddOn(addOn); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view(s))
}

type ApplyPromoRequest struct {
	Code string `json:"code"`
}

// ApplyPromo validates a promo code. A rejected or superseded code is not
// an HTTP error: the discount state in the response tells the widget what
// to show.
func (h *Handlers) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req ApplyPromoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s := sessionFrom(r)
	_, err := s.Discount.Submit(r.Context(), req.Code)
	switch {
	case err == nil, errors.Is(err, discount.ErrRejected), errors.Is(err, discount.ErrSuperseded):
		if err != nil {
			h.logger.Debug("promo code not applied", zap.String("session_id", s.ID), zap.Error(err))
		}
		respondJSON(w, http.StatusOK, h.view(s))
	default:
		h.respondDomainError(w, r, err)
	}
}

func (h *Handlers) ClearPromo(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if _, err := s.Discount.Clear(); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view(s))
}

type NavigationResponse struct {
	Outcome wizard.Outcome `json:"outcome"`
	Session SessionView    `json:"session"`
}

func (h *Handlers) Next(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	outcome, err := s.Wizard.Next()
	if err != nil {
		if errors.Is(err, wizard.ErrStepIncomplete) {
			respondJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:  err.Error(),
				Fields: s.Store.FieldErrors(),
			})
			return
		}
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, NavigationResponse{Outcome: outcome, Session: h.view(s)})
}

func (h *Handlers) Back(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	outcome := s.Wizard.Back()
	respondJSON(w, http.StatusOK, NavigationResponse{Outcome: outcome, Session: h.view(s)})
}

type SubmitRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// Submit runs the checkout for the session's draft.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s := sessionFrom(r)
	result, err := h.checkout.Checkout(r.Context(), s.Store, checkout.Request{
		PaymentMethod: req.PaymentMethod,
		UserID:        s.UserID,
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}
