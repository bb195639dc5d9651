package discount

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/transcribe-checkout/internal/catalog"
	"github.com/shopspring/decimal"
)

var ErrValidatorUnavailable = errors.New("discount validator unavailable")

type Request struct {
	Code   string         `json:"code"`
	PlanID catalog.PlanID `json:"plan_id"`
}

// Result is the validator's verdict. Percent is only meaningful when Valid.
type Result struct {
	Valid   bool            `json:"valid"`
	Percent decimal.Decimal `json:"discount_percent"`
	Message string          `json:"message,omitempty"`
}

// Validator checks a promo code against an external source.
type Validator interface {
	Validate(ctx context.Context, req Request) (Result, error)
}

// HTTPValidator posts the request as JSON to a validation endpoint.
type HTTPValidator struct {
	endpoint string
	client   *http.Client
}

func NewHTTPValidator(endpoint string, timeout time.Duration) *HTTPValidator {
	return &HTTPValidator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (v *HTTPValidator) Validate(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal validation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to build validation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrValidatorUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrValidatorUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{}, fmt.Errorf("%w: status %d", ErrValidatorUnavailable, resp.StatusCode)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return Result{Valid: false}, nil
		}
		return Result{}, fmt.Errorf("failed to decode validation response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		result.Valid = false
	}
	return result, nil
}
