package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/transcribe-checkout/internal/pricing"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// StripeGateway holds funds with a manually captured PaymentIntent and
// captures them on Confirm.
type StripeGateway struct {
	api    *client.API
	logger *zap.Logger
}

func NewStripeGateway(secretKey string, logger *zap.Logger) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, logger: logger}
}

// NewStripeGatewayWithBackends lets callers point the client at another backend.
func NewStripeGatewayWithBackends(secretKey string, backends *stripe.Backends, logger *zap.Logger) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeGateway{api: api, logger: logger}
}

func (g *StripeGateway) Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error) {
	amount := pricing.MinorUnits(req.Amount)
	if amount <= 0 {
		return Authorization{}, ErrInvalidAmount
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		ReceiptEmail:  stripe.String(req.CustomerEmail),
	}
	if req.PaymentMethod == "" {
		return Authorization{}, fmt.Errorf("%w: payment method is required", ErrDeclined)
	}
	params.PaymentMethod = stripe.String(req.PaymentMethod)
	params.Confirm = stripe.Bool(true)
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey("authorize-" + req.IdempotencyKey)
	}
	addOrderMetadata(&params.Params, req.Order)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return Authorization{}, classify("authorize", err)
	}

	if pi.Status != stripe.PaymentIntentStatusRequiresCapture {
		g.release(ctx, pi.ID)
		return Authorization{}, fmt.Errorf("%w: payment intent %s is %s", ErrDeclined, pi.ID, pi.Status)
	}

	g.logger.Info("payment authorized",
		zap.String("payment_intent", pi.ID),
		zap.Int64("amount", amount),
		zap.String("currency", req.Currency))
	return Authorization{Handle: pi.ID}, nil
}

// release cancels an intent that cannot be captured.
func (g *StripeGateway) release(ctx context.Context, id string) {
	if err := g.Cancel(ctx, id); err != nil {
		g.logger.Warn("failed to release payment intent", zap.String("payment_intent", id), zap.Error(err))
	}
}

// Confirm captures the held funds. An intent that already succeeded counts
// as confirmed, so a retry after an ambiguous failure is safe.
func (g *StripeGateway) Confirm(ctx context.Context, req ConfirmRequest) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey("capture-" + req.Handle)
	addOrderMetadata(&params.Params, req.Order)

	pi, err := g.api.PaymentIntents.Capture(req.Handle, params)
	if err == nil && pi.Status == stripe.PaymentIntentStatusSucceeded {
		return nil
	}

	current, getErr := g.api.PaymentIntents.Get(req.Handle, &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}})
	if getErr == nil {
		switch current.Status {
		case stripe.PaymentIntentStatusSucceeded:
			return nil
		case stripe.PaymentIntentStatusCanceled:
			return ErrAlreadyCanceled
		}
	}

	if err != nil {
		return classify("capture", err)
	}
	return fmt.Errorf("%w: payment intent %s is %s", ErrDeclined, pi.ID, pi.Status)
}

func (g *StripeGateway) Cancel(ctx context.Context, handle string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	params.SetIdempotencyKey("cancel-" + handle)

	if _, err := g.api.PaymentIntents.Cancel(handle, params); err != nil {
		return classify("cancel", err)
	}
	g.logger.Info("payment authorization canceled", zap.String("payment_intent", handle))
	return nil
}

func addOrderMetadata(p *stripe.Params, o OrderSummary) {
	if o.OrderID != "" {
		p.AddMetadata("order_id", o.OrderID)
	}
	p.AddMetadata("plan_id", o.PlanID)
	p.AddMetadata("minutes", fmt.Sprintf("%d", o.Minutes))
	p.AddMetadata("add_ons", strings.Join(o.AddOnIDs, ","))
	if o.PromoCode != "" {
		p.AddMetadata("promo_code", o.PromoCode)
	}
	p.AddMetadata("is_guest", fmt.Sprintf("%t", o.IsGuest))
}

func classify(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Type == stripe.ErrorTypeCard || (stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 && stripeErr.HTTPStatusCode != 429) {
			return fmt.Errorf("%w: %s: %s", ErrDeclined, op, stripeErr.Msg)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
