package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

func newAuthorizeRequest() AuthorizeRequest {
	return AuthorizeRequest{
		Amount:         decimal.RequireFromString("4.80"),
		Currency:       "USD",
		CustomerEmail:  "ada@example.com",
		PaymentMethod:  "pm_card_visa",
		IdempotencyKey: "attempt-1",
		Order:          OrderSummary{PlanID: "economy", Minutes: 10, AddOnIDs: []string{"timestamps"}},
	}
}

// ============================================
// MemoryGateway Tests
// ============================================

func TestMemoryGateway_AuthorizeConfirm(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	auth, err := g.Authorize(ctx, newAuthorizeRequest())
	require.NoError(t, err)

	require.NoError(t, g.Confirm(ctx, ConfirmRequest{Handle: auth.Handle}))
	require.NoError(t, g.Confirm(ctx, ConfirmRequest{Handle: auth.Handle}))

	hold, ok := g.Hold(auth.Handle)
	require.True(t, ok)
	assert.Equal(t, HoldCaptured, hold.State)
}

func TestMemoryGateway_IdempotentAuthorize(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	first, err := g.Authorize(ctx, newAuthorizeRequest())
	require.NoError(t, err)
	second, err := g.Authorize(ctx, newAuthorizeRequest())
	require.NoError(t, err)

	assert.Equal(t, first.Handle, second.Handle)
}

func TestMemoryGateway_CancelThenConfirm(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()
	auth, err := g.Authorize(ctx, newAuthorizeRequest())
	require.NoError(t, err)

	require.NoError(t, g.Cancel(ctx, auth.Handle))

	assert.ErrorIs(t, g.Confirm(ctx, ConfirmRequest{Handle: auth.Handle}), ErrAlreadyCanceled)
	assert.ErrorIs(t, g.Cancel(ctx, "missing"), ErrUnknownHandle)
}

func TestMemoryGateway_RejectsZeroAmount(t *testing.T) {
	req := newAuthorizeRequest()
	req.Amount = decimal.Zero

	_, err := NewMemoryGateway().Authorize(context.Background(), req)

	assert.ErrorIs(t, err, ErrInvalidAmount)
}

// ============================================
// BreakerGateway Tests
// ============================================

type failingGateway struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *failingGateway) Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return Authorization{}, f.err
}

func (f *failingGateway) Confirm(ctx context.Context, req ConfirmRequest) error {
	_, err := f.Authorize(ctx, AuthorizeRequest{})
	return err
}

func (f *failingGateway) Cancel(ctx context.Context, handle string) error {
	_, err := f.Authorize(ctx, AuthorizeRequest{})
	return err
}

func TestBreakerGateway_OpensOnTransportFailures(t *testing.T) {
	upstream := &failingGateway{err: ErrUnavailable}
	settings := DefaultBreakerSettings()
	settings.FailureThreshold = 3
	g := NewBreakerGateway(upstream, settings, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := g.Authorize(context.Background(), newAuthorizeRequest())
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.Authorize(context.Background(), newAuthorizeRequest())

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, upstream.calls)
}

func TestBreakerGateway_DeclinesDoNotTrip(t *testing.T) {
	upstream := &failingGateway{err: ErrDeclined}
	settings := DefaultBreakerSettings()
	settings.FailureThreshold = 2
	g := NewBreakerGateway(upstream, settings, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := g.Authorize(context.Background(), newAuthorizeRequest())
		assert.ErrorIs(t, err, ErrDeclined)
	}

	assert.Equal(t, gobreaker.StateClosed, g.State())
	assert.Equal(t, 5, upstream.calls)
}

func TestBreakerGateway_PassesThroughSuccess(t *testing.T) {
	mem := NewMemoryGateway()
	g := NewBreakerGateway(mem, DefaultBreakerSettings(), zap.NewNop())
	ctx := context.Background()

	auth, err := g.Authorize(ctx, newAuthorizeRequest())
	require.NoError(t, err)
	require.NoError(t, g.Confirm(ctx, ConfirmRequest{Handle: auth.Handle}))

	hold, _ := mem.Hold(auth.Handle)
	assert.Equal(t, HoldCaptured, hold.State)
}

// ============================================
// StripeGateway Tests
// ============================================

func newTestStripeGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeGatewayWithBackends("sk_test_123", &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	}, zap.NewNop())
}

func TestStripeGateway_AuthorizeHoldsFunds(t *testing.T) {
	var form map[string][]string
	var idempotencyKey string
	g := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		idempotencyKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_123","object":"payment_intent","status":"requires_capture"}`))
	})

	auth, err := g.Authorize(context.Background(), newAuthorizeRequest())

	require.NoError(t, err)
	assert.Equal(t, "pi_123", auth.Handle)
	assert.Equal(t, []string{"480"}, form["amount"])
	assert.Equal(t, []string{"usd"}, form["currency"])
	assert.Equal(t, []string{"manual"}, form["capture_method"])
	assert.Equal(t, []string{"economy"}, form["metadata[plan_id]"])
	assert.Equal(t, "authorize-attempt-1", idempotencyKey)
}

func TestStripeGateway_CardDeclined(t *testing.T) {
	g := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	})

	_, err := g.Authorize(context.Background(), newAuthorizeRequest())

	assert.ErrorIs(t, err, ErrDeclined)
}

func TestStripeGateway_ServerErrorIsUnavailable(t *testing.T) {
	g := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"type":"api_error","message":"boom"}}`))
	})

	_, err := g.Authorize(context.Background(), newAuthorizeRequest())

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStripeGateway_RequiresActionIsReleased(t *testing.T) {
	var canceled bool
	g := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/cancel") {
			canceled = true
			w.Write([]byte(`{"id":"pi_9","object":"payment_intent","status":"canceled"}`))
			return
		}
		w.Write([]byte(`{"id":"pi_9","object":"payment_intent","status":"requires_action"}`))
	})

	_, err := g.Authorize(context.Background(), newAuthorizeRequest())

	assert.ErrorIs(t, err, ErrDeclined)
	assert.True(t, canceled)
}

func TestStripeGateway_ConfirmAfterAmbiguousFailure(t *testing.T) {
	g := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/capture") {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"type":"api_error","message":"timeout"}}`))
			return
		}
		w.Write([]byte(`{"id":"pi_5","object":"payment_intent","status":"succeeded"}`))
	})

	err := g.Confirm(context.Background(), ConfirmRequest{Handle: "pi_5"})

	assert.NoError(t, err)
}

func TestStripeGateway_MissingPaymentMethod(t *testing.T) {
	g := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	req := newAuthorizeRequest()
	req.PaymentMethod = ""

	_, err := g.Authorize(context.Background(), req)

	assert.True(t, errors.Is(err, ErrDeclined))
}
