package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type BreakerSettings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:             "payment-gateway",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerGateway stops calling the wrapped gateway after repeated
// transport failures. Declines never count as failures.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerGateway(next Gateway, s BreakerSettings, logger *zap.Logger) *BreakerGateway {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrDeclined) || errors.Is(err, ErrInvalidAmount) ||
				errors.Is(err, ErrAlreadyCanceled) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &BreakerGateway{next: next, cb: cb}
}

func (b *BreakerGateway) Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Authorize(ctx, req)
	})
	if err != nil {
		return Authorization{}, breakerError(err)
	}
	return out.(Authorization), nil
}

func (b *BreakerGateway) Confirm(ctx context.Context, req ConfirmRequest) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Confirm(ctx, req)
	})
	return breakerError(err)
}

func (b *BreakerGateway) Cancel(ctx context.Context, handle string) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Cancel(ctx, handle)
	})
	return breakerError(err)
}

func (b *BreakerGateway) State() gobreaker.State {
	return b.cb.State()
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
