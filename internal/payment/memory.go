package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type HoldState string

const (
	HoldAuthorized HoldState = "authorized"
	HoldCaptured   HoldState = "captured"
	HoldCanceled   HoldState = "canceled"
)

// Hold is a payment tracked by MemoryGateway.
type Hold struct {
	Handle string
	Req    AuthorizeRequest
	State  HoldState
}

// MemoryGateway keeps authorizations in memory. It backs local development
// when no Stripe key is configured.
type MemoryGateway struct {
	mu    sync.Mutex
	holds map[string]*Hold
	keys  map[string]string
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		holds: make(map[string]*Hold),
		keys:  make(map[string]string),
	}
}

func (g *MemoryGateway) Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error) {
	if !req.Amount.IsPositive() {
		return Authorization{}, ErrInvalidAmount
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if req.IdempotencyKey != "" {
		if handle, ok := g.keys[req.IdempotencyKey]; ok {
			return Authorization{Handle: handle}, nil
		}
	}

	handle := "hold_" + uuid.New().String()
	g.holds[handle] = &Hold{Handle: handle, Req: req, State: HoldAuthorized}
	if req.IdempotencyKey != "" {
		g.keys[req.IdempotencyKey] = handle
	}
	return Authorization{Handle: handle}, nil
}

func (g *MemoryGateway) Confirm(ctx context.Context, req ConfirmRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	h, ok := g.holds[req.Handle]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, req.Handle)
	}
	switch h.State {
	case HoldCanceled:
		return ErrAlreadyCanceled
	case HoldCaptured:
		return nil
	}
	h.State = HoldCaptured
	return nil
}

func (g *MemoryGateway) Cancel(ctx context.Context, handle string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	h, ok := g.holds[handle]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	if h.State == HoldAuthorized {
		h.State = HoldCanceled
	}
	return nil
}

// Hold returns a copy of the tracked payment.
func (g *MemoryGateway) Hold(handle string) (Hold, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	h, ok := g.holds[handle]
	if !ok {
		return Hold{}, false
	}
	return *h, true
}
