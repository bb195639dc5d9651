// Package session keeps one checkout draft per browser session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/transcribe-checkout/internal/discount"
	"github.com/example/transcribe-checkout/internal/domain/draft"
	"github.com/example/transcribe-checkout/internal/wizard"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CookieName = "checkout_session"
	DefaultTTL = 2 * time.Hour
)

var ErrSessionNotFound = errors.New("checkout session not found")

// Session owns the draft of one browser session and everything that acts on it.
type Session struct {
	ID        string
	UserID    string
	Store     *draft.Store
	Discount  *discount.Flow
	Wizard    *wizard.Wizard
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen) > ttl
}

// Reset clears the draft, the discount state and the wizard position.
// Guest mode is kept. The draft is reset even when clearing the discount
// fails; that error is returned.
func (s *Session) Reset() error {
	_, err := s.Discount.Clear()
	s.Store.Reset()
	s.Wizard.Reset()
	s.Store.Enter()
	if err != nil {
		return fmt.Errorf("failed to clear discount: %w", err)
	}
	return nil
}

type Config struct {
	TTL             time.Duration
	Validator       discount.Validator
	DiscountEnabled bool
	DiscountTimeout time.Duration
	// Rules is nil when discount codes are disabled.
	Rules draft.RuleSource
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Rules returns the rule source sessions are built with.
func (r *Registry) Rules() draft.RuleSource {
	return r.cfg.Rules
}

// Create starts a session. Guest mode is fixed from here on.
func (r *Registry) Create(guest bool, userID string) *Session {
	store := draft.NewStore(guest)
	store.Enter()

	now := r.now()
	s := &Session{
		ID:     uuid.New().String(),
		UserID: userID,
		Store:  store,
		Discount: discount.NewFlow(store, r.cfg.Validator, discount.Options{
			Enabled: r.cfg.DiscountEnabled,
			Timeout: r.cfg.DiscountTimeout,
		}, r.logger.With(zap.String("component", "discount"))),
		Wizard:    wizard.New(store, r.cfg.Rules),
		CreatedAt: now,
		lastSeen:  now,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.logger.Debug("session created", zap.String("session_id", s.ID), zap.Bool("guest", guest))
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	now := r.now()
	if s.expired(now, r.cfg.TTL) {
		r.Delete(id)
		return nil, ErrSessionNotFound
	}
	s.touch(now)
	return s, nil
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.expired(now, r.cfg.TTL) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("expired checkout sessions removed", zap.Int("count", n))
			}
		}
	}
}
