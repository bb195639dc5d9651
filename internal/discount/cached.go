package discount

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/transcribe-checkout/internal/infrastructure/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedValidator remembers verdicts per plan and code and coalesces
// concurrent validations of the same pair into one upstream call.
// Transport errors are never cached.
type CachedValidator struct {
	next   Validator
	cache  cache.Cache[Result]
	logger *zap.Logger
	sfg    singleflight.Group
}

func NewCachedValidator(next Validator, c cache.Cache[Result], logger *zap.Logger) *CachedValidator {
	return &CachedValidator{
		next:   next,
		cache:  c,
		logger: logger,
	}
}

func (v *CachedValidator) Validate(ctx context.Context, req Request) (Result, error) {
	key := cacheKey(req)

	out, err, _ := v.sfg.Do(key, func() (interface{}, error) {
		cached, err := v.cache.Get(ctx, key)
		if err == nil {
			return *cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			v.logger.Warn("discount cache get failed", zap.String("key", key), zap.Error(err))
		}

		result, err := v.next.Validate(ctx, req)
		if err != nil {
			return Result{}, err
		}

		if err := v.cache.Set(ctx, key, &result); err != nil {
			v.logger.Warn("discount cache set failed", zap.String("key", key), zap.Error(err))
		}
		return result, nil
	})
	if err != nil {
		return Result{}, err
	}
	return out.(Result), nil
}

func cacheKey(req Request) string {
	return fmt.Sprintf("%s:%s", req.PlanID, req.Code)
}
