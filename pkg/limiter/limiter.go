// Package limiter enforces a per-model tokens-per-minute budget on model calls.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimit is returned when a reservation does not fit the current budget.
var ErrRateLimit = errors.New("rate limit exceeded")

// Limiter hands out token budgets per model. Each model gets its own bucket refilled at
// tokensPerMinute/60 tokens per second with a one-minute burst.
type Limiter struct {
	mu              sync.Mutex
	models          map[string]*rate.Limiter
	tokensPerMinute int
}

// New creates a limiter. tokensPerMinute <= 0 disables limiting.
func New(tokensPerMinute int) *Limiter {
	return &Limiter{
		models:          make(map[string]*rate.Limiter),
		tokensPerMinute: tokensPerMinute,
	}
}

// Enabled reports whether a budget is configured.
func (l *Limiter) Enabled() bool {
	return l != nil && l.tokensPerMinute > 0
}

func (l *Limiter) forModel(model string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.models[model]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(l.tokensPerMinute)/60), l.tokensPerMinute)
		l.models[model] = lim
	}
	return lim
}

// clamp keeps a single request within the bucket size so oversized prompts wait for a
// full bucket instead of failing outright.
func (l *Limiter) clamp(tokens int) int {
	if tokens < 1 {
		return 1
	}
	if tokens > l.tokensPerMinute {
		return l.tokensPerMinute
	}
	return tokens
}

// Reserve takes tokens from the model's budget without waiting.
func (l *Limiter) Reserve(model string, tokens int) error {
	if !l.Enabled() {
		return nil
	}
	if !l.forModel(model).AllowN(time.Now(), l.clamp(tokens)) {
		return fmt.Errorf("%w: model %s needs %d tokens", ErrRateLimit, model, tokens)
	}
	return nil
}

// Wait blocks until the model's budget covers tokens or ctx ends. A wait that could not
// finish before the context deadline fails immediately.
func (l *Limiter) Wait(ctx context.Context, model string, tokens int) error {
	if !l.Enabled() {
		return nil
	}
	if err := l.forModel(model).WaitN(ctx, l.clamp(tokens)); err != nil {
		return fmt.Errorf("%w: %v", ErrRateLimit, err)
	}
	return nil
}

// Available returns the tokens currently available for model.
func (l *Limiter) Available(model string) int {
	if !l.Enabled() {
		return 0
	}
	return int(l.forModel(model).TokensAt(time.Now()))
}
