package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"listingshots/internal/imagegen"
	"listingshots/internal/infra"
)

// BreakerOptions configures per-model circuit breakers.
type BreakerOptions struct {
	// FailureThreshold is the number of consecutive transient failures that
	// opens a model's breaker. Zero disables breaking.
	FailureThreshold uint32
	// OpenTimeout is how long an open breaker rejects calls before letting a
	// probe through.
	OpenTimeout time.Duration
	Logger      *infra.Logger
}

// Breaker guards a provider with one circuit breaker per model. While a
// model's breaker is open, calls fail fast with a retryable 503 so the
// cascade moves on to the next model.
type Breaker struct {
	next     imagegen.Provider
	opts     BreakerOptions
	logger   *infra.Logger
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[imagegen.ProviderResult]
}

func NewBreaker(next imagegen.Provider, opts BreakerOptions) *Breaker {
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	return &Breaker{
		next:     next,
		opts:     opts,
		logger:   infra.LoggerOrDiscard(opts.Logger),
		breakers: make(map[string]*gobreaker.CircuitBreaker[imagegen.ProviderResult]),
	}
}

// Generate implements imagegen.Provider.
func (b *Breaker) Generate(ctx context.Context, req imagegen.ProviderRequest) (imagegen.ProviderResult, error) {
	if b.opts.FailureThreshold == 0 {
		return b.next.Generate(ctx, req)
	}
	res, err := b.breakerFor(req.Model).Execute(func() (imagegen.ProviderResult, error) {
		return b.next.Generate(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return imagegen.ProviderResult{}, &imagegen.ProviderError{
			Status:  http.StatusServiceUnavailable,
			Message: "model " + req.Model + " temporarily unavailable: " + err.Error(),
			Err:     err,
		}
	}
	return res, err
}

// States reports the breaker state ("closed", "half-open" or "open") of
// each model. A disabled breaker reports every model closed.
func (b *Breaker) States(models []string) map[string]string {
	out := make(map[string]string, len(models))
	for _, model := range models {
		out[model] = b.state(model).String()
	}
	return out
}

func (b *Breaker) state(model string) gobreaker.State {
	if b.opts.FailureThreshold == 0 {
		return gobreaker.StateClosed
	}
	return b.breakerFor(model).State()
}

func (b *Breaker) breakerFor(model string) *gobreaker.CircuitBreaker[imagegen.ProviderResult] {
	key := strings.ToLower(strings.TrimSpace(model))
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[key]; ok {
		return cb
	}
	threshold := b.opts.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[imagegen.ProviderResult](gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Timeout:     b.opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Only transient provider failures count against a model.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return !imagegen.IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn().Str("model", name).Str("from", from.String()).Str("to", to.String()).Msg("provider breaker state changed")
		},
	})
	b.breakers[key] = cb
	return cb
}
