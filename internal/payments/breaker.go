package payments

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/learnhub/backend/pkg/metrics"
)

// breakerProvider decorates a Provider with a circuit breaker around order
// creation, the only call on the checkout hot path. An open breaker or a
// provider timeout both surface as ErrGatewayTimeout.
type breakerProvider struct {
	Provider
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

// WithBreaker wraps a provider with a circuit breaker.
func WithBreaker(p Provider, timeout time.Duration, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        p.Name() + "-orders",
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			var state float64
			switch to {
			case gobreaker.StateOpen:
				state = 1
			case gobreaker.StateHalfOpen:
				state = 2
			}
			metrics.GatewayBreakerState.Set(state)
			logger.Warn("gateway circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &breakerProvider{Provider: p, cb: cb, timeout: timeout}
}

// CreateOrder runs the wrapped call through the breaker with a per-call
// timeout.
func (b *breakerProvider) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		return b.Provider.CreateOrder(callCtx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) ||
			errors.Is(err, context.DeadlineExceeded) {
			return CreateOrderResponse{}, ErrGatewayTimeout
		}
		return CreateOrderResponse{}, err
	}
	return result.(CreateOrderResponse), nil
}
