package payments

import (
	"errors"
	"time"

	"github.com/omar4917/real-estate-project/internal/log"
	"github.com/sony/gobreaker"
)

// newBreaker trips after five consecutive upstream failures and lets a trial call through again
// after 30s. Configuration errors never reach it.
func newBreaker(name Name) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(name),
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Security(nil, "payment.provider.breaker", map[string]any{
				"provider": name, "from": from.String(), "to": to.String(),
			})
		},
	})
}

// guard runs fn through cb and maps breaker rejections to ProviderError.
func guard[T any](cb *gobreaker.CircuitBreaker, provider Name, op string, fn func() (T, error)) (T, error) {
	var zero T
	out, err := cb.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, &ProviderError{Provider: provider, Op: op, Err: err}
		}
		return zero, err
	}
	return out.(T), nil
}
