package worker

import (
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// ResilienceConfig configures retry and circuit-breaker policies wrapping
// the Fallback Broker's live fetch (§4.6). Adapted from the teacher's
// resilience.go (ResilienceConfig/RetryPolicyBuilder/CircuitBreakerBuilder),
// retargeted at *http.Response instead of a RoundTripper's result.
// Resilience is opt-in: a zero-value FallbackBroker never wraps its fetch.
type ResilienceConfig struct {
	// RetryPolicy configures retry behavior using failsafe-go. Nil disables
	// retry.
	RetryPolicy retrypolicy.RetryPolicy[*http.Response]

	// CircuitBreaker configures circuit-breaker behavior using
	// failsafe-go. Nil disables it.
	CircuitBreaker circuitbreaker.CircuitBreaker[*http.Response]
}

// RetryPolicyBuilder returns a pre-configured retry builder: retries on
// transport errors and 5xx responses, up to three retries (four attempts
// in all), 100ms-10s backoff.
func RetryPolicyBuilder() retrypolicy.Builder[*http.Response] {
	return retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(r *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode >= 500
		}).
		WithMaxRetries(3).
		WithBackoff(100*time.Millisecond, 10*time.Second)
}

// CircuitBreakerBuilder returns a pre-configured circuit breaker builder:
// opens after 5 consecutive failures, half-open after 60s.
func CircuitBreakerBuilder() circuitbreaker.Builder[*http.Response] {
	return circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(r *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode >= 500
		}).
		WithFailureThreshold(5).
		WithSuccessThreshold(2).
		WithDelay(60 * time.Second)
}

// execute runs fn directly, or through cfg's policies if any are
// configured, the way the teacher's Transport.executeWithResilience does
// for RoundTrip.
func execute(cfg *ResilienceConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	if cfg == nil {
		return fn()
	}

	var policies []failsafe.Policy[*http.Response]
	if cfg.RetryPolicy != nil {
		policies = append(policies, cfg.RetryPolicy)
	}
	if cfg.CircuitBreaker != nil {
		policies = append(policies, cfg.CircuitBreaker)
	}
	if len(policies) == 0 {
		return fn()
	}
	return failsafe.With(policies...).Get(fn)
}
