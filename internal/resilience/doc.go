// Package resilience provides reliability patterns for calls that leave the
// process: retry with exponential backoff and jitter, fixed-delay retry for
// queue publishes, and a circuit breaker guarding the provider gateway.
//
//	cb := circuitbreaker.New(circuitbreaker.ProviderConfig())
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return callGateway()
//	})
//
//	err := retry.WithBackoff(ctx, retry.DefaultConfig(), func() error {
//	    return performOperation()
//	})
package resilience
