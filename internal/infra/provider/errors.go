package provider

import "errors"

// ClientError represents a 4xx rejection from the provider gateway.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx error from the provider gateway.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// IsRetryable reports whether the error is worth retrying (5xx server errors,
// network errors, tripped circuit). Client errors (4xx) are not retryable.
func IsRetryable(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}

	// Server errors, network errors and an open circuit are all worth
	// another attempt later.
	return true
}
