package deliver

import (
	"errors"
	"fmt"
)

// ErrRateLimited signals that the channel's delivery window is exhausted. The
// job goes back on the queue and resolves at the next window.
var ErrRateLimited = errors.New("channel rate limit exceeded")

// TerminalError wraps a failure that retrying cannot fix: an unresolvable
// template, a missing body blob reference, or a 4xx rejection by the gateway.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("terminal delivery failure: %v", e.Err)
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// IsTerminal reports whether err must not be retried.
func IsTerminal(err error) bool {
	var terminal *TerminalError
	return errors.As(err, &terminal)
}
