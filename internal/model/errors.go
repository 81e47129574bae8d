package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is matched (via errors.Is) by every TimeoutError. Callers use
// it to tell "the port never reached the desired state" apart from "the
// probe itself failed", since the two need different responses.
var ErrTimeout = errors.New("timeout")

// TimeoutError reports a wait that exhausted its time budget.
type TimeoutError struct {
	Port     int
	Host     string
	Timeout  time.Duration
	Attempts int
}

// NewTimeoutError builds a TimeoutError for the given wait.
func NewTimeoutError(port int, host string, timeout time.Duration, attempts int) *TimeoutError {
	return &TimeoutError{Port: port, Host: host, Timeout: timeout, Attempts: attempts}
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: port %d on %q did not reach the desired state within %v (%d attempts)",
		e.Port, e.Host, e.Timeout, e.Attempts)
}

// Is makes errors.Is(err, ErrTimeout) true for any TimeoutError.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// InsufficientPortsError reports a free-port search that reached the end
// of its range before collecting the requested number of ports.
type InsufficientPortsError struct {
	Found  int
	Needed int
	Min    int
	Max    int
}

func (e *InsufficientPortsError) Error() string {
	return fmt.Sprintf("only found %d of %d ports in range %d-%d", e.Found, e.Needed, e.Min, e.Max)
}

// UnexpectedBindError reports a bind probe that failed for any reason
// other than the address already being in use. It is never folded into a
// free/in-use answer.
type UnexpectedBindError struct {
	Host string
	Port int
	Err  error
}

func (e *UnexpectedBindError) Error() string {
	return fmt.Sprintf("unexpected error binding %q port %d: %v", e.Host, e.Port, e.Err)
}

// Unwrap returns the underlying socket error.
func (e *UnexpectedBindError) Unwrap() error {
	return e.Err
}

// InvalidPortError reports a port or port range outside [MinPort, MaxPort].
type InvalidPortError struct {
	Port   int
	Reason string
}

func (e *InvalidPortError) Error() string {
	if e.Reason != "" {
		return "invalid port range: " + e.Reason
	}
	return fmt.Sprintf("invalid port %d (valid: %d-%d)", e.Port, MinPort, MaxPort)
}
