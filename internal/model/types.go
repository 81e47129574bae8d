// Package model defines the domain types for the portwatch CLI.
//
// All request types in this package are plain values. Defaults are applied
// by the New* constructors rather than by zero values, because several
// zero values carry meaning (Retrieve == 0 asks for no ports at all,
// Timeout == 0 asks for exactly one attempt).
package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MinPort is the lowest valid TCP port number.
	MinPort = 1

	// MaxPort is the highest valid TCP port number (2^16 - 1).
	MaxPort = 65535

	// DefaultRetryInterval is the pause between two wait attempts.
	DefaultRetryInterval = 100 * time.Millisecond

	// DefaultWaitTimeout is the time budget of a wait operation.
	DefaultWaitTimeout = 5000 * time.Millisecond

	// MinRetryInterval is the floor applied to every retry interval. A zero
	// or negative interval would turn the wait loop into a busy spin.
	MinRetryInterval = time.Millisecond
)

// Strategy identifies how a port is probed for a given host.
//
// Bind probing opens a listening socket and is only possible for addresses
// owned by this machine. Connect probing dials the port and works for any
// reachable host, but a refused connect costs about one second per check on
// Windows, so it is used only when the host is not known to be local.
type Strategy int

const (
	// StrategyBind probes by attempting to listen on host:port.
	StrategyBind Strategy = iota

	// StrategyConnect probes by attempting an outbound connection to host:port.
	StrategyConnect
)

// String returns the lowercase name of the strategy. This method satisfies
// the fmt.Stringer interface and is used in log fields and JSON output.
func (s Strategy) String() string {
	switch s {
	case StrategyBind:
		return "bind"
	case StrategyConnect:
		return "connect"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// PortStatus renders an in-use flag the way the CLI reports it.
type PortStatus bool

const (
	// StatusInUse means something is listening on the port.
	StatusInUse PortStatus = true

	// StatusFree means nothing is listening on the port.
	StatusFree PortStatus = false
)

// String returns "in use" or "free".
func (s PortStatus) String() string {
	if s {
		return "in use"
	}
	return "free"
}

// ValidatePort checks that port lies in [MinPort, MaxPort].
func ValidatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return &InvalidPortError{Port: port}
	}
	return nil
}

// IsLocalhostName reports whether host is the literal name "localhost",
// compared case-insensitively.
func IsLocalhostName(host string) bool {
	return strings.EqualFold(host, "localhost")
}

// FreePortRequest describes a search for free ports in [Min, Max].
type FreePortRequest struct {
	// Min is the first port probed.
	Min int `json:"min"`

	// Max is the last port probed (inclusive).
	Max int `json:"max"`

	// Retrieve is the number of ports needed. A value <= 0 is satisfied
	// immediately with an empty result and no probing at all.
	Retrieve int `json:"retrieve"`

	// Consecutive requires the returned ports to form a gap-free run.
	Consecutive bool `json:"consecutive"`

	// Host is the address the ports are checked on. Empty means the
	// system default bind address.
	Host string `json:"host"`
}

// NewFreePortRequest returns a request for a single free port in
// [min, max] on host, matching the documented defaults.
func NewFreePortRequest(min, max int, host string) FreePortRequest {
	return FreePortRequest{
		Min:      min,
		Max:      max,
		Retrieve: 1,
		Host:     host,
	}
}

// Validate checks the port range of the request. Retrieve is not validated
// because any value <= 0 is a legal "nothing needed" request.
func (r FreePortRequest) Validate() error {
	if err := ValidatePort(r.Min); err != nil {
		return err
	}
	if err := ValidatePort(r.Max); err != nil {
		return err
	}
	if r.Min > r.Max {
		return &InvalidPortError{Port: r.Min, Reason: fmt.Sprintf("range start %d is above range end %d", r.Min, r.Max)}
	}
	return nil
}

// WaitRequest describes a poll until a port reaches the desired state.
type WaitRequest struct {
	// Port is the port to watch.
	Port int `json:"port"`

	// Host is the address to watch the port on.
	Host string `json:"host"`

	// DesiredInUse is true to wait for the port to open, false to wait
	// for it to close.
	DesiredInUse bool `json:"desiredInUse"`

	// RetryInterval is the pause between attempts. Clamped to
	// MinRetryInterval by Normalize.
	RetryInterval time.Duration `json:"retryInterval"`

	// Timeout is the total budget measured from the first attempt. At
	// least one attempt is always made, so zero means exactly one.
	Timeout time.Duration `json:"timeout"`

	// CheckAliases makes each bind attempt cover every local alias
	// instead of only the literal host. Ignored for connect probing.
	CheckAliases bool `json:"checkAliases"`
}

// NewWaitRequest returns a WaitRequest with the default retry interval,
// timeout and alias checking enabled.
func NewWaitRequest(port int, host string, desiredInUse bool) WaitRequest {
	return WaitRequest{
		Port:          port,
		Host:          host,
		DesiredInUse:  desiredInUse,
		RetryInterval: DefaultRetryInterval,
		Timeout:       DefaultWaitTimeout,
		CheckAliases:  true,
	}
}

// Normalize returns a copy with RetryInterval clamped to MinRetryInterval
// and a negative Timeout raised to zero.
func (r WaitRequest) Normalize() WaitRequest {
	if r.RetryInterval < MinRetryInterval {
		r.RetryInterval = MinRetryInterval
	}
	if r.Timeout < 0 {
		r.Timeout = 0
	}
	return r
}

// Validate checks the port of the request.
func (r WaitRequest) Validate() error {
	return ValidatePort(r.Port)
}

// ExitCode defines the CLI exit codes. These codes allow scripts and CI
// systems to tell a timed-out wait apart from a failed one.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigError indicates the configuration file could not be read,
	// parsed or validated.
	ExitConfigError ExitCode = 2

	// ExitPortInUse indicates a port expected to be free is in use.
	ExitPortInUse ExitCode = 3

	// ExitInsufficientPorts indicates a free-port search exhausted its
	// range before finding enough ports.
	ExitInsufficientPorts ExitCode = 4

	// ExitTimeout indicates a wait operation ran out of time.
	ExitTimeout ExitCode = 5

	// ExitUnexpectedBind indicates a bind probe failed for a reason other
	// than the address being in use.
	ExitUnexpectedBind ExitCode = 6
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
