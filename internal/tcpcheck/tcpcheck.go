// Package tcpcheck answers "is anything listening on host:port?" by dialing
// the port. It works for any reachable host, local or remote.
//
// A successful connect means in use. A refused connect means free. A dial
// that times out is also reported as free: nothing answered within the
// dial budget, so nothing observable is listening, even if a firewall is
// hiding a real listener. Every other dial error
// (unreachable network, unknown host) is returned to the caller.
//
// The wait operations share the retry semantics of the bind-based waits in
// package port: at least one attempt, a fixed retry interval, and a
// distinguishable model.ErrTimeout on expiry.
package tcpcheck

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/shinji-kodama/portwatch/internal/model"
	"github.com/shinji-kodama/portwatch/internal/poll"
	"github.com/shinji-kodama/portwatch/internal/sockerr"
)

// DefaultDialTimeout bounds a single connect attempt.
const DefaultDialTimeout = time.Second

// Checker probes ports with outbound TCP connections.
type Checker struct {
	dialTimeout time.Duration
}

// New returns a Checker whose dials give up after dialTimeout. A
// non-positive value selects DefaultDialTimeout.
func New(dialTimeout time.Duration) *Checker {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &Checker{dialTimeout: dialTimeout}
}

// Check reports whether something accepts connections on host:port.
// An empty host dials the local system, as net.Dial does.
//
// A refused connection is free. A dial that times out is also reported as
// free, which means a listener behind a firewall that silently drops the
// connection attempt is reported as free too. Any other dial error is
// returned.
func (c *Checker) Check(ctx context.Context, port int, host string) (bool, error) {
	if err := model.ValidatePort(port); err != nil {
		return false, err
	}

	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		// A cancelled parent context is the caller's decision, not a
		// property of the port.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, classifyDialError(err)
	}
	_ = conn.Close()
	return true, nil
}

// classifyDialError returns nil for the dial failures that mean "nothing is
// listening" (refused, timed out) and err for everything else.
func classifyDialError(err error) error {
	if sockerr.IsConnRefused(err) || sockerr.IsTimeout(err) {
		return nil
	}
	return err
}

// WaitForStatus polls Check every retry until the port's in-use state
// equals inUse. It returns a *model.TimeoutError once timeout has elapsed
// since the first attempt, or the first Check error.
func (c *Checker) WaitForStatus(ctx context.Context, port int, host string, inUse bool, retry, timeout time.Duration) error {
	if err := model.ValidatePort(port); err != nil {
		return err
	}

	opts := poll.Options{Interval: retry, Timeout: timeout}
	stats, err := poll.Until(ctx, opts, func(ctx context.Context) (poll.Outcome, error) {
		used, err := c.Check(ctx, port, host)
		if err != nil {
			return poll.Fatal, err
		}
		if used == inUse {
			return poll.Matched, nil
		}
		return poll.NotYetMatched, nil
	})
	if errors.Is(err, poll.ErrTimedOut) {
		return model.NewTimeoutError(port, host, timeout, stats.Attempts)
	}
	return err
}

// WaitUntilUsed waits for something to start listening on host:port.
func (c *Checker) WaitUntilUsed(ctx context.Context, port int, host string, retry, timeout time.Duration) error {
	return c.WaitForStatus(ctx, port, host, true, retry, timeout)
}

// WaitUntilFree waits for the listener on host:port to go away.
func (c *Checker) WaitUntilFree(ctx context.Context, port int, host string, retry, timeout time.Duration) error {
	return c.WaitForStatus(ctx, port, host, false, retry, timeout)
}
