// Package poll implements the bounded retry loop used by every wait
// operation in portwatch.
//
// The loop is an explicit state machine:
//
//	Probing --matched--------------------> Matched
//	Probing --fatal----------------------> Failed
//	Probing --not yet, elapsed < timeout-> Waiting --interval--> Probing
//	Probing --not yet, elapsed >= timeout> TimedOut
//	Waiting --ctx done-------------------> Failed
//
// A probe reports one of three outcomes (Matched, NotYetMatched, Fatal).
// "Try again" is an outcome, not an error, so a real failure can never be
// mistaken for a retry signal. At least one probe is always made, so a zero
// timeout means exactly one attempt.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimedOut is returned by Until when the time budget ran out before a
// probe matched.
var ErrTimedOut = errors.New("poll: timed out")

// Outcome is the result of a single probe attempt.
type Outcome int

const (
	// NotYetMatched asks the loop to try again if time remains.
	NotYetMatched Outcome = iota

	// Matched ends the loop successfully.
	Matched

	// Fatal ends the loop with the error returned alongside it.
	Fatal
)

// State is a node of the retry state machine.
type State int

const (
	Probing State = iota
	Waiting
	StateMatched
	TimedOut
	Failed
)

func (s State) String() string {
	switch s {
	case Probing:
		return "probing"
	case Waiting:
		return "waiting"
	case StateMatched:
		return "matched"
	case TimedOut:
		return "timed-out"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Probe performs one attempt. A non-nil error is always treated as Fatal,
// whatever Outcome accompanies it.
type Probe func(ctx context.Context) (Outcome, error)

// Options configures Until.
type Options struct {
	// Interval is the pause between attempts. Values below MinInterval are
	// raised to MinInterval.
	Interval time.Duration

	// Timeout is the budget measured from the first attempt.
	Timeout time.Duration

	// OnTransition, if set, is called on every state change. It runs on the
	// polling goroutine and must not block.
	OnTransition func(from, to State, attempt int)
}

// MinInterval is the smallest pause Until will wait between attempts.
const MinInterval = time.Millisecond

// Stats describes a finished Until run.
type Stats struct {
	Attempts int
	Elapsed  time.Duration
	Final    State
}

// Until runs probe until it matches, fails, or the timeout elapses.
//
// It returns nil on Matched, ErrTimedOut on TimedOut, and the probe's error
// (or ctx.Err() if ctx ends while waiting) on Failed. Probes never overlap:
// the next attempt starts only after the previous one returned and the
// interval elapsed.
func Until(ctx context.Context, opts Options, probe Probe) (Stats, error) {
	interval := opts.Interval
	if interval < MinInterval {
		interval = MinInterval
	}

	var (
		stats = Stats{Final: Probing}
		start = time.Now()
		timer *time.Timer
		err   error
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	transition := func(to State) {
		if opts.OnTransition != nil {
			opts.OnTransition(stats.Final, to, stats.Attempts)
		}
		stats.Final = to
	}

	for {
		switch stats.Final {
		case Probing:
			stats.Attempts++
			outcome, perr := probe(ctx)
			switch {
			case perr != nil:
				err = perr
				transition(Failed)
			case outcome == Fatal:
				err = fmt.Errorf("poll: attempt %d reported a fatal outcome without an error", stats.Attempts)
				transition(Failed)
			case outcome == Matched:
				transition(StateMatched)
			case time.Since(start) < opts.Timeout:
				transition(Waiting)
			default:
				err = ErrTimedOut
				transition(TimedOut)
			}

		case Waiting:
			if timer == nil {
				timer = time.NewTimer(interval)
			} else {
				timer.Reset(interval)
			}
			select {
			case <-ctx.Done():
				err = ctx.Err()
				transition(Failed)
			case <-timer.C:
				transition(Probing)
			}

		default:
			stats.Elapsed = time.Since(start)
			return stats, err
		}
	}
}
