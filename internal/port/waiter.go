package port

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/portwatch/internal/model"
	"github.com/shinji-kodama/portwatch/internal/poll"
)

// WaitForStatus polls req.Port until its in-use state equals
// req.DesiredInUse.
//
// The first attempt is made immediately. While the state does not match
// and less than req.Timeout has passed since that first attempt, the next
// attempt follows after req.RetryInterval (at least one millisecond). Once
// the budget is spent the wait fails with a *model.TimeoutError, which
// matches model.ErrTimeout. A probe error ends the wait at once and is
// returned unchanged. A zero timeout therefore means exactly one attempt.
//
// For a non-local host the whole wait is delegated to the connect prober.
func (s *Scanner) WaitForStatus(ctx context.Context, req model.WaitRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	req = req.Normalize()

	strategy, err := s.SelectStrategy(req.Host)
	if err != nil {
		return err
	}

	log := s.logger.WithFields(logrus.Fields{
		"host":     req.Host,
		"port":     req.Port,
		"desired":  model.PortStatus(req.DesiredInUse).String(),
		"strategy": strategy.String(),
	})

	if strategy == model.StrategyConnect {
		log.Debug("waiting with connect probes")
		return s.connect.WaitForStatus(ctx, req.Port, req.Host, req.DesiredInUse, req.RetryInterval, req.Timeout)
	}

	opts := poll.Options{
		Interval: req.RetryInterval,
		Timeout:  req.Timeout,
		OnTransition: func(from, to poll.State, attempt int) {
			log.WithFields(logrus.Fields{
				"from":    from.String(),
				"to":      to.String(),
				"attempt": attempt,
			}).Debug("wait state changed")
		},
	}
	stats, err := poll.Until(ctx, opts, func(ctx context.Context) (poll.Outcome, error) {
		inUse, err := s.probe(ctx, strategy, req.Port, req.Host, req.CheckAliases)
		if err != nil {
			return poll.Fatal, err
		}
		if inUse == req.DesiredInUse {
			return poll.Matched, nil
		}
		return poll.NotYetMatched, nil
	})
	if errors.Is(err, poll.ErrTimedOut) {
		return model.NewTimeoutError(req.Port, req.Host, req.Timeout, stats.Attempts)
	}
	return err
}

// WaitForPortOpen waits until something listens on req.Port.
// req.DesiredInUse is ignored.
func (s *Scanner) WaitForPortOpen(ctx context.Context, req model.WaitRequest) error {
	req.DesiredInUse = true
	return s.WaitForStatus(ctx, req)
}

// WaitForPortClosed waits until nothing listens on req.Port.
// req.DesiredInUse is ignored.
func (s *Scanner) WaitForPortClosed(ctx context.Context, req model.WaitRequest) error {
	req.DesiredInUse = false
	return s.WaitForStatus(ctx, req)
}
