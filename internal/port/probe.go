package port

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/portwatch/internal/model"
	"github.com/shinji-kodama/portwatch/internal/sockerr"
)

// IsPortInUse bind-probes a single host:port. It should only be used with
// a host this machine can bind; IsPortInUseEx is the general-purpose check.
//
// It returns true when the bind fails because the address is occupied and
// false when the bind succeeds. Any other bind failure is returned as a
// *model.UnexpectedBindError.
func (s *Scanner) IsPortInUse(ctx context.Context, port int, host string) (bool, error) {
	if err := model.ValidatePort(port); err != nil {
		return false, err
	}
	return s.probe(ctx, model.StrategyBind, port, host, false)
}

// IsPortInUseEx checks port on host with the strategy SelectStrategy picks.
// For a local host it reports in use if any local alias has the port bound;
// for any other host it dials host:port.
func (s *Scanner) IsPortInUseEx(ctx context.Context, port int, host string) (bool, error) {
	if err := model.ValidatePort(port); err != nil {
		return false, err
	}
	strategy, err := s.SelectStrategy(host)
	if err != nil {
		return false, err
	}
	return s.probe(ctx, strategy, port, host, true)
}

// probe runs one logical check and records its metrics. With the bind
// strategy, acrossAliases selects the alias fan-out over a single bind on
// host.
func (s *Scanner) probe(ctx context.Context, strategy model.Strategy, port int, host string, acrossAliases bool) (bool, error) {
	start := time.Now()

	var (
		inUse bool
		err   error
	)
	switch {
	case strategy == model.StrategyConnect:
		inUse, err = s.connect.Check(ctx, port, host)
	case acrossAliases:
		inUse, err = s.bindAcrossAliases(ctx, port)
	default:
		inUse, err = s.bind(ctx, port, host)
	}

	s.metrics.record(ctx, strategy, inUse, err, time.Since(start))
	return inUse, err
}

// bindAcrossAliases bind-probes port on every local alias, strictly one
// after another in list order, and stops at the first alias that reports
// in use. Free is only reported once every alias was probed. The first
// bind failure aborts the sweep.
//
// The one exception is the fixed IPv6 loopback: on a host with IPv6
// disabled ::1 cannot be bound at all, and therefore cannot hold a
// listener either, so that alias is skipped instead of failing the check.
func (s *Scanner) bindAcrossAliases(ctx context.Context, port int) (bool, error) {
	aliases, err := s.aliases.Aliases()
	if err != nil {
		return false, err
	}

	for _, alias := range aliases {
		inUse, err := s.bind(ctx, port, alias)
		if err != nil {
			if alias == ipv6Loopback && sockerr.IsAddrNotAvailable(err) {
				s.logger.WithFields(logrus.Fields{
					"host": alias,
					"port": port,
				}).Debug("IPv6 loopback unavailable on this machine, skipping")
				continue
			}
			return false, err
		}
		if inUse {
			return true, nil
		}
	}
	return false, nil
}

// bindProbe tries to listen on host:port. The listener, when one is
// obtained, is closed before returning.
func (s *Scanner) bindProbe(ctx context.Context, port int, host string) (bool, error) {
	ln, err := s.listenConfig.Listen(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		if sockerr.IsAddrInUse(err) {
			return true, nil
		}
		return false, &model.UnexpectedBindError{Host: host, Port: port, Err: err}
	}
	if err := ln.Close(); err != nil {
		return false, &model.UnexpectedBindError{Host: host, Port: port, Err: err}
	}
	return false, nil
}
