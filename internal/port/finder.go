package port

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/portwatch/internal/model"
)

// ScanReport describes a finished or aborted free-port scan.
type ScanReport struct {
	// Free holds the accumulated free ports. On success its length equals
	// the requested count.
	Free []int

	// Busy lists every port found in use. Diagnostic only.
	Busy []int

	// Strategy is the probing strategy used for the whole scan.
	Strategy model.Strategy

	// Probes is the number of ports probed.
	Probes int
}

// FindResult is delivered by FindFreePortsAsync.
type FindResult struct {
	Ports []int
	Err   error
}

// FindFreePorts returns req.Retrieve free ports from [req.Min, req.Max].
// See ScanFreePorts for the scan rules.
func (s *Scanner) FindFreePorts(ctx context.Context, req model.FreePortRequest) ([]int, error) {
	report, err := s.ScanFreePorts(ctx, req)
	if err != nil {
		return nil, err
	}
	return report.Free, nil
}

// FindFreePortsAsync runs FindFreePorts on its own goroutine and delivers
// the single result on the returned channel, which is then closed.
func (s *Scanner) FindFreePortsAsync(ctx context.Context, req model.FreePortRequest) <-chan FindResult {
	out := make(chan FindResult, 1)
	go func() {
		defer close(out)
		ports, err := s.FindFreePorts(ctx, req)
		out <- FindResult{Ports: ports, Err: err}
	}()
	return out
}

// ScanFreePorts probes ports upward from req.Min, one at a time, until
// req.Retrieve free ports have been accumulated.
//
// With req.Consecutive, the accumulated list restarts whenever a free port
// is not exactly one above the last accumulated port, so the result is a
// gap-free run. A request for zero or fewer ports succeeds immediately
// without probing. Reaching req.Max first yields a
// *model.InsufficientPortsError; a probe error aborts the scan. The report
// is returned in every case.
func (s *Scanner) ScanFreePorts(ctx context.Context, req model.FreePortRequest) (*ScanReport, error) {
	report := &ScanReport{Free: []int{}}
	needed := req.Retrieve
	if needed <= 0 {
		return report, nil
	}
	if err := req.Validate(); err != nil {
		return report, err
	}

	// The host is fixed for the whole scan, so the strategy is too.
	strategy, err := s.SelectStrategy(req.Host)
	if err != nil {
		return report, err
	}
	report.Strategy = strategy

	log := s.logger.WithFields(logrus.Fields{
		"host":     req.Host,
		"strategy": strategy.String(),
	})

	for port := req.Min; port <= req.Max; port++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		start := time.Now()
		inUse, err := s.probe(ctx, strategy, port, req.Host, true)
		elapsed := time.Since(start)
		report.Probes++
		if err != nil {
			return report, err
		}

		if inUse {
			report.Busy = append(report.Busy, port)
		} else {
			if req.Consecutive && len(report.Free) > 0 && port != report.Free[len(report.Free)-1]+1 {
				log.WithField("port", port).Debug("gap in consecutive run, restarting")
				report.Free = report.Free[:0]
			}
			report.Free = append(report.Free, port)
		}

		log.WithFields(logrus.Fields{
			"port":    port,
			"status":  model.PortStatus(inUse).String(),
			"found":   len(report.Free),
			"needed":  needed,
			"elapsed": elapsed,
		}).Debug("probed port")

		if len(report.Free) == needed {
			return report, nil
		}
	}

	return report, &model.InsufficientPortsError{
		Found:  len(report.Free),
		Needed: needed,
		Min:    req.Min,
		Max:    req.Max,
	}
}
