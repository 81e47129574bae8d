package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// probeStat aggregates the probes of one strategy/result pair.
type probeStat struct {
	Strategy string  `json:"strategy"`
	Result   string  `json:"result"`
	Count    uint64  `json:"count"`
	TotalMs  float64 `json:"totalMs"`
}

// collectStats reads the probe duration histogram, which carries both the
// number of probes and their total time.
func collectStats(ctx context.Context, reader *sdkmetric.ManualReader) ([]probeStat, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("failed to collect probe metrics: %w", err)
	}

	var stats []probeStat
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			hist, ok := m.Data.(metricdata.Histogram[float64])
			if !ok || m.Name != "portwatch.probe.duration" {
				continue
			}
			for _, dp := range hist.DataPoints {
				strategy, _ := dp.Attributes.Value("strategy")
				result, _ := dp.Attributes.Value("result")
				stats = append(stats, probeStat{
					Strategy: strategy.AsString(),
					Result:   result.AsString(),
					Count:    dp.Count,
					TotalMs:  dp.Sum,
				})
			}
		}
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Strategy != stats[j].Strategy {
			return stats[i].Strategy < stats[j].Strategy
		}
		return stats[i].Result < stats[j].Result
	})
	return stats, nil
}

// printStats writes the probe summary for --stats to w.
func printStats(ctx context.Context, w io.Writer, reader *sdkmetric.ManualReader) error {
	stats, err := collectStats(ctx, reader)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		if stats == nil {
			stats = []probeStat{}
		}
		return printJSON(w, struct {
			Probes []probeStat `json:"probes"`
		}{Probes: stats})
	}

	if len(stats) == 0 {
		_, err := fmt.Fprintln(w, "probes: none")
		return err
	}
	for _, s := range stats {
		total := time.Duration(s.TotalMs * float64(time.Millisecond))
		if _, err := fmt.Fprintf(w, "probes: %-7s %-6s %4d  total %s\n",
			s.Strategy, s.Result, s.Count, total.Round(time.Microsecond)); err != nil {
			return err
		}
	}
	return nil
}
