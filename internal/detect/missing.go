package detect

import (
	"fmt"

	"oracleScope/internal/model"
)

// MissingBenchmark emits exactly one flag for a tick without a benchmark.
type MissingBenchmark struct{}

func (MissingBenchmark) Name() string { return NameMissingBenchmark }

func (MissingBenchmark) Evaluate(point model.BenchmarkPoint, tick model.CrossVenueTick, _ []model.BenchmarkPoint) ([]model.Flag, error) {
	if point.Defined {
		return nil, nil
	}
	return []model.Flag{{
		Detector:  NameMissingBenchmark,
		Kind:      model.KindMissingBenchmark,
		Timestamp: point.Timestamp,
		Severity:  model.SeverityCritical,
		Score:     1,
		Message:   fmt.Sprintf("no valid venue among %d samples", len(tick.Samples)),
	}}, nil
}
