package detect

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"oracleScope/internal/model"
)

// Suite runs a set of independent detectors over the same inputs.
type Suite struct {
	detectors []Detector
	logger    *zap.Logger
}

// NewSuite builds a suite over detectors.
func NewSuite(logger *zap.Logger, detectors ...Detector) *Suite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{detectors: detectors, logger: logger}
}

// NewDefaultSuite validates cfg and returns a suite with every detector.
func NewDefaultSuite(cfg Config, logger *zap.Logger) (*Suite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewSuite(logger, All(cfg)...), nil
}

// Detectors returns the detector names in run order.
func (s *Suite) Detectors() []string {
	names := make([]string, 0, len(s.detectors))
	for _, d := range s.detectors {
		names = append(names, d.Name())
	}
	return names
}

// Evaluate runs every detector unconditionally. A failing detector contributes a
// detector_failure flag and an error, and never stops the others.
func (s *Suite) Evaluate(point model.BenchmarkPoint, tick model.CrossVenueTick, window []model.BenchmarkPoint) (model.FlagSet, error) {
	var (
		flags []model.Flag
		errs  error
	)
	for _, d := range s.detectors {
		out, err := run(d, point, tick, window)
		if err != nil {
			s.logger.Warn("detector failed",
				zap.String("detector", d.Name()),
				zap.Int64("ts", point.Timestamp),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			flags = append(flags, model.Flag{
				Detector:  d.Name(),
				Kind:      model.KindDetectorFailure,
				Timestamp: point.Timestamp,
				Severity:  model.SeverityMedium,
				Message:   err.Error(),
			})
			continue
		}
		flags = append(flags, out...)
	}
	return model.NewFlagSet(flags), errs
}

func run(d Detector, point model.BenchmarkPoint, tick model.CrossVenueTick, window []model.BenchmarkPoint) (flags []model.Flag, err error) {
	defer func() {
		if r := recover(); r != nil {
			flags = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.Evaluate(point, tick, window)
}
