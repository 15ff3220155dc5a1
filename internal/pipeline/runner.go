package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"oracleScope/internal/benchmark"
	"oracleScope/internal/detect"
	"oracleScope/internal/model"
	"oracleScope/internal/storage"
)

// Config wires the aggregator and detector thresholds together.
type Config struct {
	Benchmark benchmark.Config
	Detect    detect.Config
	// HistoryWindow is raised to what the detectors need when smaller.
	HistoryWindow int
	// BatchSize is the number of reports buffered before the sink is called.
	BatchSize int
}

// Stats counts what a run has produced so far.
type Stats struct {
	Ticks       int
	Undefined   int
	Rejected    int
	Flagged     int
	Flags       int
	ByKind      map[model.FlagKind]int
	LastTS      int64
	MaxSeverity model.Severity
}

// Runner drives ticks through aggregation, history and detection and hands the
// resulting reports to a sink. It owns the history and is not safe for concurrent use.
type Runner struct {
	cfg     Config
	suite   *detect.Suite
	history *benchmark.History
	sink    storage.ReportSink
	logger  *zap.Logger

	pending []model.Report
	stats   Stats
	started bool
}

// NewRunner validates cfg and builds a runner with the default detector suite.
// sink may be nil when only the returned reports matter.
func NewRunner(cfg Config, sink storage.ReportSink, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Benchmark.StaleAfter < 0 {
		return nil, fmt.Errorf("stale-after must be >= 0: %w", model.ErrInvalidInput)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	suite, err := detect.NewDefaultSuite(cfg.Detect, logger)
	if err != nil {
		return nil, err
	}
	window := cfg.Detect.HistoryWindow()
	if cfg.HistoryWindow > window {
		window = cfg.HistoryWindow
	}
	cfg.HistoryWindow = window

	return &Runner{
		cfg:     cfg,
		suite:   suite,
		history: benchmark.NewHistory(window),
		sink:    sink,
		logger:  logger,
		stats:   Stats{ByKind: make(map[model.FlagKind]int)},
	}, nil
}

// Step processes one tick. A malformed tick is logged and reported as a missing
// benchmark; a timestamp older than the previous tick aborts with ErrInvalidInput.
func (r *Runner) Step(ctx context.Context, tick model.CrossVenueTick) (model.Report, error) {
	if r.started && tick.Timestamp < r.stats.LastTS {
		return model.Report{}, fmt.Errorf("tick %d after %d: timestamp regression: %w", tick.Timestamp, r.stats.LastTS, model.ErrInvalidInput)
	}
	r.started = true
	r.stats.LastTS = tick.Timestamp

	point, err := benchmark.Aggregate(tick, r.cfg.Benchmark, tick.Timestamp)
	if err != nil {
		if !errors.Is(err, model.ErrInvalidInput) {
			return model.Report{}, fmt.Errorf("aggregate tick %d: %w", tick.Timestamp, err)
		}
		r.stats.Rejected++
		r.logger.Warn("tick rejected", zap.Int64("ts", tick.Timestamp), zap.Error(err))
	}

	// Detector errors are already logged and surfaced as detector_failure flags.
	flags, _ := r.suite.Evaluate(point, tick, r.history.Points())
	r.history.Append(point)

	report := model.Report{Timestamp: tick.Timestamp, Point: point, Flags: flags}
	r.record(report)

	r.pending = append(r.pending, report)
	if len(r.pending) >= r.cfg.BatchSize {
		if err := r.Flush(ctx); err != nil {
			return report, err
		}
	}
	return report, nil
}

// Run steps through ticks in order and flushes at the end.
func (r *Runner) Run(ctx context.Context, ticks []model.CrossVenueTick) ([]model.Report, error) {
	reports := make([]model.Report, 0, len(ticks))
	for _, tick := range ticks {
		select {
		case <-ctx.Done():
			return reports, ctx.Err()
		default:
		}

		report, err := r.Step(ctx, tick)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	if err := r.Flush(ctx); err != nil {
		return reports, err
	}

	r.logger.Info("run complete",
		zap.Int("ticks", r.stats.Ticks),
		zap.Int("undefined", r.stats.Undefined),
		zap.Int("flagged", r.stats.Flagged),
		zap.Int("flags", r.stats.Flags),
	)
	return reports, nil
}

// Flush hands buffered reports to the sink.
func (r *Runner) Flush(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}
	batch := r.pending
	r.pending = nil
	if r.sink == nil {
		return nil
	}
	if err := r.sink.PutReports(ctx, batch); err != nil {
		return fmt.Errorf("write reports: %w", err)
	}
	return nil
}

// Stats returns a copy of the run counters.
func (r *Runner) Stats() Stats {
	out := r.stats
	out.ByKind = make(map[model.FlagKind]int, len(r.stats.ByKind))
	for k, v := range r.stats.ByKind {
		out.ByKind[k] = v
	}
	return out
}

// HistoryWindow returns the effective history length.
func (r *Runner) HistoryWindow() int {
	return r.cfg.HistoryWindow
}

func (r *Runner) record(report model.Report) {
	r.stats.Ticks++
	if !report.Point.Defined {
		r.stats.Undefined++
	}
	if len(report.Flags) == 0 {
		return
	}
	r.stats.Flagged++
	r.stats.Flags += len(report.Flags)
	for _, f := range report.Flags {
		r.stats.ByKind[f.Kind]++
	}
	if sev := report.Flags.MaxSeverity(); sev > r.stats.MaxSeverity {
		r.stats.MaxSeverity = sev
	}

	r.logger.Debug("tick flagged",
		zap.Int64("ts", report.Timestamp),
		zap.Int("flags", len(report.Flags)),
		zap.String("severity", report.Flags.MaxSeverity().String()),
	)
}
