package storage

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"oracleScope/internal/model"
)

// ReportSink receives per-tick reports in tick order.
type ReportSink interface {
	PutReports(ctx context.Context, reports []model.Report) error
}

// Multi fans every batch out to all sinks. One failing sink does not stop the others.
type Multi []ReportSink

func (m Multi) PutReports(ctx context.Context, reports []model.Report) error {
	var errs error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		errs = multierr.Append(errs, sink.PutReports(ctx, reports))
	}
	return errs
}

// Memory keeps reports in memory.
type Memory struct {
	mu      sync.Mutex
	reports []model.Report
}

func (m *Memory) PutReports(_ context.Context, reports []model.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, reports...)
	return nil
}

// Reports returns a copy of everything received so far.
func (m *Memory) Reports() []model.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Report, len(m.reports))
	copy(out, m.reports)
	return out
}
