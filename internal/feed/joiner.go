package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"oracleScope/internal/model"
)

// Joiner keeps the latest sample per venue and snapshots them into ticks.
// Venues report asynchronously; Offer and Emit are safe for concurrent use.
type Joiner struct {
	mu     sync.Mutex
	latest map[string]model.VenueSample
	logger *zap.Logger

	// Now supplies tick timestamps for Run. Defaults to Unix seconds.
	Now func() int64
}

// NewJoiner builds an empty Joiner.
func NewJoiner(logger *zap.Logger) *Joiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Joiner{
		latest: make(map[string]model.VenueSample),
		logger: logger,
		Now:    func() int64 { return time.Now().Unix() },
	}
}

// Offer records s as the venue's latest sample. A sample older than the one already held
// for the venue is rejected.
func (j *Joiner) Offer(s model.VenueSample) error {
	if s.VenueID == "" {
		return fmt.Errorf("sample without venue: %w", model.ErrInvalidInput)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if prev, ok := j.latest[s.VenueID]; ok && s.Timestamp < prev.Timestamp {
		return fmt.Errorf("venue %s timestamp %d before %d: %w", s.VenueID, s.Timestamp, prev.Timestamp, model.ErrInvalidInput)
	}
	j.latest[s.VenueID] = s
	return nil
}

// Emit snapshots the held samples into a tick at ts, ordered by venue.
// Samples newer than ts are left out.
func (j *Joiner) Emit(ts int64) model.CrossVenueTick {
	j.mu.Lock()
	samples := make([]model.VenueSample, 0, len(j.latest))
	for _, s := range j.latest {
		if s.Timestamp <= ts {
			samples = append(samples, s)
		}
	}
	j.mu.Unlock()

	sort.Slice(samples, func(a, b int) bool { return samples[a].VenueID < samples[b].VenueID })
	return model.CrossVenueTick{Timestamp: ts, Samples: samples}
}

// Run joins samples into ticks every cadence and hands each tick to emit. It returns
// nil once samples is closed, after emitting a final tick, or ctx.Err() on cancellation.
func (j *Joiner) Run(ctx context.Context, samples <-chan model.VenueSample, cadence time.Duration, emit func(model.CrossVenueTick) error) error {
	if cadence <= 0 {
		return fmt.Errorf("cadence must be > 0: %w", model.ErrInvalidInput)
	}
	if emit == nil {
		return fmt.Errorf("emit is nil")
	}

	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-samples:
			if !ok {
				return emit(j.Emit(j.Now()))
			}
			if err := j.Offer(s); err != nil {
				j.logger.Warn("sample rejected", zap.String("venue", s.VenueID), zap.Int64("ts", s.Timestamp), zap.Error(err))
			}
		case <-ticker.C:
			if err := emit(j.Emit(j.Now())); err != nil {
				return err
			}
		}
	}
}

// JoinSamples replays recorded samples through a Joiner and emits one tick per distinct
// timestamp, in timestamp order.
func JoinSamples(samples []model.VenueSample) ([]model.CrossVenueTick, error) {
	sorted := make([]model.VenueSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Timestamp < sorted[b].Timestamp })

	j := NewJoiner(nil)
	var ticks []model.CrossVenueTick
	for i, s := range sorted {
		if err := j.Offer(s); err != nil {
			return nil, err
		}
		if i == len(sorted)-1 || sorted[i+1].Timestamp != s.Timestamp {
			ticks = append(ticks, j.Emit(s.Timestamp))
		}
	}
	return ticks, nil
}
