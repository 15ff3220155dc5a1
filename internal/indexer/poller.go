package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"oracleScope/internal/model"
)

// PollFunc reads one round of samples, e.g. getReserves for every tracked pair.
type PollFunc func(ctx context.Context) ([]model.VenueSample, error)

// Poller calls a PollFunc on a fixed interval and forwards the samples.
type Poller struct {
	Interval     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// Rounds stops the poller after that many rounds; 0 polls until ctx is done.
	Rounds int

	logger *zap.Logger
}

func NewPoller(interval time.Duration, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{Interval: interval, logger: logger}
}

// Run polls until ctx is done or Rounds is reached and closes out on return. A round that
// still fails after retries is logged and skipped.
func (p *Poller) Run(ctx context.Context, poll PollFunc, out chan<- model.VenueSample) error {
	defer close(out)

	if p.Interval <= 0 {
		return fmt.Errorf("poll interval must be greater than zero")
	}
	if poll == nil {
		return fmt.Errorf("poll func is nil")
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for round := 1; ; round++ {
		var samples []model.VenueSample
		err := withRetry(ctx, p.MaxRetries, p.RetryBackoff, func(ctx context.Context) error {
			var err error
			samples, err = poll(ctx)
			return err
		})
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			p.logger.Warn("poll failed", zap.Int("round", round), zap.Error(err))
		default:
			for _, s := range samples {
				select {
				case out <- s:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}

		if p.Rounds > 0 && round >= p.Rounds {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
