package detect

import (
	"fmt"

	"oracleScope/internal/model"
)

// Config holds every detector threshold. Nothing in this package is hardcoded beyond
// severity bucketing.
type Config struct {
	// StaleAfter must match the aggregator's staleness threshold.
	StaleAfter int64

	MinLiquidity           float64
	ConcentrationThreshold float64
	// LiquidityQuantile enables the adaptive floor when > 0.
	LiquidityQuantile  float64
	QuantileMinSamples int

	JumpThreshold   float64
	ReversionWindow int
	TWAPWindow      int

	DivergenceThreshold  float64
	DivergenceDwellTicks int
}

// DefaultConfig mirrors the thresholds used by the CLI defaults.
func DefaultConfig() Config {
	return Config{
		StaleAfter:             40,
		MinLiquidity:           100_000,
		ConcentrationThreshold: 0.8,
		LiquidityQuantile:      0.2,
		QuantileMinSamples:     10,
		JumpThreshold:          0.04,
		ReversionWindow:        5,
		TWAPWindow:             5,
		DivergenceThreshold:    0.015,
		DivergenceDwellTicks:   3,
	}
}

// Validate rejects thresholds the detectors cannot work with.
func (c Config) Validate() error {
	switch {
	case c.StaleAfter < 0:
		return fmt.Errorf("stale-after must be >= 0: %w", model.ErrInvalidInput)
	case c.MinLiquidity < 0:
		return fmt.Errorf("min-liquidity must be >= 0: %w", model.ErrInvalidInput)
	case c.ConcentrationThreshold <= 0 || c.ConcentrationThreshold > 1:
		return fmt.Errorf("concentration must be in (0,1]: %w", model.ErrInvalidInput)
	case c.LiquidityQuantile < 0 || c.LiquidityQuantile >= 1:
		return fmt.Errorf("liquidity-quantile must be in [0,1): %w", model.ErrInvalidInput)
	case c.JumpThreshold <= 0:
		return fmt.Errorf("jump-threshold must be > 0: %w", model.ErrInvalidInput)
	case c.ReversionWindow < 1:
		return fmt.Errorf("reversion-window must be >= 1: %w", model.ErrInvalidInput)
	case c.TWAPWindow < 1:
		return fmt.Errorf("twap-window must be >= 1: %w", model.ErrInvalidInput)
	case c.DivergenceThreshold <= 0:
		return fmt.Errorf("divergence-threshold must be > 0: %w", model.ErrInvalidInput)
	case c.DivergenceDwellTicks < 1:
		return fmt.Errorf("divergence-dwell must be >= 1: %w", model.ErrInvalidInput)
	}
	return nil
}

// HistoryWindow returns the smallest history length that lets every detector see
// the ticks it needs.
func (c Config) HistoryWindow() int {
	need := c.TWAPWindow + c.ReversionWindow
	if c.DivergenceDwellTicks > need {
		need = c.DivergenceDwellTicks
	}
	if c.LiquidityQuantile > 0 && c.QuantileMinSamples > need {
		need = c.QuantileMinSamples
	}
	return need
}
