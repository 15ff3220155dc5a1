package detect

import (
	"math"

	"oracleScope/internal/model"
)

// Detector names form the fixed set of detectors the suite knows about.
const (
	NameMissingBenchmark   = "missing_benchmark"
	NameStaleness          = "staleness"
	NameThinLiquidity      = "thin_liquidity"
	NameFlashJumpReversion = "flash_jump_reversion"
	NameDivergence         = "divergence"
)

// Detector evaluates one tick. Implementations are pure: the same point, tick and
// window always give the same flags.
//
// window holds the benchmark points before point, oldest first.
type Detector interface {
	Name() string
	Evaluate(point model.BenchmarkPoint, tick model.CrossVenueTick, window []model.BenchmarkPoint) ([]model.Flag, error)
}

// All returns every detector configured from cfg.
func All(cfg Config) []Detector {
	return []Detector{
		MissingBenchmark{},
		Staleness{StaleAfter: cfg.StaleAfter},
		ThinLiquidity{
			MinLiquidity:           cfg.MinLiquidity,
			ConcentrationThreshold: cfg.ConcentrationThreshold,
			Quantile:               cfg.LiquidityQuantile,
			QuantileMinSamples:     cfg.QuantileMinSamples,
		},
		FlashJumpReversion{
			JumpThreshold:   cfg.JumpThreshold,
			ReversionWindow: cfg.ReversionWindow,
			TWAPWindow:      cfg.TWAPWindow,
		},
		Divergence{
			Threshold:  cfg.DivergenceThreshold,
			DwellTicks: cfg.DivergenceDwellTicks,
		},
	}
}

func relativeDeviation(price, base float64) float64 {
	return (price - base) / base
}

func definedPoints(points []model.BenchmarkPoint) []model.BenchmarkPoint {
	out := make([]model.BenchmarkPoint, 0, len(points))
	for _, p := range points {
		if p.Defined {
			out = append(out, p)
		}
	}
	return out
}

func roundPct(v float64) float64 {
	return math.Round(v*10000) / 100
}
