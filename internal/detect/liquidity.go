package detect

import (
	"fmt"
	"sort"

	"oracleScope/internal/model"
)

// ThinLiquidity flags benchmarks backed by too little depth or by one dominant venue.
type ThinLiquidity struct {
	MinLiquidity           float64
	ConcentrationThreshold float64
	// Quantile enables an adaptive floor taken from the liquidity of recent ticks.
	Quantile           float64
	QuantileMinSamples int
}

func (ThinLiquidity) Name() string { return NameThinLiquidity }

func (d ThinLiquidity) Evaluate(point model.BenchmarkPoint, _ model.CrossVenueTick, window []model.BenchmarkPoint) ([]model.Flag, error) {
	if !point.Defined {
		return nil, nil
	}

	var flags []model.Flag
	if point.TotalLiquidity < d.MinLiquidity {
		severity := model.SeverityMedium
		if point.TotalLiquidity < d.MinLiquidity/2 {
			severity = model.SeverityHigh
		}
		flags = append(flags, model.Flag{
			Detector:  NameThinLiquidity,
			Kind:      model.KindLiquidityFloor,
			Timestamp: point.Timestamp,
			Severity:  severity,
			Score:     point.TotalLiquidity / d.MinLiquidity,
			Message:   fmt.Sprintf("total liquidity %.2f below floor %.2f", point.TotalLiquidity, d.MinLiquidity),
		})
	}

	if venue, weight := point.TopWeight(); d.ConcentrationThreshold > 0 && weight > d.ConcentrationThreshold {
		flags = append(flags, model.Flag{
			Detector:  NameThinLiquidity,
			Kind:      model.KindConcentration,
			Timestamp: point.Timestamp,
			Severity:  model.SeverityMedium,
			Score:     weight,
			Venue:     venue,
			Message:   fmt.Sprintf("venue %s carries %.2f%% of the benchmark weight", venue, weight*100),
		})
	}

	if d.Quantile > 0 {
		totals := make([]float64, 0, len(window))
		for _, p := range window {
			if p.Defined {
				totals = append(totals, p.TotalLiquidity)
			}
		}
		minSamples := d.QuantileMinSamples
		if minSamples < 1 {
			minSamples = 1
		}
		if len(totals) >= minSamples {
			floor := quantile(totals, d.Quantile)
			if point.TotalLiquidity < floor {
				flags = append(flags, model.Flag{
					Detector:  NameThinLiquidity,
					Kind:      model.KindLiquidityQuantile,
					Timestamp: point.Timestamp,
					Severity:  model.SeverityLow,
					Score:     point.TotalLiquidity / floor,
					Window:    &model.WindowRef{From: window[0].Timestamp, To: point.Timestamp},
					Message:   fmt.Sprintf("total liquidity %.2f below rolling q%.0f %.2f", point.TotalLiquidity, d.Quantile*100, floor),
				})
			}
		}
	}

	return flags, nil
}

// quantile uses linear interpolation between closest ranks.
func quantile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}
