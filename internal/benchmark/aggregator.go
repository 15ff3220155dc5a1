package benchmark

import (
	"fmt"
	"math"

	"oracleScope/internal/model"
)

// Config controls benchmark aggregation.
type Config struct {
	// StaleAfter is the maximum sample age, in timestamp units, before a venue is excluded.
	StaleAfter int64
}

// Aggregate turns one cross-venue tick into a liquidity-weighted benchmark point.
//
// An empty tick returns an undefined point together with model.ErrInvalidInput so the
// caller can still report the tick as missing.
func Aggregate(tick model.CrossVenueTick, cfg Config, now int64) (model.BenchmarkPoint, error) {
	point := model.BenchmarkPoint{
		Timestamp: now,
		Weights:   map[string]float64{},
		Venues:    make([]model.VenueView, 0, len(tick.Samples)),
	}
	if len(tick.Samples) == 0 {
		return point, fmt.Errorf("tick %d has no samples: %w", tick.Timestamp, model.ErrInvalidInput)
	}

	seen := make(map[string]struct{}, len(tick.Samples))
	var (
		total    float64
		maxLiq   float64
		included int
	)
	for _, sample := range tick.Samples {
		view := model.VenueView{
			VenueID: sample.VenueID,
			Price:   sample.Price,
			Age:     now - sample.Timestamp,
		}

		if _, dup := seen[sample.VenueID]; dup {
			view.Reason = model.ReasonDuplicate
			point.Venues = append(point.Venues, view)
			continue
		}
		seen[sample.VenueID] = struct{}{}

		view.Reason = classify(sample, view.Age, cfg)
		if view.Reason == model.ReasonNone {
			view.Liquidity = EffectiveLiquidity(sample)
			if !(view.Liquidity > 0) || math.IsInf(view.Liquidity, 0) {
				view.Liquidity = 0
				view.Reason = model.ReasonNoLiquidity
			}
		}
		if view.Reason == model.ReasonNone {
			view.Included = true
			total += view.Liquidity
			maxLiq = math.Max(maxLiq, view.Liquidity)
			included++
		}
		point.Venues = append(point.Venues, view)
	}

	if included == 0 {
		return point, nil
	}

	// Weights are computed on liquidity scaled by the deepest venue so the sum stays
	// finite even when the raw total overflows.
	var scaled float64
	for _, view := range point.Venues {
		if view.Included {
			scaled += view.Liquidity / maxLiq
		}
	}

	var price float64
	for i := range point.Venues {
		view := &point.Venues[i]
		if !view.Included {
			continue
		}
		view.Weight = view.Liquidity / maxLiq / scaled
		point.Weights[view.VenueID] = view.Weight
		price += view.Weight * view.Price
	}

	if math.IsInf(total, 1) {
		total = math.MaxFloat64
	}
	point.Price = price
	point.TotalLiquidity = total
	point.Defined = true
	return point, nil
}

// EffectiveLiquidity returns the liquidity used for weighting. DEX venues never use the
// self-reported field: depth is the thinner reserve leg valued in quote units.
func EffectiveLiquidity(sample model.VenueSample) float64 {
	if sample.Reserves == nil {
		return sample.Liquidity
	}
	return math.Min(sample.Reserves.A*sample.Price, sample.Reserves.B)
}

func classify(sample model.VenueSample, age int64, cfg Config) model.ExclusionReason {
	if age > cfg.StaleAfter {
		return model.ReasonStale
	}
	if !(sample.Price > 0) || math.IsInf(sample.Price, 0) {
		return model.ReasonInvalidPrice
	}
	if sample.Reserves != nil && !(sample.Reserves.A > 0 && sample.Reserves.B > 0) {
		return model.ReasonInvalidReserves
	}
	if sample.Reserves == nil && (math.IsNaN(sample.Liquidity) || sample.Liquidity < 0) {
		return model.ReasonNoLiquidity
	}
	return model.ReasonNone
}
