package benchmark

import (
	"fmt"
	"math"
	"testing"

	"pgregory.net/rapid"

	"oracleScope/internal/model"
)

func TestAggregateWeightsSumToOne(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(t, "venues")
		now := int64(1_000)
		staleAfter := rapid.Int64Range(0, 30).Draw(t, "staleAfter")

		tick := model.CrossVenueTick{Timestamp: now}
		for i := 0; i < n; i++ {
			sample := model.VenueSample{
				VenueID:   fmt.Sprintf("v%d", i),
				Timestamp: now - rapid.Int64Range(0, 60).Draw(t, "age"),
				Price:     rapid.Float64Range(0.01, 1e6).Draw(t, "price"),
				Liquidity: rapid.Float64Range(0, 1e9).Draw(t, "liquidity"),
			}
			if rapid.Bool().Draw(t, "dex") {
				sample.Reserves = &model.Reserves{
					A: rapid.Float64Range(1, 1e7).Draw(t, "reserveA"),
					B: rapid.Float64Range(1, 1e9).Draw(t, "reserveB"),
				}
			}
			tick.Samples = append(tick.Samples, sample)
		}

		point, err := Aggregate(tick, Config{StaleAfter: staleAfter}, now)
		if err != nil {
			t.Fatalf("aggregate: %v", err)
		}

		if len(point.Included()) == 0 {
			if point.Defined || point.Price != 0 {
				t.Fatalf("no valid venue must give an undefined point: %+v", point)
			}
			return
		}

		if !point.Defined || !(point.Price > 0) {
			t.Fatalf("benchmark must be positive: %+v", point)
		}
		var sum float64
		for _, w := range point.Weights {
			if w < 0 {
				t.Fatalf("negative weight: %f", w)
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("weights sum to %f", sum)
		}
	})
}
