package detect

import (
	"testing"

	"oracleScope/internal/benchmark"
	"oracleScope/internal/model"
)

func singleVenuePoint(ts int64, price float64) model.BenchmarkPoint {
	return model.BenchmarkPoint{
		Timestamp:      ts,
		Price:          price,
		Defined:        true,
		TotalLiquidity: 1_000_000,
		Weights:        map[string]float64{"cex": 1},
		Venues: []model.VenueView{
			{VenueID: "cex", Price: price, Liquidity: 1_000_000, Weight: 1, Included: true},
		},
	}
}

// replay feeds points through d the way the pipeline does and returns the flags per tick.
func replay(t *testing.T, d Detector, points []model.BenchmarkPoint, historyLen int) [][]model.Flag {
	t.Helper()
	h := benchmark.NewHistory(historyLen)
	out := make([][]model.Flag, 0, len(points))
	for _, p := range points {
		flags, err := d.Evaluate(p, model.CrossVenueTick{Timestamp: p.Timestamp}, h.Points())
		if err != nil {
			t.Fatalf("evaluate at %d: %v", p.Timestamp, err)
		}
		out = append(out, flags)
		h.Append(p)
	}
	return out
}

func seriesPoints(prices ...float64) []model.BenchmarkPoint {
	points := make([]model.BenchmarkPoint, 0, len(prices))
	for i, price := range prices {
		points = append(points, singleVenuePoint(int64(i+1)*10, price))
	}
	return points
}
