package detect

import (
	"fmt"
	"math"

	"oracleScope/internal/model"
)

// Divergence flags venues whose price stays away from the benchmark for at least
// DwellTicks consecutive ticks. A single noisy tick never fires when DwellTicks > 1.
type Divergence struct {
	Threshold  float64
	DwellTicks int
}

func (Divergence) Name() string { return NameDivergence }

func (d Divergence) Evaluate(point model.BenchmarkPoint, _ model.CrossVenueTick, window []model.BenchmarkPoint) ([]model.Flag, error) {
	if !point.Defined {
		return nil, nil
	}
	dwell := d.DwellTicks
	if dwell < 1 {
		dwell = 1
	}

	var flags []model.Flag
	for _, v := range point.Venues {
		if !v.Included {
			continue
		}
		dev := relativeDeviation(v.Price, point.Price)
		if math.Abs(dev) <= d.Threshold {
			continue
		}

		streak := 1
		for i := len(window) - 1; i >= 0 && streak < dwell; i-- {
			prev := window[i]
			if !prev.Defined {
				break
			}
			view, ok := prev.Venue(v.VenueID)
			if !ok || !view.Included {
				break
			}
			if math.Abs(relativeDeviation(view.Price, prev.Price)) <= d.Threshold {
				break
			}
			streak++
		}
		if streak < dwell {
			continue
		}

		severity := model.SeverityMedium
		if math.Abs(dev) > 2*d.Threshold {
			severity = model.SeverityHigh
		}
		from := point.Timestamp
		if streak > 1 {
			from = window[len(window)-streak+1].Timestamp
		}
		flags = append(flags, model.Flag{
			Detector:  NameDivergence,
			Kind:      model.KindDivergence,
			Timestamp: point.Timestamp,
			Severity:  severity,
			Score:     math.Abs(dev),
			Venue:     v.VenueID,
			Window:    &model.WindowRef{From: from, To: point.Timestamp},
			Message:   fmt.Sprintf("venue %s deviates %.2f%% from benchmark for %d ticks", v.VenueID, roundPct(dev), streak),
		})
	}
	return flags, nil
}
