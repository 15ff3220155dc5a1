package detect

import (
	"fmt"

	"oracleScope/internal/model"
)

// Staleness flags every venue the aggregator excluded as stale. Severity grows with
// how far past the threshold the sample is.
type Staleness struct {
	StaleAfter int64
}

func (Staleness) Name() string { return NameStaleness }

func (d Staleness) Evaluate(point model.BenchmarkPoint, _ model.CrossVenueTick, _ []model.BenchmarkPoint) ([]model.Flag, error) {
	var flags []model.Flag
	for _, v := range point.Venues {
		if v.Reason != model.ReasonStale {
			continue
		}
		score := staleScore(v.Age, d.StaleAfter)
		flags = append(flags, model.Flag{
			Detector:  NameStaleness,
			Kind:      model.KindStale,
			Timestamp: point.Timestamp,
			Severity:  staleSeverity(score),
			Score:     score,
			Venue:     v.VenueID,
			Window:    &model.WindowRef{From: point.Timestamp - v.Age, To: point.Timestamp},
			Message:   fmt.Sprintf("sample age %d exceeds threshold %d", v.Age, d.StaleAfter),
		})
	}
	return flags, nil
}

// staleScore is the overshoot in units of the threshold.
func staleScore(age, threshold int64) float64 {
	unit := threshold
	if unit < 1 {
		unit = 1
	}
	return float64(age-threshold) / float64(unit)
}

func staleSeverity(score float64) model.Severity {
	switch {
	case score < 1:
		return model.SeverityLow
	case score < 5:
		return model.SeverityMedium
	case score < 20:
		return model.SeverityHigh
	default:
		return model.SeverityCritical
	}
}
