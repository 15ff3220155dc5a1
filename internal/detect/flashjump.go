package detect

import (
	"fmt"
	"math"

	"oracleScope/internal/benchmark"
	"oracleScope/internal/model"
)

// FlashJumpReversion separates manipulation-shaped spikes from genuine repricing.
//
// A jump tick is one whose price leaves a calm TWAP baseline by more than JumpThreshold.
// If the price comes back within the threshold inside ReversionWindow ticks, a
// flash_jump_reversion flag is raised at the tick where the reversion is seen, stamped
// with the jump tick. A jump still unresolved after ReversionWindow ticks becomes a
// lower-severity large_move flag. Each excursion yields one flag; a move that keeps
// stepping away from the baseline counts from its first step.
type FlashJumpReversion struct {
	JumpThreshold   float64
	ReversionWindow int
	TWAPWindow      int
}

func (FlashJumpReversion) Name() string { return NameFlashJumpReversion }

func (d FlashJumpReversion) Evaluate(point model.BenchmarkPoint, _ model.CrossVenueTick, window []model.BenchmarkPoint) ([]model.Flag, error) {
	if !point.Defined {
		return nil, nil
	}
	if d.JumpThreshold <= 0 || d.ReversionWindow < 1 || d.TWAPWindow < 1 {
		return nil, fmt.Errorf("flash jump detector misconfigured: threshold=%v reversion=%d twap=%d", d.JumpThreshold, d.ReversionWindow, d.TWAPWindow)
	}

	seq := append(definedPoints(window), point)
	cur := len(seq) - 1

	var reverted, unresolved *model.Flag
	first := cur - d.ReversionWindow
	if first < 0 {
		first = 0
	}
	for j := first; j < cur; j++ {
		base, jump, ok := d.departure(seq, j)
		if !ok {
			continue
		}
		// A ramp is one excursion: only the first step off a calm baseline is an onset.
		if _, _, prev := d.departure(seq, j-1); prev {
			continue
		}

		back := -1
		peak := jump
		for k := j + 1; k <= cur; k++ {
			dev := relativeDeviation(seq[k].Price, base)
			if math.Abs(dev) <= d.JumpThreshold {
				back = k
				break
			}
			if math.Abs(dev) > math.Abs(peak) {
				peak = dev
			}
		}

		switch {
		case back == cur && reverted == nil:
			reverted = &model.Flag{
				Detector:  NameFlashJumpReversion,
				Kind:      model.KindFlashJumpReversion,
				Timestamp: seq[j].Timestamp,
				Severity:  model.SeverityHigh,
				Score:     math.Abs(peak),
				Window:    &model.WindowRef{From: seq[j].Timestamp, To: point.Timestamp},
				Message: fmt.Sprintf("jump of %.2f%% from baseline %.4f reverted after %d ticks",
					roundPct(jump), base, cur-j),
			}
		case back < 0 && cur-j == d.ReversionWindow && unresolved == nil:
			unresolved = &model.Flag{
				Detector:  NameFlashJumpReversion,
				Kind:      model.KindLargeMove,
				Timestamp: seq[j].Timestamp,
				Severity:  model.SeverityLow,
				Score:     math.Abs(peak),
				Window:    &model.WindowRef{From: seq[j].Timestamp, To: point.Timestamp},
				Message: fmt.Sprintf("move of %.2f%% from baseline %.4f persisted for %d ticks",
					roundPct(jump), base, cur-j),
			}
		}
	}

	var flags []model.Flag
	if reverted != nil {
		flags = append(flags, *reverted)
	}
	if unresolved != nil {
		flags = append(flags, *unresolved)
	}
	return flags, nil
}

// departure reports whether seq[j] leaves its calm baseline by more than JumpThreshold,
// returning the baseline and the signed relative move.
func (d FlashJumpReversion) departure(seq []model.BenchmarkPoint, j int) (float64, float64, bool) {
	base, ok := d.baseline(seq, j)
	if !ok {
		return 0, 0, false
	}
	jump := relativeDeviation(seq[j].Price, base)
	if math.Abs(jump) <= d.JumpThreshold {
		return 0, 0, false
	}
	return base, jump, true
}

// baseline returns the TWAP of the TWAPWindow points before j. The window must be full
// and calm: a baseline that already contains an excursion is not a reference for normal.
func (d FlashJumpReversion) baseline(seq []model.BenchmarkPoint, j int) (float64, bool) {
	if j < d.TWAPWindow {
		return 0, false
	}
	ref := seq[j-d.TWAPWindow : j]

	base, ok := benchmark.MeanPrice(ref)
	if !ok || base <= 0 {
		return 0, false
	}
	for _, p := range ref {
		if math.Abs(relativeDeviation(p.Price, base)) > d.JumpThreshold {
			return 0, false
		}
	}
	return base, true
}
