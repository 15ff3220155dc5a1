package attack

import (
	"fmt"

	"oracleScope/internal/amm"
	"oracleScope/internal/model"
)

// Scenario lays a simulated attack out as a tick series: Before ticks at the
// original pool, Hold ticks at the attacked pool, After ticks at the recovered pool.
// Reference venues are repeated on every tick with their timestamps refreshed.
type Scenario struct {
	Pool      amm.Pool
	Amount    float64
	Direction amm.Direction
	DEXVenue  string
	Reference []model.VenueSample

	Start  int64
	Step   int64
	Before int
	Hold   int
	After  int
}

// Series is the output of Scenario.Ticks.
type Series struct {
	Ticks      []model.CrossVenueTick
	Trajectory Trajectory

	// AttackFrom and AttackTo bound the ticks priced off the attacked pool.
	AttackFrom int64
	AttackTo   int64
	// RecoveredAt is the first tick priced off the recovered pool.
	RecoveredAt int64
}

// Ticks simulates the attack and renders the tick series.
func (s Scenario) Ticks() (Series, error) {
	if s.DEXVenue == "" {
		return Series{}, fmt.Errorf("dex venue is required: %w", model.ErrInvalidInput)
	}
	if s.Step <= 0 || s.Before < 0 || s.Hold <= 0 || s.After < 0 {
		return Series{}, fmt.Errorf("scenario step=%d before=%d hold=%d after=%d: %w",
			s.Step, s.Before, s.Hold, s.After, model.ErrInvalidInput)
	}
	for _, ref := range s.Reference {
		if ref.VenueID == s.DEXVenue {
			return Series{}, fmt.Errorf("reference venue %q shadows dex venue: %w", ref.VenueID, model.ErrInvalidInput)
		}
	}

	traj, err := Simulate(s.Pool, s.Amount, s.Direction)
	if err != nil {
		return Series{}, err
	}

	total := s.Before + s.Hold + s.After
	out := Series{
		Ticks:      make([]model.CrossVenueTick, 0, total),
		Trajectory: traj,
		AttackFrom: s.Start + int64(s.Before)*s.Step,
	}
	out.AttackTo = out.AttackFrom + int64(s.Hold-1)*s.Step
	out.RecoveredAt = out.AttackTo + s.Step

	for i := 0; i < total; i++ {
		ts := s.Start + int64(i)*s.Step
		pool, price := traj.Pre, traj.PrePrice
		switch {
		case i >= s.Before+s.Hold:
			pool, price = traj.Post, traj.PostPrice
		case i >= s.Before:
			pool, price = traj.During, traj.DuringPrice
		}

		tick := model.CrossVenueTick{
			Timestamp: ts,
			Samples:   make([]model.VenueSample, 0, len(s.Reference)+1),
		}
		for _, ref := range s.Reference {
			ref.Timestamp = ts
			tick.Samples = append(tick.Samples, ref)
		}
		reserves := pool.Reserves()
		tick.Samples = append(tick.Samples, model.VenueSample{
			VenueID:   s.DEXVenue,
			Timestamp: ts,
			Price:     price,
			Reserves:  &reserves,
		})
		out.Ticks = append(out.Ticks, tick)
	}
	return out, nil
}
