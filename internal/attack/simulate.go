package attack

import (
	"fmt"

	"oracleScope/internal/amm"
)

// Trajectory is the pool state before, during and after a flash-loan style round trip.
type Trajectory struct {
	Pre       amm.Pool      `json:"pre"`
	During    amm.Pool      `json:"during"`
	Post      amm.Pool      `json:"post"`
	Direction amm.Direction `json:"direction"`

	PrePrice    float64 `json:"pre_price"`
	DuringPrice float64 `json:"during_price"`
	PostPrice   float64 `json:"post_price"`

	// PeakImpact is (during-pre)/pre.
	PeakImpact float64 `json:"peak_impact"`
	// Residual is (post-pre)/pre; fees leave it slightly off zero.
	Residual float64 `json:"residual"`

	Attack   amm.SwapResult `json:"attack"`
	Recovery amm.SwapResult `json:"recovery"`
}

// Prices returns the spot price at the three stages.
func (t Trajectory) Prices() [3]float64 {
	return [3]float64{t.PrePrice, t.DuringPrice, t.PostPrice}
}

// Simulate swaps amount into the pool and then sells back exactly what the attack received.
func Simulate(pool amm.Pool, amount float64, dir amm.Direction) (Trajectory, error) {
	pre, err := amm.SpotPrice(pool)
	if err != nil {
		return Trajectory{}, fmt.Errorf("pre price: %w", err)
	}

	during, attackRes, err := amm.ApplySwap(pool, amount, dir)
	if err != nil {
		return Trajectory{}, fmt.Errorf("attack swap: %w", err)
	}

	post, recoveryRes, err := amm.ApplySwap(during, attackRes.AmountOut, dir.Reverse())
	if err != nil {
		return Trajectory{}, fmt.Errorf("recovery swap: %w", err)
	}

	return Trajectory{
		Pre:         pool,
		During:      during,
		Post:        post,
		Direction:   dir,
		PrePrice:    pre,
		DuringPrice: attackRes.PostPrice,
		PostPrice:   recoveryRes.PostPrice,
		PeakImpact:  (attackRes.PostPrice - pre) / pre,
		Residual:    (recoveryRes.PostPrice - pre) / pre,
		Attack:      attackRes,
		Recovery:    recoveryRes,
	}, nil
}
