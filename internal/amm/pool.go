package amm

import (
	"fmt"
	"math"

	"oracleScope/internal/model"
)

// Direction selects which reserve receives the input amount.
type Direction int

const (
	// AToB sells token A into the pool for token B.
	AToB Direction = iota
	// BToA sells token B into the pool for token A.
	BToA
)

func (d Direction) String() string {
	switch d {
	case AToB:
		return "a_to_b"
	case BToA:
		return "b_to_a"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	switch d {
	case AToB, BToA:
		return []byte(d.String()), nil
	default:
		return nil, fmt.Errorf("direction %d: %w", int(d), model.ErrInvalidInput)
	}
}

func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "a_to_b":
		*d = AToB
	case "b_to_a":
		*d = BToA
	default:
		return fmt.Errorf("direction %q: %w", string(text), model.ErrInvalidInput)
	}
	return nil
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == AToB {
		return BToA
	}
	return AToB
}

// Pool is a constant-product (x*y=k) pool. It is a value type: swaps return a new Pool.
type Pool struct {
	ReserveA float64 `json:"reserve_a"`
	ReserveB float64 `json:"reserve_b"`
	FeeRate  float64 `json:"fee_rate"`
}

// SwapResult describes one executed swap.
type SwapResult struct {
	Direction Direction `json:"direction"`
	AmountIn  float64   `json:"amount_in"`
	AmountOut float64   `json:"amount_out"`
	PrePrice  float64   `json:"pre_price"`
	PostPrice float64   `json:"post_price"`
	Slippage  float64   `json:"slippage"`
}

// NewPool builds a validated pool.
func NewPool(reserveA, reserveB, feeRate float64) (Pool, error) {
	p := Pool{ReserveA: reserveA, ReserveB: reserveB, FeeRate: feeRate}
	if err := p.Validate(); err != nil {
		return Pool{}, err
	}
	return p, nil
}

// Validate checks reserves and fee rate.
func (p Pool) Validate() error {
	if !positive(p.ReserveA) || !positive(p.ReserveB) {
		return fmt.Errorf("reserves %v/%v: %w", p.ReserveA, p.ReserveB, model.ErrInvalidPoolState)
	}
	if math.IsNaN(p.FeeRate) || p.FeeRate < 0 || p.FeeRate >= 1 {
		return fmt.Errorf("fee rate %v: %w", p.FeeRate, model.ErrInvalidInput)
	}
	return nil
}

// Invariant returns ReserveA*ReserveB.
func (p Pool) Invariant() float64 {
	return p.ReserveA * p.ReserveB
}

// Reserves converts the pool into a sample reserve pair.
func (p Pool) Reserves() model.Reserves {
	return model.Reserves{A: p.ReserveA, B: p.ReserveB}
}

// SpotPrice returns the price of token A in units of token B.
func SpotPrice(p Pool) (float64, error) {
	if !positive(p.ReserveA) || !positive(p.ReserveB) {
		return 0, fmt.Errorf("spot price: %w", model.ErrInvalidPoolState)
	}
	return p.ReserveB / p.ReserveA, nil
}

// QuoteSwap returns the output amount for amountIn without touching the pool.
func QuoteSwap(p Pool, amountIn float64, dir Direction) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if !positive(amountIn) || math.IsInf(amountIn, 0) {
		return 0, fmt.Errorf("amount in %v: %w", amountIn, model.ErrInvalidInput)
	}
	reserveIn, reserveOut, err := p.sides(dir)
	if err != nil {
		return 0, err
	}

	withFee := amountIn * (1 - p.FeeRate)
	return withFee * reserveOut / (reserveIn + withFee), nil
}

// ApplySwap executes a swap and returns the resulting pool. The input pool is never modified,
// and on error no partial state is returned.
func ApplySwap(p Pool, amountIn float64, dir Direction) (Pool, SwapResult, error) {
	pre, err := SpotPrice(p)
	if err != nil {
		return p, SwapResult{}, err
	}
	amountOut, err := QuoteSwap(p, amountIn, dir)
	if err != nil {
		return p, SwapResult{}, err
	}

	next := p
	switch dir {
	case AToB:
		next.ReserveA += amountIn
		next.ReserveB -= amountOut
	case BToA:
		next.ReserveB += amountIn
		next.ReserveA -= amountOut
	}
	if !positive(next.ReserveA) || !positive(next.ReserveB) {
		return p, SwapResult{}, fmt.Errorf("swap drains reserves: %w", model.ErrInvalidPoolState)
	}

	post, err := SpotPrice(next)
	if err != nil {
		return p, SwapResult{}, err
	}

	return next, SwapResult{
		Direction: dir,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		PrePrice:  pre,
		PostPrice: post,
		Slippage:  (post - pre) / pre,
	}, nil
}

// PriceImpact returns the relative spot move a swap of amountIn would cause.
func PriceImpact(p Pool, amountIn float64, dir Direction) (float64, error) {
	_, res, err := ApplySwap(p, amountIn, dir)
	if err != nil {
		return 0, err
	}
	return res.Slippage, nil
}

func (p Pool) sides(dir Direction) (float64, float64, error) {
	switch dir {
	case AToB:
		return p.ReserveA, p.ReserveB, nil
	case BToA:
		return p.ReserveB, p.ReserveA, nil
	default:
		return 0, 0, fmt.Errorf("direction %d: %w", int(dir), model.ErrInvalidInput)
	}
}

func positive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
