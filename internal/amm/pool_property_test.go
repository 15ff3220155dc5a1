package amm

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestSwapNeverDecreasesInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reserveA := rapid.Float64Range(1, 1e9).Draw(t, "reserveA")
		reserveB := rapid.Float64Range(1, 1e9).Draw(t, "reserveB")
		fee := rapid.Float64Range(0, 0.1).Draw(t, "fee")
		share := rapid.Float64Range(1e-6, 10).Draw(t, "share")
		dir := Direction(rapid.IntRange(0, 1).Draw(t, "dir"))

		pool := Pool{ReserveA: reserveA, ReserveB: reserveB, FeeRate: fee}
		amountIn := reserveA * share
		if dir == BToA {
			amountIn = reserveB * share
		}

		next, res, err := ApplySwap(pool, amountIn, dir)
		if err != nil {
			t.Fatalf("apply swap: %v", err)
		}
		if next.ReserveA <= 0 || next.ReserveB <= 0 {
			t.Fatalf("reserves went non-positive: %+v", next)
		}
		if next.Invariant() < pool.Invariant()*(1-1e-12) {
			t.Fatalf("invariant decreased: %g < %g", next.Invariant(), pool.Invariant())
		}
		if res.AmountOut <= 0 || math.IsNaN(res.Slippage) {
			t.Fatalf("bad swap result: %+v", res)
		}
	})
}

func TestZeroFeeRoundTripRestoresReserves(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reserveA := rapid.Float64Range(10, 1e8).Draw(t, "reserveA")
		reserveB := rapid.Float64Range(10, 1e8).Draw(t, "reserveB")
		share := rapid.Float64Range(1e-4, 2).Draw(t, "share")

		pool := Pool{ReserveA: reserveA, ReserveB: reserveB}
		mid, res, err := ApplySwap(pool, reserveA*share, AToB)
		if err != nil {
			t.Fatalf("attack swap: %v", err)
		}
		back, _, err := ApplySwap(mid, res.AmountOut, BToA)
		if err != nil {
			t.Fatalf("reverse swap: %v", err)
		}
		if math.Abs(back.ReserveA-reserveA) > reserveA*1e-9 || math.Abs(back.ReserveB-reserveB) > reserveB*1e-9 {
			t.Fatalf("round trip drifted: %+v vs %+v", back, pool)
		}
	})
}
