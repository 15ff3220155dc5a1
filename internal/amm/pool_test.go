package amm

import (
	"errors"
	"math"
	"testing"

	"oracleScope/internal/model"
)

func TestApplySwapPinnedScenario(t *testing.T) {
	pool, err := NewPool(1_000_000, 1_000_000, 0.003)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	next, res, err := ApplySwap(pool, 100_000, AToB)
	if err != nil {
		t.Fatalf("apply swap: %v", err)
	}

	if res.AmountOut >= 100_000 {
		t.Fatalf("amount out should be below amount in: %f", res.AmountOut)
	}
	assertClose(t, "amount out", res.AmountOut, 90661.08938801491, 1e-6)
	assertClose(t, "post price", res.PostPrice, 0.8266717369199865, 1e-12)
	assertClose(t, "slippage", res.Slippage, -0.17332826308001348, 1e-12)
	assertClose(t, "reserve a", next.ReserveA, 1_100_000, 0)
	assertClose(t, "reserve b", next.ReserveB, 1_000_000-90661.08938801491, 1e-6)

	if pool.ReserveA != 1_000_000 || pool.ReserveB != 1_000_000 {
		t.Fatalf("input pool mutated: %+v", pool)
	}
	if next.Invariant() < pool.Invariant() {
		t.Fatalf("invariant decreased: %f < %f", next.Invariant(), pool.Invariant())
	}
}

func TestRoundTripWithoutFee(t *testing.T) {
	pool, err := NewPool(250_000, 4_000_000, 0)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	mid, res, err := ApplySwap(pool, 12_345, AToB)
	if err != nil {
		t.Fatalf("attack swap: %v", err)
	}
	back, _, err := ApplySwap(mid, res.AmountOut, BToA)
	if err != nil {
		t.Fatalf("reverse swap: %v", err)
	}

	assertClose(t, "reserve a", back.ReserveA, pool.ReserveA, 1e-6)
	assertClose(t, "reserve b", back.ReserveB, pool.ReserveB, 1e-6)
}

func TestQuoteSwapRejectsBadAmounts(t *testing.T) {
	pool := Pool{ReserveA: 100, ReserveB: 200_000, FeeRate: 0.003}
	for _, amount := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := QuoteSwap(pool, amount, AToB); !errors.Is(err, model.ErrInvalidInput) {
			t.Fatalf("amount %v: expected invalid input, got %v", amount, err)
		}
	}
}

func TestSpotPriceInvalidPool(t *testing.T) {
	for _, pool := range []Pool{
		{ReserveA: 0, ReserveB: 10},
		{ReserveA: 10, ReserveB: -1},
	} {
		if _, err := SpotPrice(pool); !errors.Is(err, model.ErrInvalidPoolState) {
			t.Fatalf("pool %+v: expected invalid pool state, got %v", pool, err)
		}
	}
	if _, err := NewPool(1, 1, 1); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("fee of 1 should be rejected, got %v", err)
	}
}

func TestPriceImpactIsPure(t *testing.T) {
	pool := Pool{ReserveA: 100, ReserveB: 200_000, FeeRate: 0.003}

	impact, err := PriceImpact(pool, 40, AToB)
	if err != nil {
		t.Fatalf("price impact: %v", err)
	}
	_, res, err := ApplySwap(pool, 40, AToB)
	if err != nil {
		t.Fatalf("apply swap: %v", err)
	}

	if impact != res.Slippage {
		t.Fatalf("impact %f != slippage %f", impact, res.Slippage)
	}
	if impact >= 0 {
		t.Fatalf("selling A should lower the A price, got %f", impact)
	}
	if pool.ReserveA != 100 {
		t.Fatalf("pool mutated by price impact")
	}
}

func TestBToARaisesPrice(t *testing.T) {
	pool := Pool{ReserveA: 1_000, ReserveB: 1_000, FeeRate: 0.003}
	_, res, err := ApplySwap(pool, 500, BToA)
	if err != nil {
		t.Fatalf("apply swap: %v", err)
	}
	if res.PostPrice <= res.PrePrice {
		t.Fatalf("buying A should raise the A price: %+v", res)
	}
}

func assertClose(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s mismatch: got %.15f want %.15f", name, got, want)
	}
}
