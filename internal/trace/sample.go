package trace

import (
	"fmt"

	"oracleScope/internal/amm"
	"oracleScope/internal/model"
)

// SampleFromSwap prices a swap as token B per token A at execution. Reserves, when
// known, are attached so the aggregator can derive depth; without them the sample
// carries no liquidity and will not be weighted.
func SampleFromSwap(s SwapRecord, venue string, reserves *model.Reserves) (model.VenueSample, error) {
	if !finitePositive(s.AmountIn) || !finitePositive(s.AmountOut) {
		return model.VenueSample{}, fmt.Errorf("swap amounts %v/%v: %w", s.AmountIn, s.AmountOut, model.ErrInvalidInput)
	}

	var price float64
	switch s.Direction {
	case amm.AToB:
		price = s.AmountOut / s.AmountIn
	case amm.BToA:
		price = s.AmountIn / s.AmountOut
	default:
		return model.VenueSample{}, fmt.Errorf("swap direction %d: %w", int(s.Direction), model.ErrInvalidInput)
	}
	if venue == "" {
		venue = s.PoolID
	}

	sample := model.VenueSample{VenueID: venue, Timestamp: s.Timestamp, Price: price}
	if reserves != nil {
		r := *reserves
		sample.Reserves = &r
	}
	return sample, nil
}

// ReserveTracker folds sync and swap events into reserve-backed DEX samples.
// Not safe for concurrent use.
type ReserveTracker struct {
	venues   map[string]string
	reserves map[string]model.Reserves
}

// NewReserveTracker maps pool ids to venue ids; unmapped pools use the pool id.
func NewReserveTracker(venues map[string]string) *ReserveTracker {
	copied := make(map[string]string, len(venues))
	for pool, venue := range venues {
		copied[pool] = venue
	}
	return &ReserveTracker{venues: copied, reserves: map[string]model.Reserves{}}
}

// Apply folds one event. It reports false when the event yields no sample: transfers,
// other events and swaps on pools whose reserves are not yet known.
func (t *ReserveTracker) Apply(ev Event) (model.VenueSample, bool, error) {
	switch ev.Kind {
	case KindSync:
		if ev.Sync == nil {
			return model.VenueSample{}, false, fmt.Errorf("sync event without payload: %w", model.ErrInvalidInput)
		}
		reserves := model.Reserves{A: ev.Sync.ReserveA, B: ev.Sync.ReserveB}
		price, err := amm.SpotPrice(amm.Pool{ReserveA: reserves.A, ReserveB: reserves.B})
		if err != nil {
			return model.VenueSample{}, false, fmt.Errorf("sync %s: %w", ev.Sync.PoolID, err)
		}
		t.reserves[ev.Sync.PoolID] = reserves
		return model.VenueSample{
			VenueID:   t.venue(ev.Sync.PoolID),
			Timestamp: ev.Timestamp,
			Price:     price,
			Reserves:  &reserves,
		}, true, nil
	case KindSwap:
		if ev.Swap == nil {
			return model.VenueSample{}, false, fmt.Errorf("swap event without payload: %w", model.ErrInvalidInput)
		}
		reserves, ok := t.reserves[ev.Swap.PoolID]
		if !ok {
			return model.VenueSample{}, false, nil
		}
		swap := *ev.Swap
		if swap.Timestamp == 0 {
			swap.Timestamp = ev.Timestamp
		}
		sample, err := SampleFromSwap(swap, t.venue(swap.PoolID), &reserves)
		if err != nil {
			return model.VenueSample{}, false, err
		}
		return sample, true, nil
	default:
		return model.VenueSample{}, false, nil
	}
}

// Reserves returns the last known reserves for pool.
func (t *ReserveTracker) Reserves(pool string) (model.Reserves, bool) {
	r, ok := t.reserves[pool]
	return r, ok
}

func (t *ReserveTracker) venue(pool string) string {
	if v, ok := t.venues[pool]; ok && v != "" {
		return v
	}
	return pool
}
