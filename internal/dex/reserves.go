package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"oracleScope/internal/amm"
	"oracleScope/internal/model"
	"oracleScope/internal/trace"
)

// ReserveSnapshot is the raw result of getReserves.
type ReserveSnapshot struct {
	Pair               common.Address
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

// FetchReserves calls getReserves on pair. A nil block reads the latest state.
func FetchReserves(ctx context.Context, caller ethereum.ContractCaller, pair common.Address, block *big.Int) (ReserveSnapshot, error) {
	if caller == nil {
		return ReserveSnapshot{}, fmt.Errorf("chain client is nil")
	}
	parsed, err := PairABI()
	if err != nil {
		return ReserveSnapshot{}, fmt.Errorf("parse pair abi: %w", err)
	}

	values, err := callMethod(ctx, caller, pair, parsed, "getReserves", block)
	if err != nil {
		return ReserveSnapshot{}, err
	}
	if len(values) != 3 {
		return ReserveSnapshot{}, fmt.Errorf("unexpected getReserves values: %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return ReserveSnapshot{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return ReserveSnapshot{}, fmt.Errorf("reserve1: %w", err)
	}
	last, ok := values[2].(uint32)
	if !ok {
		return ReserveSnapshot{}, fmt.Errorf("blockTimestampLast: unsupported type %T", values[2])
	}

	return ReserveSnapshot{
		Pair:               pair,
		Reserve0:           reserve0,
		Reserve1:           reserve1,
		BlockTimestampLast: last,
	}, nil
}

// SyncRecord scales raw reserves into token units.
func (m PairMeta) SyncRecord(reserve0, reserve1 *big.Int) trace.SyncRecord {
	return trace.SyncRecord{
		PoolID:   m.Address,
		ReserveA: m.Token0.Scale(reserve0),
		ReserveB: m.Token1.Scale(reserve1),
	}
}

// Sample prices a snapshot as token1 per token0 with reserves attached. The sample is
// stamped with ts, the time the snapshot was read, not the pair's last update.
func (s ReserveSnapshot) Sample(meta PairMeta, venue string, ts int64) (model.VenueSample, error) {
	sync := meta.SyncRecord(s.Reserve0, s.Reserve1)
	price, err := amm.SpotPrice(amm.Pool{ReserveA: sync.ReserveA, ReserveB: sync.ReserveB})
	if err != nil {
		return model.VenueSample{}, fmt.Errorf("pair %s: %w", meta.Address, err)
	}
	if venue == "" {
		venue = meta.Address
	}
	return model.VenueSample{
		VenueID:   venue,
		Timestamp: ts,
		Price:     price,
		Reserves:  &model.Reserves{A: sync.ReserveA, B: sync.ReserveB},
	}, nil
}
