package indexer

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"oracleScope/internal/model"
)

type fakeSource struct {
	latest      uint64
	logs        []types.Log
	filterFails int
	filterCalls int
}

func (f *fakeSource) GetChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number*12, nil
}

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, _ []common.Hash) ([]types.Log, error) {
	f.filterCalls++
	if f.filterFails > 0 {
		f.filterFails--
		return nil, errors.New("rate limited")
	}
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	return out, nil
}

func testLog(block uint64, index uint) types.Log {
	return types.Log{
		Address:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Topics:      []common.Hash{common.HexToHash("0x01")},
		Data:        []byte{0x2a},
		BlockNumber: block,
		TxHash:      common.HexToHash("0xabc"),
		Index:       index,
	}
}

func TestFetcherBatchesAndDedupes(t *testing.T) {
	source := &fakeSource{
		latest:      105,
		filterFails: 1,
		logs: []types.Log{
			testLog(100, 0),
			testLog(100, 0),
			testLog(103, 1),
			func() types.Log { l := testLog(104, 2); l.Removed = true; return l }(),
		},
	}
	fetcher := NewFetcher(FetchConfig{
		FromBlock:    100,
		Addresses:    []common.Address{common.HexToAddress("0x1111111111111111111111111111111111111111")},
		BatchSize:    3,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, source, nil)

	var batches [][]model.LogRecord
	err := fetcher.Run(context.Background(), func(records []model.LogRecord) error {
		batches = append(batches, records)
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(batches))
	}
	if len(batches[0]) != 1 || len(batches[1]) != 1 {
		t.Fatalf("batch sizes = %d, %d", len(batches[0]), len(batches[1]))
	}
	// One failed call plus one per batch.
	if source.filterCalls != 3 {
		t.Fatalf("filter calls = %d, want 3", source.filterCalls)
	}

	rec := batches[1][0]
	if rec.BlockNumber != 103 || rec.Timestamp != 1_700_000_000+103*12 || rec.Data != "0x2a" || rec.ChainID != 1 {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Topic0() != "0x0000000000000000000000000000000000000000000000000000000000000001" {
		t.Fatalf("topic0 = %s", rec.Topic0())
	}
}

func TestFetcherGivesUpAfterRetries(t *testing.T) {
	source := &fakeSource{latest: 10, filterFails: 5}
	fetcher := NewFetcher(FetchConfig{
		Addresses:    []common.Address{{}},
		BatchSize:    100,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	}, source, nil)

	err := fetcher.Run(context.Background(), func([]model.LogRecord) error { return nil })
	if err == nil {
		t.Fatalf("expected error")
	}
	if source.filterCalls != 2 {
		t.Fatalf("filter calls = %d, want 2", source.filterCalls)
	}
}

func TestFetcherValidation(t *testing.T) {
	handle := func([]model.LogRecord) error { return nil }
	if err := NewFetcher(FetchConfig{BatchSize: 1}, &fakeSource{}, nil).Run(context.Background(), handle); err == nil {
		t.Fatalf("expected error without addresses")
	}
	if err := NewFetcher(FetchConfig{Addresses: []common.Address{{}}}, &fakeSource{}, nil).Run(context.Background(), handle); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
	if err := NewFetcher(FetchConfig{Addresses: []common.Address{{}}, BatchSize: 1}, nil, nil).Run(context.Background(), handle); err == nil {
		t.Fatalf("expected error for nil source")
	}
}

func TestPollerRounds(t *testing.T) {
	poller := NewPoller(time.Millisecond, nil)
	poller.Rounds = 3
	poller.RetryBackoff = time.Millisecond
	poller.MaxRetries = 1

	calls := 0
	poll := func(context.Context) ([]model.VenueSample, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("flaky")
		}
		return []model.VenueSample{{VenueID: "pool", Timestamp: int64(calls), Price: 1}}, nil
	}

	out := make(chan model.VenueSample, 10)
	if err := poller.Run(context.Background(), poll, out); err != nil {
		t.Fatalf("run: %v", err)
	}

	var got []int64
	for s := range out {
		got = append(got, s.Timestamp)
	}
	// The failed second call is retried within round two.
	if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 4 {
		t.Fatalf("timestamps = %v", got)
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan model.VenueSample)
	err := NewPoller(time.Hour, nil).Run(ctx, func(context.Context) ([]model.VenueSample, error) { return nil, nil }, out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := <-out; ok {
		t.Fatalf("out not closed")
	}
}
