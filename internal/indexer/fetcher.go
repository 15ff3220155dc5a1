package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"oracleScope/internal/model"
)

// LogSource is the slice of the chain client the fetcher needs.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// FetchConfig holds the block range and filters for a fetch.
type FetchConfig struct {
	FromBlock uint64
	// ToBlock of 0 means the latest block.
	ToBlock      uint64
	Addresses    []common.Address
	Topic0       []common.Hash
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Fetcher pulls pair logs from the chain in block batches and hands them over as LogRecords.
type Fetcher struct {
	cfg    FetchConfig
	source LogSource
	logger *zap.Logger
	seen   map[string]struct{}
}

// NewFetcher builds a Fetcher with its dependencies.
func NewFetcher(cfg FetchConfig, source LogSource, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:    cfg,
		source: source,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Run walks the configured range and calls handle once per batch, in block order.
// Removed (reorged) and duplicate logs are dropped.
func (f *Fetcher) Run(ctx context.Context, handle func([]model.LogRecord) error) error {
	if f.source == nil {
		return fmt.Errorf("chain client is nil")
	}
	if handle == nil {
		return fmt.Errorf("handler is nil")
	}
	if f.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(f.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}

	chainID, err := f.source.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := f.cfg.FromBlock
	to := f.cfg.ToBlock
	if to == 0 {
		latest, err := f.source.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}
	if from > to {
		f.logger.Info("nothing to fetch", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, f.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f.logger.Debug("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := f.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		records := make([]model.LogRecord, 0, len(logs))
		for _, log := range logs {
			if log.Removed || f.isDuplicate(log) {
				continue
			}

			ts, err := f.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			records = append(records, buildLogRecord(chainIDValue, log, ts))
		}

		if err := handle(records); err != nil {
			return err
		}

		f.logger.Info("batch fetched", zap.Int("logs", len(records)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return nil
}

func (f *Fetcher) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = f.source.FilterLogs(ctx, fromBlock, toBlock, f.cfg.Addresses, f.cfg.Topic0)
		if err != nil {
			f.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (f *Fetcher) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = f.source.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			f.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (f *Fetcher) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := f.seen[id]; ok {
		return true
	}
	f.seen[id] = struct{}{}
	return false
}
