package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"oracleScope/internal/chain"
	"oracleScope/internal/config"
	"oracleScope/internal/dex"
	"oracleScope/internal/feed"
	"oracleScope/internal/indexer"
	"oracleScope/internal/model"
	"oracleScope/internal/pipeline"
)

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSnapshot(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addresses, err := indexer.ParseAddresses(cfg.Pairs)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("at least one pair address is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	tokens := dex.NewTokenMetaCache()
	pairs := make([]dex.PairMeta, 0, len(addresses))
	for _, address := range addresses {
		meta, err := dex.FetchPairMeta(ctx, chainClient, address, tokens, logger)
		if err != nil {
			return fmt.Errorf("pair %s: %w", address.Hex(), err)
		}
		pairs = append(pairs, meta)
		logger.Info("pair tracked",
			zap.String("pair", meta.Address),
			zap.String("token0", meta.Token0.Label()),
			zap.String("token1", meta.Token1.Label()),
		)
	}
	venues := checksumKeys(cfg.VenueMap)

	var head atomic.Int64
	poll := func(ctx context.Context) ([]model.VenueSample, error) {
		_, ts, err := chainClient.Head(ctx)
		if err != nil {
			return nil, fmt.Errorf("head: %w", err)
		}
		samples := make([]model.VenueSample, 0, len(pairs))
		for i, meta := range pairs {
			snapshot, err := dex.FetchReserves(ctx, chainClient, addresses[i], nil)
			if err != nil {
				return nil, err
			}
			sample, err := snapshot.Sample(meta, venues[meta.Address], int64(ts))
			if err != nil {
				return nil, err
			}
			samples = append(samples, sample)
		}
		head.Store(int64(ts))
		return samples, nil
	}

	sink, closeSinks, err := openSinks(ctx, cfg.Sink, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	runner, err := pipeline.NewRunner(cfg.Pipeline, sink, logger)
	if err != nil {
		return err
	}

	poller := indexer.NewPoller(cfg.Interval, logger)
	poller.Rounds = cfg.Rounds
	poller.MaxRetries = cfg.MaxRetries
	poller.RetryBackoff = cfg.RetryBackoff

	joiner := feed.NewJoiner(logger)
	// Block timestamps can run ahead of the local clock; never emit before the last head.
	joiner.Now = func() int64 {
		now := time.Now().Unix()
		if h := head.Load(); h > now {
			return h
		}
		return now
	}

	logger.Info("snapshot start",
		zap.Int("pairs", len(pairs)),
		zap.Duration("interval", cfg.Interval),
		zap.Duration("cadence", cfg.Cadence),
		zap.Int("rounds", cfg.Rounds),
	)

	samples := make(chan model.VenueSample, 4*len(pairs))
	pollErr := make(chan error, 1)
	go func() {
		pollErr <- poller.Run(ctx, poll, samples)
	}()

	joinErr := joiner.Run(ctx, samples, cfg.Cadence, func(tick model.CrossVenueTick) error {
		if head.Load() == 0 {
			// Nothing polled yet.
			return nil
		}
		_, err := runner.Step(ctx, tick)
		return err
	})
	interrupted := ctx.Err() != nil
	// Unblocks the poller when the joiner stopped on an error.
	stop()

	err = multierr.Combine(
		ignoreCanceled(joinErr),
		ignoreCanceled(<-pollErr),
		runner.Flush(context.WithoutCancel(ctx)),
	)
	logStats(logger, runner.Stats())
	if interrupted {
		logger.Info("snapshot interrupted")
	}
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
