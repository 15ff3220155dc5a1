package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oracleScope/internal/config"
	"oracleScope/internal/feed"
	"oracleScope/internal/pipeline"
)

func runOracle(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRun(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	ticks, err := feed.ReadTicks(inputFile)
	if err != nil {
		return fmt.Errorf("read ticks: %w", err)
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

	logger.Info("run start",
		zap.String("in", cfg.In),
		zap.Int("ticks", len(ticks)),
		zap.Int64("stale_after", cfg.Pipeline.Benchmark.StaleAfter),
		zap.Int("history_window", runner.HistoryWindow()),
	)

	if _, err := runner.Run(ctx, ticks); err != nil {
		return err
	}
	logStats(logger, runner.Stats())
	return nil
}
