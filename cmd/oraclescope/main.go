package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"oracleScope/internal/config"
	"oracleScope/internal/detect"
	"oracleScope/internal/model"
	"oracleScope/internal/pipeline"
	"oracleScope/internal/storage"
	"oracleScope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "oraclescope",
		Short:        "Liquidity-weighted benchmark oracle with manipulation detectors",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the oracle over a JSONL tick feed",
		RunE:  runOracle,
	}
	runCmd.Flags().String("in", "", "input ticks JSONL")
	addOracleFlags(runCmd, "./data/reports.jsonl", 100)
	root.AddCommand(runCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a flash-swap attack on a pool through the oracle",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().Float64("reserve-a", 100, "pool reserve of token A")
	simulateCmd.Flags().Float64("reserve-b", 200_000, "pool reserve of token B")
	simulateCmd.Flags().Float64("fee-rate", 0.003, "pool fee rate in [0,1)")
	simulateCmd.Flags().Float64("amount", 40, "attack swap input amount")
	simulateCmd.Flags().String("direction", "a_to_b", "attack direction (a_to_b, b_to_a)")
	simulateCmd.Flags().String("dex-venue", "DEX_POOL", "venue id of the attacked pool")
	simulateCmd.Flags().StringSlice("reference", []string{"CEX_A:2000:20000"}, "reference venues VENUE:PRICE:LIQUIDITY (comma-separated)")
	simulateCmd.Flags().String("start", "1700000000", "first tick timestamp (unix seconds or RFC3339)")
	simulateCmd.Flags().Int64("step", 10, "seconds between ticks")
	simulateCmd.Flags().Int("before", 10, "ticks before the attack")
	simulateCmd.Flags().Int("hold", 3, "ticks the attacked pool is held")
	simulateCmd.Flags().Int("after", 5, "ticks after the recovery swap")
	addOracleFlags(simulateCmd, "./data/simulate_reports.jsonl", 100)
	root.AddCommand(simulateCmd)

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a seeded synthetic multi-venue feed",
		RunE:  runGenerate,
	}
	generateCmd.Flags().Int64("seed", 1, "random seed")
	generateCmd.Flags().String("start", "1700000000", "first tick timestamp (unix seconds or RFC3339)")
	generateCmd.Flags().Int64("step", 10, "seconds between ticks")
	generateCmd.Flags().Int("ticks", 60, "number of ticks")
	generateCmd.Flags().Float64("base-price", 2000, "starting price")
	generateCmd.Flags().Float64("drift", 0.2, "price drift per tick")
	generateCmd.Flags().Float64("noise", 3, "common price noise per tick")
	generateCmd.Flags().Bool("spike", true, "inject a drained-pool price spike")
	generateCmd.Flags().String("out", "./data/ticks.jsonl", "output ticks JSONL, - for stdout")
	generateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(generateCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode swap traces or pair logs into events, pool summaries and DEX ticks",
		RunE:  runDecode,
	}
	decodeCmd.Flags().String("format", "trace", "input format (trace, logs)")
	decodeCmd.Flags().String("in", "", "input JSONL; logs are fetched over RPC when empty")
	decodeCmd.Flags().String("rpc", "", "EVM RPC URL")
	decodeCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("ticks", "./data/dex_ticks.jsonl", "output DEX ticks JSONL")
	decodeCmd.Flags().String("pairs", "", "pool token pairs for traces (comma-separated pool=TOKEN_A/TOKEN_B)")
	decodeCmd.Flags().String("venue-map", "", "pool to venue id mappings (comma-separated pool=venue)")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	decodeCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	decodeCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	decodeCmd.Flags().StringSlice("address", nil, "pair addresses to fetch logs for (comma-separated)")
	decodeCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	decodeCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	decodeCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(decodeCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Poll pair reserves over RPC and run the oracle live",
		RunE:  runSnapshot,
	}
	snapshotCmd.Flags().String("rpc", "", "EVM RPC URL")
	snapshotCmd.Flags().StringSlice("pair", nil, "pair addresses (comma-separated)")
	snapshotCmd.Flags().String("venue-map", "", "pair to venue id mappings (comma-separated pair=venue)")
	snapshotCmd.Flags().Duration("interval", 12*time.Second, "reserve poll interval")
	snapshotCmd.Flags().Duration("cadence", 0, "tick cadence, defaults to the poll interval")
	snapshotCmd.Flags().Int("rounds", 0, "stop after this many polls, 0 runs until interrupted")
	snapshotCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	snapshotCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	addOracleFlags(snapshotCmd, "./data/snapshot_reports.jsonl", 1)
	root.AddCommand(snapshotCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addOracleFlags(cmd *cobra.Command, out string, batchSize int) {
	d := detect.DefaultConfig()
	flags := cmd.Flags()
	flags.Int64("stale-after", d.StaleAfter, "maximum sample age before a venue is excluded")
	flags.Float64("min-liquidity", d.MinLiquidity, "absolute liquidity floor")
	flags.Float64("concentration", d.ConcentrationThreshold, "maximum single-venue weight")
	flags.Float64("liquidity-quantile", d.LiquidityQuantile, "adaptive liquidity floor quantile, 0 disables")
	flags.Int("quantile-min-samples", d.QuantileMinSamples, "history needed before the adaptive floor applies")
	flags.Float64("jump-threshold", d.JumpThreshold, "relative move that counts as a jump")
	flags.Int("reversion-window", d.ReversionWindow, "ticks a jump has to revert")
	flags.Int("twap-window", d.TWAPWindow, "ticks in the jump baseline TWAP")
	flags.Float64("divergence-threshold", d.DivergenceThreshold, "relative venue deviation from the benchmark")
	flags.Int("divergence-dwell", d.DivergenceDwellTicks, "consecutive ticks a deviation must persist")
	flags.Int("history-window", 0, "benchmark history length, 0 sizes it from the detectors")
	flags.Int("batch-size", batchSize, "reports per sink write")
	flags.String("out", out, "output reports JSONL, empty disables")
	flags.String("pg-dsn", "", "Postgres DSN for report export")
	flags.String("run-id", "default", "run id for exported rows")
	flags.Bool("ensure-schema", true, "create report tables when missing")
	flags.Bool("quiet", false, "do not print per-tick summaries")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

// summaryPrinter prints one line per report.
type summaryPrinter struct {
	w io.Writer
}

func (p summaryPrinter) PutReports(_ context.Context, reports []model.Report) error {
	for _, report := range reports {
		if _, err := fmt.Fprintln(p.w, pipeline.Summary(report)); err != nil {
			return err
		}
	}
	return nil
}

// openSinks builds the configured report sinks. The returned closer is never nil.
func openSinks(ctx context.Context, cfg config.SinkConfig, stdout io.Writer, logger *zap.Logger) (storage.ReportSink, func(), error) {
	var (
		sinks  storage.Multi
		closer = func() {}
	)

	if !cfg.Quiet {
		sinks = append(sinks, summaryPrinter{w: stdout})
	}

	if cfg.Out != "" {
		jsonl := storage.NewJsonlStorage(cfg.Out)
		if err := jsonl.Reset(); err != nil {
			return nil, closer, err
		}
		sinks = append(sinks, jsonl)
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN, cfg.RunID)
		if err != nil {
			return nil, closer, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				store.Close()
				return nil, closer, err
			}
		}
		sinks = append(sinks, store)
		closer = store.Close
	}

	logger.Info("report sinks",
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.String("run_id", cfg.RunID),
	)
	return sinks, closer, nil
}

func logStats(logger *zap.Logger, stats pipeline.Stats) {
	fields := []zap.Field{
		zap.Int("ticks", stats.Ticks),
		zap.Int("undefined", stats.Undefined),
		zap.Int("rejected", stats.Rejected),
		zap.Int("flagged", stats.Flagged),
		zap.Int("flags", stats.Flags),
		zap.String("max_severity", stats.MaxSeverity.String()),
	}
	for kind, n := range stats.ByKind {
		fields = append(fields, zap.Int("flags_"+string(kind), n))
	}
	logger.Info("oracle summary", fields...)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
