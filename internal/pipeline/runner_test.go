package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"oracleScope/internal/amm"
	"oracleScope/internal/attack"
	"oracleScope/internal/benchmark"
	"oracleScope/internal/detect"
	"oracleScope/internal/feed"
	"oracleScope/internal/model"
	"oracleScope/internal/storage"
)

type batchSink struct {
	sizes []int
}

func (s *batchSink) PutReports(_ context.Context, reports []model.Report) error {
	s.sizes = append(s.sizes, len(reports))
	return nil
}

func testConfig() Config {
	cfg := detect.DefaultConfig()
	return Config{
		Benchmark: benchmark.Config{StaleAfter: cfg.StaleAfter},
		Detect:    cfg,
		BatchSize: 1,
	}
}

func cexTick(ts int64, price float64) model.CrossVenueTick {
	return model.CrossVenueTick{
		Timestamp: ts,
		Samples: []model.VenueSample{
			{VenueID: "CEX_A", Timestamp: ts, Price: price, Liquidity: 600_000},
			{VenueID: "CEX_B", Timestamp: ts, Price: price, Liquidity: 600_000},
		},
	}
}

func TestRunnerReportsEmptyTickAsMissing(t *testing.T) {
	mem := &storage.Memory{}
	runner, err := NewRunner(testConfig(), mem, nil)
	require.NoError(t, err)

	ticks := []model.CrossVenueTick{
		cexTick(10, 100),
		{Timestamp: 20},
		cexTick(30, 100),
	}
	reports, err := runner.Run(context.Background(), ticks)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	require.Len(t, mem.Reports(), 3)

	missing := reports[1]
	require.False(t, missing.Point.Defined)
	require.Equal(t, 1, missing.Flags.Count(model.KindMissingBenchmark))
	require.Equal(t, model.SeverityCritical, missing.Flags.MaxSeverity())

	require.True(t, reports[2].Point.Defined)
	require.InDelta(t, 100, reports[2].Point.Price, 1e-9)

	stats := runner.Stats()
	require.Equal(t, 3, stats.Ticks)
	require.Equal(t, 1, stats.Undefined)
	require.Equal(t, 1, stats.Rejected)
	require.Equal(t, 1, stats.ByKind[model.KindMissingBenchmark])
}

func TestRunnerAbortsOnTimestampRegression(t *testing.T) {
	mem := &storage.Memory{}
	runner, err := NewRunner(testConfig(), mem, nil)
	require.NoError(t, err)

	ticks := []model.CrossVenueTick{cexTick(10, 100), cexTick(20, 100), cexTick(15, 100)}
	reports, err := runner.Run(context.Background(), ticks)
	require.True(t, errors.Is(err, model.ErrInvalidInput))
	require.Len(t, reports, 2)
	require.Len(t, mem.Reports(), 2)

	// Equal timestamps are not a regression.
	_, err = runner.Step(context.Background(), cexTick(20, 100))
	require.NoError(t, err)
}

func TestRunnerBatchesReports(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 4
	sink := &batchSink{}
	runner, err := NewRunner(cfg, sink, nil)
	require.NoError(t, err)

	ticks := make([]model.CrossVenueTick, 0, 6)
	for i := 0; i < 6; i++ {
		ticks = append(ticks, cexTick(int64(10*i), 100))
	}
	_, err = runner.Run(context.Background(), ticks)
	require.NoError(t, err)
	require.Equal(t, []int{4, 2}, sink.sizes)
}

func TestRunnerRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Detect.JumpThreshold = 0
	_, err := NewRunner(cfg, nil, nil)
	require.True(t, errors.Is(err, model.ErrInvalidInput))

	cfg = testConfig()
	cfg.HistoryWindow = 64
	runner, err := NewRunner(cfg, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 64, runner.HistoryWindow())

	cfg.HistoryWindow = 1
	runner, err = NewRunner(cfg, nil, nil)
	require.NoError(t, err)
	require.Equal(t, cfg.Detect.HistoryWindow(), runner.HistoryWindow())
}

func TestRunnerOverGeneratedFeed(t *testing.T) {
	gen := feed.NewGenerator(7, 1_700_000_000)
	ticks, err := gen.Generate()
	require.NoError(t, err)

	runner, err := NewRunner(testConfig(), nil, nil)
	require.NoError(t, err)
	reports, err := runner.Run(context.Background(), ticks)
	require.NoError(t, err)
	require.Len(t, reports, gen.Ticks)

	for i, report := range reports {
		point := report.Point
		require.True(t, point.Defined, "tick %d", i)
		require.Greater(t, point.Price, 0.0)

		var sum float64
		for _, w := range point.Weights {
			require.GreaterOrEqual(t, w, 0.0)
			sum += w
		}
		require.InDelta(t, 1, sum, 1e-9, "tick %d", i)

		// The pool trades 12% rich for four ticks; divergence needs three in a row.
		spikeEnd := gen.Spike.From + gen.Spike.Length
		dwellReached := i >= gen.Spike.From+runner.cfg.Detect.DivergenceDwellTicks-1 && i < spikeEnd
		hasPoolDivergence := false
		for _, f := range report.Flags {
			if f.Kind == model.KindDivergence && f.Venue == "DEX_POOL" {
				hasPoolDivergence = true
			}
		}
		require.Equal(t, dwellReached, hasPoolDivergence, "tick %d", i)
	}
	require.Equal(t, gen.Ticks, runner.Stats().Ticks)
}

func TestRunnerOverAttackScenario(t *testing.T) {
	pool, err := amm.NewPool(100, 200_000, 0.003)
	require.NoError(t, err)
	scenario := attack.Scenario{
		Pool:      pool,
		Amount:    40,
		Direction: amm.AToB,
		DEXVenue:  "DEX_POOL",
		Reference: []model.VenueSample{{VenueID: "CEX_A", Price: 2000, Liquidity: 20_000}},
		Start:     10,
		Step:      10,
		Before:    10,
		Hold:      3,
		After:     5,
	}
	series, err := scenario.Ticks()
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Detect.ConcentrationThreshold = 0.95
	runner, err := NewRunner(cfg, nil, nil)
	require.NoError(t, err)
	reports, err := runner.Run(context.Background(), series.Ticks)
	require.NoError(t, err)

	during := reports[10].Point
	require.Equal(t, series.AttackFrom, during.Timestamp)
	require.InDelta(t, 1141.386, during.Price, 1e-3)
	require.InDelta(t, 162979.7, during.TotalLiquidity, 0.1)

	var flash []model.Flag
	for _, report := range reports {
		for _, f := range report.Flags {
			if f.Kind == model.KindFlashJumpReversion {
				flash = append(flash, f)
			}
		}
	}
	require.Len(t, flash, 1)
	require.Equal(t, series.AttackFrom, flash[0].Timestamp)
	require.Equal(t, series.RecoveredAt, flash[0].Window.To)

	stats := runner.Stats()
	require.Equal(t, model.SeverityHigh, stats.MaxSeverity)
	require.Zero(t, stats.Undefined)
}

func TestSummary(t *testing.T) {
	report := model.Report{
		Timestamp: 40,
		Point: model.BenchmarkPoint{
			Price:          2000.5,
			Defined:        true,
			TotalLiquidity: 1500,
			Venues: []model.VenueView{
				{VenueID: "a", Included: true, Weight: 1},
				{VenueID: "b", Reason: model.ReasonStale},
			},
		},
		Flags: model.NewFlagSet([]model.Flag{
			{Kind: model.KindStale, Severity: model.SeverityLow},
			{Kind: model.KindDivergence, Severity: model.SeverityMedium, Venue: "a"},
			{Kind: model.KindDivergence, Severity: model.SeverityMedium, Venue: "b"},
		}),
	}
	require.Equal(t, "ts=40 price=2000.5000 liq=1500 venues=1/2 flags=3 max=medium [divergence×2,stale]", Summary(report))

	undefined := model.Report{Timestamp: 50}
	require.Equal(t, "ts=50 price=UNDEFINED venues=0/0 flags=0", Summary(undefined))
}
