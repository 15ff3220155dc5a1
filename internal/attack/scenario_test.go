package attack

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"oracleScope/internal/amm"
	"oracleScope/internal/benchmark"
	"oracleScope/internal/detect"
	"oracleScope/internal/model"
)

func demoScenario(t *testing.T) Scenario {
	return Scenario{
		Pool:      demoPool(t),
		Amount:    40,
		Direction: amm.AToB,
		DEXVenue:  "DEX_POOL",
		Reference: []model.VenueSample{
			{VenueID: "CEX_A", Price: 2000, Liquidity: 20_000},
		},
		Start:  10,
		Step:   10,
		Before: 10,
		Hold:   3,
		After:  5,
	}
}

func TestScenarioTicksShape(t *testing.T) {
	series, err := demoScenario(t).Ticks()
	require.NoError(t, err)
	require.Len(t, series.Ticks, 18)
	require.Equal(t, int64(110), series.AttackFrom)
	require.Equal(t, int64(130), series.AttackTo)
	require.Equal(t, int64(140), series.RecoveredAt)

	for i, tick := range series.Ticks {
		require.Equal(t, int64(10+10*i), tick.Timestamp)
		require.Len(t, tick.Samples, 2)

		cex, ok := tick.Sample("CEX_A")
		require.True(t, ok)
		require.Equal(t, tick.Timestamp, cex.Timestamp)

		dex, ok := tick.Sample("DEX_POOL")
		require.True(t, ok)
		require.True(t, dex.IsDEX())
		require.Equal(t, tick.Timestamp, dex.Timestamp)

		switch {
		case tick.Timestamp < series.AttackFrom:
			require.Equal(t, series.Trajectory.PrePrice, dex.Price)
		case tick.Timestamp <= series.AttackTo:
			require.Equal(t, series.Trajectory.DuringPrice, dex.Price)
			require.Equal(t, series.Trajectory.During.ReserveA, dex.Reserves.A)
		default:
			require.Equal(t, series.Trajectory.PostPrice, dex.Price)
		}
	}
}

func TestScenarioValidation(t *testing.T) {
	s := demoScenario(t)
	s.Hold = 0
	_, err := s.Ticks()
	require.True(t, errors.Is(err, model.ErrInvalidInput))

	s = demoScenario(t)
	s.Reference = append(s.Reference, model.VenueSample{VenueID: "DEX_POOL", Price: 1, Liquidity: 1})
	_, err = s.Ticks()
	require.True(t, errors.Is(err, model.ErrInvalidInput))

	s = demoScenario(t)
	s.Amount = -1
	_, err = s.Ticks()
	require.True(t, errors.Is(err, model.ErrInvalidInput))
}

// The attacked pool dominates the benchmark, so the detectors must fire inside the
// attack window and go quiet once the pool is restored.
func TestScenarioThroughDetectors(t *testing.T) {
	series, err := demoScenario(t).Ticks()
	require.NoError(t, err)

	cfg := detect.DefaultConfig()
	cfg.ConcentrationThreshold = 0.95
	suite, err := detect.NewDefaultSuite(cfg, nil)
	require.NoError(t, err)

	history := benchmark.NewHistory(cfg.HistoryWindow())
	flagsAt := map[int64]model.FlagSet{}
	for _, tick := range series.Ticks {
		point, err := benchmark.Aggregate(tick, benchmark.Config{StaleAfter: cfg.StaleAfter}, tick.Timestamp)
		require.NoError(t, err)
		require.True(t, point.Defined)

		flags, err := suite.Evaluate(point, tick, history.Points())
		require.NoError(t, err)
		flagsAt[tick.Timestamp] = flags
		history.Append(point)
	}

	for ts, flags := range flagsAt {
		switch {
		case ts < series.AttackFrom:
			require.Empty(t, flags, "before attack at %d", ts)
		case ts <= series.AttackTo:
			require.True(t, flags.Has(model.KindLiquidityQuantile), "attack tick %d", ts)
		case ts == series.RecoveredAt:
			require.Equal(t, 1, flags.Count(model.KindFlashJumpReversion))
			for _, f := range flags {
				if f.Kind == model.KindFlashJumpReversion {
					require.Equal(t, series.AttackFrom, f.Timestamp)
					require.Equal(t, series.RecoveredAt, f.Window.To)
				}
			}
		default:
			require.Empty(t, flags, "after recovery at %d", ts)
		}
	}

	last := flagsAt[series.AttackTo]
	require.True(t, last.Has(model.KindDivergence))
	require.Equal(t, model.SeverityHigh, last.MaxSeverity())
}
