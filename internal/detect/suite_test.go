package detect

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"oracleScope/internal/benchmark"
	"oracleScope/internal/model"
)

type panicDetector struct{}

func (panicDetector) Name() string { return "panicky" }

func (panicDetector) Evaluate(model.BenchmarkPoint, model.CrossVenueTick, []model.BenchmarkPoint) ([]model.Flag, error) {
	panic("boom")
}

type errorDetector struct{}

func (errorDetector) Name() string { return "failing" }

func (errorDetector) Evaluate(model.BenchmarkPoint, model.CrossVenueTick, []model.BenchmarkPoint) ([]model.Flag, error) {
	return nil, errors.New("broken input")
}

func staleTick() (model.BenchmarkPoint, model.CrossVenueTick) {
	tick := model.CrossVenueTick{
		Timestamp: 100,
		Samples: []model.VenueSample{
			{VenueID: "a", Timestamp: 0, Price: 10, Liquidity: 10},
			{VenueID: "b", Timestamp: 50, Price: 10, Liquidity: 10},
		},
	}
	point, _ := benchmark.Aggregate(tick, benchmark.Config{StaleAfter: 10}, 100)
	return point, tick
}

func TestSuiteUndefinedEmitsSingleMissingFlag(t *testing.T) {
	suite, err := NewDefaultSuite(DefaultConfig(), zap.NewNop())
	require.NoError(t, err)

	point, tick := staleTick()
	require.False(t, point.Defined)

	flags, err := suite.Evaluate(point, tick, nil)
	require.NoError(t, err)
	require.Equal(t, 1, flags.Count(model.KindMissingBenchmark))
	require.Equal(t, 2, flags.Count(model.KindStale))
	require.Equal(t, model.SeverityCritical, flags.MaxSeverity())
}

func TestSuiteIsolatesFailures(t *testing.T) {
	suite := NewSuite(nil, panicDetector{}, Staleness{StaleAfter: 10}, errorDetector{}, MissingBenchmark{})
	point, tick := staleTick()

	flags, err := suite.Evaluate(point, tick, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "panicky")
	require.Contains(t, err.Error(), "failing")
	require.Equal(t, 2, flags.Count(model.KindDetectorFailure))
	require.Equal(t, 2, flags.Count(model.KindStale))
	require.Equal(t, 1, flags.Count(model.KindMissingBenchmark))
}

func TestSuiteOrderDoesNotMatter(t *testing.T) {
	cfg := DefaultConfig()
	forward := All(cfg)
	backward := make([]Detector, len(forward))
	for i, d := range forward {
		backward[len(forward)-1-i] = d
	}

	point, tick := staleTick()
	a, errA := NewSuite(nil, forward...).Evaluate(point, tick, nil)
	b, errB := NewSuite(nil, backward...).Evaluate(point, tick, nil)
	require.NoError(t, errA)
	require.NoError(t, errB)
	require.Equal(t, a, b)
}

func TestSuiteIdempotent(t *testing.T) {
	suite, err := NewDefaultSuite(DefaultConfig(), nil)
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 15).Draw(rt, "points")
		window := make([]model.BenchmarkPoint, 0, n)
		for i := 0; i < n; i++ {
			window = append(window, singleVenuePoint(int64(i+1), rapid.Float64Range(50, 150).Draw(rt, "price")))
		}
		point := window[n-1]
		window = window[:n-1]
		tick := model.CrossVenueTick{Timestamp: point.Timestamp}

		first, err1 := suite.Evaluate(point, tick, window)
		second, err2 := suite.Evaluate(point, tick, window)
		if err1 != nil || err2 != nil {
			rt.Fatalf("unexpected errors: %v %v", err1, err2)
		}
		if !reflect.DeepEqual(first, second) {
			rt.Fatalf("suite is not idempotent: %+v != %+v", first, second)
		}
	})
}

func TestConfigValidation(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.JumpThreshold = 0
	require.ErrorIs(t, bad.Validate(), model.ErrInvalidInput)

	bad = DefaultConfig()
	bad.ConcentrationThreshold = 1.5
	_, err := NewDefaultSuite(bad, nil)
	require.ErrorIs(t, err, model.ErrInvalidInput)

	require.Equal(t, 10, DefaultConfig().HistoryWindow())
	require.Equal(t, []string{
		NameMissingBenchmark, NameStaleness, NameThinLiquidity, NameFlashJumpReversion, NameDivergence,
	}, NewSuite(nil, All(DefaultConfig())...).Detectors())
}
