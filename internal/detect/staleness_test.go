package detect

import (
	"testing"

	"oracleScope/internal/benchmark"
	"oracleScope/internal/model"
)

func TestStalenessSeverityScalesWithAge(t *testing.T) {
	tick := model.CrossVenueTick{
		Timestamp: 1000,
		Samples: []model.VenueSample{
			{VenueID: "fresh", Timestamp: 1000, Price: 100, Liquidity: 10},
			{VenueID: "ancient", Timestamp: 900, Price: 100, Liquidity: 10},
			{VenueID: "late", Timestamp: 988, Price: 100, Liquidity: 10},
		},
	}
	point, err := benchmark.Aggregate(tick, benchmark.Config{StaleAfter: 10}, 1000)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	flags, err := Staleness{StaleAfter: 10}.Evaluate(point, tick, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(flags) != 2 {
		t.Fatalf("expected two stale flags, got %+v", flags)
	}

	byVenue := map[string]model.Flag{}
	for _, f := range flags {
		byVenue[f.Venue] = f
	}
	ancient, late := byVenue["ancient"], byVenue["late"]
	if ancient.Score != 9 {
		t.Fatalf("score should be (age-threshold)/threshold, got %f", ancient.Score)
	}
	if ancient.Severity != model.SeverityHigh || late.Severity != model.SeverityLow {
		t.Fatalf("severity mismatch: ancient=%v late=%v", ancient.Severity, late.Severity)
	}
	if ancient.Window == nil || ancient.Window.From != 900 {
		t.Fatalf("window should start at the sample timestamp: %+v", ancient.Window)
	}
}

func TestStaleScoreWithZeroThreshold(t *testing.T) {
	if got := staleScore(3, 0); got != 3 {
		t.Fatalf("zero threshold should score raw overshoot, got %f", got)
	}
	if staleSeverity(25) != model.SeverityCritical {
		t.Fatalf("large overshoot should be critical")
	}
}

func TestMissingBenchmarkSingleFlag(t *testing.T) {
	flags, err := MissingBenchmark{}.Evaluate(model.BenchmarkPoint{Timestamp: 5}, model.CrossVenueTick{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(flags) != 1 || flags[0].Kind != model.KindMissingBenchmark || flags[0].Severity != model.SeverityCritical {
		t.Fatalf("unexpected flags: %+v", flags)
	}

	flags, _ = MissingBenchmark{}.Evaluate(singleVenuePoint(5, 100), model.CrossVenueTick{}, nil)
	if len(flags) != 0 {
		t.Fatalf("defined point must not be flagged missing: %+v", flags)
	}
}
