package model

import (
	"fmt"
	"sort"
)

// Severity orders flags from informational to critical.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "info":
		*s = SeverityInfo
	case "low":
		*s = SeverityLow
	case "medium":
		*s = SeverityMedium
	case "high":
		*s = SeverityHigh
	case "critical":
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity: %s", text)
	}
	return nil
}

// FlagKind identifies what a detector observed.
type FlagKind string

const (
	KindMissingBenchmark   FlagKind = "missing_benchmark"
	KindStale              FlagKind = "stale"
	KindLiquidityFloor     FlagKind = "liquidity_floor"
	KindLiquidityQuantile  FlagKind = "liquidity_quantile"
	KindConcentration      FlagKind = "concentration"
	KindFlashJumpReversion FlagKind = "flash_jump_reversion"
	KindLargeMove          FlagKind = "large_move"
	KindDivergence         FlagKind = "divergence"
	KindDetectorFailure    FlagKind = "detector_failure"
)

// WindowRef points at the tick range a flag is about.
type WindowRef struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Flag is one detector finding.
type Flag struct {
	Detector  string     `json:"detector"`
	Kind      FlagKind   `json:"kind"`
	Timestamp int64      `json:"timestamp"`
	Severity  Severity   `json:"severity"`
	Score     float64    `json:"score"`
	Venue     string     `json:"venue,omitempty"`
	Window    *WindowRef `json:"window,omitempty"`
	Message   string     `json:"message"`
}

// FlagSet is the union of detector flags for one tick, kept in a canonical order.
type FlagSet []Flag

// NewFlagSet sorts flags so that detector order does not leak into the result.
func NewFlagSet(flags []Flag) FlagSet {
	out := make(FlagSet, len(flags))
	copy(out, flags)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Detector != b.Detector {
			return a.Detector < b.Detector
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Venue != b.Venue {
			return a.Venue < b.Venue
		}
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.Message < b.Message
	})
	return out
}

// Count returns how many flags have the given kind.
func (fs FlagSet) Count(kind FlagKind) int {
	n := 0
	for _, f := range fs {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// Has reports whether any flag has the given kind.
func (fs FlagSet) Has(kind FlagKind) bool {
	return fs.Count(kind) > 0
}

// MaxSeverity returns the highest severity in the set, or SeverityInfo when empty.
func (fs FlagSet) MaxSeverity() Severity {
	max := SeverityInfo
	for _, f := range fs {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return max
}
