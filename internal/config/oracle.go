package config

import (
	"fmt"

	"github.com/spf13/viper"

	"oracleScope/internal/benchmark"
	"oracleScope/internal/detect"
	"oracleScope/internal/model"
	"oracleScope/internal/pipeline"
)

// SinkConfig selects where reports go. Both sinks may be active at once.
type SinkConfig struct {
	Out          string
	PGDSN        string
	RunID        string
	EnsureSchema bool
	Quiet        bool
}

func setOracleDefaults(v *viper.Viper) {
	d := detect.DefaultConfig()
	v.SetDefault("stale-after", d.StaleAfter)
	v.SetDefault("min-liquidity", d.MinLiquidity)
	v.SetDefault("concentration", d.ConcentrationThreshold)
	v.SetDefault("liquidity-quantile", d.LiquidityQuantile)
	v.SetDefault("quantile-min-samples", d.QuantileMinSamples)
	v.SetDefault("jump-threshold", d.JumpThreshold)
	v.SetDefault("reversion-window", d.ReversionWindow)
	v.SetDefault("twap-window", d.TWAPWindow)
	v.SetDefault("divergence-threshold", d.DivergenceThreshold)
	v.SetDefault("divergence-dwell", d.DivergenceDwellTicks)
	v.SetDefault("history-window", 0)
	v.SetDefault("batch-size", 100)

	v.SetDefault("run-id", "default")
	v.SetDefault("ensure-schema", true)
	v.SetDefault("quiet", false)
}

func oracleFromViper(v *viper.Viper) (pipeline.Config, error) {
	d := detect.Config{
		StaleAfter:             v.GetInt64("stale-after"),
		MinLiquidity:           v.GetFloat64("min-liquidity"),
		ConcentrationThreshold: v.GetFloat64("concentration"),
		LiquidityQuantile:      v.GetFloat64("liquidity-quantile"),
		QuantileMinSamples:     v.GetInt("quantile-min-samples"),
		JumpThreshold:          v.GetFloat64("jump-threshold"),
		ReversionWindow:        v.GetInt("reversion-window"),
		TWAPWindow:             v.GetInt("twap-window"),
		DivergenceThreshold:    v.GetFloat64("divergence-threshold"),
		DivergenceDwellTicks:   v.GetInt("divergence-dwell"),
	}
	if err := d.Validate(); err != nil {
		return pipeline.Config{}, err
	}

	cfg := pipeline.Config{
		Benchmark:     benchmark.Config{StaleAfter: d.StaleAfter},
		Detect:        d,
		HistoryWindow: v.GetInt("history-window"),
		BatchSize:     v.GetInt("batch-size"),
	}
	if cfg.HistoryWindow < 0 {
		return pipeline.Config{}, fmt.Errorf("history-window must be >= 0: %w", model.ErrInvalidInput)
	}
	if cfg.BatchSize < 1 {
		return pipeline.Config{}, fmt.Errorf("batch-size must be >= 1: %w", model.ErrInvalidInput)
	}
	return cfg, nil
}

func sinkFromViper(v *viper.Viper) SinkConfig {
	return SinkConfig{
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
		RunID:        v.GetString("run-id"),
		EnsureSchema: v.GetBool("ensure-schema"),
		Quiet:        v.GetBool("quiet"),
	}
}
