package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"oracleScope/internal/amm"
	"oracleScope/internal/attack"
	"oracleScope/internal/model"
	"oracleScope/internal/pipeline"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Scenario attack.Scenario
	LogLevel string
	Sink     SinkConfig
	Pipeline pipeline.Config
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := load(cfgFile, flags, func(v *viper.Viper) {
		setOracleDefaults(v)
		v.SetDefault("out", "./data/simulate_reports.jsonl")
		v.SetDefault("reserve-a", 100.0)
		v.SetDefault("reserve-b", 200_000.0)
		v.SetDefault("fee-rate", 0.003)
		v.SetDefault("amount", 40.0)
		v.SetDefault("direction", "a_to_b")
		v.SetDefault("dex-venue", "DEX_POOL")
		v.SetDefault("reference", []string{"CEX_A:2000:20000"})
		v.SetDefault("start", "1700000000")
		v.SetDefault("step", 10)
		v.SetDefault("before", 10)
		v.SetDefault("hold", 3)
		v.SetDefault("after", 5)
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	p, err := oracleFromViper(v)
	if err != nil {
		return SimulateConfig{}, err
	}

	pool, err := amm.NewPool(v.GetFloat64("reserve-a"), v.GetFloat64("reserve-b"), v.GetFloat64("fee-rate"))
	if err != nil {
		return SimulateConfig{}, err
	}
	var dir amm.Direction
	if err := dir.UnmarshalText([]byte(v.GetString("direction"))); err != nil {
		return SimulateConfig{}, err
	}
	reference, err := ParseReference(getStringSlice(v, "reference"))
	if err != nil {
		return SimulateConfig{}, err
	}
	start, err := ParseTimestamp(v.GetString("start"))
	if err != nil {
		return SimulateConfig{}, fmt.Errorf("parse start: %w", err)
	}

	return SimulateConfig{
		Scenario: attack.Scenario{
			Pool:      pool,
			Amount:    v.GetFloat64("amount"),
			Direction: dir,
			DEXVenue:  v.GetString("dex-venue"),
			Reference: reference,
			Start:     start,
			Step:      v.GetInt64("step"),
			Before:    v.GetInt("before"),
			Hold:      v.GetInt("hold"),
			After:     v.GetInt("after"),
		},
		LogLevel: v.GetString("log-level"),
		Sink:     sinkFromViper(v),
		Pipeline: p,
	}, nil
}

// ParseReference parses VENUE:PRICE:LIQUIDITY items into reference venue samples.
func ParseReference(items []string) ([]model.VenueSample, error) {
	out := make([]model.VenueSample, 0, len(items))
	for _, item := range items {
		parts := strings.Split(item, ":")
		if len(parts) != 3 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("reference %q: want VENUE:PRICE:LIQUIDITY: %w", item, model.ErrInvalidInput)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("reference %q price: %w", item, err)
		}
		liquidity, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("reference %q liquidity: %w", item, err)
		}
		out = append(out, model.VenueSample{
			VenueID:   strings.TrimSpace(parts[0]),
			Price:     price,
			Liquidity: liquidity,
		})
	}
	return out, nil
}
