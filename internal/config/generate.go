package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"oracleScope/internal/feed"
)

// GenerateConfig holds configuration for the generate command.
type GenerateConfig struct {
	Generator feed.Generator
	Out       string
	LogLevel  string
}

// LoadGenerate merges config file, environment variables, and flags into GenerateConfig.
func LoadGenerate(cfgFile string, flags *pflag.FlagSet) (GenerateConfig, error) {
	d := feed.NewGenerator(0, 0)
	v, err := load(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("out", "./data/ticks.jsonl")
		v.SetDefault("seed", int64(1))
		v.SetDefault("start", "1700000000")
		v.SetDefault("step", d.Step)
		v.SetDefault("ticks", d.Ticks)
		v.SetDefault("base-price", d.BasePrice)
		v.SetDefault("drift", d.Drift)
		v.SetDefault("noise", d.Noise)
		v.SetDefault("spike", true)
	})
	if err != nil {
		return GenerateConfig{}, err
	}

	start, err := ParseTimestamp(v.GetString("start"))
	if err != nil {
		return GenerateConfig{}, fmt.Errorf("parse start: %w", err)
	}

	gen := feed.NewGenerator(v.GetInt64("seed"), start)
	gen.Step = v.GetInt64("step")
	gen.Ticks = v.GetInt("ticks")
	gen.BasePrice = v.GetFloat64("base-price")
	gen.Drift = v.GetFloat64("drift")
	gen.Noise = v.GetFloat64("noise")
	if v.GetBool("spike") {
		// Keep the spike at the same relative position when ticks changes.
		gen.Spike.From = gen.Ticks * 55 / 100
	} else {
		gen.Spike = nil
	}

	return GenerateConfig{
		Generator: gen,
		Out:       v.GetString("out"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}
