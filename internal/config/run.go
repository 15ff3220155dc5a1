package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"oracleScope/internal/pipeline"
)

// RunConfig holds configuration for the run command.
type RunConfig struct {
	In       string
	LogLevel string
	Sink     SinkConfig
	Pipeline pipeline.Config
}

// LoadRun merges config file, environment variables, and flags into RunConfig.
func LoadRun(cfgFile string, flags *pflag.FlagSet) (RunConfig, error) {
	v, err := load(cfgFile, flags, func(v *viper.Viper) {
		setOracleDefaults(v)
		v.SetDefault("out", "./data/reports.jsonl")
	})
	if err != nil {
		return RunConfig{}, err
	}

	p, err := oracleFromViper(v)
	if err != nil {
		return RunConfig{}, err
	}

	return RunConfig{
		In:       v.GetString("in"),
		LogLevel: v.GetString("log-level"),
		Sink:     sinkFromViper(v),
		Pipeline: p,
	}, nil
}
