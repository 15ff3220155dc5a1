package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"oracleScope/internal/pipeline"
)

// SnapshotConfig holds configuration for the snapshot command.
type SnapshotConfig struct {
	RPCURL       string
	Pairs        []string
	VenueMap     map[string]string
	Interval     time.Duration
	Cadence      time.Duration
	Rounds       int
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
	Sink         SinkConfig
	Pipeline     pipeline.Config
}

// LoadSnapshot merges config file, environment variables, and flags into SnapshotConfig.
func LoadSnapshot(cfgFile string, flags *pflag.FlagSet) (SnapshotConfig, error) {
	v, err := load(cfgFile, flags, func(v *viper.Viper) {
		setOracleDefaults(v)
		v.SetDefault("out", "./data/snapshot_reports.jsonl")
		v.SetDefault("interval", 12*time.Second)
		v.SetDefault("rounds", 0)
		v.SetDefault("max-retries", 5)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
		// Live ticks should reach the sink as they happen.
		v.SetDefault("batch-size", 1)
	})
	if err != nil {
		return SnapshotConfig{}, err
	}

	p, err := oracleFromViper(v)
	if err != nil {
		return SnapshotConfig{}, err
	}

	cfg := SnapshotConfig{
		RPCURL:       v.GetString("rpc"),
		Pairs:        getStringSlice(v, "pair"),
		VenueMap:     getStringMap(v, "venue-map"),
		Interval:     v.GetDuration("interval"),
		Cadence:      v.GetDuration("cadence"),
		Rounds:       v.GetInt("rounds"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
		Sink:         sinkFromViper(v),
		Pipeline:     p,
	}
	if cfg.Cadence <= 0 {
		cfg.Cadence = cfg.Interval
	}

	if cfg.RPCURL == "" {
		return SnapshotConfig{}, fmt.Errorf("rpc url is required")
	}
	if len(cfg.Pairs) == 0 {
		return SnapshotConfig{}, fmt.Errorf("at least one pair address is required")
	}
	if cfg.Interval <= 0 {
		return SnapshotConfig{}, fmt.Errorf("interval must be greater than zero")
	}
	return cfg, nil
}
