package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"oracleScope/internal/model"
	"oracleScope/internal/trace"
)

const (
	FormatTrace = "trace"
	FormatLogs  = "logs"
)

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	RPCURL   string
	In       string
	Format   string
	Out      string
	Errors   string
	Ticks    string
	LogLevel string
	// Pairs assigns token A and B per pool for raw trace records.
	Pairs map[string]trace.Pair
	// VenueMap renames pools to venue ids in emitted samples.
	VenueMap  map[string]string
	Topic0Map map[string]string

	// Chain log fetch, used when logs are read from RPC instead of a file.
	FromBlock    uint64
	ToBlock      uint64
	Addresses    []string
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// FromChain reports whether logs are fetched over RPC.
func (c DecodeConfig) FromChain() bool {
	return c.Format == FormatLogs && c.In == ""
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := load(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("format", FormatTrace)
		v.SetDefault("out", "./data/events.jsonl")
		v.SetDefault("errors", "./data/decode_errors.jsonl")
		v.SetDefault("ticks", "./data/dex_ticks.jsonl")
		v.SetDefault("batch-size", uint64(2000))
		v.SetDefault("max-retries", 5)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	pairs, err := parsePairs(getStringMap(v, "pairs"))
	if err != nil {
		return DecodeConfig{}, err
	}

	cfg := DecodeConfig{
		RPCURL:       v.GetString("rpc"),
		In:           v.GetString("in"),
		Format:       strings.ToLower(v.GetString("format")),
		Out:          v.GetString("out"),
		Errors:       v.GetString("errors"),
		Ticks:        v.GetString("ticks"),
		LogLevel:     v.GetString("log-level"),
		Pairs:        pairs,
		VenueMap:     getStringMap(v, "venue-map"),
		Topic0Map:    getStringMap(v, "topic0-map"),
		FromBlock:    v.GetUint64("from"),
		ToBlock:      v.GetUint64("to"),
		Addresses:    getStringSlice(v, "address"),
		BatchSize:    v.GetUint64("batch-size"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
	}

	switch cfg.Format {
	case FormatTrace:
		if cfg.In == "" {
			return DecodeConfig{}, fmt.Errorf("input path is required")
		}
	case FormatLogs:
		// Pair and token metadata is always read over RPC.
		if cfg.RPCURL == "" {
			return DecodeConfig{}, fmt.Errorf("rpc url is required for logs")
		}
	default:
		return DecodeConfig{}, fmt.Errorf("unknown format %q: %w", cfg.Format, model.ErrInvalidInput)
	}
	return cfg, nil
}

// parsePairs reads pool=TOKEN_A/TOKEN_B entries.
func parsePairs(raw map[string]string) (map[string]trace.Pair, error) {
	out := make(map[string]trace.Pair, len(raw))
	for pool, value := range raw {
		parts := strings.Split(value, "/")
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("pair %s=%s: want TOKEN_A/TOKEN_B: %w", pool, value, model.ErrInvalidInput)
		}
		out[pool] = trace.Pair{TokenA: strings.TrimSpace(parts[0]), TokenB: strings.TrimSpace(parts[1])}
	}
	return out, nil
}
