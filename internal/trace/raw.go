package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"oracleScope/internal/amm"
	"oracleScope/internal/model"
)

// RawRecord is the fixed-field trace line produced by off-chain tooling.
type RawRecord struct {
	TxHash    string  `json:"tx_hash"`
	LogIndex  uint64  `json:"log_index,omitempty"`
	EventType string  `json:"event_type"`
	Pool      string  `json:"pool"`
	TokenIn   string  `json:"token_in,omitempty"`
	TokenOut  string  `json:"token_out,omitempty"`
	AmountIn  float64 `json:"amount_in,omitempty"`
	AmountOut float64 `json:"amount_out,omitempty"`
	ReserveA  float64 `json:"reserve_a,omitempty"`
	ReserveB  float64 `json:"reserve_b,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// Pair names a pool's token A and token B.
type Pair struct {
	TokenA string `json:"token_a" mapstructure:"token_a"`
	TokenB string `json:"token_b" mapstructure:"token_b"`
}

// Decoder turns raw records into events. Pools without a configured pair take
// their tokens in lexical order, the same way pair contracts sort token addresses.
type Decoder struct {
	pairs map[string]Pair
}

func NewDecoder(pairs map[string]Pair) *Decoder {
	copied := make(map[string]Pair, len(pairs))
	for pool, pair := range pairs {
		copied[pool] = pair
	}
	return &Decoder{pairs: copied}
}

// Decode classifies and validates one raw record.
func (d *Decoder) Decode(r RawRecord) (Event, error) {
	ev := Event{
		TxHash:    r.TxHash,
		LogIndex:  r.LogIndex,
		Timestamp: r.Timestamp,
	}

	switch strings.ToUpper(strings.TrimSpace(r.EventType)) {
	case string(KindSwap):
		swap, err := d.decodeSwap(r)
		if err != nil {
			return Event{}, err
		}
		ev.Kind = KindSwap
		ev.Swap = &swap
	case string(KindTransfer):
		if r.Pool == "" || r.TokenIn == "" || !finitePositive(r.AmountIn) {
			return Event{}, fmt.Errorf("transfer %s: pool, token and positive amount required: %w", r.TxHash, model.ErrInvalidInput)
		}
		ev.Kind = KindTransfer
		ev.Transfer = &TransferRecord{PoolID: r.Pool, Token: r.TokenIn, Amount: r.AmountIn}
	case string(KindSync):
		if r.Pool == "" || !finitePositive(r.ReserveA) || !finitePositive(r.ReserveB) {
			return Event{}, fmt.Errorf("sync %s: pool and positive reserves required: %w", r.TxHash, model.ErrInvalidInput)
		}
		ev.Kind = KindSync
		ev.Sync = &SyncRecord{PoolID: r.Pool, ReserveA: r.ReserveA, ReserveB: r.ReserveB}
	default:
		ev.Kind = KindOther
		ev.Source = r.EventType
	}
	return ev, nil
}

func (d *Decoder) decodeSwap(r RawRecord) (SwapRecord, error) {
	if r.Pool == "" || r.TokenIn == "" || r.TokenOut == "" {
		return SwapRecord{}, fmt.Errorf("swap %s: pool and tokens required: %w", r.TxHash, model.ErrInvalidInput)
	}
	if r.TokenIn == r.TokenOut {
		return SwapRecord{}, fmt.Errorf("swap %s: token in equals token out: %w", r.TxHash, model.ErrInvalidInput)
	}
	if !finitePositive(r.AmountIn) || !finitePositive(r.AmountOut) {
		return SwapRecord{}, fmt.Errorf("swap %s: amounts %v/%v: %w", r.TxHash, r.AmountIn, r.AmountOut, model.ErrInvalidInput)
	}

	pair, ok := d.pairs[r.Pool]
	if !ok {
		tokens := []string{r.TokenIn, r.TokenOut}
		sort.Strings(tokens)
		pair = Pair{TokenA: tokens[0], TokenB: tokens[1]}
		d.pairs[r.Pool] = pair
	}

	var dir amm.Direction
	switch {
	case r.TokenIn == pair.TokenA && r.TokenOut == pair.TokenB:
		dir = amm.AToB
	case r.TokenIn == pair.TokenB && r.TokenOut == pair.TokenA:
		dir = amm.BToA
	default:
		return SwapRecord{}, fmt.Errorf("swap %s: tokens %s/%s not in pool %s (%s/%s): %w",
			r.TxHash, r.TokenIn, r.TokenOut, r.Pool, pair.TokenA, pair.TokenB, model.ErrInvalidInput)
	}

	return SwapRecord{
		PoolID:    r.Pool,
		TokenIn:   r.TokenIn,
		TokenOut:  r.TokenOut,
		AmountIn:  r.AmountIn,
		AmountOut: r.AmountOut,
		Direction: dir,
		Timestamp: r.Timestamp,
	}, nil
}

// ReadRecords parses one RawRecord per line.
func ReadRecords(r io.Reader) ([]RawRecord, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var (
		records []RawRecord
		lineNo  int
	)
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record RawRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("line %d: %v: %w", lineNo, err, model.ErrInvalidInput)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return records, nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
