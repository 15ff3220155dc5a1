package dex

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"

	"oracleScope/internal/model"
	"oracleScope/internal/trace"
)

// Decoder turns raw EVM logs into trace events.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (trace.Event, error)
}

// DecodeContext provides shared dependencies for decoders. Caller may be nil when
// every pair and token is already cached.
type DecodeContext struct {
	Context context.Context
	Caller  ethereum.ContractCaller
	Pairs   *PairCache
	Tokens  *TokenMetaCache
	Logger  *zap.Logger
}
