package dex

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"oracleScope/internal/amm"
	"oracleScope/internal/model"
	"oracleScope/internal/trace"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map routes extra topic0 hashes to swap, sync or transfer decoding.
	Topic0Map map[string]string
}

// PairDecoder decodes constant-product pair Swap/Sync logs and ERC20 Transfer logs.
type PairDecoder struct {
	pairABI     abi.ABI
	erc20ABI    abi.ABI
	topicToName map[string]string
}

var _ Decoder = (*PairDecoder)(nil)

// NewPairDecoder builds a pair decoder.
func NewPairDecoder(cfg DecoderConfig) (*PairDecoder, error) {
	pairABI, err := PairABI()
	if err != nil {
		return nil, err
	}
	erc20ABI, err := erc20ABIStringInstance()
	if err != nil {
		return nil, err
	}

	topicToName := map[string]string{
		strings.ToLower(pairABI.Events["Swap"].ID.Hex()):      "Swap",
		strings.ToLower(pairABI.Events["Sync"].ID.Hex()):      "Sync",
		strings.ToLower(erc20ABI.Events["Transfer"].ID.Hex()): "Transfer",
	}

	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &PairDecoder{
		pairABI:     pairABI,
		erc20ABI:    erc20ABI,
		topicToName: topicToName,
	}, nil
}

// Topics returns every topic0 the decoder handles, sorted, for log filters.
func (d *PairDecoder) Topics() []string {
	out := make([]string, 0, len(d.topicToName))
	for topic := range d.topicToName {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *PairDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a trace event.
func (d *PairDecoder) Decode(log model.LogRecord, ctx DecodeContext) (trace.Event, error) {
	name, ok := d.topicToName[log.Topic0()]
	if !ok {
		return trace.Event{}, fmt.Errorf("unsupported topic0: %s", log.Topic0())
	}
	if !common.IsHexAddress(log.Address) {
		return trace.Event{}, fmt.Errorf("invalid log address: %s", log.Address)
	}
	address := common.HexToAddress(log.Address)

	ev := trace.Event{
		TxHash:    log.TxHash,
		LogIndex:  log.LogIndex,
		Timestamp: int64(log.Timestamp),
	}

	switch name {
	case "Swap":
		meta, err := getPairMeta(ctx, address)
		if err != nil {
			return trace.Event{}, err
		}
		swap, err := d.decodeSwap(log, meta)
		if err != nil {
			return trace.Event{}, err
		}
		swap.Timestamp = ev.Timestamp
		ev.Kind = trace.KindSwap
		ev.Swap = &swap
	case "Sync":
		meta, err := getPairMeta(ctx, address)
		if err != nil {
			return trace.Event{}, err
		}
		sync, err := d.decodeSync(log, meta)
		if err != nil {
			return trace.Event{}, err
		}
		ev.Kind = trace.KindSync
		ev.Sync = &sync
	case "Transfer":
		transfer, ok, err := d.decodeTransfer(log, ctx, address)
		if err != nil {
			return trace.Event{}, err
		}
		if !ok {
			ev.Kind = trace.KindOther
			ev.Source = name
			return ev, nil
		}
		ev.Kind = trace.KindTransfer
		ev.Transfer = &transfer
	default:
		return trace.Event{}, fmt.Errorf("unsupported event name: %s", name)
	}
	return ev, nil
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "swap":
		return "Swap"
	case "sync":
		return "Sync"
	case "transfer":
		return "Transfer"
	default:
		return ""
	}
}

func getPairMeta(ctx DecodeContext, pair common.Address) (PairMeta, error) {
	if ctx.Pairs != nil {
		if meta, ok := ctx.Pairs.Get(pair); ok {
			return meta, nil
		}
	}
	if ctx.Caller == nil {
		return PairMeta{}, fmt.Errorf("pair %s: metadata not cached and no chain client", pair.Hex())
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}
	meta, err := FetchPairMeta(callCtx, ctx.Caller, pair, ctx.Tokens, ctx.Logger)
	if err != nil {
		return PairMeta{}, err
	}
	if ctx.Pairs != nil {
		ctx.Pairs.Set(pair, meta)
	}
	return meta, nil
}

func getTokenMeta(ctx DecodeContext, token common.Address) (TokenMeta, error) {
	if ctx.Tokens != nil {
		if meta, ok := ctx.Tokens.Get(token); ok {
			return meta, nil
		}
	}
	if ctx.Caller == nil {
		return TokenMeta{}, fmt.Errorf("token %s: metadata not cached and no chain client", token.Hex())
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}
	meta, err := FetchTokenMeta(callCtx, ctx.Caller, token, ctx.Logger)
	if err != nil {
		return TokenMeta{}, err
	}
	if ctx.Tokens != nil {
		ctx.Tokens.Set(token, meta)
	}
	return meta, nil
}

// decodeSwap nets each side so a swap that both pays in and takes out a token
// still resolves to one direction.
func (d *PairDecoder) decodeSwap(log model.LogRecord, meta PairMeta) (trace.SwapRecord, error) {
	event := d.pairABI.Events["Swap"]
	if _, err := parseIndexedTopics(event, log.Topics); err != nil {
		return trace.SwapRecord{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return trace.SwapRecord{}, err
	}
	if len(values) != 4 {
		return trace.SwapRecord{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}
	amounts := make([]*big.Int, 4)
	for i, v := range values {
		if amounts[i], err = asBigInt(v); err != nil {
			return trace.SwapRecord{}, err
		}
	}
	net0 := new(big.Int).Sub(amounts[0], amounts[2])
	net1 := new(big.Int).Sub(amounts[1], amounts[3])

	swap := trace.SwapRecord{PoolID: meta.Address}
	switch {
	case net0.Sign() > 0 && net1.Sign() < 0:
		swap.Direction = amm.AToB
		swap.TokenIn, swap.TokenOut = meta.Token0.Label(), meta.Token1.Label()
		swap.AmountIn = meta.Token0.Scale(net0)
		swap.AmountOut = meta.Token1.Scale(new(big.Int).Neg(net1))
	case net1.Sign() > 0 && net0.Sign() < 0:
		swap.Direction = amm.BToA
		swap.TokenIn, swap.TokenOut = meta.Token1.Label(), meta.Token0.Label()
		swap.AmountIn = meta.Token1.Scale(net1)
		swap.AmountOut = meta.Token0.Scale(new(big.Int).Neg(net0))
	default:
		return trace.SwapRecord{}, fmt.Errorf("swap without a net direction: net0=%s net1=%s", net0, net1)
	}
	return swap, nil
}

func (d *PairDecoder) decodeSync(log model.LogRecord, meta PairMeta) (trace.SyncRecord, error) {
	event := d.pairABI.Events["Sync"]
	if _, err := parseIndexedTopics(event, log.Topics); err != nil {
		return trace.SyncRecord{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return trace.SyncRecord{}, err
	}
	if len(values) != 2 {
		return trace.SyncRecord{}, fmt.Errorf("unexpected sync values: %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return trace.SyncRecord{}, err
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return trace.SyncRecord{}, err
	}
	return meta.SyncRecord(reserve0, reserve1), nil
}

// decodeTransfer keeps transfers that move tokens into or out of a cached pair.
func (d *PairDecoder) decodeTransfer(log model.LogRecord, ctx DecodeContext, token common.Address) (trace.TransferRecord, bool, error) {
	event := d.erc20ABI.Events["Transfer"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return trace.TransferRecord{}, false, err
	}

	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return trace.TransferRecord{}, false, fmt.Errorf("parse topics: %w", err)
	}

	pool, ok := PairMeta{}, false
	if ctx.Pairs != nil {
		if pool, ok = ctx.Pairs.Get(indexed.To); !ok {
			pool, ok = ctx.Pairs.Get(indexed.From)
		}
	}
	if !ok {
		return trace.TransferRecord{}, false, nil
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return trace.TransferRecord{}, false, err
	}
	if len(values) != 1 {
		return trace.TransferRecord{}, false, fmt.Errorf("unexpected transfer values: %d", len(values))
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return trace.TransferRecord{}, false, err
	}

	tokenMeta, err := getTokenMeta(ctx, token)
	if err != nil {
		return trace.TransferRecord{}, false, err
	}

	return trace.TransferRecord{
		PoolID: pool.Address,
		Token:  tokenMeta.Label(),
		From:   indexed.From.Hex(),
		To:     indexed.To.Hex(),
		Amount: tokenMeta.Scale(amount),
	}, true, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
