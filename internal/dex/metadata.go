package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TokenMeta captures the ERC20 fields needed to scale raw amounts.
type TokenMeta struct {
	Address  string `json:"address" mapstructure:"address"`
	Decimals uint8  `json:"decimals" mapstructure:"decimals"`
	Symbol   string `json:"symbol" mapstructure:"symbol"`
}

// Label is the symbol, or the address when the token has none.
func (t TokenMeta) Label() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address
}

// Scale converts a raw integer amount into token units.
func (t TokenMeta) Scale(raw *big.Int) float64 {
	if raw == nil {
		return 0
	}
	return decimal.NewFromBigInt(raw, -int32(t.Decimals)).InexactFloat64()
}

// PairMeta is the immutable description of a pair: token0 is token A, token1 is token B.
type PairMeta struct {
	Address string    `json:"address"`
	Token0  TokenMeta `json:"token0"`
	Token1  TokenMeta `json:"token1"`
}

// PairCache caches pair metadata by address.
type PairCache struct {
	mu   sync.RWMutex
	data map[common.Address]PairMeta
}

func NewPairCache() *PairCache {
	return &PairCache{data: make(map[common.Address]PairMeta)}
}

func (c *PairCache) Get(address common.Address) (PairMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *PairCache) Set(address common.Address, meta PairMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// FetchPairMeta loads token0/token1 of a pair and their ERC20 metadata.
func FetchPairMeta(ctx context.Context, caller ethereum.ContractCaller, pair common.Address, tokens *TokenMetaCache, logger *zap.Logger) (PairMeta, error) {
	if caller == nil {
		return PairMeta{}, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	parsed, err := PairABI()
	if err != nil {
		return PairMeta{}, fmt.Errorf("parse pair abi: %w", err)
	}

	meta := PairMeta{Address: pair.Hex()}
	for i, method := range []string{"token0", "token1"} {
		values, err := callMethod(ctx, caller, pair, parsed, method, nil)
		if err != nil {
			return PairMeta{}, err
		}
		address, err := asAddress(values[0])
		if err != nil {
			return PairMeta{}, fmt.Errorf("%s: %w", method, err)
		}

		token, ok := TokenMeta{}, false
		if tokens != nil {
			token, ok = tokens.Get(address)
		}
		if !ok {
			token, err = FetchTokenMeta(ctx, caller, address, logger)
			if err != nil {
				return PairMeta{}, fmt.Errorf("%s metadata: %w", method, err)
			}
			if tokens != nil {
				tokens.Set(address, token)
			}
		}

		if i == 0 {
			meta.Token0 = token
		} else {
			meta.Token1 = token
		}
	}
	return meta, nil
}

// FetchTokenMeta loads decimals and symbol via ERC20 calls. Decimals are required.
func FetchTokenMeta(ctx context.Context, caller ethereum.ContractCaller, token common.Address, logger *zap.Logger) (TokenMeta, error) {
	meta := TokenMeta{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}

	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, stringABI, "decimals", nil)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := callMethod(ctx, caller, token, stringABI, "symbol", nil); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, "symbol", nil); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

func callMethod(ctx context.Context, caller ethereum.ContractCaller, to common.Address, parsed abi.ABI, method string, block *big.Int) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: no values", method)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals out of range: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
