package trace

import "oracleScope/internal/amm"

// Kind tags which payload an Event carries.
type Kind string

const (
	KindSwap     Kind = "SWAP"
	KindTransfer Kind = "TRANSFER"
	KindSync     Kind = "SYNC"
	KindOther    Kind = "OTHER"
)

// SwapRecord is a normalized swap. Token A/B follow the pool's own ordering.
type SwapRecord struct {
	PoolID    string        `json:"pool_id"`
	TokenIn   string        `json:"token_in"`
	TokenOut  string        `json:"token_out"`
	AmountIn  float64       `json:"amount_in"`
	AmountOut float64       `json:"amount_out"`
	Direction amm.Direction `json:"direction"`
	Timestamp int64         `json:"timestamp"`
}

// TransferRecord is a token movement touching a pool.
type TransferRecord struct {
	PoolID string  `json:"pool_id"`
	Token  string  `json:"token"`
	From   string  `json:"from,omitempty"`
	To     string  `json:"to,omitempty"`
	Amount float64 `json:"amount"`
}

// SyncRecord carries a pool's reserves after an update.
type SyncRecord struct {
	PoolID   string  `json:"pool_id"`
	ReserveA float64 `json:"reserve_a"`
	ReserveB float64 `json:"reserve_b"`
}

// Event is a decoded trace entry. Exactly one payload is set for SWAP, TRANSFER and
// SYNC; OTHER carries none and keeps the source type in Source.
type Event struct {
	Kind      Kind   `json:"kind"`
	TxHash    string `json:"tx_hash"`
	LogIndex  uint64 `json:"log_index"`
	Timestamp int64  `json:"timestamp"`
	Source    string `json:"source,omitempty"`

	Swap     *SwapRecord     `json:"swap,omitempty"`
	Transfer *TransferRecord `json:"transfer,omitempty"`
	Sync     *SyncRecord     `json:"sync,omitempty"`
}

// PoolID returns the pool the payload refers to.
func (e Event) PoolID() string {
	switch e.Kind {
	case KindSwap:
		if e.Swap != nil {
			return e.Swap.PoolID
		}
	case KindTransfer:
		if e.Transfer != nil {
			return e.Transfer.PoolID
		}
	case KindSync:
		if e.Sync != nil {
			return e.Sync.PoolID
		}
	}
	return ""
}
