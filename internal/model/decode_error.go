package model

// DecodeError records a trace line that could not be decoded.
type DecodeError struct {
	Line    int    `json:"line"`
	TxHash  string `json:"tx_hash,omitempty"`
	Address string `json:"address,omitempty"`
	Topic0  string `json:"topic0,omitempty"`
	Error   string `json:"error"`
}
