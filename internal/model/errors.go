package model

import "errors"

var (
	// ErrInvalidInput marks malformed ticks, empty ticks and non-positive amounts.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidPoolState marks a pool whose reserves are not strictly positive.
	ErrInvalidPoolState = errors.New("invalid pool state")
)
