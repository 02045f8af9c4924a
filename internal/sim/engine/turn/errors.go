package turn

import "errors"

var (
	// ErrInvalidTurnIndex is returned for a turn outside the event table.
	ErrInvalidTurnIndex = errors.New("invalid turn index")
	// ErrMalformedInput is returned before any scoring when Input is incomplete.
	ErrMalformedInput = errors.New("malformed turn input")
)
