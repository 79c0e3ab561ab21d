package protocol

import "errors"

// Envelope-level errors
var (
	ErrUnnamedEvent = errors.New("event name missing")
)
