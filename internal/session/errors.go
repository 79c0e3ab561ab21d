package session

import "errors"

// Registry error types
var (
	ErrServerFull   = errors.New("session limit reached")
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room already has two players")
	ErrNoFreeCode   = errors.New("could not allocate a free room code")
)
