package api

import "errors"

var (
	// ErrNotConnected is returned by the sender when no consumer is attached.
	ErrNotConnected = errors.New("no consumer connected")
	// ErrSendBufferFull is returned when the consumer is not draining its socket.
	ErrSendBufferFull = errors.New("consumer send buffer full")
)
