// Package queue holds the sequence queues that sit in front of the router
// for touch and gesture traffic. Each keeps exactly one event in flight and
// releases the next one when the head is acked.
package queue

import "errors"

var (
	ErrUnexpectedAck = errors.New("ack with no event in flight")
	ErrAckMismatch   = errors.New("ack does not match the event in flight")
)
