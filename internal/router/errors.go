package router

import "errors"

var (
	ErrDropped            = errors.New("event dropped by client filter")
	ErrSendFailed         = errors.New("event could not be sent")
	ErrInvalidEditCommand = errors.New("invalid edit command")
	ErrClosed             = errors.New("router closed")
)

// UnexpectedReason classifies a structural or protocol error in the ack
// stream.
type UnexpectedReason uint8

const (
	// UnexpectedAck is an ack with nothing of its class awaiting one.
	UnexpectedAck UnexpectedReason = iota
	// UnexpectedEventType is a keyboard ack whose type does not match the
	// head of the key queue. The key queue is cleared.
	UnexpectedEventType
	// BadAckMessage is an ack that could not be demultiplexed.
	BadAckMessage
	// UnexpectedFlingStop is a fling stop with no fling tracked.
	UnexpectedFlingStop
	// UnexpectedTouchAction is a touch-action with no touch start awaiting
	// ack.
	UnexpectedTouchAction
)

func (r UnexpectedReason) String() string {
	switch r {
	case UnexpectedAck:
		return "unexpected_ack"
	case UnexpectedEventType:
		return "unexpected_event_type"
	case BadAckMessage:
		return "bad_ack_message"
	case UnexpectedFlingStop:
		return "unexpected_fling_stop"
	case UnexpectedTouchAction:
		return "unexpected_touch_action"
	default:
		return "unknown"
	}
}
