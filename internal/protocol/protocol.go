// Package protocol defines the messages exchanged with the remote consumer.
// Input events and their acks travel as binary frames; everything else is a
// JSON Message on a text frame.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"inputrouter/internal/input"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeAuth is sent by the consumer immediately after connecting
	TypeAuth MessageType = "auth"

	// TypeSession is sent by the host with the id assigned to the connection
	TypeSession MessageType = "session"

	// TypeEditCommand carries an editing command to the consumer
	TypeEditCommand MessageType = "edit_command"

	// TypeEditAck acknowledges the oldest editing command of a kind
	TypeEditAck MessageType = "edit_ack"

	// TypeHasTouchHandlers reports whether the consumer handles touches
	TypeHasTouchHandlers MessageType = "has_touch_handlers"

	// TypeSetTouchAction declares the touch-action of the current sequence
	TypeSetTouchAction MessageType = "set_touch_action"

	// TypeDidStopFlinging reports the end of a fling the consumer ran
	TypeDidStopFlinging MessageType = "did_stop_flinging"

	// TypeDidOverscroll reports overscroll outside of an ack
	TypeDidOverscroll MessageType = "did_overscroll"

	// TypeMobileOptimized reports whether the content is mobile optimized
	TypeMobileOptimized MessageType = "mobile_optimized"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Message is the generic container for all WebSocket text messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// AuthPayload is the payload for TypeAuth
type AuthPayload struct {
	Token           string `json:"token,omitempty"`
	ConsumerName    string `json:"consumer_name"`
	ConsumerVersion string `json:"consumer_version"`
}

// SessionPayload is the payload for TypeSession
type SessionPayload struct {
	ID string `json:"id"`
}

// EditCommandPayload is the payload for TypeEditCommand
type EditCommandPayload struct {
	Op      string `json:"op"`
	X       int32  `json:"x"`
	Y       int32  `json:"y"`
	Payload []byte `json:"payload,omitempty"`
}

// EditAckPayload is the payload for TypeEditAck
type EditAckPayload struct {
	Kind string `json:"kind"`
}

// HasTouchHandlersPayload is the payload for TypeHasTouchHandlers
type HasTouchHandlersPayload struct {
	Has bool `json:"has"`
}

// SetTouchActionPayload is the payload for TypeSetTouchAction. Action is a
// CSS touch-action value such as "pan-y" or "none".
type SetTouchActionPayload struct {
	Action string `json:"action"`
}

// OverscrollPayload is the payload for TypeDidOverscroll
type OverscrollPayload struct {
	AccumulatedX float32 `json:"accumulated_x"`
	AccumulatedY float32 `json:"accumulated_y"`
	LatestX      float32 `json:"latest_x"`
	LatestY      float32 `json:"latest_y"`
}

// MobileOptimizedPayload is the payload for TypeMobileOptimized
type MobileOptimizedPayload struct {
	Mobile bool `json:"mobile"`
}

// DecodePayload converts the generic payload of msg into v. Payloads decoded
// from JSON arrive as maps, so they are re-marshaled first.
func DecodePayload(msg Message, v interface{}) error {
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("%s payload: %w", msg.Type, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s payload: %w", msg.Type, err)
	}
	return nil
}

var (
	ErrUnknownEditOp   = errors.New("unknown edit op")
	ErrUnknownEditKind = errors.New("unknown edit kind")
)

// NewEditCommandPayload builds the wire form of cmd.
func NewEditCommandPayload(cmd input.EditCommand) EditCommandPayload {
	return EditCommandPayload{Op: cmd.Op.String(), X: cmd.X, Y: cmd.Y, Payload: cmd.Payload}
}

// EditCommand converts p back to an editing command.
func (p EditCommandPayload) EditCommand() (input.EditCommand, error) {
	for _, op := range []input.EditOp{input.EditSelectRange, input.EditMoveRangeSelectionExtent, input.EditMoveCaret} {
		if op.String() == p.Op {
			return input.EditCommand{Op: op, X: p.X, Y: p.Y, Payload: p.Payload}, nil
		}
	}
	return input.EditCommand{}, fmt.Errorf("%q: %w", p.Op, ErrUnknownEditOp)
}

// EditKind returns the kind an edit ack refers to.
func (p EditAckPayload) EditKind() (input.EditKind, error) {
	switch p.Kind {
	case input.KindSelect.String():
		return input.KindSelect, nil
	case input.KindCaret.String():
		return input.KindCaret, nil
	}
	return 0, fmt.Errorf("%q: %w", p.Kind, ErrUnknownEditKind)
}
