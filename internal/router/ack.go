package router

import (
	"time"

	"inputrouter/internal/input"
)

// Ack is an event ack reported by the remote consumer.
type Ack struct {
	Type       input.Type
	State      input.AckState
	TouchID    uint32
	Overscroll *input.Overscroll
}

// OnInputEventAck handles an ack from the remote consumer.
func (r *Router) OnInputEventAck(ack Ack) {
	if r.closed {
		return
	}
	if ack.State > input.AckIgnored {
		r.unexpected(BadAckMessage)
		return
	}
	if !r.sentAt.IsZero() {
		r.stats.recordLatency(r.now().Sub(r.sentAt))
		r.sentAt = time.Time{}
	}

	if ack.Overscroll != nil {
		if input.CarriesOverscroll(ack.Type) {
			r.client.DidOverscroll(*ack.Overscroll)
		} else {
			r.unexpected(BadAckMessage)
		}
	}

	r.processAck(ack.Type, ack.State, ack.TouchID, input.SourceRenderer)
}

// processAck demultiplexes an ack to the handler of its class. The source
// is passed down explicitly so nested dispatches cannot observe a stale
// value.
func (r *Router) processAck(typ input.Type, state input.AckState, touchID uint32, source input.AckSource) {
	r.stats.countAck(source)

	switch typ.Class() {
	case input.ClassKey:
		r.processKeyboardAck(typ, state, source)
		// The router may be closed at this point.
		return
	case input.ClassPointerMove, input.ClassPointerButton:
		r.processMouseAck(typ, state, source)
	case input.ClassWheel:
		r.processWheelAck(state, source)
	case input.ClassTouch:
		r.processTouchAck(state, touchID, source)
	case input.ClassGesture:
		r.processGestureAck(typ, state, source)
	case input.ClassEditCommand:
		r.unexpected(BadAckMessage)
	case input.ClassUndefined:
		if typ != input.Undefined {
			r.unexpected(BadAckMessage)
		}
	}

	r.signalFlushedIfNecessary()
}

// OnDidOverscroll forwards a standalone overscroll notification.
func (r *Router) OnDidOverscroll(o input.Overscroll) {
	if r.closed {
		return
	}
	r.client.DidOverscroll(o)
}

// OnDidStopFlinging is reported by the consumer when a fling it was
// running has ended.
func (r *Router) OnDidStopFlinging() {
	if r.closed {
		return
	}
	if r.flingCount == 0 {
		r.unexpected(UnexpectedFlingStop)
		return
	}
	r.flingCount--
	r.signalFlushedIfNecessary()
	if r.closed {
		return
	}
	r.client.DidStopFlinging()
}
