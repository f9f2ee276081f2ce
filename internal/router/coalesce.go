package router

import (
	"fmt"

	"inputrouter/internal/input"
)

// slotState tracks a coalesced event class.
type slotState uint8

const (
	slotIdle slotState = iota
	slotAwaitingAck
	slotAwaitingAckWithBuffered
)

func (s slotState) String() string {
	switch s {
	case slotAwaitingAck:
		return "awaiting_ack"
	case slotAwaitingAckWithBuffered:
		return "awaiting_ack_with_buffered"
	default:
		return "idle"
	}
}

// moveSlot holds at most one pointer move in flight and one buffered.
type moveSlot struct {
	state slotState
	next  input.Event
}

// wheelSlot holds the wheel event in flight and the buffered entries
// behind it. An entry is only merged into the last one when the flags of
// both agree.
type wheelSlot struct {
	state    slotState
	current  input.Event
	buffered []input.Event
}

func (w *wheelSlot) settle() {
	if w.state == slotIdle {
		return
	}
	if len(w.buffered) > 0 {
		w.state = slotAwaitingAckWithBuffered
	} else {
		w.state = slotAwaitingAck
	}
}

// SendMouse forwards a pointer event. A move sent while another move is
// awaiting ack is buffered and merged with any move already buffered.
func (r *Router) SendMouse(e input.Event) {
	if r.closed {
		return
	}
	mustClass(e, input.ClassPointerMove, input.ClassPointerButton)

	switch e.Type {
	case input.MouseDown:
		if r.gestureQueue.ShouldSuppressMouseDown() {
			r.stats.Suppressed++
			r.debugf("suppressing mouse down that stopped a fling")
			return
		}
	case input.MouseUp:
		if r.gestureQueue.ShouldSuppressMouseUp() {
			r.stats.Suppressed++
			return
		}
	}
	r.sendMouseImmediately(e)
}

func (r *Router) sendMouseImmediately(e input.Event) {
	if e.Type == input.MouseMove {
		switch r.move.state {
		case slotAwaitingAck:
			r.move.next = e
			r.move.state = slotAwaitingAckWithBuffered
			return
		case slotAwaitingAckWithBuffered:
			r.move.next = input.CoalesceMouseMove(r.move.next, e)
			r.stats.Coalesced++
			return
		}
		r.move.state = slotAwaitingAck
	}
	r.filterAndSend(e, false)
}

// discardBufferedMove drops a buffered move. The move in flight, if any,
// stays in flight.
func (r *Router) discardBufferedMove() {
	if r.move.state == slotAwaitingAckWithBuffered {
		r.move.next = input.Event{}
		r.move.state = slotAwaitingAck
	}
}

func (r *Router) processMouseAck(typ input.Type, state input.AckState, source input.AckSource) {
	if typ != input.MouseMove {
		return
	}
	if r.move.state == slotIdle {
		r.unexpected(UnexpectedAck)
		return
	}

	next, ok := r.move.next, r.move.state == slotAwaitingAckWithBuffered
	r.move = moveSlot{}
	r.debugf("mouse move acked %s (%s), buffered=%v", state, source, ok)
	if ok {
		r.SendMouse(next)
	}
}

// SendWheel forwards a wheel event, or buffers it behind the one in flight.
func (r *Router) SendWheel(e input.Event) {
	if r.closed {
		return
	}
	mustClass(e, input.ClassWheel)
	if e.Wheel.HasPreciseScrollingDeltas && !e.Wheel.CanScroll {
		panic(fmt.Sprintf("router: precise wheel event that cannot scroll: %+v", e.Wheel))
	}

	if r.wheel.state != slotIdle {
		if n := len(r.wheel.buffered); n > 0 && input.CanCoalesceWheel(r.wheel.buffered[n-1], e) {
			r.wheel.buffered[n-1] = input.CoalesceWheel(r.wheel.buffered[n-1], e)
			r.stats.Coalesced++
		} else {
			r.wheel.buffered = append(r.wheel.buffered, e)
		}
		r.wheel.settle()
		return
	}

	r.wheel.state = slotAwaitingAck
	r.wheel.current = e
	r.wheel.settle()
	r.filterAndSend(e, false)
}

func (r *Router) processWheelAck(state input.AckState, source input.AckSource) {
	if r.wheel.state == slotIdle {
		r.unexpected(UnexpectedAck)
		return
	}

	// Notify before clearing so a wheel sent from the handler is buffered.
	r.ackHandler.OnWheelEventAck(r.wheel.current, state)
	if r.closed {
		return
	}
	r.wheel.state = slotIdle
	r.wheel.current = input.Event{}
	r.debugf("wheel acked %s (%s), buffered=%d", state, source, len(r.wheel.buffered))

	if len(r.wheel.buffered) > 0 {
		next := r.wheel.buffered[0]
		r.wheel.buffered = r.wheel.buffered[1:]
		if len(r.wheel.buffered) == 0 {
			r.wheel.buffered = nil
		}
		r.SendWheel(next)
	}
}
