package host

import (
	"log"

	"inputrouter/internal/input"
	"inputrouter/internal/router"
)

// FilterInputEvent consumes local shortcuts, drops everything while paused
// and acks locally while no consumer is attached.
func (h *Host) FilterInputEvent(e input.Event) input.AckState {
	if e.Class() == input.ClassKey {
		if action, ok := h.local.Match(e); ok {
			h.pending[e.Key.Code] = action
			h.swallowed[e.Key.Code] = true
			return input.AckConsumed
		}
		// The rest of a swallowed press stays local too.
		if h.swallowed[e.Key.Code] {
			if e.Type == input.KeyUp {
				delete(h.swallowed, e.Key.Code)
			}
			return input.AckConsumed
		}
	}
	if h.paused {
		return input.AckUnknown
	}
	if !h.connected {
		return input.AckNoConsumerExists
	}
	return input.AckNotConsumed
}

func (h *Host) DidOverscroll(o input.Overscroll) {
	h.lastOverscroll = o
	h.debugf("overscroll accumulated=(%.1f, %.1f)", o.AccumulatedX, o.AccumulatedY)
}

func (h *Host) DidFlush() {
	h.debugf("flushed")
	h.resolveFlushWaiters()
}

func (h *Host) DidStopFlinging() {
	h.flingStops++
	h.debugf("fling stopped")
}

func (h *Host) OnHasTouchEventHandlers(has bool) {
	h.hasTouchHandlers = has
	log.Printf("Host: Consumer has touch handlers: %v", has)
	h.notify()
}

// OnKeyboardEventAck runs the action of a consumed local shortcut, or of a
// fallback shortcut the consumer did not consume. Actions may reset the
// router, so nothing follows them.
func (h *Host) OnKeyboardEventAck(e input.Event, state input.AckState) {
	if input.IsKeyDown(e.Type) {
		if action, ok := h.pending[e.Key.Code]; ok && state == input.AckConsumed {
			delete(h.pending, e.Key.Code)
			h.runAction(action)
			return
		}
		if state == input.AckNotConsumed || state == input.AckNoConsumerExists {
			if action, ok := h.fallback.Match(e); ok {
				h.runAction(action)
				return
			}
		}
	}
	h.debugf("key %s acked %s", e.Type, state)
}

func (h *Host) OnWheelEventAck(e input.Event, state input.AckState) {
	h.debugf("wheel acked %s", state)
}

func (h *Host) OnTouchEventAck(e input.Event, state input.AckState) {
	h.debugf("%s acked %s", e.Type, state)
}

func (h *Host) OnGestureEventAck(e input.Event, state input.AckState) {
	h.debugf("%s acked %s", e.Type, state)
}

// OnUnexpectedEventAck logs protocol errors. A consumer sending acks that
// cannot be demultiplexed is disconnected.
func (h *Host) OnUnexpectedEventAck(reason router.UnexpectedReason) {
	log.Printf("Host: Unexpected ack from consumer: %s", reason)
	if reason == router.BadAckMessage {
		log.Printf("Host: Disconnecting consumer %s", h.session)
		h.server.Disconnect()
	}
}
