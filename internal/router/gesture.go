package router

import (
	"log"

	"inputrouter/internal/input"
)

// SendGesture validates a gesture, applies the touch-action and hands it
// to the gesture queue.
func (r *Router) SendGesture(e input.Event) {
	if r.closed {
		return
	}
	mustClass(e, input.ClassGesture)
	r.inputValidator.Must(e)

	if r.policy.FilterGestureEvent(&e) {
		r.stats.Filtered++
		r.debugf("touch-action filtered %s", e.Type)
		return
	}
	if e.Gesture.Device == input.DeviceTouchscreen {
		r.touchQueue.OnGestureScrollEvent(e)
	}
	if !r.gestureQueue.QueueEvent(e) {
		r.stats.Filtered++
	}
}

// SendGestureEventImmediately is called by the gesture queue when e
// reaches the head.
func (r *Router) SendGestureEventImmediately(e input.Event) error {
	if r.closed {
		return ErrClosed
	}
	return outcomeError(r.filterAndSend(e, false))
}

// OnGestureEventAck is called by the gesture queue with the final
// disposition of a gesture.
func (r *Router) OnGestureEventAck(e input.Event, state input.AckState) {
	if r.closed {
		return
	}
	r.touchQueue.OnGestureEventAck(e, state)
	r.ackHandler.OnGestureEventAck(e, state)
}

func (r *Router) processGestureAck(typ input.Type, state input.AckState, source input.AckSource) {
	if typ == input.GestureFlingStart && state == input.AckConsumed {
		r.flingCount++
	}
	if err := r.gestureQueue.ProcessGestureAck(state, typ); err != nil {
		if typ == input.GestureFlingStart && state == input.AckConsumed {
			r.flingCount--
		}
		log.Printf("Router: gesture ack (%s): %v", source, err)
		r.unexpected(UnexpectedAck)
	}
}
