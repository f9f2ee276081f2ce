package router

import (
	"log"

	"inputrouter/internal/input"
)

// outcome is the terminal state of an event passed to filterAndSend.
type outcome uint8

const (
	// outcomeSent: forwarded, a real ack is expected.
	outcomeSent outcome = iota
	// outcomeAcked: a synthetic ack has been processed. For keys the
	// router may be closed.
	outcomeAcked
	// outcomeDropped: the client filter returned Unknown.
	outcomeDropped
	// outcomeSendFailed: the sender returned an error.
	outcomeSendFailed
)

// filterAndSend is the single funnel all events pass through. Callers must
// not touch router state after it returns outcomeAcked for a key.
func (r *Router) filterAndSend(e input.Event, isShortcut bool) outcome {
	// Any input event cancels a buffered mouse move.
	r.discardBufferedMove()

	r.outputValidator.Must(e)

	switch verdict := r.client.FilterInputEvent(e); verdict {
	case input.AckConsumed, input.AckNoConsumerExists:
		r.processAck(e.Type, verdict, e.Touch.UniqueID, input.SourceClient)
		return outcomeAcked
	case input.AckUnknown:
		r.stats.Dropped++
		r.debugf("client dropped %s", e.Type)
		r.rollback(e)
		return outcomeDropped
	}

	if err := r.sender.SendEvent(e, isShortcut); err != nil {
		r.stats.SendFailures++
		log.Printf("Router: failed to send %s: %v", e.Type, err)
		r.rollback(e)
		return outcomeSendFailed
	}
	r.stats.Sent++

	if !input.RequiresAck(e) {
		r.processAck(e.Type, input.AckIgnored, e.Touch.UniqueID, input.SourceIgnoring)
		return outcomeAcked
	}
	r.sentAt = r.now()
	return outcomeSent
}

// rollback undoes the in-flight marker set for an event that will never be
// acked. Touch and gesture queues drop their head when told the send
// failed.
func (r *Router) rollback(e input.Event) {
	switch e.Class() {
	case input.ClassPointerMove:
		r.move = moveSlot{}
	case input.ClassWheel:
		r.wheel.state = slotIdle
		r.wheel.current = input.Event{}
		if len(r.wheel.buffered) > 0 {
			next := r.wheel.buffered[0]
			r.wheel.buffered = r.wheel.buffered[1:]
			r.SendWheel(next)
		}
	case input.ClassKey:
		if n := len(r.keys); n > 0 {
			r.keys = r.keys[:n-1]
		}
	case input.ClassPointerButton, input.ClassTouch, input.ClassGesture,
		input.ClassEditCommand, input.ClassUndefined:
	}
}
