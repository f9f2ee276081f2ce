package router

import (
	"fmt"
	"log"

	"inputrouter/internal/input"
	"inputrouter/internal/touchaction"
)

// SendTouch validates a touch event and hands it to the touch queue.
func (r *Router) SendTouch(e input.Event) {
	if r.closed {
		return
	}
	mustClass(e, input.ClassTouch)
	r.inputValidator.Must(e)
	r.touchQueue.QueueEvent(e)
}

// SendTouchEventImmediately is called by the touch queue when e reaches
// the head.
func (r *Router) SendTouchEventImmediately(e input.Event) error {
	if r.closed {
		return ErrClosed
	}
	if input.IsTouchSequenceStart(e) {
		r.policy.ResetTouchAction()
		// A previous none only stops applying from the next sequence on,
		// giving the consumer time to declare a touch-action.
		r.updateTouchAckTimeoutEnabled()
	}
	return outcomeError(r.filterAndSend(e, false))
}

// OnTouchEventDropped is called by the touch queue for an event it acks
// locally without sending. The output stream still has to account for it.
func (r *Router) OnTouchEventDropped(e input.Event) {
	if r.closed {
		return
	}
	r.outputValidator.Must(e)
}

// OnTouchEventAck is called by the touch queue with the final disposition
// of a touch event.
func (r *Router) OnTouchEventAck(e input.Event, state input.AckState) {
	if r.closed {
		return
	}
	// Sequence starts can be acked locally without reaching the consumer.
	if input.IsTouchSequenceStart(e) && state == input.AckNoConsumerExists {
		r.policy.ResetTouchAction()
		r.updateTouchAckTimeoutEnabled()
	}
	r.ackHandler.OnTouchEventAck(e, state)
}

func (r *Router) processTouchAck(state input.AckState, id uint32, source input.AckSource) {
	if err := r.touchQueue.ProcessTouchAck(state, id); err != nil {
		log.Printf("Router: touch ack (%s): %v", source, err)
		r.unexpected(UnexpectedAck)
	}
}

// OnHasTouchEventHandlers records whether the consumer has touch handlers.
func (r *Router) OnHasTouchEventHandlers(has bool) {
	if r.closed {
		return
	}
	if !has {
		// Forward gestures even if the touches never reach the consumer.
		r.policy.ResetTouchAction()
		r.updateTouchAckTimeoutEnabled()
	}
	r.touchQueue.OnHasTouchEventHandlers(has)
	r.client.OnHasTouchEventHandlers(has)
	r.signalFlushedIfNecessary()
}

// OnSetTouchAction applies a touch-action declared by the consumer for the
// sequence whose touch start is awaiting ack.
func (r *Router) OnSetTouchAction(a touchaction.TouchAction) {
	if r.closed {
		return
	}
	if !r.touchQueue.IsPendingAckTouchStart() {
		r.unexpected(UnexpectedTouchAction)
		return
	}
	r.policy.OnSetTouchAction(a)
	r.updateTouchAckTimeoutEnabled()
}

// Touch ack timeouts are disabled under touch-action none: scrolling is
// already blocked and the page relies on its handlers.
func (r *Router) updateTouchAckTimeoutEnabled() {
	enabled := r.policy.AllowedTouchAction() != touchaction.None
	r.touchQueue.SetAckTimeoutEnabled(enabled)
	r.debugf("touch ack timeout enabled=%v", enabled)
}

func outcomeError(o outcome) error {
	switch o {
	case outcomeDropped:
		return ErrDropped
	case outcomeSendFailed:
		return ErrSendFailed
	case outcomeSent, outcomeAcked:
		return nil
	default:
		return fmt.Errorf("router: unknown outcome %d", o)
	}
}
