package queue

import (
	"fmt"

	"inputrouter/internal/input"
)

// GestureClient sends gesture events and receives their final disposition.
type GestureClient interface {
	// SendGestureEventImmediately forwards e. An error means e was not
	// sent and will never be acked.
	SendGestureEventImmediately(e input.Event) error
	OnGestureEventAck(e input.Event, state input.AckState)
}

// GestureQueue forwards gestures one at a time and merges scroll updates
// that pile up behind the one in flight.
type GestureQueue struct {
	client GestureClient
	tap    *TapSuppressor

	queue       []input.Event
	inFlight    bool
	dispatching bool

	flingInProgress bool
}

// NewGestureQueue creates a queue that sends through client. tap may be
// nil to disable touchpad tap suppression.
func NewGestureQueue(client GestureClient, tap *TapSuppressor) *GestureQueue {
	return &GestureQueue{client: client, tap: tap}
}

// QueueEvent adds e to the queue. It returns false if e was discarded: a
// fling cancel with no fling to cancel.
func (q *GestureQueue) QueueEvent(e input.Event) bool {
	switch e.Type {
	case input.GestureFlingCancel:
		if !q.flingInProgress {
			return false
		}
		q.flingInProgress = false
	case input.GestureFlingStart:
		q.flingInProgress = true
	}

	if n := len(q.queue); n > 0 && (n > 1 || !q.inFlight) {
		if tail := q.queue[n-1]; input.CanCoalesceScrollUpdate(tail, e) {
			q.queue[n-1] = input.CoalesceScrollUpdate(tail, e)
			return true
		}
	}

	q.queue = append(q.queue, e)
	q.forward()
	return true
}

func (q *GestureQueue) forward() {
	if q.dispatching {
		return
	}
	q.dispatching = true
	defer func() { q.dispatching = false }()

	for len(q.queue) > 0 && !q.inFlight {
		head := q.queue[0]
		q.inFlight = true
		if head.Type == input.GestureFlingCancel && head.Gesture.Device == input.DeviceTouchpad && q.tap != nil {
			q.tap.GestureFlingCancel()
		}
		if err := q.client.SendGestureEventImmediately(head); err != nil {
			if q.inFlight && len(q.queue) > 0 && q.queue[0].Type == head.Type {
				q.queue = q.queue[1:]
				q.inFlight = false
			}
		}
	}
}

// ProcessGestureAck completes the gesture in flight, which must be of type
// typ.
func (q *GestureQueue) ProcessGestureAck(state input.AckState, typ input.Type) error {
	if len(q.queue) == 0 || !q.inFlight {
		return ErrUnexpectedAck
	}
	head := q.queue[0]
	if head.Type != typ {
		// Drop the head so later traffic is not stuck behind it.
		q.queue = q.queue[1:]
		q.inFlight = false
		q.forward()
		return fmt.Errorf("gesture ack %s, in flight %s: %w", typ, head.Type, ErrAckMismatch)
	}
	q.queue = q.queue[1:]
	q.inFlight = false

	switch head.Type {
	case input.GestureFlingStart:
		if state != input.AckConsumed {
			q.flingInProgress = false
		}
	case input.GestureFlingCancel:
		if head.Gesture.Device == input.DeviceTouchpad && q.tap != nil {
			q.tap.GestureFlingCancelAck(state == input.AckConsumed)
		}
	}

	q.client.OnGestureEventAck(head, state)
	q.forward()
	return nil
}

// FlingHasBeenHalted forgets any fling in progress so the next fling
// cancel is discarded.
func (q *GestureQueue) FlingHasBeenHalted() {
	q.flingInProgress = false
}

// ShouldSuppressMouseDown reports whether a touchpad mouse down should be
// dropped because it is the tap that stopped a fling.
func (q *GestureQueue) ShouldSuppressMouseDown() bool {
	return q.tap != nil && q.tap.ShouldSuppressMouseDown()
}

// ShouldSuppressMouseUp pairs with ShouldSuppressMouseDown.
func (q *GestureQueue) ShouldSuppressMouseUp() bool {
	return q.tap != nil && q.tap.ShouldSuppressMouseUp()
}

func (q *GestureQueue) Empty() bool {
	return len(q.queue) == 0
}

func (q *GestureQueue) Len() int {
	return len(q.queue)
}
