package queue

import (
	"fmt"
	"time"

	"inputrouter/internal/input"
)

// Default touch ack timeouts.
const (
	DefaultDesktopTouchAckTimeout = 200 * time.Millisecond
	DefaultMobileTouchAckTimeout  = 1000 * time.Millisecond
)

// TouchClient sends touch events and receives their final disposition.
type TouchClient interface {
	// SendTouchEventImmediately forwards e. An error means e was not
	// sent and will never be acked.
	SendTouchEventImmediately(e input.Event) error
	// OnTouchEventDropped is called before the local ack of an event that
	// is never sent.
	OnTouchEventDropped(e input.Event)
	OnTouchEventAck(e input.Event, state input.AckState)
}

// TouchQueue forwards touch events one at a time.
type TouchQueue struct {
	client TouchClient

	DesktopTimeout time.Duration
	MobileTimeout  time.Duration
	Now            func() time.Time

	queue       []input.Event
	inFlight    bool
	sentAt      time.Time
	dispatching bool

	hasHandlers    bool
	timeoutEnabled bool
	mobile         bool
	noConsumer     bool
	asyncMoves     bool

	nextID uint32
	// Events completed locally while in flight; their late acks are
	// swallowed.
	abandoned map[uint32]bool
}

// NewTouchQueue creates a queue that sends through client.
func NewTouchQueue(client TouchClient) *TouchQueue {
	return &TouchQueue{
		client:         client,
		DesktopTimeout: DefaultDesktopTouchAckTimeout,
		MobileTimeout:  DefaultMobileTouchAckTimeout,
		Now:            time.Now,
		hasHandlers:    true,
		abandoned:      make(map[uint32]bool),
	}
}

// QueueEvent adds e to the queue and forwards it if nothing is in flight.
func (q *TouchQueue) QueueEvent(e input.Event) {
	if e.Touch.UniqueID == 0 {
		q.nextID++
		e.Touch.UniqueID = q.nextID
	}
	q.queue = append(q.queue, e)
	q.forward()
}

func (q *TouchQueue) forward() {
	if q.dispatching {
		return
	}
	q.dispatching = true
	defer func() { q.dispatching = false }()

	for len(q.queue) > 0 && !q.inFlight {
		head := q.queue[0]
		if input.IsTouchSequenceStart(head) {
			q.noConsumer = false
		}
		if !q.hasHandlers || q.noConsumer {
			// The rest of the sequence is dropped too, even if handlers
			// show up before it ends.
			q.noConsumer = true
			q.queue = q.queue[1:]
			q.client.OnTouchEventDropped(head)
			q.client.OnTouchEventAck(head, input.AckNoConsumerExists)
			continue
		}
		if q.asyncMoves && head.Type == input.TouchMove {
			head.Touch.Cancelable = false
			q.queue[0] = head
		}

		q.inFlight = true
		q.sentAt = q.Now()
		if err := q.client.SendTouchEventImmediately(head); err != nil {
			// The head may already have been acked synchronously.
			if q.inFlight && len(q.queue) > 0 && q.queue[0].Touch.UniqueID == head.Touch.UniqueID {
				q.queue = q.queue[1:]
				q.inFlight = false
			}
		}
	}
}

// ProcessTouchAck completes the event in flight. id is the UniqueID the
// consumer echoed back; zero matches any event.
func (q *TouchQueue) ProcessTouchAck(state input.AckState, id uint32) error {
	if q.abandoned[id] {
		delete(q.abandoned, id)
		return nil
	}
	if len(q.queue) == 0 || !q.inFlight {
		return ErrUnexpectedAck
	}
	head := q.queue[0]
	if id != 0 && head.Touch.UniqueID != id {
		// Drop the head so later traffic is not stuck behind it.
		q.queue = q.queue[1:]
		q.inFlight = false
		q.abandoned[head.Touch.UniqueID] = true
		q.forward()
		return fmt.Errorf("touch ack %d, in flight %d: %w", id, head.Touch.UniqueID, ErrAckMismatch)
	}
	q.queue = q.queue[1:]
	q.inFlight = false
	if input.IsTouchSequenceStart(head) && state == input.AckNoConsumerExists {
		q.noConsumer = true
	}
	q.client.OnTouchEventAck(head, state)
	q.forward()
	return nil
}

// CheckAckTimeout acks the event in flight locally if it has waited longer
// than the current timeout. Its late ack is swallowed. It reports whether
// a timeout fired.
func (q *TouchQueue) CheckAckTimeout(now time.Time) bool {
	if !q.timeoutEnabled || !q.inFlight || len(q.queue) == 0 {
		return false
	}
	if now.Sub(q.sentAt) < q.Timeout() {
		return false
	}
	head := q.queue[0]
	q.queue = q.queue[1:]
	q.inFlight = false
	q.abandoned[head.Touch.UniqueID] = true
	q.client.OnTouchEventAck(head, input.AckNotConsumed)
	q.forward()
	return true
}

// Timeout returns the ack timeout for the current site type.
func (q *TouchQueue) Timeout() time.Duration {
	if q.mobile {
		return q.MobileTimeout
	}
	return q.DesktopTimeout
}

func (q *TouchQueue) SetAckTimeoutEnabled(enabled bool) {
	q.timeoutEnabled = enabled
}

func (q *TouchQueue) AckTimeoutEnabled() bool {
	return q.timeoutEnabled
}

func (q *TouchQueue) SetIsMobileOptimizedSite(mobile bool) {
	q.mobile = mobile
}

// OnHasTouchEventHandlers records whether the consumer has touch handlers.
// Without handlers, queued events are acked locally.
func (q *TouchQueue) OnHasTouchEventHandlers(has bool) {
	q.hasHandlers = has
	if !has {
		q.forward()
	}
}

// IsPendingAckTouchStart reports whether the event in flight is a touch
// start.
func (q *TouchQueue) IsPendingAckTouchStart() bool {
	return q.inFlight && len(q.queue) > 0 && q.queue[0].Type == input.TouchStart
}

// OnGestureScrollEvent observes touchscreen scroll gestures being sent.
func (q *TouchQueue) OnGestureScrollEvent(e input.Event) {
	switch e.Type {
	case input.GestureScrollEnd, input.GestureFlingStart:
		q.asyncMoves = false
	}
}

// OnGestureEventAck observes gesture acks. Once a touchscreen scroll is
// consumed, touch moves stop blocking scrolling.
func (q *TouchQueue) OnGestureEventAck(e input.Event, state input.AckState) {
	if e.Type == input.GestureScrollUpdate && e.Gesture.Device == input.DeviceTouchscreen && state == input.AckConsumed {
		q.asyncMoves = true
	}
}

func (q *TouchQueue) Empty() bool {
	return len(q.queue) == 0
}

// Len returns the number of queued events, including the one in flight.
func (q *TouchQueue) Len() int {
	return len(q.queue)
}
