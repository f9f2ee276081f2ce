// Package router forwards input events to a remote consumer and accounts
// for their acks.
//
// A Router is not safe for concurrent use. Every method, including the
// ack entry points, must be called from the same goroutine; the host runs
// them all on an internal/loop executor.
package router

import (
	"fmt"
	"log"
	"time"

	"inputrouter/internal/input"
	"inputrouter/internal/queue"
	"inputrouter/internal/touchaction"
	"inputrouter/internal/validate"
)

// Sender delivers events to the remote consumer over a reliable, ordered
// channel. An error means the message was not sent.
type Sender interface {
	SendEvent(e input.Event, isShortcut bool) error
	SendEditCommand(cmd input.EditCommand) error
}

// Client is the router's owner.
type Client interface {
	// FilterInputEvent gets first refusal on every event. Consumed or
	// NoConsumerExists acks the event locally, Unknown drops it, anything
	// else forwards it.
	FilterInputEvent(e input.Event) input.AckState
	DidOverscroll(o input.Overscroll)
	DidFlush()
	DidStopFlinging()
	OnHasTouchEventHandlers(has bool)
}

// AckHandler receives the final disposition of events.
type AckHandler interface {
	// OnKeyboardEventAck may close the router.
	OnKeyboardEventAck(e input.Event, state input.AckState)
	OnWheelEventAck(e input.Event, state input.AckState)
	OnTouchEventAck(e input.Event, state input.AckState)
	OnGestureEventAck(e input.Event, state input.AckState)
	OnUnexpectedEventAck(reason UnexpectedReason)
}

// TouchActionPolicy tracks the touch-action of the current sequence.
type TouchActionPolicy interface {
	AllowedTouchAction() touchaction.TouchAction
	ResetTouchAction()
	OnSetTouchAction(a touchaction.TouchAction)
	FilterGestureEvent(e *input.Event) bool
}

// TouchQueue orders touch events ahead of the router.
type TouchQueue interface {
	QueueEvent(e input.Event)
	ProcessTouchAck(state input.AckState, id uint32) error
	CheckAckTimeout(now time.Time) bool
	SetAckTimeoutEnabled(enabled bool)
	SetIsMobileOptimizedSite(mobile bool)
	OnHasTouchEventHandlers(has bool)
	IsPendingAckTouchStart() bool
	OnGestureScrollEvent(e input.Event)
	OnGestureEventAck(e input.Event, state input.AckState)
	Empty() bool
}

// GestureQueue orders gesture events ahead of the router.
type GestureQueue interface {
	QueueEvent(e input.Event) bool
	ProcessGestureAck(state input.AckState, typ input.Type) error
	FlingHasBeenHalted()
	ShouldSuppressMouseDown() bool
	ShouldSuppressMouseUp() bool
	Empty() bool
}

// Options configures a Router. Zero values select the defaults.
type Options struct {
	Policy          TouchActionPolicy
	NewTouchQueue   func(queue.TouchClient) TouchQueue
	NewGestureQueue func(queue.GestureClient) GestureQueue

	DesktopTouchAckTimeout time.Duration
	MobileTouchAckTimeout  time.Duration
	TapSuppressionWindow   time.Duration

	Now   func() time.Time
	Debug bool
}

// Router routes events to the remote consumer.
type Router struct {
	sender     Sender
	client     Client
	ackHandler AckHandler

	policy       TouchActionPolicy
	touchQueue   TouchQueue
	gestureQueue GestureQueue

	inputValidator  *validate.Stream
	outputValidator *validate.Stream

	move  moveSlot
	wheel wheelSlot
	keys  []keyEntry
	edits [input.EditKindCount]editSlot

	flingCount     int
	flushRequested bool
	sentAt         time.Time

	stats  Stats
	now    func() time.Time
	debug  bool
	closed bool
}

// New creates a router that sends through sender and reports to client and
// ackHandler.
func New(sender Sender, client Client, ackHandler AckHandler, opts Options) *Router {
	r := &Router{
		sender:          sender,
		client:          client,
		ackHandler:      ackHandler,
		policy:          opts.Policy,
		inputValidator:  validate.NewStream("input"),
		outputValidator: validate.NewStream("output"),
		now:             opts.Now,
		debug:           opts.Debug,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.policy == nil {
		r.policy = touchaction.NewFilter()
	}

	if opts.NewTouchQueue != nil {
		r.touchQueue = opts.NewTouchQueue(r)
	} else {
		tq := queue.NewTouchQueue(r)
		tq.Now = r.now
		if opts.DesktopTouchAckTimeout > 0 {
			tq.DesktopTimeout = opts.DesktopTouchAckTimeout
		}
		if opts.MobileTouchAckTimeout > 0 {
			tq.MobileTimeout = opts.MobileTouchAckTimeout
		}
		r.touchQueue = tq
	}

	if opts.NewGestureQueue != nil {
		r.gestureQueue = opts.NewGestureQueue(r)
	} else {
		tap := queue.NewTapSuppressor(opts.TapSuppressionWindow)
		tap.Now = r.now
		r.gestureQueue = queue.NewGestureQueue(r, tap)
	}

	r.updateTouchAckTimeoutEnabled()
	return r
}

// Close detaches the router from its collaborators. It is safe to call
// from inside OnKeyboardEventAck. Every method of a closed router is a
// no-op.
func (r *Router) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.sender = nil
	r.client = nil
	r.ackHandler = nil
	r.policy = nil
	r.touchQueue = nil
	r.gestureQueue = nil
	r.keys = nil
	log.Printf("Router: closed")
}

// Closed reports whether Close has been called.
func (r *Router) Closed() bool {
	return r.closed
}

// Send routes e to the Send method of its class.
func (r *Router) Send(e input.Event) {
	switch e.Class() {
	case input.ClassPointerMove, input.ClassPointerButton:
		r.SendMouse(e)
	case input.ClassWheel:
		r.SendWheel(e)
	case input.ClassKey:
		r.SendKey(e, false)
	case input.ClassTouch:
		r.SendTouch(e)
	case input.ClassGesture:
		r.SendGesture(e)
	case input.ClassEditCommand, input.ClassUndefined:
		log.Printf("Router: dropping event of undefined type %d", e.Type)
	}
}

// NotifySiteIsMobileOptimized selects the touch ack timeout.
func (r *Router) NotifySiteIsMobileOptimized(mobile bool) {
	if r.closed {
		return
	}
	r.touchQueue.SetIsMobileOptimizedSite(mobile)
}

// CheckTimeouts fires the touch ack timeout if it has elapsed.
func (r *Router) CheckTimeouts(now time.Time) {
	if r.closed {
		return
	}
	if r.touchQueue.CheckAckTimeout(now) {
		r.stats.TouchTimeouts++
		log.Printf("Router: touch ack timed out")
		r.signalFlushedIfNecessary()
	}
}

func (r *Router) unexpected(reason UnexpectedReason) {
	r.stats.Unexpected++
	log.Printf("Router: unexpected ack: %s", reason)
	r.ackHandler.OnUnexpectedEventAck(reason)
}

func (r *Router) debugf(format string, args ...interface{}) {
	if r.debug {
		log.Printf("Router: "+format, args...)
	}
}

func mustClass(e input.Event, classes ...input.Class) {
	c := e.Class()
	for _, want := range classes {
		if c == want {
			return
		}
	}
	panic(fmt.Sprintf("router: %s event sent through the %s path", c, classes[0]))
}
