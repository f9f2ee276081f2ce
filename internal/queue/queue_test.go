package queue

import (
	"errors"
	"testing"
	"time"

	"inputrouter/internal/input"
)

type ackRecord struct {
	ev    input.Event
	state input.AckState
}

// fakeClient records sends and acks. If ackOnSend is set, events that do
// not require an ack are acked synchronously from inside the send, the way
// the router does it.
type fakeClient struct {
	sent      []input.Event
	dropped   []input.Event
	acks      []ackRecord
	failNext  bool
	ackOnSend func(e input.Event)
}

func (c *fakeClient) send(e input.Event) error {
	if c.failNext {
		c.failNext = false
		return errors.New("send failed")
	}
	c.sent = append(c.sent, e)
	if c.ackOnSend != nil {
		c.ackOnSend(e)
	}
	return nil
}

func (c *fakeClient) SendTouchEventImmediately(e input.Event) error   { return c.send(e) }
func (c *fakeClient) SendGestureEventImmediately(e input.Event) error { return c.send(e) }

func (c *fakeClient) OnTouchEventDropped(e input.Event) { c.dropped = append(c.dropped, e) }

func (c *fakeClient) OnTouchEventAck(e input.Event, state input.AckState) {
	c.acks = append(c.acks, ackRecord{e, state})
}

func (c *fakeClient) OnGestureEventAck(e input.Event, state input.AckState) {
	c.acks = append(c.acks, ackRecord{e, state})
}

func touchStart(id uint8) input.Event {
	return input.Event{Type: input.TouchStart, Touch: input.TouchData{
		Cancelable: true,
		Points:     []input.TouchPoint{{ID: id, State: input.PointPressed}},
	}}
}

func touchMove(id uint8) input.Event {
	return input.Event{Type: input.TouchMove, Touch: input.TouchData{
		Cancelable: true,
		Points:     []input.TouchPoint{{ID: id, State: input.PointMoved}},
	}}
}

func scrollUpdate(dy float32) input.Event {
	return input.Event{Type: input.GestureScrollUpdate, Gesture: input.GestureData{Device: input.DeviceTouchscreen, DeltaY: dy}}
}

// TestTouchQueueOneInFlight tests that touches are forwarded one at a time
func TestTouchQueueOneInFlight(t *testing.T) {
	c := &fakeClient{}
	q := NewTouchQueue(c)

	q.QueueEvent(touchStart(1))
	q.QueueEvent(touchMove(1))
	if len(c.sent) != 1 {
		t.Fatalf("Expected 1 sent event, got %d", len(c.sent))
	}
	if !q.IsPendingAckTouchStart() {
		t.Error("Expected touch start to be pending ack")
	}

	id := c.sent[0].Touch.UniqueID
	if id == 0 {
		t.Fatal("Expected a unique id to be assigned")
	}
	if err := q.ProcessTouchAck(input.AckNotConsumed, id); err != nil {
		t.Fatalf("Unexpected ack error: %v", err)
	}
	if len(c.sent) != 2 || c.sent[1].Type != input.TouchMove {
		t.Fatalf("Expected touch move to follow, got %d sends", len(c.sent))
	}
	if len(c.acks) != 1 || c.acks[0].state != input.AckNotConsumed {
		t.Errorf("Expected one NOT_CONSUMED ack, got %+v", c.acks)
	}

	moveID := c.sent[1].Touch.UniqueID
	q.QueueEvent(touchMove(1))
	if err := q.ProcessTouchAck(input.AckConsumed, id); !errors.Is(err, ErrAckMismatch) {
		t.Errorf("Expected ErrAckMismatch for a stale id, got %v", err)
	}
	if len(c.sent) != 3 || q.Len() != 1 {
		t.Fatalf("Expected the mismatched head to be dropped and the next move sent, got %d sends, %d queued", len(c.sent), q.Len())
	}
	if err := q.ProcessTouchAck(input.AckConsumed, moveID); err != nil {
		t.Errorf("Expected the late ack of the dropped head to be swallowed, got %v", err)
	}
	if q.Len() != 1 {
		t.Errorf("Expected the last move to stay in flight, got %d queued", q.Len())
	}
	if err := q.ProcessTouchAck(input.AckConsumed, 0); err != nil {
		t.Fatalf("Unexpected ack error: %v", err)
	}
	if !q.Empty() {
		t.Error("Expected queue to be empty")
	}
	if err := q.ProcessTouchAck(input.AckConsumed, 0); !errors.Is(err, ErrUnexpectedAck) {
		t.Errorf("Expected ErrUnexpectedAck, got %v", err)
	}
}

// TestTouchQueueNoHandlers tests local acks when the consumer has no handlers
func TestTouchQueueNoHandlers(t *testing.T) {
	c := &fakeClient{}
	q := NewTouchQueue(c)
	q.OnHasTouchEventHandlers(false)

	q.QueueEvent(touchStart(1))
	if len(c.sent) != 0 {
		t.Errorf("Expected nothing sent, got %d", len(c.sent))
	}
	if len(c.acks) != 1 || c.acks[0].state != input.AckNoConsumerExists {
		t.Errorf("Expected a local NO_CONSUMER_EXISTS ack, got %+v", c.acks)
	}
	if len(c.dropped) != 1 {
		t.Errorf("Expected the dropped start to be reported, got %d", len(c.dropped))
	}
	if !q.Empty() {
		t.Error("Expected queue to be empty")
	}
}

// TestTouchQueueHandlersMidSequence tests that handlers showing up during a
// dropped sequence only apply from the next sequence start
func TestTouchQueueHandlersMidSequence(t *testing.T) {
	c := &fakeClient{}
	q := NewTouchQueue(c)
	q.OnHasTouchEventHandlers(false)

	q.QueueEvent(touchStart(1))
	q.OnHasTouchEventHandlers(true)
	q.QueueEvent(touchMove(1))
	if len(c.sent) != 0 {
		t.Fatalf("Expected the rest of the sequence to stay local, got %d sends", len(c.sent))
	}
	if len(c.dropped) != 2 || len(c.acks) != 2 {
		t.Errorf("Expected 2 dropped and acked events, got %d and %d", len(c.dropped), len(c.acks))
	}

	q.QueueEvent(touchStart(2))
	if len(c.sent) != 1 || c.sent[0].Type != input.TouchStart {
		t.Errorf("Expected the next sequence to be sent, got %+v", c.sent)
	}
}

// TestTouchQueueNoConsumerForSequence tests that a start acked with no
// consumer short-circuits the rest of its sequence
func TestTouchQueueNoConsumerForSequence(t *testing.T) {
	c := &fakeClient{}
	q := NewTouchQueue(c)

	q.QueueEvent(touchStart(1))
	q.ProcessTouchAck(input.AckNoConsumerExists, 0)
	q.QueueEvent(touchMove(1))
	if len(c.sent) != 1 {
		t.Errorf("Expected move to be acked locally, got %d sends", len(c.sent))
	}
	if len(c.acks) != 2 || c.acks[1].state != input.AckNoConsumerExists {
		t.Errorf("Expected local ack for move, got %+v", c.acks)
	}

	q.QueueEvent(touchStart(2))
	if len(c.sent) != 2 {
		t.Errorf("Expected new sequence to be sent, got %d sends", len(c.sent))
	}
}

// TestTouchQueueTimeout tests ack timeouts and late ack swallowing
func TestTouchQueueTimeout(t *testing.T) {
	c := &fakeClient{}
	q := NewTouchQueue(c)
	base := time.Unix(1000, 0)
	q.Now = func() time.Time { return base }

	q.QueueEvent(touchStart(1))
	q.QueueEvent(touchMove(1))

	if q.CheckAckTimeout(base.Add(time.Second)) {
		t.Fatal("Expected no timeout while disabled")
	}
	q.SetAckTimeoutEnabled(true)
	if q.CheckAckTimeout(base.Add(100 * time.Millisecond)) {
		t.Fatal("Expected no timeout before the deadline")
	}
	if !q.CheckAckTimeout(base.Add(DefaultDesktopTouchAckTimeout)) {
		t.Fatal("Expected timeout at the deadline")
	}
	if len(c.acks) != 1 || c.acks[0].state != input.AckNotConsumed {
		t.Errorf("Expected local NOT_CONSUMED ack, got %+v", c.acks)
	}
	if len(c.sent) != 2 {
		t.Fatalf("Expected move to be sent after timeout, got %d", len(c.sent))
	}

	// The late ack for the start is swallowed, the move is still in flight.
	if err := q.ProcessTouchAck(input.AckConsumed, c.sent[0].Touch.UniqueID); err != nil {
		t.Errorf("Expected late ack to be swallowed, got %v", err)
	}
	if q.Empty() {
		t.Error("Expected move to still be in flight")
	}

	q.SetIsMobileOptimizedSite(true)
	if q.Timeout() != DefaultMobileTouchAckTimeout {
		t.Errorf("Expected mobile timeout, got %v", q.Timeout())
	}
}

// TestTouchQueueAsyncMoves tests non-cancelable moves during a consumed scroll
func TestTouchQueueAsyncMoves(t *testing.T) {
	c := &fakeClient{}
	q := NewTouchQueue(c)

	q.QueueEvent(touchStart(1))
	q.ProcessTouchAck(input.AckNotConsumed, 0)
	q.OnGestureEventAck(scrollUpdate(3), input.AckConsumed)

	q.QueueEvent(touchMove(1))
	if len(c.sent) != 2 || c.sent[1].Touch.Cancelable {
		t.Fatalf("Expected an uncancelable move, got %+v", c.sent)
	}
	q.ProcessTouchAck(input.AckIgnored, 0)

	q.OnGestureScrollEvent(input.Event{Type: input.GestureScrollEnd})
	q.QueueEvent(touchMove(1))
	if !c.sent[2].Touch.Cancelable {
		t.Error("Expected moves to be cancelable again after the scroll ended")
	}
}

// TestTouchQueueSyncAckAndSendFailure tests acks delivered from inside a
// send and heads dropped by a failed send
func TestTouchQueueSyncAckAndSendFailure(t *testing.T) {
	c := &fakeClient{}
	q := NewTouchQueue(c)
	c.ackOnSend = func(e input.Event) {
		if !input.RequiresAck(e) {
			q.ProcessTouchAck(input.AckIgnored, e.Touch.UniqueID)
		}
	}

	a := touchStart(1)
	a.Touch.Cancelable = false
	b := touchMove(1)
	b.Touch.Cancelable = false
	q.QueueEvent(a)
	q.QueueEvent(b)
	if len(c.sent) != 2 || len(c.acks) != 2 {
		t.Fatalf("Expected 2 sends and 2 acks, got %d and %d", len(c.sent), len(c.acks))
	}
	if !q.Empty() {
		t.Error("Expected queue to be empty")
	}

	c.failNext = true
	q.QueueEvent(touchMove(1))
	if !q.Empty() {
		t.Error("Expected failed head to be dropped")
	}
	if len(c.acks) != 2 {
		t.Errorf("Expected no ack for a failed send, got %d acks", len(c.acks))
	}
}

// TestGestureQueueCoalescing tests scroll update coalescing behind the head
func TestGestureQueueCoalescing(t *testing.T) {
	c := &fakeClient{}
	q := NewGestureQueue(c, nil)

	q.QueueEvent(scrollUpdate(1))
	q.QueueEvent(scrollUpdate(2))
	q.QueueEvent(scrollUpdate(3))
	if len(c.sent) != 1 {
		t.Fatalf("Expected 1 send, got %d", len(c.sent))
	}
	if q.Len() != 2 {
		t.Fatalf("Expected the two pending updates to coalesce, got %d queued", q.Len())
	}

	if err := q.ProcessGestureAck(input.AckConsumed, input.GestureScrollUpdate); err != nil {
		t.Fatalf("Unexpected ack error: %v", err)
	}
	if len(c.sent) != 2 || c.sent[1].Gesture.DeltaY != 5 {
		t.Fatalf("Expected coalesced delta 5, got %+v", c.sent)
	}

	if err := q.ProcessGestureAck(input.AckConsumed, input.GestureFlingStart); !errors.Is(err, ErrAckMismatch) {
		t.Errorf("Expected ErrAckMismatch, got %v", err)
	}
	if !q.Empty() {
		t.Error("Expected queue to be empty")
	}
	if err := q.ProcessGestureAck(input.AckConsumed, input.GestureScrollUpdate); !errors.Is(err, ErrUnexpectedAck) {
		t.Errorf("Expected ErrUnexpectedAck, got %v", err)
	}
}

// TestGestureQueueFlingCancel tests fling cancel filtering
func TestGestureQueueFlingCancel(t *testing.T) {
	c := &fakeClient{}
	q := NewGestureQueue(c, nil)

	if q.QueueEvent(input.Event{Type: input.GestureFlingCancel}) {
		t.Error("Expected fling cancel without a fling to be discarded")
	}

	q.QueueEvent(input.Event{Type: input.GestureFlingStart})
	q.ProcessGestureAck(input.AckConsumed, input.GestureFlingStart)
	q.FlingHasBeenHalted()
	if q.QueueEvent(input.Event{Type: input.GestureFlingCancel}) {
		t.Error("Expected fling cancel after a halt to be discarded")
	}

	q.QueueEvent(input.Event{Type: input.GestureFlingStart})
	q.ProcessGestureAck(input.AckConsumed, input.GestureFlingStart)
	if !q.QueueEvent(input.Event{Type: input.GestureFlingCancel}) {
		t.Error("Expected fling cancel during a fling to be queued")
	}
}

// TestTapSuppression tests that the click stopping a touchpad fling is dropped
func TestTapSuppression(t *testing.T) {
	c := &fakeClient{}
	tap := NewTapSuppressor(0)
	now := time.Unix(50, 0)
	tap.Now = func() time.Time { return now }
	q := NewGestureQueue(c, tap)

	q.QueueEvent(input.Event{Type: input.GestureFlingStart, Gesture: input.GestureData{Device: input.DeviceTouchpad}})
	q.ProcessGestureAck(input.AckConsumed, input.GestureFlingStart)
	q.QueueEvent(input.Event{Type: input.GestureFlingCancel, Gesture: input.GestureData{Device: input.DeviceTouchpad}})
	q.ProcessGestureAck(input.AckConsumed, input.GestureFlingCancel)

	now = now.Add(50 * time.Millisecond)
	if !q.ShouldSuppressMouseDown() {
		t.Error("Expected mouse down to be suppressed")
	}
	if !q.ShouldSuppressMouseUp() {
		t.Error("Expected mouse up to be suppressed")
	}
	if q.ShouldSuppressMouseDown() || q.ShouldSuppressMouseUp() {
		t.Error("Expected only one click to be suppressed")
	}
}

// TestTapSuppressionWindow tests that late clicks are delivered
func TestTapSuppressionWindow(t *testing.T) {
	tap := NewTapSuppressor(100 * time.Millisecond)
	now := time.Unix(50, 0)
	tap.Now = func() time.Time { return now }

	tap.GestureFlingCancel()
	tap.GestureFlingCancelAck(true)
	now = now.Add(150 * time.Millisecond)
	if tap.ShouldSuppressMouseDown() {
		t.Error("Expected mouse down after the window to pass")
	}

	tap.GestureFlingCancel()
	tap.GestureFlingCancelAck(false)
	if tap.ShouldSuppressMouseDown() {
		t.Error("Expected mouse down to pass when the cancel stopped nothing")
	}
}
