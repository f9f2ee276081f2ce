package router

import (
	"inputrouter/internal/input"
)

type keyEntry struct {
	event    input.Event
	shortcut bool
}

// SendKey queues a key event and forwards it. Keys are never coalesced
// and must be acked in the order they were sent.
func (r *Router) SendKey(e input.Event, isShortcut bool) {
	if r.closed {
		return
	}
	mustClass(e, input.ClassKey)

	r.keys = append(r.keys, keyEntry{event: e, shortcut: isShortcut})
	r.gestureQueue.FlingHasBeenHalted()

	r.filterAndSend(e, isShortcut)
	// The router may be closed at this point.
}

// processKeyboardAck pops the acked key and hands it to the owner. The
// hand-off must stay the last statement: the owner may close the router
// from inside it.
func (r *Router) processKeyboardAck(typ input.Type, state input.AckState, source input.AckSource) {
	if len(r.keys) == 0 {
		r.unexpected(UnexpectedAck)
		return
	}

	// A local ack is for the key just pushed, remote acks are in order.
	i := 0
	if source != input.SourceRenderer {
		i = len(r.keys) - 1
	}
	if r.keys[i].event.Type != typ {
		r.keys = nil
		r.unexpected(UnexpectedEventType)
		r.signalFlushedIfNecessary()
		return
	}

	entry := r.keys[i]
	r.keys = append(r.keys[:i], r.keys[i+1:]...)
	if len(r.keys) == 0 {
		r.keys = nil
	}
	r.debugf("key %s acked %s (%s)", typ, state, source)

	handler := r.ackHandler
	r.signalFlushedIfNecessary()
	handler.OnKeyboardEventAck(entry.event, state)
}
