package router

// RequestNotificationWhenFlushed asks for one DidFlush call once nothing is
// pending. If nothing is pending now, DidFlush is called before this
// returns.
func (r *Router) RequestNotificationWhenFlushed() {
	if r.closed {
		return
	}
	r.flushRequested = true
	r.signalFlushedIfNecessary()
}

// HasPendingEvents reports whether any event is queued, buffered or
// awaiting ack, or a fling is still running.
func (r *Router) HasPendingEvents() bool {
	if r.closed {
		return false
	}
	for _, slot := range r.edits {
		if slot.awaiting {
			return true
		}
	}
	return !r.touchQueue.Empty() ||
		!r.gestureQueue.Empty() ||
		len(r.keys) > 0 ||
		r.move.state != slotIdle ||
		r.wheel.state != slotIdle ||
		r.flingCount > 0
}

func (r *Router) signalFlushedIfNecessary() {
	if r.closed || !r.flushRequested {
		return
	}
	if r.HasPendingEvents() {
		return
	}
	r.flushRequested = false
	r.stats.Flushes++
	r.client.DidFlush()
}
