package host

import (
	"context"
	"log"

	"inputrouter/internal/input"
	"inputrouter/internal/protocol"
	"inputrouter/internal/router"
	"inputrouter/internal/touchaction"
)

// Dispatch queues a local event for the router. Keys bound to a fallback
// shortcut are forwarded marked as shortcuts. It returns false once the
// host has stopped.
func (h *Host) Dispatch(e input.Event) bool {
	return h.loop.Post(func() { h.route(e) })
}

func (h *Host) route(e input.Event) {
	if e.Class() == input.ClassKey {
		_, isShortcut := h.fallback.Match(e)
		h.router.SendKey(e, isShortcut)
		return
	}
	h.router.Send(e)
}

// EditCommand forwards an editing command to the consumer.
func (h *Host) EditCommand(ctx context.Context, cmd input.EditCommand) error {
	var err error
	if callErr := h.loop.Call(ctx, func() { err = h.router.SendEditCommand(cmd) }); callErr != nil {
		return callErr
	}
	return err
}

// SetPaused stops or resumes forwarding. Shortcuts keep working.
func (h *Host) SetPaused(paused bool) {
	h.loop.Post(func() { h.setPaused(paused) })
}

// Reset discards everything in flight and starts a new router generation.
func (h *Host) Reset() {
	h.loop.Post(func() { h.resetRouter("requested") })
}

// State returns the host-level state.
func (h *Host) State(ctx context.Context) (State, error) {
	var s State
	err := h.loop.Call(ctx, func() { s = h.state() })
	return s, err
}

// Snapshot returns the router state and counters.
func (h *Host) Snapshot(ctx context.Context) (router.Snapshot, error) {
	var snap router.Snapshot
	err := h.loop.Call(ctx, func() { snap = h.router.Snapshot() })
	return snap, err
}

// Flush waits until the router has nothing in flight.
func (h *Host) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := h.loop.Call(ctx, func() {
		h.flushWaiters = append(h.flushWaiters, done)
		h.router.RequestNotificationWhenFlushed()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) ConsumerConnected(session string) {
	h.loop.Post(func() {
		// A previous consumer's detach may not have been processed yet.
		if h.router.HasPendingEvents() {
			h.resetRouter("consumer replaced")
		}
		h.connected = true
		h.session = session
		log.Printf("Host: Consumer %s attached", session)
		h.notify()
	})
}

func (h *Host) ConsumerDisconnected(session string) {
	h.loop.Post(func() {
		if h.session != session {
			return
		}
		h.connected = false
		h.session = ""
		h.hasTouchHandlers = false
		log.Printf("Host: Consumer %s detached", session)
		h.resetRouter("consumer detached")
	})
}

func (h *Host) HandleAck(ack protocol.AckFrame) {
	h.loop.Post(func() {
		h.router.OnInputEventAck(router.Ack{
			Type:       ack.Type,
			State:      ack.State,
			TouchID:    ack.TouchID,
			Overscroll: ack.Overscroll,
		})
	})
}

func (h *Host) HandleControl(msg protocol.Message) {
	h.loop.Post(func() { h.handleControl(msg) })
}

func (h *Host) handleControl(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeEditAck:
		var p protocol.EditAckPayload
		if err := protocol.DecodePayload(msg, &p); err != nil {
			log.Printf("Host: %v", err)
			return
		}
		kind, err := p.EditKind()
		if err != nil {
			log.Printf("Host: %v", err)
			h.OnUnexpectedEventAck(router.BadAckMessage)
			return
		}
		h.router.OnEditCommandAck(kind)

	case protocol.TypeHasTouchHandlers:
		var p protocol.HasTouchHandlersPayload
		if err := protocol.DecodePayload(msg, &p); err != nil {
			log.Printf("Host: %v", err)
			return
		}
		h.router.OnHasTouchEventHandlers(p.Has)

	case protocol.TypeSetTouchAction:
		var p protocol.SetTouchActionPayload
		if err := protocol.DecodePayload(msg, &p); err != nil {
			log.Printf("Host: %v", err)
			return
		}
		action, ok := touchaction.Parse(p.Action)
		if !ok {
			log.Printf("Host: Invalid touch-action %q", p.Action)
			return
		}
		h.router.OnSetTouchAction(action)

	case protocol.TypeDidStopFlinging:
		h.router.OnDidStopFlinging()

	case protocol.TypeDidOverscroll:
		var p protocol.OverscrollPayload
		if err := protocol.DecodePayload(msg, &p); err != nil {
			log.Printf("Host: %v", err)
			return
		}
		h.router.OnDidOverscroll(input.Overscroll{
			AccumulatedX: p.AccumulatedX,
			AccumulatedY: p.AccumulatedY,
			LatestX:      p.LatestX,
			LatestY:      p.LatestY,
		})

	case protocol.TypeMobileOptimized:
		var p protocol.MobileOptimizedPayload
		if err := protocol.DecodePayload(msg, &p); err != nil {
			log.Printf("Host: %v", err)
			return
		}
		h.router.NotifySiteIsMobileOptimized(p.Mobile)

	default:
		log.Printf("Host: Unhandled control message %s", msg.Type)
	}
}
