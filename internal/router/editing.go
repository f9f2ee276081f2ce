package router

import (
	"fmt"
	"log"

	"inputrouter/internal/input"
)

// editSlot tracks one kind of editing command. Select-range and
// move-range-extent share a slot; move-caret has its own.
type editSlot struct {
	awaiting bool
	pending  []input.EditCommand
}

// SendEditCommand forwards cmd, or queues it behind the command of the
// same kind awaiting ack. A queued command of the same op is replaced.
func (r *Router) SendEditCommand(cmd input.EditCommand) error {
	if r.closed {
		return ErrClosed
	}
	switch cmd.Op {
	case input.EditSelectRange, input.EditMoveRangeSelectionExtent, input.EditMoveCaret:
	default:
		return fmt.Errorf("op %d: %w", cmd.Op, ErrInvalidEditCommand)
	}

	slot := &r.edits[cmd.Op.Kind()]
	if slot.awaiting {
		if n := len(slot.pending); n > 0 && slot.pending[n-1].Op == cmd.Op {
			slot.pending[n-1] = cmd
			r.stats.Coalesced++
		} else {
			slot.pending = append(slot.pending, cmd)
		}
		return nil
	}
	r.sendEditCommand(cmd)
	return nil
}

func (r *Router) sendEditCommand(cmd input.EditCommand) {
	slot := &r.edits[cmd.Op.Kind()]
	for {
		slot.awaiting = true
		err := r.sender.SendEditCommand(cmd)
		if err == nil {
			r.stats.Sent++
			return
		}
		r.stats.SendFailures++
		log.Printf("Router: failed to send %s: %v", cmd.Op, err)
		slot.awaiting = false
		if len(slot.pending) == 0 {
			return
		}
		cmd = slot.pending[0]
		slot.pending = slot.pending[1:]
	}
}

// OnEditCommandAck completes the command of kind awaiting ack and sends the
// next one queued behind it.
func (r *Router) OnEditCommandAck(kind input.EditKind) {
	if r.closed {
		return
	}
	if int(kind) >= input.EditKindCount {
		r.unexpected(BadAckMessage)
		return
	}
	slot := &r.edits[kind]
	if !slot.awaiting {
		r.unexpected(UnexpectedAck)
		return
	}
	slot.awaiting = false
	r.stats.countAck(input.SourceRenderer)

	if len(slot.pending) > 0 {
		next := slot.pending[0]
		slot.pending = slot.pending[1:]
		if len(slot.pending) == 0 {
			slot.pending = nil
		}
		r.sendEditCommand(next)
	}
	r.signalFlushedIfNecessary()
}
