package router

import (
	"time"

	"inputrouter/internal/input"
)

// Stats are diagnostic counters. Latency is only measured for acks from
// the remote consumer.
type Stats struct {
	Sent          uint64        `json:"sent"`
	SendFailures  uint64        `json:"send_failures"`
	Dropped       uint64        `json:"dropped"`
	Coalesced     uint64        `json:"coalesced"`
	Filtered      uint64        `json:"filtered"`
	Suppressed    uint64        `json:"suppressed"`
	RendererAcks  uint64        `json:"renderer_acks"`
	ClientAcks    uint64        `json:"client_acks"`
	IgnoredAcks   uint64        `json:"ignored_acks"`
	Unexpected    uint64        `json:"unexpected"`
	TouchTimeouts uint64        `json:"touch_timeouts"`
	Flushes       uint64        `json:"flushes"`
	LastLatency   time.Duration `json:"last_latency_ns"`
	MaxLatency    time.Duration `json:"max_latency_ns"`
}

func (s *Stats) countAck(source input.AckSource) {
	switch source {
	case input.SourceRenderer:
		s.RendererAcks++
	case input.SourceClient:
		s.ClientAcks++
	case input.SourceIgnoring:
		s.IgnoredAcks++
	}
}

func (s *Stats) recordLatency(d time.Duration) {
	s.LastLatency = d
	if d > s.MaxLatency {
		s.MaxLatency = d
	}
}

// Snapshot is a point-in-time view of the router state.
type Snapshot struct {
	Pending        bool   `json:"pending"`
	FlushRequested bool   `json:"flush_requested"`
	MoveState      string `json:"move_state"`
	WheelState     string `json:"wheel_state"`
	WheelBuffered  int    `json:"wheel_buffered"`
	KeyQueue       int    `json:"key_queue"`
	SelectAwaiting bool   `json:"select_awaiting"`
	CaretAwaiting  bool   `json:"caret_awaiting"`
	FlingCount     int    `json:"fling_count"`
	TouchQueued    bool   `json:"touch_queued"`
	GestureQueued  bool   `json:"gesture_queued"`
	Closed         bool   `json:"closed"`
	Stats          Stats  `json:"stats"`
}

// Snapshot returns the current state and counters.
func (r *Router) Snapshot() Snapshot {
	s := Snapshot{
		Pending:        r.HasPendingEvents(),
		FlushRequested: r.flushRequested,
		MoveState:      r.move.state.String(),
		WheelState:     r.wheel.state.String(),
		WheelBuffered:  len(r.wheel.buffered),
		KeyQueue:       len(r.keys),
		SelectAwaiting: r.edits[input.KindSelect].awaiting,
		CaretAwaiting:  r.edits[input.KindCaret].awaiting,
		FlingCount:     r.flingCount,
		Closed:         r.closed,
		Stats:          r.stats,
	}
	if !r.closed {
		s.TouchQueued = !r.touchQueue.Empty()
		s.GestureQueued = !r.gestureQueue.Empty()
	}
	return s
}

// FlingCount returns the number of flings the consumer is running.
func (r *Router) FlingCount() int {
	return r.flingCount
}
