// Package validate checks that event streams are well formed. A violation
// means the producer or the remote consumer broke its contract; callers
// panic rather than repair the stream.
package validate

import (
	"errors"
	"fmt"

	"inputrouter/internal/input"
)

var ErrViolation = errors.New("event stream violation")

// Violation describes a malformed event.
type Violation struct {
	Stream string
	Type   input.Type
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s stream: %s: %s", v.Stream, v.Type, v.Reason)
}

func (v *Violation) Unwrap() error {
	return ErrViolation
}

// GestureValidator tracks scroll, pinch and tap state of a gesture stream.
type GestureValidator struct {
	scrolling        bool
	pinching         bool
	waitingForTapEnd bool
}

// Validate checks e against the sequence seen so far. Non gesture events
// are ignored.
func (g *GestureValidator) Validate(e input.Event) string {
	switch e.Type {
	case input.GestureScrollBegin:
		if g.scrolling {
			return "scroll begin during scroll"
		}
		g.scrolling = true
	case input.GestureScrollUpdate:
		if !g.scrolling {
			return "scroll update outside of scroll"
		}
	case input.GestureScrollEnd, input.GestureFlingStart:
		if !g.scrolling {
			return "scroll end outside of scroll"
		}
		if g.pinching {
			return "scroll end during pinch"
		}
		g.scrolling = false
	case input.GesturePinchBegin:
		if !g.scrolling {
			return "pinch begin outside of scroll"
		}
		if g.pinching {
			return "pinch begin during pinch"
		}
		g.pinching = true
	case input.GesturePinchUpdate:
		if !g.pinching {
			return "pinch update outside of pinch"
		}
	case input.GesturePinchEnd:
		if !g.pinching {
			return "pinch end outside of pinch"
		}
		g.pinching = false
	case input.GestureTapDown:
		g.waitingForTapEnd = true
	case input.GestureTapUnconfirmed:
		if !g.waitingForTapEnd {
			return "tap unconfirmed without tap down"
		}
	case input.GestureTapCancel, input.GestureTap, input.GestureDoubleTap:
		if !g.waitingForTapEnd {
			return "tap end without tap down"
		}
		g.waitingForTapEnd = false
	}
	return ""
}

// TouchValidator tracks the active touch points of a touch stream.
type TouchValidator struct {
	active map[uint8]bool
}

// Validate checks e against the active point set. Non touch events are
// ignored.
func (t *TouchValidator) Validate(e input.Event) string {
	if e.Class() != input.ClassTouch {
		return ""
	}
	if t.active == nil {
		t.active = make(map[uint8]bool)
	}
	points := e.Touch.Points
	if len(points) == 0 {
		return "touch without points"
	}

	if e.Type == input.TouchStart {
		if len(t.active) == 0 && !input.IsTouchSequenceStart(e) {
			return "sequence start with non pressed points"
		}
		pressed := 0
		for _, p := range points {
			if p.State == input.PointPressed {
				if t.active[p.ID] {
					return fmt.Sprintf("point %d pressed twice", p.ID)
				}
				pressed++
				continue
			}
			if !t.active[p.ID] {
				return fmt.Sprintf("unknown point %d", p.ID)
			}
		}
		if pressed == 0 {
			return "touch start without a pressed point"
		}
		for _, p := range points {
			t.active[p.ID] = true
		}
		return ""
	}

	if len(t.active) == 0 {
		return "touch without a prior start"
	}
	for _, p := range points {
		if p.State == input.PointPressed {
			return fmt.Sprintf("point %d pressed outside of touch start", p.ID)
		}
		if !t.active[p.ID] {
			return fmt.Sprintf("unknown point %d", p.ID)
		}
	}
	for _, p := range points {
		if e.Type == input.TouchCancel || p.State == input.PointReleased || p.State == input.PointCancelled {
			delete(t.active, p.ID)
		}
	}
	return ""
}

// Stream validates one direction of traffic.
type Stream struct {
	Name    string
	gesture GestureValidator
	touch   TouchValidator
}

// NewStream creates a validator labelled name in violations.
func NewStream(name string) *Stream {
	return &Stream{Name: name}
}

// Validate returns a *Violation if e is malformed, nil otherwise.
func (s *Stream) Validate(e input.Event) error {
	var reason string
	switch e.Class() {
	case input.ClassGesture:
		reason = s.gesture.Validate(e)
	case input.ClassTouch:
		reason = s.touch.Validate(e)
	}
	if reason == "" {
		return nil
	}
	return &Violation{Stream: s.Name, Type: e.Type, Reason: reason}
}

// Must panics with a *Violation if e is malformed.
func (s *Stream) Must(e input.Event) {
	if err := s.Validate(e); err != nil {
		panic(err)
	}
}
