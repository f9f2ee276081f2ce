// Package touchaction tracks the touch-action declared by the consumer for
// the current touch sequence and filters gestures it does not allow.
package touchaction

import (
	"strings"

	"inputrouter/internal/input"
)

// TouchAction is a bitmask of permitted default touch behaviors.
type TouchAction uint8

const (
	None          TouchAction = 0
	PanLeft       TouchAction = 1 << 0
	PanRight      TouchAction = 1 << 1
	PanX                      = PanLeft | PanRight
	PanUp         TouchAction = 1 << 2
	PanDown       TouchAction = 1 << 3
	PanY                      = PanUp | PanDown
	Pan                       = PanX | PanY
	PinchZoom     TouchAction = 1 << 4
	Manipulation              = Pan | PinchZoom
	DoubleTapZoom TouchAction = 1 << 5
	Auto                      = Manipulation | DoubleTapZoom
)

var names = []struct {
	a    TouchAction
	name string
}{
	{Auto, "auto"},
	{Manipulation, "manipulation"},
	{Pan, "pan"},
	{PanX, "pan-x"},
	{PanY, "pan-y"},
	{PanLeft, "pan-left"},
	{PanRight, "pan-right"},
	{PanUp, "pan-up"},
	{PanDown, "pan-down"},
	{PinchZoom, "pinch-zoom"},
	{DoubleTapZoom, "double-tap-zoom"},
}

func (a TouchAction) String() string {
	if a == None {
		return "none"
	}
	var parts []string
	rest := a
	for _, n := range names {
		if rest&n.a == n.a {
			parts = append(parts, n.name)
			rest &^= n.a
		}
	}
	return strings.Join(parts, " ")
}

// Parse reads a space separated CSS touch-action value.
func Parse(s string) (TouchAction, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "none" {
		return None, true
	}
	var a TouchAction
	for _, f := range strings.Fields(s) {
		found := false
		for _, n := range names {
			if n.name == f {
				a |= n.a
				found = true
				break
			}
		}
		if !found {
			return None, false
		}
	}
	return a, s != ""
}

// Filter holds the allowed touch-action of the active sequence.
type Filter struct {
	allowed    TouchAction
	dropScroll bool
	dropPinch  bool
}

// NewFilter returns a filter that allows everything.
func NewFilter() *Filter {
	return &Filter{allowed: Auto}
}

// AllowedTouchAction returns the touch-action in effect.
func (f *Filter) AllowedTouchAction() TouchAction {
	return f.allowed
}

// ResetTouchAction restores Auto. It is called at each sequence start.
func (f *Filter) ResetTouchAction() {
	f.allowed = Auto
}

// OnSetTouchAction narrows the allowed action for the current sequence.
// Multiple declarations intersect.
func (f *Filter) OnSetTouchAction(a TouchAction) {
	f.allowed &= a
}

// FilterGestureEvent reports whether e should be dropped. It may rewrite
// the deltas of scroll updates when only one pan axis is allowed.
func (f *Filter) FilterGestureEvent(e *input.Event) bool {
	switch e.Type {
	case input.GestureScrollBegin:
		f.dropScroll = f.allowed == None
		return f.dropScroll
	case input.GestureScrollUpdate:
		if f.dropScroll {
			return true
		}
		if f.allowed&PanX == 0 {
			e.Gesture.DeltaX = 0
		}
		if f.allowed&PanY == 0 {
			e.Gesture.DeltaY = 0
		}
		return false
	case input.GestureFlingStart:
		drop := f.dropScroll
		if !drop {
			if f.allowed&PanX == 0 {
				e.Gesture.VelocityX = 0
			}
			if f.allowed&PanY == 0 {
				e.Gesture.VelocityY = 0
			}
		}
		f.dropScroll = false
		return drop
	case input.GestureScrollEnd:
		drop := f.dropScroll
		f.dropScroll = false
		return drop
	case input.GesturePinchBegin:
		f.dropPinch = f.allowed&PinchZoom == 0
		return f.dropPinch
	case input.GesturePinchUpdate:
		return f.dropPinch
	case input.GesturePinchEnd:
		drop := f.dropPinch
		f.dropPinch = false
		return drop
	case input.GestureDoubleTap:
		if f.allowed&DoubleTapZoom == 0 {
			e.Type = input.GestureTap
		}
		return false
	}
	return false
}
