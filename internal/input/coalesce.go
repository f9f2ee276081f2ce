package input

import "fmt"

// CoalesceMouseMove merges next into pending. The result is next with the
// movement deltas of both events accumulated.
func CoalesceMouseMove(pending, next Event) Event {
	merged := next
	merged.Mouse.MovementX += pending.Mouse.MovementX
	merged.Mouse.MovementY += pending.Mouse.MovementY
	return merged
}

// CanCoalesceWheel reports whether next may be merged into pending without
// losing precision or scrollability information.
func CanCoalesceWheel(pending, next Event) bool {
	a, b := pending.Wheel, next.Wheel
	return pending.Type == MouseWheel && next.Type == MouseWheel &&
		pending.Modifiers == next.Modifiers &&
		a.ScrollByPage == b.ScrollByPage &&
		a.Phase == b.Phase &&
		a.MomentumPhase == b.MomentumPhase &&
		a.HasPreciseScrollingDeltas == b.HasPreciseScrollingDeltas &&
		a.CanScroll == b.CanScroll
}

// CoalesceWheel sums the deltas of two compatible wheel events. It panics
// if CanCoalesceWheel(pending, next) is false.
func CoalesceWheel(pending, next Event) Event {
	if !CanCoalesceWheel(pending, next) {
		panic(fmt.Sprintf("input: wheel events with incompatible flags cannot be coalesced (%+v, %+v)", pending.Wheel, next.Wheel))
	}
	merged := next
	merged.Wheel.DeltaX += pending.Wheel.DeltaX
	merged.Wheel.DeltaY += pending.Wheel.DeltaY
	merged.Wheel.WheelTicksX += pending.Wheel.WheelTicksX
	merged.Wheel.WheelTicksY += pending.Wheel.WheelTicksY
	return merged
}

// CanCoalesceScrollUpdate reports whether two scroll updates may merge.
func CanCoalesceScrollUpdate(pending, next Event) bool {
	return pending.Type == GestureScrollUpdate && next.Type == GestureScrollUpdate &&
		pending.Modifiers == next.Modifiers &&
		pending.Gesture.Device == next.Gesture.Device
}

// CoalesceScrollUpdate sums the deltas of two scroll updates.
func CoalesceScrollUpdate(pending, next Event) Event {
	merged := next
	merged.Gesture.DeltaX += pending.Gesture.DeltaX
	merged.Gesture.DeltaY += pending.Gesture.DeltaY
	return merged
}
