package input

// RequiresAck reports whether the remote consumer will ack e. Events for
// which it returns false receive a synthetic ack after being forwarded.
func RequiresAck(e Event) bool {
	switch e.Type {
	case MouseDown, MouseUp, MouseEnter, MouseLeave, ContextMenu,
		GestureScrollBegin, GestureScrollEnd, GestureShowPress,
		GestureTapUnconfirmed, GestureTapDown, GestureTapCancel,
		GesturePinchBegin, GesturePinchEnd, TouchCancel:
		return false
	case TouchStart, TouchMove, TouchEnd:
		return e.Touch.Cancelable
	default:
		return true
	}
}

// IsTouchSequenceStart reports whether e begins a new touch sequence:
// a TouchStart in which every point is newly pressed.
func IsTouchSequenceStart(e Event) bool {
	if e.Type != TouchStart || len(e.Touch.Points) == 0 {
		return false
	}
	for _, p := range e.Touch.Points {
		if p.State != PointPressed {
			return false
		}
	}
	return true
}

// IsKeyDown reports whether t presses a key.
func IsKeyDown(t Type) bool {
	return t == RawKeyDown || t == KeyDown
}

// CarriesOverscroll reports whether an ack for t may carry overscroll.
func CarriesOverscroll(t Type) bool {
	return t == MouseWheel || t == GestureScrollUpdate
}
