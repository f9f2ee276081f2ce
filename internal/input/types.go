// Package input defines the events routed to the remote consumer and the
// acknowledgement vocabulary used to account for them.
package input

import "time"

// Type identifies a concrete input event.
type Type uint8

const (
	Undefined Type = iota

	MouseDown
	MouseUp
	MouseMove
	MouseEnter
	MouseLeave
	ContextMenu

	MouseWheel

	RawKeyDown
	KeyDown
	KeyUp
	Char

	TouchStart
	TouchMove
	TouchEnd
	TouchCancel

	GestureScrollBegin
	GestureScrollEnd
	GestureScrollUpdate
	GestureFlingStart
	GestureFlingCancel
	GestureShowPress
	GestureTap
	GestureTapUnconfirmed
	GestureTapDown
	GestureTapCancel
	GestureDoubleTap
	GestureTwoFingerTap
	GestureLongPress
	GestureLongTap
	GesturePinchBegin
	GesturePinchEnd
	GesturePinchUpdate

	typeCount
)

var typeNames = [...]string{
	Undefined:             "Undefined",
	MouseDown:             "MouseDown",
	MouseUp:               "MouseUp",
	MouseMove:             "MouseMove",
	MouseEnter:            "MouseEnter",
	MouseLeave:            "MouseLeave",
	ContextMenu:           "ContextMenu",
	MouseWheel:            "MouseWheel",
	RawKeyDown:            "RawKeyDown",
	KeyDown:               "KeyDown",
	KeyUp:                 "KeyUp",
	Char:                  "Char",
	TouchStart:            "TouchStart",
	TouchMove:             "TouchMove",
	TouchEnd:              "TouchEnd",
	TouchCancel:           "TouchCancel",
	GestureScrollBegin:    "GestureScrollBegin",
	GestureScrollEnd:      "GestureScrollEnd",
	GestureScrollUpdate:   "GestureScrollUpdate",
	GestureFlingStart:     "GestureFlingStart",
	GestureFlingCancel:    "GestureFlingCancel",
	GestureShowPress:      "GestureShowPress",
	GestureTap:            "GestureTap",
	GestureTapUnconfirmed: "GestureTapUnconfirmed",
	GestureTapDown:        "GestureTapDown",
	GestureTapCancel:      "GestureTapCancel",
	GestureDoubleTap:      "GestureDoubleTap",
	GestureTwoFingerTap:   "GestureTwoFingerTap",
	GestureLongPress:      "GestureLongPress",
	GestureLongTap:        "GestureLongTap",
	GesturePinchBegin:     "GesturePinchBegin",
	GesturePinchEnd:       "GesturePinchEnd",
	GesturePinchUpdate:    "GesturePinchUpdate",
}

func (t Type) String() string {
	if t < typeCount {
		return typeNames[t]
	}
	return "Invalid"
}

// Valid reports whether t is a known type. Values decoded from the wire
// may not be.
func (t Type) Valid() bool {
	return t < typeCount
}

// Class groups event types by the way the router tracks them.
type Class uint8

const (
	ClassUndefined Class = iota
	ClassPointerMove
	ClassPointerButton
	ClassWheel
	ClassKey
	ClassTouch
	ClassGesture
	ClassEditCommand
)

func (c Class) String() string {
	switch c {
	case ClassPointerMove:
		return "pointer_move"
	case ClassPointerButton:
		return "pointer_button"
	case ClassWheel:
		return "wheel"
	case ClassKey:
		return "key"
	case ClassTouch:
		return "touch"
	case ClassGesture:
		return "gesture"
	case ClassEditCommand:
		return "edit_command"
	default:
		return "undefined"
	}
}

// Class returns the class t belongs to. Edit commands are not input
// events and never map from a Type.
func (t Type) Class() Class {
	switch {
	case t == MouseMove:
		return ClassPointerMove
	case t >= MouseDown && t <= ContextMenu:
		return ClassPointerButton
	case t == MouseWheel:
		return ClassWheel
	case t >= RawKeyDown && t <= Char:
		return ClassKey
	case t >= TouchStart && t <= TouchCancel:
		return ClassTouch
	case t >= GestureScrollBegin && t <= GesturePinchUpdate:
		return ClassGesture
	default:
		return ClassUndefined
	}
}

// Modifier bits carried on every event.
const (
	ModShift uint16 = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
	ModLeftButton
	ModMiddleButton
	ModRightButton
	ModIsAutoRepeat
)

// Button identifies a mouse button.
type Button uint8

const (
	ButtonNone Button = iota
	ButtonLeft
	ButtonMiddle
	ButtonRight
)

// MouseData holds the pointer fields of mouse events.
type MouseData struct {
	X, Y       int32
	MovementX  int32
	MovementY  int32
	Button     Button
	ClickCount uint8
}

// Phase describes the wheel phase reported by precise scrolling devices.
type Phase uint8

const (
	PhaseNone Phase = iota
	PhaseBegan
	PhaseStationary
	PhaseChanged
	PhaseEnded
	PhaseCancelled
	PhaseMayBegin
)

// WheelData holds wheel deltas and the flags that decide coalescing.
type WheelData struct {
	DeltaX                    float32
	DeltaY                    float32
	WheelTicksX               float32
	WheelTicksY               float32
	Phase                     Phase
	MomentumPhase             Phase
	ScrollByPage              bool
	HasPreciseScrollingDeltas bool
	CanScroll                 bool
}

// KeyData holds keyboard fields. Code is a Linux evdev key code.
type KeyData struct {
	Code uint16
	Text rune
}

// PointState is the per-point state inside a touch event.
type PointState uint8

const (
	PointUndefined PointState = iota
	PointReleased
	PointPressed
	PointMoved
	PointStationary
	PointCancelled
)

// TouchPoint is a single contact of a touch event.
type TouchPoint struct {
	ID    uint8
	State PointState
	X, Y  float32
}

// TouchData holds touch points. UniqueID pairs the event with its ack and
// is assigned by the touch queue when zero.
type TouchData struct {
	Points     []TouchPoint
	Cancelable bool
	UniqueID   uint32
}

// GestureDevice is the device a gesture was recognized from.
type GestureDevice uint8

const (
	DeviceUninitialized GestureDevice = iota
	DeviceTouchpad
	DeviceTouchscreen
)

// GestureData holds gesture fields.
type GestureData struct {
	Device    GestureDevice
	X, Y      float32
	DeltaX    float32
	DeltaY    float32
	VelocityX float32
	VelocityY float32
	Scale     float32
}

// Event is an immutable input event. Only the field group matching Type
// is meaningful. Payload is opaque and forwarded untouched.
type Event struct {
	Type      Type
	Modifiers uint16
	Timestamp time.Time

	Mouse   MouseData
	Wheel   WheelData
	Key     KeyData
	Touch   TouchData
	Gesture GestureData

	Payload []byte
}

// Class is shorthand for e.Type.Class().
func (e Event) Class() Class {
	return e.Type.Class()
}

// AckState is the disposition reported for an event.
type AckState uint8

const (
	AckUnknown AckState = iota
	AckConsumed
	AckNotConsumed
	AckNoConsumerExists
	AckIgnored
)

func (s AckState) String() string {
	switch s {
	case AckUnknown:
		return "UNKNOWN"
	case AckConsumed:
		return "CONSUMED"
	case AckNotConsumed:
		return "NOT_CONSUMED"
	case AckNoConsumerExists:
		return "NO_CONSUMER_EXISTS"
	case AckIgnored:
		return "IGNORED"
	default:
		return "INVALID"
	}
}

// AckSource records why an ack is being processed.
type AckSource uint8

const (
	// SourceRenderer is a real ack from the remote consumer.
	SourceRenderer AckSource = iota
	// SourceClient is a verdict from the local client filter.
	SourceClient
	// SourceIgnoring is synthesized for events the remote never acks.
	SourceIgnoring
)

func (s AckSource) String() string {
	switch s {
	case SourceRenderer:
		return "renderer"
	case SourceClient:
		return "client"
	case SourceIgnoring:
		return "ignoring"
	default:
		return "unknown"
	}
}

// Overscroll describes scroll deltas the consumer could not apply.
type Overscroll struct {
	AccumulatedX float32
	AccumulatedY float32
	LatestX      float32
	LatestY      float32
}

// EditOp is an editing command forwarded in order to the consumer.
type EditOp uint8

const (
	EditSelectRange EditOp = iota + 1
	EditMoveRangeSelectionExtent
	EditMoveCaret
)

func (o EditOp) String() string {
	switch o {
	case EditSelectRange:
		return "select_range"
	case EditMoveRangeSelectionExtent:
		return "move_range_selection_extent"
	case EditMoveCaret:
		return "move_caret"
	default:
		return "invalid"
	}
}

// EditKind groups edit ops sharing one awaiting-ack slot.
type EditKind uint8

const (
	KindSelect EditKind = iota
	KindCaret

	editKindCount
)

// EditKindCount is the number of edit kinds.
const EditKindCount = int(editKindCount)

func (k EditKind) String() string {
	if k == KindCaret {
		return "caret"
	}
	return "select"
}

// Kind returns the slot o is tracked in.
func (o EditOp) Kind() EditKind {
	if o == EditMoveCaret {
		return KindCaret
	}
	return KindSelect
}

// EditCommand is a select-range or move-caret request.
type EditCommand struct {
	Op      EditOp
	X, Y    int32
	Payload []byte
}

// Source produces events from a local device.
type Source interface {
	Start() error
	Stop() error
	Events() <-chan Event
}
