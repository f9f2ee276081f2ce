package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"inputrouter/internal/input"
)

// Frame kinds
const (
	FrameEvent uint8 = 0x01 // host -> consumer: an input event
	FrameAck   uint8 = 0x02 // consumer -> host: the ack of an input event
)

// Header: [kind(1)] [seq(4)] [timestamp(8)] = 13 bytes
const HeaderSize = 13

// Event flags
const (
	FlagShortcut uint8 = 1 << iota
	FlagCancelable
	FlagPreciseDeltas
	FlagCanScroll
	FlagScrollByPage
)

var (
	ErrShortFrame       = errors.New("frame: too short")
	ErrUnknownFrame     = errors.New("frame: unknown kind")
	ErrInvalidEventType = errors.New("frame: invalid event type")
	ErrTooManyPoints    = errors.New("frame: too many touch points")
	ErrPayloadTooLarge  = errors.New("frame: payload too large")
)

// Frame is a binary message on the consumer socket.
//
// Wire format after the header:
//
//	Event: type(1) flags(1) modifiers(2) body payloadLen(2) payload
//	  pointer: x y movementX movementY (int32) button(1) clickCount(1)
//	  wheel:   deltaX deltaY ticksX ticksY (float32) phase(1) momentumPhase(1)
//	  key:     code(uint16) text(int32)
//	  touch:   uniqueID(uint32) count(1) count*[id(1) state(1) x(float32) y(float32)]
//	  gesture: device(1) x y deltaX deltaY velocityX velocityY scale (float32)
//	Ack:   type(1) state(1) touchID(uint32) hasOverscroll(1) [accX accY latestX latestY (float32)]
//
// All integers are big endian.
type Frame struct {
	Kind      uint8
	Seq       uint32
	Timestamp int64

	Event    input.Event
	Shortcut bool

	Ack AckFrame
}

// AckFrame is the body of a FrameAck.
type AckFrame struct {
	Type       input.Type
	State      input.AckState
	TouchID    uint32
	Overscroll *input.Overscroll
}

// NewEventFrame builds the frame forwarding e.
func NewEventFrame(seq uint32, e input.Event, shortcut bool) *Frame {
	f := &Frame{Kind: FrameEvent, Seq: seq, Event: e, Shortcut: shortcut}
	if !e.Timestamp.IsZero() {
		f.Timestamp = e.Timestamp.UnixNano()
	}
	return f
}

// NewAckFrame builds the ack of an event frame.
func NewAckFrame(seq uint32, ack AckFrame) *Frame {
	return &Frame{Kind: FrameAck, Seq: seq, Timestamp: time.Now().UnixNano(), Ack: ack}
}

// EncodeFrame serializes f to wire format.
func EncodeFrame(f *Frame) ([]byte, error) {
	buf := make([]byte, HeaderSize, 64)
	buf[0] = f.Kind
	binary.BigEndian.PutUint32(buf[1:5], f.Seq)
	binary.BigEndian.PutUint64(buf[5:13], uint64(f.Timestamp))

	switch f.Kind {
	case FrameEvent:
		return appendEvent(buf, f.Event, f.Shortcut)
	case FrameAck:
		return appendAck(buf, f.Ack), nil
	default:
		return nil, fmt.Errorf("kind 0x%02x: %w", f.Kind, ErrUnknownFrame)
	}
}

func appendEvent(buf []byte, e input.Event, shortcut bool) ([]byte, error) {
	if !e.Type.Valid() {
		return nil, fmt.Errorf("type %d: %w", e.Type, ErrInvalidEventType)
	}
	var flags uint8
	if shortcut {
		flags |= FlagShortcut
	}
	if e.Touch.Cancelable {
		flags |= FlagCancelable
	}
	if e.Wheel.HasPreciseScrollingDeltas {
		flags |= FlagPreciseDeltas
	}
	if e.Wheel.CanScroll {
		flags |= FlagCanScroll
	}
	if e.Wheel.ScrollByPage {
		flags |= FlagScrollByPage
	}
	buf = append(buf, uint8(e.Type), flags)
	buf = binary.BigEndian.AppendUint16(buf, e.Modifiers)

	switch e.Class() {
	case input.ClassPointerMove, input.ClassPointerButton:
		m := e.Mouse
		buf = appendInt32(buf, m.X, m.Y, m.MovementX, m.MovementY)
		buf = append(buf, uint8(m.Button), m.ClickCount)
	case input.ClassWheel:
		w := e.Wheel
		buf = appendFloat32(buf, w.DeltaX, w.DeltaY, w.WheelTicksX, w.WheelTicksY)
		buf = append(buf, uint8(w.Phase), uint8(w.MomentumPhase))
	case input.ClassKey:
		buf = binary.BigEndian.AppendUint16(buf, e.Key.Code)
		buf = appendInt32(buf, e.Key.Text)
	case input.ClassTouch:
		if len(e.Touch.Points) > math.MaxUint8 {
			return nil, fmt.Errorf("%d points: %w", len(e.Touch.Points), ErrTooManyPoints)
		}
		buf = binary.BigEndian.AppendUint32(buf, e.Touch.UniqueID)
		buf = append(buf, uint8(len(e.Touch.Points)))
		for _, p := range e.Touch.Points {
			buf = append(buf, p.ID, uint8(p.State))
			buf = appendFloat32(buf, p.X, p.Y)
		}
	case input.ClassGesture:
		g := e.Gesture
		buf = append(buf, uint8(g.Device))
		buf = appendFloat32(buf, g.X, g.Y, g.DeltaX, g.DeltaY, g.VelocityX, g.VelocityY, g.Scale)
	case input.ClassUndefined, input.ClassEditCommand:
	}

	if len(e.Payload) > math.MaxUint16 {
		return nil, fmt.Errorf("%d bytes: %w", len(e.Payload), ErrPayloadTooLarge)
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(e.Payload)))
	return append(buf, e.Payload...), nil
}

func appendAck(buf []byte, a AckFrame) []byte {
	buf = append(buf, uint8(a.Type), uint8(a.State))
	buf = binary.BigEndian.AppendUint32(buf, a.TouchID)
	if a.Overscroll == nil {
		return append(buf, 0)
	}
	o := a.Overscroll
	buf = append(buf, 1)
	return appendFloat32(buf, o.AccumulatedX, o.AccumulatedY, o.LatestX, o.LatestY)
}

func appendInt32(buf []byte, vs ...int32) []byte {
	for _, v := range vs {
		buf = binary.BigEndian.AppendUint32(buf, uint32(v))
	}
	return buf
}

func appendFloat32(buf []byte, vs ...float32) []byte {
	for _, v := range vs {
		buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// DecodeFrame deserializes wire bytes into a Frame. Ack type and state are
// passed through unchecked; the router reports bad values.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, ErrShortFrame
	}

	f := &Frame{
		Kind:      data[0],
		Seq:       binary.BigEndian.Uint32(data[1:5]),
		Timestamp: int64(binary.BigEndian.Uint64(data[5:13])),
	}

	r := &reader{buf: data[HeaderSize:]}
	switch f.Kind {
	case FrameEvent:
		e, shortcut, err := readEvent(r)
		if err != nil {
			return nil, err
		}
		if f.Timestamp != 0 {
			e.Timestamp = time.Unix(0, f.Timestamp)
		}
		f.Event, f.Shortcut = e, shortcut
	case FrameAck:
		f.Ack = readAck(r)
	default:
		return nil, fmt.Errorf("kind 0x%02x: %w", f.Kind, ErrUnknownFrame)
	}
	if r.err != nil {
		return nil, r.err
	}
	return f, nil
}

func readEvent(r *reader) (input.Event, bool, error) {
	var e input.Event
	e.Type = input.Type(r.u8())
	flags := r.u8()
	e.Modifiers = r.u16()
	if r.err != nil {
		return e, false, r.err
	}
	if !e.Type.Valid() {
		return e, false, fmt.Errorf("type %d: %w", e.Type, ErrInvalidEventType)
	}

	e.Touch.Cancelable = flags&FlagCancelable != 0
	e.Wheel.HasPreciseScrollingDeltas = flags&FlagPreciseDeltas != 0
	e.Wheel.CanScroll = flags&FlagCanScroll != 0
	e.Wheel.ScrollByPage = flags&FlagScrollByPage != 0

	switch e.Class() {
	case input.ClassPointerMove, input.ClassPointerButton:
		e.Mouse.X, e.Mouse.Y = r.i32(), r.i32()
		e.Mouse.MovementX, e.Mouse.MovementY = r.i32(), r.i32()
		e.Mouse.Button = input.Button(r.u8())
		e.Mouse.ClickCount = r.u8()
	case input.ClassWheel:
		w := &e.Wheel
		w.DeltaX, w.DeltaY = r.f32(), r.f32()
		w.WheelTicksX, w.WheelTicksY = r.f32(), r.f32()
		w.Phase = input.Phase(r.u8())
		w.MomentumPhase = input.Phase(r.u8())
	case input.ClassKey:
		e.Key.Code = r.u16()
		e.Key.Text = r.i32()
	case input.ClassTouch:
		e.Touch.UniqueID = r.u32()
		n := int(r.u8())
		if n > 0 && r.err == nil {
			e.Touch.Points = make([]input.TouchPoint, n)
		}
		for i := 0; i < n && r.err == nil; i++ {
			p := &e.Touch.Points[i]
			p.ID = r.u8()
			p.State = input.PointState(r.u8())
			p.X, p.Y = r.f32(), r.f32()
		}
	case input.ClassGesture:
		g := &e.Gesture
		g.Device = input.GestureDevice(r.u8())
		g.X, g.Y = r.f32(), r.f32()
		g.DeltaX, g.DeltaY = r.f32(), r.f32()
		g.VelocityX, g.VelocityY = r.f32(), r.f32()
		g.Scale = r.f32()
	case input.ClassUndefined, input.ClassEditCommand:
	}

	if n := int(r.u16()); n > 0 {
		e.Payload = r.bytes(n)
	}
	return e, flags&FlagShortcut != 0, r.err
}

func readAck(r *reader) AckFrame {
	a := AckFrame{
		Type:    input.Type(r.u8()),
		State:   input.AckState(r.u8()),
		TouchID: r.u32(),
	}
	if r.u8() != 0 {
		a.Overscroll = &input.Overscroll{
			AccumulatedX: r.f32(),
			AccumulatedY: r.f32(),
			LatestX:      r.f32(),
			LatestY:      r.f32(),
		}
	}
	return a
}

// reader consumes big endian fields. After the first short read every
// call returns zero and err is set.
type reader struct {
	buf []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < n {
		r.err = ErrShortFrame
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *reader) i32() int32 { return int32(r.u32()) }
func (r *reader) f32() float32 { return math.Float32frombits(r.u32()) }

func (r *reader) bytes(n int) []byte {
	if b := r.take(n); b != nil {
		return append([]byte(nil), b...)
	}
	return nil
}
