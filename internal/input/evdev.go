package input

import (
	"encoding/binary"
	"time"
)

// Linux input_event types and codes the decoder understands.
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	synReport = 0x00

	relX      = 0x00
	relY      = 0x01
	relHWheel = 0x06
	relWheel  = 0x08

	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112
)

// WheelPixelsPerTick converts wheel ticks into scroll deltas.
const WheelPixelsPerTick = 53

// Decoder turns raw evdev (type, code, value) triplets into Events. It
// accumulates relative motion until SYN_REPORT so each report produces at
// most one move and one wheel event.
type Decoder struct {
	mods        uint16
	x, y        int32
	dx, dy      int32
	ticksX      int32
	ticksY      int32
	InvertWheel bool
}

// Feed processes one triplet and returns the events it completes.
func (d *Decoder) Feed(etype, code uint16, value int32, ts time.Time) []Event {
	switch etype {
	case evRel:
		switch code {
		case relX:
			d.dx += value
		case relY:
			d.dy += value
		case relWheel:
			d.ticksY += value
		case relHWheel:
			d.ticksX += value
		}
		return nil
	case evKey:
		return d.key(code, value, ts)
	case evSyn:
		if code == synReport {
			return d.flush(ts)
		}
	}
	return nil
}

func (d *Decoder) flush(ts time.Time) []Event {
	var out []Event
	if d.dx != 0 || d.dy != 0 {
		d.x += d.dx
		d.y += d.dy
		out = append(out, Event{
			Type:      MouseMove,
			Modifiers: d.mods,
			Timestamp: ts,
			Mouse:     MouseData{X: d.x, Y: d.y, MovementX: d.dx, MovementY: d.dy},
		})
		d.dx, d.dy = 0, 0
	}
	if d.ticksX != 0 || d.ticksY != 0 {
		sign := float32(1)
		if d.InvertWheel {
			sign = -1
		}
		out = append(out, Event{
			Type:      MouseWheel,
			Modifiers: d.mods,
			Timestamp: ts,
			Mouse:     MouseData{X: d.x, Y: d.y},
			Wheel: WheelData{
				WheelTicksX: sign * float32(d.ticksX),
				WheelTicksY: sign * float32(d.ticksY),
				DeltaX:      sign * float32(d.ticksX) * WheelPixelsPerTick,
				DeltaY:      sign * float32(d.ticksY) * WheelPixelsPerTick,
				CanScroll:   true,
			},
		})
		d.ticksX, d.ticksY = 0, 0
	}
	return out
}

func (d *Decoder) key(code uint16, value int32, ts time.Time) []Event {
	if b, mod := mouseButton(code); b != ButtonNone {
		t := MouseDown
		if value == 0 {
			t = MouseUp
			d.mods &^= mod
		} else {
			d.mods |= mod
		}
		return []Event{{
			Type:      t,
			Modifiers: d.mods,
			Timestamp: ts,
			Mouse:     MouseData{X: d.x, Y: d.y, Button: b, ClickCount: 1},
		}}
	}

	mod := ModifierFor(code)
	if value == 0 {
		d.mods &^= mod
		return []Event{{Type: KeyUp, Modifiers: d.mods, Timestamp: ts, Key: KeyData{Code: code}}}
	}
	d.mods |= mod
	mods := d.mods
	if value == 2 {
		mods |= ModIsAutoRepeat
	}
	out := []Event{{Type: RawKeyDown, Modifiers: mods, Timestamp: ts, Key: KeyData{Code: code}}}
	if r := KeyText(code, mods); r != 0 {
		out = append(out, Event{Type: Char, Modifiers: mods, Timestamp: ts, Key: KeyData{Code: code, Text: r}})
	}
	return out
}

func mouseButton(code uint16) (Button, uint16) {
	switch code {
	case btnLeft:
		return ButtonLeft, ModLeftButton
	case btnRight:
		return ButtonRight, ModRightButton
	case btnMiddle:
		return ButtonMiddle, ModMiddleButton
	}
	return ButtonNone, 0
}

// parseRecords splits a buffer of input_event records. The kernel uses 24
// byte records on 64-bit platforms and 16 byte records on 32-bit ones.
func parseRecords(buf []byte, size int, cb func(etype, code uint16, value int32)) []byte {
	for len(buf) >= size {
		rec := buf[:size]
		buf = buf[size:]
		off := size - 8
		cb(binary.LittleEndian.Uint16(rec[off:off+2]),
			binary.LittleEndian.Uint16(rec[off+2:off+4]),
			int32(binary.LittleEndian.Uint32(rec[off+4:off+8])))
	}
	return buf
}
