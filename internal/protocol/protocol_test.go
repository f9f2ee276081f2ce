package protocol

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"inputrouter/internal/input"
)

// TestEncodeDecodeFrame tests each event class through the binary codec
func TestEncodeDecodeFrame(t *testing.T) {
	ts := time.Unix(1700000000, 12345)
	events := []input.Event{
		{Type: input.MouseMove, Modifiers: input.ModShift, Mouse: input.MouseData{X: -3, Y: 7, MovementX: -1, MovementY: 2}},
		{Type: input.MouseDown, Mouse: input.MouseData{Button: input.ButtonRight, ClickCount: 2}},
		{Type: input.MouseWheel, Wheel: input.WheelData{DeltaY: -53, WheelTicksY: -1, Phase: input.PhaseChanged, CanScroll: true, HasPreciseScrollingDeltas: true}},
		{Type: input.Char, Key: input.KeyData{Code: input.KeyEnter, Text: '\r'}, Payload: []byte("native")},
		{Type: input.TouchStart, Touch: input.TouchData{Cancelable: true, UniqueID: 9, Points: []input.TouchPoint{{ID: 1, State: input.PointPressed, X: 1.5, Y: 2.5}, {ID: 2, State: input.PointStationary}}}},
		{Type: input.GestureFlingStart, Gesture: input.GestureData{Device: input.DeviceTouchpad, VelocityX: 120, VelocityY: -4, Scale: 1}},
	}

	for i, e := range events {
		e.Timestamp = ts
		data, err := EncodeFrame(NewEventFrame(uint32(i+1), e, i == 3))
		if err != nil {
			t.Fatalf("%s: encode failed: %v", e.Type, err)
		}
		f, err := DecodeFrame(data)
		if err != nil {
			t.Fatalf("%s: decode failed: %v", e.Type, err)
		}
		if f.Kind != FrameEvent || f.Seq != uint32(i+1) {
			t.Errorf("%s: unexpected header %d/%d", e.Type, f.Kind, f.Seq)
		}
		if f.Shortcut != (i == 3) {
			t.Errorf("%s: expected shortcut=%v", e.Type, i == 3)
		}
		if !f.Event.Timestamp.Equal(ts) {
			t.Errorf("%s: expected timestamp %v, got %v", e.Type, ts, f.Event.Timestamp)
		}
		f.Event.Timestamp = e.Timestamp
		if !reflect.DeepEqual(f.Event, e) {
			t.Errorf("%s: round trip mismatch\nwant %+v\ngot  %+v", e.Type, e, f.Event)
		}
	}
}

// TestHeaderLayout tests the 13 byte header
func TestHeaderLayout(t *testing.T) {
	data, err := EncodeFrame(&Frame{Kind: FrameAck, Seq: 0x01020304, Timestamp: 5, Ack: AckFrame{Type: input.KeyUp, State: input.AckConsumed}})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{FrameAck, 1, 2, 3, 4, 0, 0, 0, 0, 0, 0, 0, 5, byte(input.KeyUp), byte(input.AckConsumed), 0, 0, 0, 0, 0}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("Expected %v, got %v", want, data)
	}
}

// TestAckOverscroll tests the optional overscroll block of an ack
func TestAckOverscroll(t *testing.T) {
	o := &input.Overscroll{AccumulatedY: 30, LatestY: -2}
	data, err := EncodeFrame(NewAckFrame(4, AckFrame{Type: input.MouseWheel, State: input.AckNotConsumed, TouchID: 0, Overscroll: o}))
	if err != nil {
		t.Fatal(err)
	}
	f, err := DecodeFrame(data)
	if err != nil {
		t.Fatal(err)
	}
	if f.Ack.Overscroll == nil || *f.Ack.Overscroll != *o {
		t.Errorf("Expected overscroll %+v, got %+v", o, f.Ack.Overscroll)
	}
}

// TestDecodeErrors tests malformed frames
func TestDecodeErrors(t *testing.T) {
	good, _ := EncodeFrame(NewEventFrame(1, input.Event{Type: input.MouseMove}, false))
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short header", []byte{FrameEvent, 0, 0}, ErrShortFrame},
		{"unknown kind", append([]byte{0x7f}, make([]byte, 12)...), ErrUnknownFrame},
		{"truncated body", good[:len(good)-3], ErrShortFrame},
		{"bad type", append(append([]byte{FrameEvent}, make([]byte, 12)...), 200, 0, 0, 0), ErrInvalidEventType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeFrame(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestAckPassesUnknownValues tests that ack values are not validated here
func TestAckPassesUnknownValues(t *testing.T) {
	data, _ := EncodeFrame(&Frame{Kind: FrameAck, Ack: AckFrame{Type: input.Type(250), State: input.AckState(77)}})
	f, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if f.Ack.Type != 250 || f.Ack.State != 77 {
		t.Errorf("Expected raw values, got %+v", f.Ack)
	}
}

// TestDecodePayload tests payload extraction from a decoded message
func TestDecodePayload(t *testing.T) {
	raw := []byte(`{"type":"edit_command","payload":{"op":"move_caret","x":4,"y":9}}`)
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatal(err)
	}
	var p EditCommandPayload
	if err := DecodePayload(msg, &p); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	cmd, err := p.EditCommand()
	if err != nil {
		t.Fatalf("EditCommand failed: %v", err)
	}
	if cmd.Op != input.EditMoveCaret || cmd.X != 4 || cmd.Y != 9 {
		t.Errorf("Unexpected command %+v", cmd)
	}

	if _, err := (EditCommandPayload{Op: "paste"}).EditCommand(); !errors.Is(err, ErrUnknownEditOp) {
		t.Errorf("Expected ErrUnknownEditOp, got %v", err)
	}
	if k, err := (EditAckPayload{Kind: "caret"}).EditKind(); err != nil || k != input.KindCaret {
		t.Errorf("Expected caret kind, got %v, %v", k, err)
	}
	if _, err := (EditAckPayload{Kind: "x"}).EditKind(); !errors.Is(err, ErrUnknownEditKind) {
		t.Errorf("Expected ErrUnknownEditKind, got %v", err)
	}
}
