package network

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"inputrouter/internal/input"
	"inputrouter/internal/protocol"

	"github.com/gorilla/websocket"
)

func splitHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(rawURL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

// TestProbeHost tests host detection through /health
func TestProbeHost(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Health{Status: "ok", Service: ServiceName, Connected: true})
	}))
	defer ts.Close()

	ip, port := splitHostPort(t, ts.URL)
	host, ok := ProbeHost(ip, port)
	if !ok {
		t.Fatal("Expected the host to be detected")
	}
	if !host.Connected || host.Port != port {
		t.Errorf("Unexpected host %+v", host)
	}
	if host.Addr() != net.JoinHostPort(ip, strconv.Itoa(port)) {
		t.Errorf("Unexpected addr %s", host.Addr())
	}
}

// TestProbeHostOtherService tests that unrelated services are ignored
func TestProbeHostOtherService(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Health{Status: "ok", Service: "something-else"})
	}))
	defer ts.Close()

	ip, port := splitHostPort(t, ts.URL)
	if _, ok := ProbeHost(ip, port); ok {
		t.Error("Expected a different service to be rejected")
	}
}

type received struct {
	kind int
	data []byte
}

// fakeHost accepts one consumer and exposes what it sends.
func fakeHost(t *testing.T) (*httptest.Server, chan *websocket.Conn, chan received) {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	in := make(chan received, 32)
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			in <- received{kind, data}
		}
	}))
	t.Cleanup(ts.Close)
	return ts, conns, in
}

func nextBinary(t *testing.T, in chan received) *protocol.Frame {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case m := <-in:
			if m.kind != websocket.BinaryMessage {
				continue
			}
			f, err := protocol.DecodeFrame(m.data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			return f
		case <-timeout:
			t.Fatal("Timed out waiting for a frame")
		}
	}
}

func nextMessage(t *testing.T, in chan received, typ protocol.MessageType) protocol.Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case m := <-in:
			if m.kind != websocket.TextMessage {
				continue
			}
			var msg protocol.Message
			if err := json.Unmarshal(m.data, &msg); err == nil && msg.Type == typ {
				return msg
			}
		case <-timeout:
			t.Fatalf("Timed out waiting for %s", typ)
		}
	}
}

func writeFrame(t *testing.T, conn *websocket.Conn, f *protocol.Frame) {
	t.Helper()
	data, err := protocol.EncodeFrame(f)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatal(err)
	}
}

// TestConsumerAcks tests the consumer handshake and ack replies
func TestConsumerAcks(t *testing.T) {
	ts, conns, in := fakeHost(t)

	sessions := make(chan string, 1)
	c := NewConsumer(strings.TrimPrefix(ts.URL, "http://"), "", "tester")
	c.RetryInterval = time.Hour
	c.HasTouchHandlers = true
	c.OnSession = func(id string) { sessions <- id }
	c.Verdict = func(e input.Event) input.AckState { return input.AckConsumed }
	c.Start()
	defer c.Close()

	conn := <-conns
	auth := nextMessage(t, in, protocol.TypeAuth)
	var p protocol.AuthPayload
	if err := protocol.DecodePayload(auth, &p); err != nil || p.ConsumerName != "tester" {
		t.Errorf("Expected auth from tester, got %+v %v", p, err)
	}
	touch := nextMessage(t, in, protocol.TypeHasTouchHandlers)
	var h protocol.HasTouchHandlersPayload
	if err := protocol.DecodePayload(touch, &h); err != nil || !h.Has {
		t.Errorf("Expected touch handlers announced, got %+v %v", h, err)
	}

	conn.WriteJSON(protocol.Message{Type: protocol.TypeSession, Payload: protocol.SessionPayload{ID: "abc"}})
	select {
	case id := <-sessions:
		if id != "abc" {
			t.Errorf("Expected session abc, got %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a session callback")
	}
	if c.Session() != "abc" || !c.IsConnected() {
		t.Errorf("Expected connected with session abc, got %q", c.Session())
	}

	// Mouse down needs no ack; the key does.
	writeFrame(t, conn, protocol.NewEventFrame(6, input.Event{Type: input.MouseDown}, false))
	writeFrame(t, conn, protocol.NewEventFrame(7, input.Event{Type: input.RawKeyDown, Key: input.KeyData{Code: 30}}, false))

	f := nextBinary(t, in)
	if f.Kind != protocol.FrameAck || f.Seq != 7 {
		t.Fatalf("Expected the ack of frame 7, got %+v", f)
	}
	if f.Ack.Type != input.RawKeyDown || f.Ack.State != input.AckConsumed {
		t.Errorf("Unexpected ack %+v", f.Ack)
	}
}

// TestConsumerEditAck tests that edit commands are acked by kind
func TestConsumerEditAck(t *testing.T) {
	ts, conns, in := fakeHost(t)

	edits := make(chan input.EditCommand, 1)
	c := NewConsumer(strings.TrimPrefix(ts.URL, "http://"), "", "tester")
	c.RetryInterval = time.Hour
	c.OnEditCommand = func(cmd input.EditCommand) { edits <- cmd }
	c.Start()
	defer c.Close()

	conn := <-conns
	payload := protocol.NewEditCommandPayload(input.EditCommand{Op: input.EditMoveCaret, X: 4, Y: 5})
	conn.WriteJSON(protocol.Message{Type: protocol.TypeEditCommand, Payload: payload})

	select {
	case cmd := <-edits:
		if cmd.Op != input.EditMoveCaret || cmd.X != 4 || cmd.Y != 5 {
			t.Errorf("Unexpected command %+v", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected an edit command")
	}

	ack := nextMessage(t, in, protocol.TypeEditAck)
	var p protocol.EditAckPayload
	if err := protocol.DecodePayload(ack, &p); err != nil || p.Kind != "caret" {
		t.Errorf("Expected a caret ack, got %+v %v", p, err)
	}
}
