package network

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"inputrouter/internal/input"
	"inputrouter/internal/protocol"

	"github.com/gorilla/websocket"
)

// ConsumerVersion is reported in the auth message.
const ConsumerVersion = "0.3.0"

type outbound struct {
	kind int
	data []byte
}

// Consumer is a remote consumer that connects to a router host, receives
// event frames and acks them. It stands in for a renderer in demos and
// end-to-end tests.
type Consumer struct {
	hostAddr string
	token    string
	name     string

	send chan outbound
	done chan struct{}
	once sync.Once

	// Verdict picks the ack state for an event. Nil acks NotConsumed.
	Verdict func(e input.Event) input.AckState
	// Overscroll is consulted for unconsumed wheel and scroll updates.
	Overscroll func(e input.Event) *input.Overscroll
	// AckDelay is slept before every ack, in order.
	AckDelay time.Duration
	// FlingDuration is how long a consumed fling runs before the consumer
	// reports that it stopped. Zero never reports.
	FlingDuration time.Duration
	// HasTouchHandlers is announced after connecting.
	HasTouchHandlers bool
	// TouchAction, when set, is declared before acking each touch start.
	TouchAction string
	// RetryInterval is the wait between connection attempts.
	RetryInterval time.Duration

	// Callbacks
	OnSession     func(id string)
	OnEvent       func(e input.Event, shortcut bool)
	OnEditCommand func(cmd input.EditCommand)

	mu          sync.Mutex
	isConnected bool
	session     string
}

// NewConsumer creates a consumer for the host at hostAddr (host:port)
func NewConsumer(hostAddr, token, name string) *Consumer {
	return &Consumer{
		hostAddr:      hostAddr,
		token:         token,
		name:          name,
		send:          make(chan outbound, 256),
		done:          make(chan struct{}),
		RetryInterval: 5 * time.Second,
	}
}

// Start begins the client loop (connect & process)
func (c *Consumer) Start() {
	go c.loop()
}

func (c *Consumer) loop() {
	for {
		c.connect()

		select {
		case <-c.done:
			return
		case <-time.After(c.RetryInterval):
			log.Println("Consumer: Attempting reconnection...")
		}
	}
}

func (c *Consumer) connect() {
	u := url.URL{Scheme: "ws", Host: c.hostAddr, Path: "/ws"}
	log.Printf("Consumer: Connecting to %s", u.String())

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		if resp != nil {
			log.Printf("Consumer: Connection refused: %s", resp.Status)
		} else {
			log.Printf("Consumer: Connection failed: %v", err)
		}
		return
	}
	defer conn.Close()

	c.mu.Lock()
	c.isConnected = true
	c.mu.Unlock()
	log.Println("Consumer: Connected to host")

	c.sendMessage(protocol.TypeAuth, protocol.AuthPayload{
		Token:           c.token,
		ConsumerName:    c.name,
		ConsumerVersion: ConsumerVersion,
	})
	c.sendMessage(protocol.TypeHasTouchHandlers, protocol.HasTouchHandlersPayload{Has: c.HasTouchHandlers})

	connDone := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(conn, connDone)
	}()

	c.readPump(conn)
	close(connDone)
	<-writerDone

	c.mu.Lock()
	c.isConnected = false
	c.session = ""
	c.mu.Unlock()
	c.drain()
}

// drain discards messages queued for a connection that is gone
func (c *Consumer) drain() {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func (c *Consumer) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("Consumer: Read error: %v", err)
			}
			return
		}

		if kind == websocket.BinaryMessage {
			c.handleFrame(data)
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Consumer: Invalid message: %v", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Consumer) writePump(conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case m := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(m.kind, m.data); err != nil {
				log.Printf("Consumer: Write error: %v", err)
				conn.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}

		case <-connDone:
			return

		case <-c.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			return
		}
	}
}

func (c *Consumer) handleFrame(data []byte) {
	f, err := protocol.DecodeFrame(data)
	if err != nil {
		log.Printf("Consumer: Invalid frame: %v", err)
		return
	}
	if f.Kind != protocol.FrameEvent {
		log.Printf("Consumer: Ignoring frame kind %d", f.Kind)
		return
	}

	e := f.Event
	if c.OnEvent != nil {
		c.OnEvent(e, f.Shortcut)
	}
	if !input.RequiresAck(e) {
		return
	}

	if c.AckDelay > 0 {
		time.Sleep(c.AckDelay)
	}

	if c.TouchAction != "" && input.IsTouchSequenceStart(e) {
		c.sendMessage(protocol.TypeSetTouchAction, protocol.SetTouchActionPayload{Action: c.TouchAction})
	}

	state := input.AckNotConsumed
	if c.Verdict != nil {
		state = c.Verdict(e)
	}
	ack := protocol.AckFrame{Type: e.Type, State: state, TouchID: e.Touch.UniqueID}
	if state != input.AckConsumed && c.Overscroll != nil && input.CarriesOverscroll(e.Type) {
		ack.Overscroll = c.Overscroll(e)
	}

	out, err := protocol.EncodeFrame(protocol.NewAckFrame(f.Seq, ack))
	if err != nil {
		log.Printf("Consumer: Encode ack failed: %v", err)
		return
	}
	c.enqueue(outbound{kind: websocket.BinaryMessage, data: out})

	if e.Type == input.GestureFlingStart && state == input.AckConsumed && c.FlingDuration > 0 {
		time.AfterFunc(c.FlingDuration, func() {
			c.sendMessage(protocol.TypeDidStopFlinging, nil)
		})
	}
}

func (c *Consumer) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeSession:
		var payload protocol.SessionPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			log.Printf("Consumer: %v", err)
			return
		}
		c.mu.Lock()
		c.session = payload.ID
		c.mu.Unlock()
		log.Printf("Consumer: Session %s", payload.ID)
		if c.OnSession != nil {
			c.OnSession(payload.ID)
		}

	case protocol.TypeEditCommand:
		var payload protocol.EditCommandPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			log.Printf("Consumer: %v", err)
			return
		}
		cmd, err := payload.EditCommand()
		if err != nil {
			log.Printf("Consumer: %v", err)
			return
		}
		if c.OnEditCommand != nil {
			c.OnEditCommand(cmd)
		}
		if c.AckDelay > 0 {
			time.Sleep(c.AckDelay)
		}
		c.sendMessage(protocol.TypeEditAck, protocol.EditAckPayload{Kind: cmd.Op.Kind().String()})

	case protocol.TypePing:

	default:
		log.Printf("Consumer: Unhandled message %s", msg.Type)
	}
}

func (c *Consumer) sendMessage(typ protocol.MessageType, payload interface{}) {
	data, err := json.Marshal(protocol.Message{Type: typ, Payload: payload})
	if err != nil {
		log.Printf("Consumer: Marshal error: %v", err)
		return
	}
	c.enqueue(outbound{kind: websocket.TextMessage, data: data})
}

func (c *Consumer) enqueue(m outbound) {
	select {
	case c.send <- m:
	case <-c.done:
	}
}

// SendDidOverscroll reports overscroll outside of an ack
func (c *Consumer) SendDidOverscroll(o input.Overscroll) {
	c.sendMessage(protocol.TypeDidOverscroll, protocol.OverscrollPayload{
		AccumulatedX: o.AccumulatedX,
		AccumulatedY: o.AccumulatedY,
		LatestX:      o.LatestX,
		LatestY:      o.LatestY,
	})
}

// SendMobileOptimized reports whether the content is mobile optimized
func (c *Consumer) SendMobileOptimized(mobile bool) {
	c.sendMessage(protocol.TypeMobileOptimized, protocol.MobileOptimizedPayload{Mobile: mobile})
}

// IsConnected returns true if the consumer is connected to a host
func (c *Consumer) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// Session returns the id the host assigned to the current connection
func (c *Consumer) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Close stops the client
func (c *Consumer) Close() {
	c.once.Do(func() { close(c.done) })
}
