package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"inputrouter/internal/input"
	"inputrouter/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	readLimit  = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins; access is controlled by the bearer token
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type outbound struct {
	kind int
	data []byte
}

// consumerConn is the single attached consumer.
type consumerConn struct {
	server  *Server
	conn    *websocket.Conn
	send    chan outbound
	done    chan struct{}
	once    sync.Once
	session string
	ip      string
	name    string
}

func newConsumerConn(s *Server, conn *websocket.Conn, buffer int, ip string) *consumerConn {
	if buffer <= 0 {
		buffer = 256
	}
	return &consumerConn{
		server:  s,
		conn:    conn,
		send:    make(chan outbound, buffer),
		done:    make(chan struct{}),
		session: uuid.NewString(),
		ip:      ip,
	}
}

func (c *consumerConn) enqueue(kind int, data []byte) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	select {
	case c.send <- outbound{kind: kind, data: data}:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *consumerConn) close() {
	c.once.Do(func() { close(c.done) })
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.consumer != nil {
		s.mu.Unlock()
		log.Printf("WS: Rejecting consumer from %s, one is already attached", r.RemoteAddr)
		http.Error(w, "Consumer already connected", http.StatusConflict)
		return
	}
	c := newConsumerConn(s, nil, s.sendBuffer, r.RemoteAddr)
	s.consumer = c
	s.mu.Unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Failed to upgrade connection: %v", err)
		s.detach(c)
		return
	}
	s.mu.Lock()
	c.conn = conn
	s.mu.Unlock()

	log.Printf("WS: Consumer attached from %s (session %s)", c.ip, c.session)

	if data, err := json.Marshal(protocol.Message{
		Type:    protocol.TypeSession,
		Payload: protocol.SessionPayload{ID: c.session},
	}); err == nil {
		c.enqueue(websocket.TextMessage, data)
	}
	s.backend.ConsumerConnected(c.session)

	go c.writePump()
	go c.readPump()
}

func (s *Server) detach(c *consumerConn) {
	s.mu.Lock()
	attached := s.consumer == c
	if attached {
		s.consumer = nil
	}
	s.mu.Unlock()
	c.close()
}

// readPump pumps frames from the consumer to the backend.
func (c *consumerConn) readPump() {
	defer func() {
		c.server.detach(c)
		c.conn.Close()
		log.Printf("WS: Consumer detached from %s (session %s)", c.ip, c.session)
		c.server.backend.ConsumerDisconnected(c.session)
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WS: Read error: %v", err)
			}
			return
		}

		if kind == websocket.BinaryMessage {
			c.handleFrame(data)
		} else {
			c.handleMessage(data)
		}
	}
}

// writePump pumps queued messages to the websocket connection.
func (c *consumerConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case m := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(m.kind, m.data); err != nil {
				log.Printf("WS: Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *consumerConn) handleFrame(data []byte) {
	f, err := protocol.DecodeFrame(data)
	if err != nil {
		log.Printf("WS: Invalid frame from %s: %v", c.ip, err)
		return
	}
	if f.Kind != protocol.FrameAck {
		log.Printf("WS: Ignoring frame kind %d from consumer", f.Kind)
		return
	}
	c.server.backend.HandleAck(f.Ack)
}

func (c *consumerConn) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("WS: Invalid message format: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeAuth:
		var payload protocol.AuthPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			log.Printf("WS: %v", err)
			return
		}
		c.server.mu.Lock()
		c.name = payload.ConsumerName
		c.server.mu.Unlock()
		log.Printf("WS: Consumer %s %s identified", payload.ConsumerName, payload.ConsumerVersion)

	case protocol.TypePing:
		if reply, err := json.Marshal(protocol.Message{Type: protocol.TypePing}); err == nil {
			c.enqueue(websocket.TextMessage, reply)
		}

	default:
		c.server.backend.HandleControl(msg)
	}
}

func (s *Server) current() (*consumerConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumer == nil || s.consumer.conn == nil {
		return nil, ErrNotConnected
	}
	return s.consumer, nil
}

// SendEvent encodes e as a binary frame for the consumer.
func (s *Server) SendEvent(e input.Event, isShortcut bool) error {
	c, err := s.current()
	if err != nil {
		return err
	}
	data, err := protocol.EncodeFrame(protocol.NewEventFrame(atomic.AddUint32(&s.seq, 1), e, isShortcut))
	if err != nil {
		return err
	}
	return c.enqueue(websocket.BinaryMessage, data)
}

// SendEditCommand sends cmd as a control message.
func (s *Server) SendEditCommand(cmd input.EditCommand) error {
	return s.SendControl(protocol.Message{
		Type:    protocol.TypeEditCommand,
		Payload: protocol.NewEditCommandPayload(cmd),
	})
}

// SendControl sends a JSON control message to the consumer.
func (s *Server) SendControl(msg protocol.Message) error {
	c, err := s.current()
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.enqueue(websocket.TextMessage, data)
}

// Connected reports whether a consumer is attached.
func (s *Server) Connected() bool {
	_, err := s.current()
	return err == nil
}

// Disconnect drops the attached consumer, if any.
func (s *Server) Disconnect() {
	s.mu.Lock()
	c := s.consumer
	s.mu.Unlock()
	if c != nil {
		c.close()
	}
}
