package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"chessrelay/internal/config"
	"chessrelay/pkg/protocol"
)

// Connection wraps a WebSocket connection with a stable identity and a
// single writer goroutine. All writes funnel through one channel because
// gorilla permits only one concurrent writer per connection.
type Connection struct {
	conn      *websocket.Conn
	id        string
	source    string // remote host, keyed into the admission ledger
	writeCh   chan []byte
	writeWait time.Duration
	throttle  *rate.Limiter // inbound message budget
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu   sync.RWMutex // guards room
	room string
}

// NewConnection wraps conn and starts its writer goroutine. source is the
// remote host the connection was admitted under.
func NewConnection(conn *websocket.Conn, source string, cfg *config.WebSocketConfig) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:      conn,
		id:        uuid.New().String(),
		source:    source,
		writeCh:   make(chan []byte, cfg.BufferSize),
		writeWait: cfg.WriteTimeout,
		throttle:  rate.NewLimiter(rate.Limit(cfg.MessageRate), cfg.MessageBurst),
		ctx:       ctx,
		cancel:    cancel,
	}

	go c.writeLoop()

	return c
}

// writeLoop is the single writer; it exits on the first write failure or
// when the connection closes.
func (c *Connection) writeLoop() {
	for {
		select {
		case frame := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues a raw frame for delivery.
func (c *Connection) Send(frame []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- frame:
		return nil
	case <-time.After(c.writeWait):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// SendEvent encodes and queues a named event. A nil payload sends a bare
// envelope.
func (c *Connection) SendEvent(name string, payload any) error {
	frame, err := protocol.Encode(name, payload)
	if err != nil {
		return ErrInvalidPayload
	}
	return c.Send(frame)
}

// Close shuts the connection down exactly once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// ID returns the identity assigned at upgrade time.
func (c *Connection) ID() string {
	return c.id
}

// Source returns the remote host this connection was admitted under.
func (c *Connection) Source() string {
	return c.source
}

// Room returns the session code this connection is bound to, or "" while
// unpaired.
func (c *Connection) Room() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}

// SetRoom binds the connection to a session code.
func (c *Connection) SetRoom(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = code
}
