package ws

import (
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chessrelay/internal/admission"
	"chessrelay/internal/config"
	"chessrelay/internal/relay"
	"chessrelay/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Clients are served from arbitrary origins; identity is the
		// transport address, not the page
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades HTTP requests into relay connections, gating each one
// through the admission guard before it may register.
type Handler struct {
	registry   *Registry
	guard      *admission.Guard
	dispatcher *relay.Dispatcher
	cfg        *config.WebSocketConfig
}

// NewHandler creates a WebSocket handler.
func NewHandler(registry *Registry, guard *admission.Guard, dispatcher *relay.Dispatcher, cfg *config.WebSocketConfig) *Handler {
	return &Handler{
		registry:   registry,
		guard:      guard,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// HandleWebSocket upgrades the request and either admits the connection
// into the relay or tells it why it was rejected before closing. Rejection
// happens after the upgrade so the notice travels over the socket the
// client is already listening on.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	source := sourceAddr(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed for %s: %v", source, err)
		return
	}

	if !h.guard.Allow(source) {
		log.Printf("Connection rate exceeded for %s", source)
		h.reject(conn, "too many connections from your address, try again later")
		return
	}

	wsConn := NewConnection(conn, source, h.cfg)
	if err := h.registry.Add(wsConn); err != nil {
		log.Printf("Failed to register connection: %v", err)
		_ = wsConn.Close()
		return
	}

	log.Printf("Connection %s established from %s", wsConn.ID(), source)
	go h.readLoop(wsConn)
}

// reject writes the rejection notice synchronously and force-closes the
// raw socket. The connection is never wrapped or registered.
func (h *Handler) reject(conn *websocket.Conn, message string) {
	frame, err := protocol.Encode(protocol.EventErrorMessage, protocol.ErrorPayload{Message: message})
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
		_ = conn.WriteMessage(websocket.TextMessage, frame)
	}
	_ = conn.Close()
}

// readLoop pumps inbound frames into the dispatcher and keeps the
// connection alive with ping/pong heartbeats. It owns cleanup: on any read
// failure the opponent is notified, the side vacated, and the connection
// deregistered.
func (h *Handler) readLoop(conn *Connection) {
	defer func() {
		h.dispatcher.HandleDisconnect(conn)
		h.registry.Remove(conn)
		_ = conn.Close()
		log.Printf("Connection %s closed", conn.ID())
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, frame, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("Read error on %s: %v", conn.ID(), err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		// Flooding senders lose frames the same way malformed ones do
		if !conn.throttle.Allow() {
			continue
		}

		evt, err := protocol.Decode(frame)
		if err != nil {
			continue
		}

		h.dispatcher.HandleEvent(conn, evt, frame)
	}
}

// sourceAddr strips the ephemeral port so the admission ledger keys on the
// host alone.
func sourceAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
