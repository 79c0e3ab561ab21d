package relay

import (
	"errors"
	"log"

	"chessrelay/internal/session"
	"chessrelay/pkg/interfaces"
	"chessrelay/pkg/protocol"
)

// Dispatcher routes application events between the two occupants of a room.
// Each connection moves through unpaired -> hosting -> paired as create and
// join succeed; disconnect is terminal, and a connection never switches
// rooms. Events that fail a shape check or arrive from the wrong state are
// dropped without a reply: malformed traffic is noise, not a reportable
// failure.
type Dispatcher struct {
	connections interfaces.ConnectionRegistry
	rooms       *session.Registry
}

// NewDispatcher creates a dispatcher routing through the given connection
// registry and session registry.
func NewDispatcher(connections interfaces.ConnectionRegistry, rooms *session.Registry) *Dispatcher {
	return &Dispatcher{
		connections: connections,
		rooms:       rooms,
	}
}

// HandleEvent processes one inbound frame from conn. raw is the frame as it
// arrived; relayed events reach the opponent byte-for-byte.
func (d *Dispatcher) HandleEvent(conn interfaces.Connection, evt *protocol.Event, raw []byte) {
	switch evt.Name {
	case protocol.EventCreateRoom:
		d.handleCreate(conn)
	case protocol.EventJoinRoom:
		d.handleJoin(conn, evt)
	case protocol.EventMove:
		d.relayChecked(conn, evt, raw, protocol.ValidMove)
	case protocol.EventPromotion:
		d.relayChecked(conn, evt, raw, protocol.ValidPromotion)
	case protocol.EventNewGameRequest, protocol.EventNewGameAccept:
		d.relay(conn, raw)
	default:
		// Unknown event names are dropped like any other malformed input
	}
}

// HandleDisconnect notifies the opposite occupant, if any, and vacates the
// leaving connection's side. The session record stays behind for the
// reaper.
func (d *Dispatcher) HandleDisconnect(conn interfaces.Connection) {
	code := conn.Room()
	if code == "" {
		return
	}

	if opponentID, ok := d.rooms.Opponent(code, conn.ID()); ok {
		if opponent, ok := d.connections.Get(opponentID); ok {
			send(opponent, protocol.EventOpponentDisconnected, nil)
		}
	}

	d.rooms.Vacate(code, conn.ID())
	log.Printf("Connection %s left room %s", conn.ID(), code)
}

func (d *Dispatcher) handleCreate(conn interfaces.Connection) {
	// One session per connection; a bound connection cannot host another
	if conn.Room() != "" {
		return
	}

	code, err := d.rooms.Create(conn.ID())
	if err != nil {
		log.Printf("Room creation rejected for %s: %v", conn.ID(), err)
		send(conn, protocol.EventErrorMessage, protocol.ErrorPayload{
			Message: "server is full, try again later",
		})
		return
	}

	conn.SetRoom(code)
	send(conn, protocol.EventRoomCreated, protocol.RoomCreatedPayload{Code: code})
	log.Printf("Room %s created by %s", code, conn.ID())
}

func (d *Dispatcher) handleJoin(conn interfaces.Connection, evt *protocol.Event) {
	if conn.Room() != "" {
		return
	}

	data, err := evt.DecodePayload()
	if err != nil {
		return
	}
	code, _ := data["code"].(string)
	if !protocol.ValidRoomCode(code) {
		return
	}

	hostID, err := d.rooms.Join(code, conn.ID())
	if err != nil {
		send(conn, protocol.EventJoinError, protocol.ErrorPayload{Message: joinErrorMessage(err)})
		return
	}

	conn.SetRoom(code)
	send(conn, protocol.EventGameStart, protocol.GameStartPayload{Color: protocol.ColorBlack, Code: code})

	if host, ok := d.connections.Get(hostID); ok {
		send(host, protocol.EventGameStart, protocol.GameStartPayload{Color: protocol.ColorWhite, Code: code})
	}
	log.Printf("Room %s paired: white=%s black=%s", code, hostID, conn.ID())
}

// relayChecked validates the payload shape before forwarding.
func (d *Dispatcher) relayChecked(conn interfaces.Connection, evt *protocol.Event, raw []byte, valid func(map[string]any) bool) {
	data, err := evt.DecodePayload()
	if err != nil || !valid(data) {
		return
	}
	d.relay(conn, raw)
}

// relay forwards raw to the opposite occupant of conn's room, touching the
// session's activity stamp. Roomless senders and half-empty rooms drop the
// event.
func (d *Dispatcher) relay(conn interfaces.Connection, raw []byte) {
	code := conn.Room()
	if code == "" {
		return
	}

	d.rooms.Touch(code)

	opponentID, ok := d.rooms.Opponent(code, conn.ID())
	if !ok {
		return
	}
	opponent, ok := d.connections.Get(opponentID)
	if !ok {
		return
	}

	if err := opponent.Send(raw); err != nil {
		log.Printf("Relay to %s in room %s failed: %v", opponentID, code, err)
	}
}

func joinErrorMessage(err error) string {
	if errors.Is(err, session.ErrRoomFull) {
		return "room is already full"
	}
	return "room not found"
}

func send(conn interfaces.Connection, name string, payload any) {
	if err := conn.SendEvent(name, payload); err != nil {
		log.Printf("Failed to send %s to %s: %v", name, conn.ID(), err)
	}
}
