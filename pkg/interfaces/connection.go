package interfaces

// Connection is the transport-side view the relay layer routes through.
// The ws package provides the production implementation; tests substitute
// in-memory mocks.
type Connection interface {
	// ID returns the stable identity assigned at upgrade time.
	ID() string

	// Room returns the session code this connection is bound to, or ""
	// while unpaired.
	Room() string

	// SetRoom binds the connection to a session code.
	SetRoom(code string)

	// Send queues a raw frame for delivery.
	Send(frame []byte) error

	// SendEvent encodes and queues a named event. A nil payload sends a
	// bare envelope.
	SendEvent(name string, payload any) error
}

// ConnectionRegistry looks up live connections by identity.
type ConnectionRegistry interface {
	Get(id string) (Connection, bool)
}
