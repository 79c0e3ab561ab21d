package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chessrelay/internal/config"
	"chessrelay/pkg/interfaces"
	"chessrelay/pkg/protocol"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func testConfig() *config.WebSocketConfig {
	return &config.WebSocketConfig{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 2 * time.Second,
		BufferSize:   16,
		MessageRate:  1000,
		MessageBurst: 1000,
	}
}

// dialTestPair returns both ends of a live WebSocket.
func dialTestPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()

	serverCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("test upgrade failed: %v", err)
			return
		}
		serverCh <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("test dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server = <-serverCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server side of test socket never arrived")
	}
	return server, client
}

func TestConnection_InterfaceCompliance(t *testing.T) {
	var _ interfaces.Connection = (*Connection)(nil)
}

func TestConnection_Initialization(t *testing.T) {
	server, _ := dialTestPair(t)

	conn := NewConnection(server, "10.0.0.1", testConfig())
	defer conn.Close()

	if conn.ID() == "" {
		t.Error("connection should receive an identity at creation")
	}
	if conn.Source() != "10.0.0.1" {
		t.Errorf("expected source 10.0.0.1, got %q", conn.Source())
	}
	if conn.Room() != "" {
		t.Error("new connection should be unpaired")
	}
	if cap(conn.writeCh) != 16 {
		t.Errorf("expected write buffer of 16, got %d", cap(conn.writeCh))
	}
}

func TestConnection_UniqueIdentities(t *testing.T) {
	serverA, _ := dialTestPair(t)
	serverB, _ := dialTestPair(t)

	a := NewConnection(serverA, "10.0.0.1", testConfig())
	defer a.Close()
	b := NewConnection(serverB, "10.0.0.1", testConfig())
	defer b.Close()

	if a.ID() == b.ID() {
		t.Error("two connections must not share an identity")
	}
}

func TestConnection_SendDeliversRawFrame(t *testing.T) {
	server, client := dialTestPair(t)

	conn := NewConnection(server, "10.0.0.1", testConfig())
	defer conn.Close()

	frame := []byte(`{"event":"move","data":{"fromCol":1,"fromRow":6,"toCol":1,"toRow":4}}`)
	if err := conn.Send(frame); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, received, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("client read failed: %v", err)
	}
	if string(received) != string(frame) {
		t.Errorf("frame mangled in transit:\nsent: %s\ngot:  %s", frame, received)
	}
}

func TestConnection_SendEventEncodes(t *testing.T) {
	server, client := dialTestPair(t)

	conn := NewConnection(server, "10.0.0.1", testConfig())
	defer conn.Close()

	if err := conn.SendEvent(protocol.EventRoomCreated, protocol.RoomCreatedPayload{Code: "1234"}); err != nil {
		t.Fatalf("SendEvent failed: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, received, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("client read failed: %v", err)
	}

	evt, err := protocol.Decode(received)
	if err != nil {
		t.Fatalf("received frame is not an envelope: %v", err)
	}
	if evt.Name != protocol.EventRoomCreated {
		t.Errorf("expected room_created, got %s", evt.Name)
	}
}

func TestConnection_RoomBinding(t *testing.T) {
	server, _ := dialTestPair(t)

	conn := NewConnection(server, "10.0.0.1", testConfig())
	defer conn.Close()

	conn.SetRoom("4217")
	if conn.Room() != "4217" {
		t.Errorf("expected room 4217, got %q", conn.Room())
	}
}

func TestConnection_SendAfterClose(t *testing.T) {
	server, _ := dialTestPair(t)

	conn := NewConnection(server, "10.0.0.1", testConfig())

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Idempotent
	if err := conn.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	if err := conn.Send([]byte(`{"event":"move"}`)); err != ErrConnectionClosed {
		t.Errorf("Send after Close should fail with ErrConnectionClosed, got %v", err)
	}
}
