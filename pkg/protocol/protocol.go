package protocol

import (
	"bytes"
	"encoding/json"
)

// Event names accepted from clients.
const (
	EventCreateRoom     = "create_room"
	EventJoinRoom       = "join_room"
	EventMove           = "move"
	EventPromotion      = "promotion"
	EventNewGameRequest = "new_game_request"
	EventNewGameAccept  = "new_game_accept"
)

// Event names sent to clients. Move, promotion and the new-game events are
// relayed under their inbound names.
const (
	EventRoomCreated          = "room_created"
	EventGameStart            = "game_start"
	EventJoinError            = "join_error"
	EventOpponentDisconnected = "opponent_disconnected"
	EventErrorMessage         = "error_message"
)

// Side colors assigned in game_start. The room creator is always white.
const (
	ColorWhite = "white"
	ColorBlack = "black"
)

// Event is the wire envelope for every frame in both directions. Data is
// kept raw so relayed events reach the opponent byte-for-byte.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// RoomCreatedPayload acknowledges create_room with the minted code.
type RoomCreatedPayload struct {
	Code string `json:"code"`
}

// GameStartPayload tells each occupant its assigned side once a room pairs.
type GameStartPayload struct {
	Color string `json:"color"`
	Code  string `json:"code"`
}

// JoinRoomPayload is the client request to enter an existing room.
type JoinRoomPayload struct {
	Code string `json:"code"`
}

// ErrorPayload carries a human-readable rejection message. Used for both
// join_error and error_message events.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Decode parses a text frame into an envelope. The payload is left raw;
// use DecodePayload to inspect it.
func Decode(frame []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(frame, &evt); err != nil {
		return nil, err
	}
	if evt.Name == "" {
		return nil, ErrUnnamedEvent
	}
	return &evt, nil
}

// Encode builds a frame for an outbound event. A nil payload omits the
// data field entirely.
func Encode(name string, payload any) ([]byte, error) {
	evt := Event{Name: name}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		evt.Data = data
	}
	return json.Marshal(&evt)
}

// DecodePayload unmarshals the payload into a generic map with numbers kept
// as json.Number, so integer checks stay exact. An absent payload yields a
// nil map and no error.
func (e *Event) DecodePayload() (map[string]any, error) {
	if len(e.Data) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(e.Data))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}
