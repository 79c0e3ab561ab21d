package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecode_Envelope(t *testing.T) {
	evt, err := Decode([]byte(`{"event":"move","data":{"fromCol":1}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if evt.Name != EventMove {
		t.Errorf("expected event name %q, got %q", EventMove, evt.Name)
	}
	if len(evt.Data) == 0 {
		t.Error("payload should be preserved raw")
	}
}

func TestDecode_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		frame string
	}{
		{"not json", `move e2e4`},
		{"missing name", `{"data":{"code":"1234"}}`},
		{"empty name", `{"event":""}`},
		{"json array", `["move"]`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.frame)); err == nil {
				t.Errorf("Decode(%q) should fail", tc.frame)
			}
		})
	}

	if _, err := Decode([]byte(`{"data":{}}`)); !errors.Is(err, ErrUnnamedEvent) {
		t.Errorf("nameless envelope should fail with ErrUnnamedEvent, got %v", err)
	}
}

func TestEncode_OmitsNilPayload(t *testing.T) {
	frame, err := Encode(EventOpponentDisconnected, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		t.Fatalf("encoded frame is not valid JSON: %v", err)
	}
	if _, present := raw["data"]; present {
		t.Error("nil payload should omit the data field")
	}
	if string(raw["event"]) != `"opponent_disconnected"` {
		t.Errorf("unexpected event field: %s", raw["event"])
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	frame, err := Encode(EventGameStart, GameStartPayload{Color: ColorWhite, Code: "4217"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	evt, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if evt.Name != EventGameStart {
		t.Errorf("expected %q, got %q", EventGameStart, evt.Name)
	}

	var payload GameStartPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		t.Fatalf("payload unmarshal failed: %v", err)
	}
	if payload.Color != ColorWhite || payload.Code != "4217" {
		t.Errorf("payload mangled in transit: %+v", payload)
	}
}

func TestDecodePayload_PreservesIntegers(t *testing.T) {
	evt, err := Decode([]byte(`{"event":"move","data":{"fromCol":7,"half":3.5}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	data, err := evt.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}

	n, ok := data["fromCol"].(json.Number)
	if !ok {
		t.Fatalf("numbers should decode as json.Number, got %T", data["fromCol"])
	}
	if i, err := n.Int64(); err != nil || i != 7 {
		t.Errorf("expected integer 7, got %v (%v)", i, err)
	}

	half := data["half"].(json.Number)
	if _, err := half.Int64(); err == nil {
		t.Error("fractional numbers must not convert to integers")
	}
}

func TestDecodePayload_AbsentData(t *testing.T) {
	evt, err := Decode([]byte(`{"event":"new_game_request"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	data, err := evt.DecodePayload()
	if err != nil {
		t.Fatalf("absent payload should not error: %v", err)
	}
	if data != nil {
		t.Errorf("absent payload should yield nil map, got %v", data)
	}
}

func TestDecodePayload_NonObjectData(t *testing.T) {
	evt := &Event{Name: EventMove, Data: json.RawMessage(`[1,2,3]`)}
	if _, err := evt.DecodePayload(); err == nil {
		t.Error("non-object payload should fail to decode")
	}
}
