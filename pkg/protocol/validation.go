package protocol

import (
	"encoding/json"
	"regexp"
)

// Compiled once at package initialization; room codes are checked on every
// join attempt.
var roomCodeRegex = regexp.MustCompile(`^[0-9]{4}$`)

// Coordinate fields every move event must carry.
var moveFields = [...]string{"fromCol", "fromRow", "toCol", "toRow"}

// The four piece kinds a pawn may promote to.
var promotionKinds = map[string]bool{
	"queen":  true,
	"rook":   true,
	"bishop": true,
	"knight": true,
}

// ValidRoomCode reports whether s is exactly four ASCII digits.
func ValidRoomCode(s string) bool {
	return roomCodeRegex.MatchString(s)
}

// ValidMove reports whether data carries all four board coordinates as
// integers in [0,7]. Extra fields are permitted; relayed events are
// forwarded unmodified, so clients may attach whatever else they need.
func ValidMove(data map[string]any) bool {
	if data == nil {
		return false
	}
	for _, field := range moveFields {
		if !isBoardCoordinate(data[field]) {
			return false
		}
	}
	return true
}

// ValidPromotion reports whether data satisfies ValidMove and names one of
// the four promotion piece kinds.
func ValidPromotion(data map[string]any) bool {
	if !ValidMove(data) {
		return false
	}
	kind, ok := data["promoteTo"].(string)
	return ok && promotionKinds[kind]
}

// isBoardCoordinate reports whether v is an integer in [0,7]. Payload maps
// are decoded with UseNumber, so fractional values like 3.5 fail the Int64
// conversion rather than truncating.
func isBoardCoordinate(v any) bool {
	n, ok := v.(json.Number)
	if !ok {
		return false
	}
	i, err := n.Int64()
	if err != nil {
		return false
	}
	return i >= 0 && i <= 7
}
