package packet

import (
	"encoding/json"
	"fmt"
)

// Welcome is sent once after a player entity is registered.
type Welcome struct {
	Entity uint64  `json:"entity"`
	X      int32   `json:"x"`
	Y      int32   `json:"y"`
	Speed  float64 `json:"speed"`
	Uptime float64 `json:"uptime"`
	Mode   string  `json:"mode"` // "server_path" or "client_reported"
}

// Move is one step broadcast to every session in view.
type Move struct {
	Entity    uint64  `json:"entity"`
	From      Cell    `json:"from"`
	To        Cell    `json:"to"`
	Duration  float64 `json:"duration"`
	Timestamp float64 `json:"timestamp"`
}

// Correct tells a client its claimed position was rejected.
type Correct struct {
	Entity uint64 `json:"entity"`
	X      int32  `json:"x"`
	Y      int32  `json:"y"`
	Reason string `json:"reason"`
}

type Kick struct {
	Reason string `json:"reason"`
}

type Remove struct {
	Entity uint64 `json:"entity"`
}

// Encode builds a complete outbound frame.
func Encode(op string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op, err)
	}
	out, err := json.Marshal(envelope{Op: op, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", op, err)
	}
	return out, nil
}
