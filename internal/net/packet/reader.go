package packet

import (
	"encoding/json"
	"errors"
	"fmt"
)

// envelope is the JSON frame carried by every websocket text message.
type envelope struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Reader gives a handler access to one decoded inbound message.
type Reader struct {
	op   string
	data json.RawMessage
}

// NewReader parses the envelope. The payload stays raw until a handler
// decodes it into its own type.
func NewReader(raw []byte) (*Reader, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Op == "" {
		return nil, errors.New("envelope without op")
	}
	return &Reader{op: env.Op, data: env.Data}, nil
}

func (r *Reader) Op() string { return r.op }

// Decode unmarshals the payload into v.
func (r *Reader) Decode(v any) error {
	if len(r.data) == 0 {
		return fmt.Errorf("%s: empty payload", r.op)
	}
	if err := json.Unmarshal(r.data, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", r.op, err)
	}
	return nil
}

// Cell is the {x, y} payload shared by click, move_done and position.
type Cell struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}
