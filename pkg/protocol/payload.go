package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Payload type tags carried in the mandatory "type" field.
const (
	TypeAuth = "auth" // client -> server: user, pass
	TypeMsg  = "msg"  // broadcast chat text: user, text
	TypePrv  = "prv"  // directed chat text: user (sender), to, text
	TypeSrv  = "srv"  // server-originated notice: text
)

// ErrMissingType is returned when a payload record lacks the "type" field.
var ErrMissingType = errors.New("protocol: payload missing type field")

// Payload is the structured record carried inside a frame body. Type is
// always set; the remaining fields depend on the variant.
type Payload struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
	Pass string `json:"pass,omitempty"`
	To   string `json:"to,omitempty"`
	Text string `json:"text,omitempty"`
}

// Marshal encodes the payload as a JSON record.
func (p *Payload) Marshal() ([]byte, error) {
	if p.Type == "" {
		return nil, ErrMissingType
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a JSON record into the payload. A body that is not
// valid JSON or that lacks the "type" field is a payload parse error,
// distinct from a framing error.
func (p *Payload) Unmarshal(data []byte) error {
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	if p.Type == "" {
		return ErrMissingType
	}
	return nil
}

// Pack marshals p and wraps it in a frame, ready for the wire.
func Pack(p Payload) ([]byte, error) {
	body, err := p.Marshal()
	if err != nil {
		return nil, err
	}
	return EncodeFrame(body)
}

// Notice builds a server-originated srv payload.
func Notice(text string) Payload {
	return Payload{Type: TypeSrv, Text: text}
}
