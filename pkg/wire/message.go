// Package wire defines the duplex protocol messages exchanged with the
// remote assistant and their JSON wire codec.
package wire

import (
	"encoding/base64"
	"fmt"

	"github.com/bytedance/sonic"
)

// MessageType identifies the type of a protocol message.
type MessageType string

const (
	// TypeAudio carries base64-encoded PCM16 audio. Both directions.
	TypeAudio MessageType = "audio"

	// TypeText carries an assistant transcript fragment. Inbound only.
	TypeText MessageType = "text"

	// TypeEndTurn signals the user finished speaking. Outbound.
	TypeEndTurn MessageType = "end_turn"

	// TypeTurnComplete signals the assistant finished its turn. Inbound.
	TypeTurnComplete MessageType = "turn_complete"

	// TypePing and TypePong implement the liveness heartbeat.
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the wire representation of a protocol message: a flat JSON
// object with a type discriminant and the payload field for that type.
type Message struct {
	Type MessageType `json:"type"`

	// Data is base64-encoded PCM16 audio, set for TypeAudio.
	Data string `json:"data,omitempty"`

	// SampleRate is the audio sample rate in Hz, set for TypeAudio.
	// Zero means the protocol default (24 kHz assistant audio).
	SampleRate int `json:"sample_rate,omitempty"`

	// Text is the transcript fragment, set for TypeText.
	Text string `json:"text,omitempty"`

	// ID correlates a pong with its ping, set for TypePing and TypePong.
	ID string `json:"id,omitempty"`
}

// DecodeError reports a malformed inbound wire message. It is non-fatal
// to the session: the message is dropped and the next one is unaffected.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: %s: %v", e.Reason, e.Err)
	}
	return "wire: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode serializes a message to its JSON wire form.
func Encode(m *Message) ([]byte, error) {
	data, err := sonic.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", m.Type, err)
	}
	return data, nil
}

// Decode parses a wire message. It returns a *DecodeError for malformed
// JSON, a missing or unknown type discriminant, or invalid base64 in an
// audio payload.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := sonic.Unmarshal(data, &m); err != nil {
		return nil, &DecodeError{Reason: "invalid json", Err: err}
	}

	switch m.Type {
	case TypeAudio:
		if _, err := base64.StdEncoding.DecodeString(m.Data); err != nil {
			return nil, &DecodeError{Reason: "invalid base64 audio payload", Err: err}
		}
	case TypeText, TypeEndTurn, TypeTurnComplete, TypePing, TypePong:
		// Payload fields are optional for these types.
	case "":
		return nil, &DecodeError{Reason: "missing type discriminant"}
	default:
		return nil, &DecodeError{Reason: "unknown message type " + string(m.Type)}
	}

	return &m, nil
}

// AudioBytes decodes the base64 audio payload of a TypeAudio message.
func (m *Message) AudioBytes() ([]byte, error) {
	if m.Type != TypeAudio {
		return nil, fmt.Errorf("wire: not an audio message: %s", m.Type)
	}
	return base64.StdEncoding.DecodeString(m.Data)
}
