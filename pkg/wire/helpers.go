package wire

import "encoding/base64"

// NewAudioMessage creates an audio message from raw PCM16 bytes.
func NewAudioMessage(pcm []byte, sampleRate int) *Message {
	return &Message{
		Type:       TypeAudio,
		Data:       base64.StdEncoding.EncodeToString(pcm),
		SampleRate: sampleRate,
	}
}

// NewTextMessage creates a transcript message.
func NewTextMessage(text string) *Message {
	return &Message{Type: TypeText, Text: text}
}

// NewEndTurnMessage creates an end-of-turn signal.
func NewEndTurnMessage() *Message {
	return &Message{Type: TypeEndTurn}
}

// NewTurnCompleteMessage creates a turn-complete signal.
func NewTurnCompleteMessage() *Message {
	return &Message{Type: TypeTurnComplete}
}

// NewPingMessage creates a heartbeat ping with a correlation id.
func NewPingMessage(id string) *Message {
	return &Message{Type: TypePing, ID: id}
}

// NewPongMessage creates the pong response for a ping.
func NewPongMessage(id string) *Message {
	return &Message{Type: TypePong, ID: id}
}
