// Package message defines the soundvibes local wire protocol.
//
// It is spoken on two channels: between the CLI and a running soundvibes
// daemon over the IPC socket, and between the CLI and its detached
// clipboard helper over the helper's stdin/stdout.
//
// All messages are newline-delimited JSON. Clipboard payloads are always
// base64-encoded so that binary content (images, etc.) is safe to embed in
// JSON strings. Each message is exactly one line: <json>\n
package message

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Type identifies the kind of message.
type Type string

const (
	TypeInject         Type = "INJECT"
	TypeResult         Type = "RESULT"
	TypePing           Type = "PING"
	TypePong           Type = "PONG"
	TypeStatus         Type = "STATUS"
	TypeStatusResponse Type = "STATUS_RESPONSE"
	TypeOffer          Type = "OFFER"
	TypeReady          Type = "READY"
	TypeError          Type = "ERROR"
)

// Item is a single clipboard representation with a MIME type.
// Data is always base64-encoded.
type Item struct {
	MIME string `json:"mime"`
	Data string `json:"data"` // base64-encoded
}

// NewBinaryItem creates an Item from raw bytes with the given MIME type.
func NewBinaryItem(mime string, data []byte) Item {
	return Item{
		MIME: mime,
		Data: base64.StdEncoding.EncodeToString(data),
	}
}

// Decode returns the raw bytes of the item payload.
func (it Item) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(it.Data)
}

// Status is the daemon's view of the injection environment.
type Status struct {
	Version        string            `json:"version"`
	Session        string            `json:"session"`
	Env            map[string]string `json:"env,omitempty"`
	YdotoolSocket  string            `json:"ydotool_socket,omitempty"`
	FocusedClass   string            `json:"focused_class,omitempty"`
	FocusedIsTerm  bool              `json:"focused_is_terminal"`
	Tools          map[string]string `json:"tools,omitempty"`
	Clipboard      string            `json:"clipboard"`
	Backend        string            `json:"backend"`
	SettleDelayMS  int64             `json:"settle_delay_ms"`
	InjectionCount uint64            `json:"injection_count,omitempty"`
}

// Message is the top-level wire envelope.
type Message struct {
	// Always present
	Type   Type   `json:"type"`
	Source string `json:"source,omitempty"`

	// INJECT: Text is never logged; Backend is a name accepted by
	// inject.ParseBackend, empty meaning the daemon's configured default.
	Text    string `json:"text,omitempty"`
	Backend string `json:"backend,omitempty"`

	// RESULT: Error empty means success. Attempts holds every strategy
	// failure reason in attempt order.
	Attempts []string `json:"attempts,omitempty"`

	// OFFER: the items to place on the clipboard in one offer.
	Items []Item `json:"items,omitempty"`

	// STATUS_RESPONSE
	Status *Status `json:"status,omitempty"`

	// RESULT / ERROR
	Error string `json:"error,omitempty"`
}

// Encode serialises the message to JSON without a trailing newline.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserialises a message from raw JSON bytes.
func Decode(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("message decode: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("message decode: missing type")
	}
	return &m, nil
}

// Err returns the message's error as a Go error, or nil.
func (m *Message) Err() error {
	if m.Error == "" {
		return nil
	}
	return &RemoteError{Msg: m.Error, Attempts: m.Attempts}
}

// RemoteError is an error reported by the other end of a connection.
type RemoteError struct {
	Msg      string
	Attempts []string
}

func (e *RemoteError) Error() string { return e.Msg }
