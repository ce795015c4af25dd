package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Engine.IO v4 packet types.
const (
	eioOpen    byte = '0'
	eioClose   byte = '1'
	eioPing    byte = '2'
	eioPong    byte = '3'
	eioMessage byte = '4'
	eioUpgrade byte = '5'
	eioNoop    byte = '6'
)

// Socket.IO v5 packet types, carried inside Engine.IO message packets.
const (
	sioConnect      byte = '0'
	sioDisconnect   byte = '1'
	sioEvent        byte = '2'
	sioAck          byte = '3'
	sioConnectError byte = '4'
)

var errEmptyPacket = errors.New("empty packet")

// handshake is the Engine.IO open packet payload.
type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
	MaxPayload   int    `json:"maxPayload"`
}

// heartbeat is how long the server may stay silent before the link is considered dead.
func (h handshake) heartbeat() time.Duration {
	if h.PingInterval <= 0 {
		return pongWait
	}
	return time.Duration(h.PingInterval+h.PingTimeout) * time.Millisecond
}

// frame is one decoded websocket text message.
type frame struct {
	engine byte
	// socket is set for Engine.IO message packets.
	socket byte
	// data is the remainder after the type bytes (and namespace / ack id for events).
	data []byte
}

func decodeFrame(raw []byte) (frame, error) {
	if len(raw) == 0 {
		return frame{}, errEmptyPacket
	}
	f := frame{engine: raw[0], data: raw[1:]}
	if f.engine != eioMessage {
		return f, nil
	}
	if len(f.data) == 0 {
		return frame{}, fmt.Errorf("message packet: %w", errEmptyPacket)
	}
	f.socket = f.data[0]
	f.data = f.data[1:]

	// Only the default namespace is used; a "/nsp," prefix is skipped.
	if len(f.data) > 0 && f.data[0] == '/' {
		if i := bytes.IndexByte(f.data, ','); i >= 0 {
			f.data = f.data[i+1:]
		} else {
			f.data = nil
		}
	}
	// Ack id digits precede the event array.
	if f.socket == sioEvent || f.socket == sioAck {
		i := 0
		for i < len(f.data) && f.data[i] >= '0' && f.data[i] <= '9' {
			i++
		}
		f.data = f.data[i:]
	}
	return f, nil
}

// decodeEvent splits a Socket.IO event array into its name and arguments.
func decodeEvent(data []byte) (string, []json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return "", nil, fmt.Errorf("decode event: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, errors.New("decode event: empty array")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}
	return name, parts[1:], nil
}

func encodeConnect(auth any) ([]byte, error) {
	payload, err := json.Marshal(auth)
	if err != nil {
		return nil, err
	}
	return append([]byte{eioMessage, sioConnect}, payload...), nil
}

func encodeEvent(name string, args ...any) ([]byte, error) {
	parts := make([]any, 0, len(args)+1)
	parts = append(parts, name)
	parts = append(parts, args...)
	payload, err := json.Marshal(parts)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return append([]byte{eioMessage, sioEvent}, payload...), nil
}

// connectError decodes the message of a CONNECT_ERROR packet.
func connectError(data []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	var s string
	if json.Unmarshal(data, &s) == nil {
		return s
	}
	return string(data)
}

// Timestamp accepts an ISO-8601 string or unix milliseconds.
type Timestamp time.Time

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		v, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		*t = Timestamp(v)
		return nil
	}
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", data, err)
	}
	*t = Timestamp(time.UnixMilli(int64(ms)).UTC())
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

// Time returns t as a time.Time.
func (t Timestamp) Time() time.Time { return time.Time(t) }
