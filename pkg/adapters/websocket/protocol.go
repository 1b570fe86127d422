package websocket

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// Protocol selects the framing spoken on the websocket.
type Protocol int

const (
	// SocketIO speaks Engine.IO v4 / Socket.IO v5 over the websocket
	// transport, as socket.io servers expect.
	SocketIO Protocol = iota
	// Envelope sends every event as a {"event": name, "data": payload} frame.
	Envelope
)

func (p Protocol) String() string {
	switch p {
	case SocketIO:
		return "socketio"
	case Envelope:
		return "envelope"
	default:
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
}

// ParseProtocol accepts "socketio" (also "socket.io" and the empty string)
// and "envelope".
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "socketio", "socket.io":
		return SocketIO, nil
	case "envelope":
		return Envelope, nil
	default:
		return 0, fmt.Errorf("unknown protocol %q", s)
	}
}

// Engine.IO packet types.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'
)

// Socket.IO packet types, carried inside Engine.IO messages.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioAck          = '3'
	sioConnectError = '4'
	sioBinaryEvent  = '5'
	sioBinaryAck    = '6'
)

const rootNamespace = "/"

var errBinaryPacket = errors.New("binary socket.io packets are not supported")

// sioPacket is a decoded Socket.IO packet:
// <type>[<namespace>,][<ack id>][<json payload>].
type sioPacket struct {
	kind      byte
	namespace string
	ackID     string
	payload   []byte
}

func parseSocketIO(data []byte) (sioPacket, error) {
	if len(data) == 0 {
		return sioPacket{}, errors.New("empty socket.io packet")
	}
	p := sioPacket{kind: data[0], namespace: rootNamespace}
	if p.kind == sioBinaryEvent || p.kind == sioBinaryAck {
		return p, errBinaryPacket
	}
	rest := data[1:]

	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			p.namespace = string(rest)
			return p, nil
		}
		p.namespace = string(rest[:end])
		rest = rest[end+1:]
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	p.ackID = string(rest[:i])
	p.payload = rest[i:]
	return p, nil
}

// event splits an EVENT payload ["name", arg, ...] into a name and its first argument.
func (p sioPacket) event() (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(p.payload, &args); err != nil {
		return "", nil, fmt.Errorf("malformed socket.io event: %w", err)
	}
	if len(args) == 0 {
		return "", nil, errors.New("socket.io event without a name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("socket.io event name: %w", err)
	}
	if len(args) == 1 {
		return name, nil, nil
	}
	return name, args[1], nil
}

// nsPrefix is the namespace segment of an outbound packet; empty for "/".
func nsPrefix(namespace string) string {
	if namespace == "" || namespace == rootNamespace {
		return ""
	}
	return namespace + ","
}

func encodeSocketIO(kind byte, namespace, ackID string, payload []byte) []byte {
	var b bytes.Buffer
	b.WriteByte(eioMessage)
	b.WriteByte(kind)
	b.WriteString(nsPrefix(namespace))
	b.WriteString(ackID)
	b.Write(payload)
	return b.Bytes()
}

func encodeEvent(namespace, name string, data json.RawMessage) ([]byte, error) {
	args := []any{name}
	if len(data) > 0 {
		args = append(args, data)
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", name, err)
	}
	return encodeSocketIO(sioEvent, namespace, "", payload), nil
}

// openPacket is the Engine.IO handshake sent by the server.
type openPacket struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"` // milliseconds
	PingTimeout  int      `json:"pingTimeout"`  // milliseconds
	MaxPayload   int      `json:"maxPayload,omitempty"`
}
