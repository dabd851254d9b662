package messages

import (
	"encoding/json"

	"github.com/muster-live/muster/pkg/rooms/types"
)

// Frame types
const (
	// client -> server
	FrameTypeClientHello    = "hello"
	FrameTypeClientLocation = "loc"
	FrameTypeClientPing     = "ping"

	// server -> client
	FrameTypeServerSnapshot = "snapshot"
	FrameTypeServerPeerJoin = "peer-join"
	FrameTypeServerPeerLoc  = "peer-loc"
	FrameTypeServerPeerLeft = "peer-left"
	FrameTypeServerPong     = "pong"
)

// Frame is the generic push-channel envelope for
// serialization/deserialization.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ClientHello binds an observer to a member identity.
type ClientHello struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}

// ClientLocation is a tokenless location update over a bound channel.
type ClientLocation struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
	TS  *float64 `json:"ts,omitempty"`
}

// ServerSnapshot is the first frame pushed to a new observer.
type ServerSnapshot struct {
	Members  []types.MemberView `json:"members"`
	Settings []types.Setting    `json:"settings"`
}

// ServerPeerJoin announces an observer binding to everyone else.
type ServerPeerJoin struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}

// ServerPeerLoc relays a peer's location to everyone else.
type ServerPeerLoc struct {
	From     string         `json:"from"`
	Location types.Location `json:"loc"`
}

// ServerPeerLeft announces an observer disconnect to everyone else.
type ServerPeerLeft struct {
	UserID string `json:"userId"`
}

// ServerPong is the direct reply to a ping.
type ServerPong struct {
	TS int64 `json:"ts"`
}
