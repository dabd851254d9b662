package rooms

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muster-live/muster/pkg/messages"
	"github.com/muster-live/muster/pkg/rooms/types"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
}

func (c *fakeConn) TrySend(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("send buffer full")
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) received(t *testing.T) []*messages.Frame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := make([]*messages.Frame, 0, len(c.frames))
	for _, data := range c.frames {
		frame, err := messages.DeserializeFrame(data)
		require.NoError(t, err)
		frames = append(frames, frame)
	}
	return frames
}

func (c *fakeConn) lastOfType(t *testing.T, frameType string) *messages.Frame {
	t.Helper()
	var found *messages.Frame
	for _, frame := range c.received(t) {
		if frame.Type == frameType {
			found = frame
		}
	}
	return found
}

func helloFrame(t *testing.T, userID, name string) []byte {
	t.Helper()
	data, err := messages.SerializeFrame(messages.FrameTypeClientHello, &messages.ClientHello{
		UserID: userID,
		Name:   name,
	})
	require.NoError(t, err)
	return data
}

func locFrame(t *testing.T, lat, lon float64) []byte {
	t.Helper()
	data, err := messages.SerializeFrame(messages.FrameTypeClientLocation, &messages.ClientLocation{
		Lat: &lat,
		Lon: &lon,
	})
	require.NoError(t, err)
	return data
}

func TestRoom_AttachPushesSnapshot(t *testing.T) {
	room, _, _ := newTestRoom(t, time.Minute)
	ctx := context.Background()

	_, err := room.Join(ctx, types.JoinParams{UserID: "u1"})
	require.NoError(t, err)

	conn := &fakeConn{}
	_, err = room.Attach(ctx, conn)
	require.NoError(t, err)

	frames := conn.received(t)
	require.Len(t, frames, 1)
	assert.Equal(t, messages.FrameTypeServerSnapshot, frames[0].Type)

	snapshot := &messages.ServerSnapshot{}
	require.NoError(t, json.Unmarshal(frames[0].Payload, snapshot))
	require.Len(t, snapshot.Members, 1)
	assert.Equal(t, "u1", snapshot.Members[0].UserID)
}

func TestRoom_ScenarioB(t *testing.T) {
	room, _, _ := newTestRoom(t, time.Minute)
	ctx := context.Background()

	connA := &fakeConn{}
	connB := &fakeConn{}

	obsA, err := room.Attach(ctx, connA)
	require.NoError(t, err)
	_, err = room.Attach(ctx, connB)
	require.NoError(t, err)

	// A binds its identity; B hears about it, A does not.
	require.NoError(t, room.HandleFrame(ctx, obsA, helloFrame(t, "a", "Alice")))

	join := connB.lastOfType(t, messages.FrameTypeServerPeerJoin)
	require.NotNil(t, join)
	peerJoin := &messages.ServerPeerJoin{}
	require.NoError(t, json.Unmarshal(join.Payload, peerJoin))
	assert.Equal(t, "a", peerJoin.UserID)
	assert.Nil(t, connA.lastOfType(t, messages.FrameTypeServerPeerJoin))

	// A reports a location; B receives the relay.
	require.NoError(t, room.HandleFrame(ctx, obsA, locFrame(t, 10, 20)))

	loc := connB.lastOfType(t, messages.FrameTypeServerPeerLoc)
	require.NotNil(t, loc)
	peerLoc := &messages.ServerPeerLoc{}
	require.NoError(t, json.Unmarshal(loc.Payload, peerLoc))
	assert.Equal(t, "a", peerLoc.From)
	assert.Equal(t, float64(10), peerLoc.Location.Lat)
	assert.Equal(t, float64(20), peerLoc.Location.Lon)
	assert.Nil(t, connA.lastOfType(t, messages.FrameTypeServerPeerLoc))

	// The tokenless channel update went through the member directory.
	snapshot, err := room.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot.Members, 1)
	require.NotNil(t, snapshot.Members[0].Location)
	assert.Equal(t, float64(10), snapshot.Members[0].Location.Lat)

	// A disconnects; B hears peer-left.
	room.Detach(obsA)
	left := connB.lastOfType(t, messages.FrameTypeServerPeerLeft)
	require.NotNil(t, left)
	peerLeft := &messages.ServerPeerLeft{}
	require.NoError(t, json.Unmarshal(left.Payload, peerLeft))
	assert.Equal(t, "a", peerLeft.UserID)
}

func TestRoom_PingRepliesToSenderOnly(t *testing.T) {
	room, _, clock := newTestRoom(t, time.Minute)
	ctx := context.Background()

	connA := &fakeConn{}
	connB := &fakeConn{}
	obsA, err := room.Attach(ctx, connA)
	require.NoError(t, err)
	_, err = room.Attach(ctx, connB)
	require.NoError(t, err)

	ping, err := messages.SerializeFrame(messages.FrameTypeClientPing, nil)
	require.NoError(t, err)
	require.NoError(t, room.HandleFrame(ctx, obsA, ping))

	pong := connA.lastOfType(t, messages.FrameTypeServerPong)
	require.NotNil(t, pong)
	payload := &messages.ServerPong{}
	require.NoError(t, json.Unmarshal(pong.Payload, payload))
	assert.Equal(t, clock.Now().UnixMilli(), payload.TS)

	assert.Nil(t, connB.lastOfType(t, messages.FrameTypeServerPong), "pong must never broadcast")
}

func TestRoom_UnboundLocationIgnored(t *testing.T) {
	room, _, _ := newTestRoom(t, time.Minute)
	ctx := context.Background()

	connA := &fakeConn{}
	connB := &fakeConn{}
	obsA, err := room.Attach(ctx, connA)
	require.NoError(t, err)
	_, err = room.Attach(ctx, connB)
	require.NoError(t, err)

	require.NoError(t, room.HandleFrame(ctx, obsA, locFrame(t, 10, 20)))

	assert.Nil(t, connB.lastOfType(t, messages.FrameTypeServerPeerLoc))
	assert.Equal(t, 0, room.MemberCount())
}

func TestRoom_FailedSendDoesNotAffectOthers(t *testing.T) {
	room, _, _ := newTestRoom(t, time.Minute)
	ctx := context.Background()

	connA := &fakeConn{}
	connB := &fakeConn{fail: true}
	connC := &fakeConn{}

	obsA, err := room.Attach(ctx, connA)
	require.NoError(t, err)
	_, err = room.Attach(ctx, connB)
	require.NoError(t, err)
	_, err = room.Attach(ctx, connC)
	require.NoError(t, err)

	require.NoError(t, room.HandleFrame(ctx, obsA, helloFrame(t, "a", "")))

	assert.NotNil(t, connC.lastOfType(t, messages.FrameTypeServerPeerJoin))
	assert.Equal(t, 1, room.MemberCount(), "failed delivery must not affect coordinator state")
}

func TestRoom_MalformedFrameDropped(t *testing.T) {
	room, _, _ := newTestRoom(t, time.Minute)
	ctx := context.Background()

	conn := &fakeConn{}
	obs, err := room.Attach(ctx, conn)
	require.NoError(t, err)

	require.NoError(t, room.HandleFrame(ctx, obs, []byte("{not json")))
	require.NoError(t, room.HandleFrame(ctx, obs, []byte(`{"type":"mystery"}`)))
	assert.Equal(t, 0, room.MemberCount())
}
