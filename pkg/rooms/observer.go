package rooms

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/muster-live/muster/pkg/messages"
	"github.com/muster-live/muster/pkg/rooms/constants"
	"github.com/muster-live/muster/pkg/rooms/types"
)

// ObserverConn is the outbound half of a push channel. TrySend must
// not block: implementations buffer and report an error when the
// buffer is full or the connection is gone.
type ObserverConn interface {
	TrySend(data []byte) error
}

// Observer is a live push-channel connection. It starts out with a
// placeholder identity and is bound to a member id by a hello frame.
// Observers are transient: they are never persisted and die with the
// connection.
type Observer struct {
	conn   ObserverConn
	userID string
	name   string
	bound  bool
}

// UserID returns the observer's current identity.
func (o *Observer) UserID() string {
	return o.userID
}

// Attach registers a live connection as an observer of the room and
// immediately pushes it a full snapshot.
func (r *Room) Attach(ctx context.Context, conn ObserverConn) (*Observer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.hydrateLocked(ctx); err != nil {
		return nil, err
	}

	obs := &Observer{
		conn:   conn,
		userID: "anon-" + strings.Split(uuid.NewString(), "-")[0],
	}
	r.observers[obs] = struct{}{}

	snapshot := r.snapshotLocked()
	r.sendToLocked(obs, messages.FrameTypeServerSnapshot, &messages.ServerSnapshot{
		Members:  snapshot.Members,
		Settings: snapshot.Settings,
	})

	r.logger.Debug("observer %s attached (%d total)", obs.userID, len(r.observers))
	return obs, nil
}

// Detach removes the observer and announces peer-left to everyone
// still connected. Coordinator state is untouched: only a token-gated
// leave or an expiry wipe removes the member itself.
func (r *Room) Detach(obs *Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.observers[obs]; !ok {
		return
	}
	delete(r.observers, obs)

	r.broadcastLocked(messages.FrameTypeServerPeerLeft, &messages.ServerPeerLeft{
		UserID: obs.userID,
	}, nil)

	r.logger.Debug("observer %s detached (%d remain)", obs.userID, len(r.observers))
}

// HandleFrame dispatches one inbound push-channel frame. Unknown
// frame types are ignored.
func (r *Room) HandleFrame(ctx context.Context, obs *Observer, data []byte) error {
	frame, err := messages.DeserializeFrame(data)
	if err != nil {
		// A garbled frame is the sender's problem, not the room's.
		r.logger.Trace("dropping undecodable frame: %v", err)
		return nil
	}

	switch frame.Type {
	case messages.FrameTypeClientHello:
		hello := &messages.ClientHello{}
		if frame.Payload != nil {
			if err := json.Unmarshal(frame.Payload, hello); err != nil {
				r.logger.Trace("dropping malformed hello: %v", err)
				return nil
			}
		}
		return r.handleHello(ctx, obs, hello)
	case messages.FrameTypeClientLocation:
		loc := &messages.ClientLocation{}
		if frame.Payload != nil {
			if err := json.Unmarshal(frame.Payload, loc); err != nil {
				r.logger.Trace("dropping malformed loc: %v", err)
				return nil
			}
		}
		return r.handleLocation(ctx, obs, loc)
	case messages.FrameTypeClientPing:
		r.handlePing(obs)
		return nil
	default:
		r.logger.Trace("ignoring frame type %q", frame.Type)
		return nil
	}
}

// handleHello binds the observer to a member identity. The connection
// itself is the authentication boundary here: the member record is
// created if it does not exist, and the observer becomes its active
// connection. Everyone else gets a peer-join push.
func (r *Room) handleHello(ctx context.Context, obs *Observer, hello *messages.ClientHello) error {
	if hello.UserID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.beginMutationLocked(ctx); err != nil {
		return err
	}

	member, ok := r.members[hello.UserID]
	if !ok {
		member = &types.Member{
			UserID: hello.UserID,
			Token:  uuid.NewString(),
			Status: types.Status{Health: constants.DefaultHealth},
		}
		r.members[hello.UserID] = member
	}
	if hello.Name != "" {
		member.Name = hello.Name
	}
	member.UpdatedAt = r.nowMillis()

	if err := r.persistLocked(ctx); err != nil {
		return err
	}

	obs.userID = hello.UserID
	obs.name = hello.Name
	obs.bound = true

	r.broadcastLocked(messages.FrameTypeServerPeerJoin, &messages.ServerPeerJoin{
		UserID: obs.userID,
		Name:   obs.name,
	}, obs)

	return nil
}

// handleLocation applies a tokenless location update for a bound
// observer and relays it to everyone else. Unbound observers and
// non-finite coordinates are ignored.
func (r *Room) handleLocation(ctx context.Context, obs *Observer, loc *messages.ClientLocation) error {
	if loc.Lat == nil || !isFinite(*loc.Lat) || loc.Lon == nil || !isFinite(*loc.Lon) {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !obs.bound {
		return nil
	}

	if err := r.beginMutationLocked(ctx); err != nil {
		return err
	}

	member, ok := r.members[obs.userID]
	if !ok {
		// The member was wiped (or left) since the hello. Re-create it
		// so the binding stays usable, mirroring what a fresh hello
		// would have done.
		member = &types.Member{
			UserID: obs.userID,
			Name:   obs.name,
			Token:  uuid.NewString(),
			Status: types.Status{Health: constants.DefaultHealth},
		}
		r.members[obs.userID] = member
	}

	r.setLocationLocked(member, *loc.Lat, *loc.Lon, loc.TS)

	if err := r.persistLocked(ctx); err != nil {
		return err
	}

	r.broadcastLocked(messages.FrameTypeServerPeerLoc, &messages.ServerPeerLoc{
		From:     obs.userID,
		Location: *member.Location,
	}, obs)

	return nil
}

// handlePing replies pong directly to the sender. Never broadcast.
func (r *Room) handlePing(obs *Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sendToLocked(obs, messages.FrameTypeServerPong, &messages.ServerPong{
		TS: r.nowMillis(),
	})
}

// broadcastLocked pushes a frame to every observer except the sender.
// Delivery is per-observer and best-effort: a failed send is dropped
// without affecting anyone else.
func (r *Room) broadcastLocked(frameType string, payload interface{}, except *Observer) {
	data, err := messages.SerializeFrame(frameType, payload)
	if err != nil {
		r.logger.Error("failed to serialize %s frame: %v", frameType, err)
		return
	}

	for obs := range r.observers {
		if obs == except {
			continue
		}
		if err := obs.conn.TrySend(data); err != nil {
			r.logger.Trace("dropped %s frame to observer %s: %v", frameType, obs.userID, err)
		}
	}
}

func (r *Room) sendToLocked(obs *Observer, frameType string, payload interface{}) {
	data, err := messages.SerializeFrame(frameType, payload)
	if err != nil {
		r.logger.Error("failed to serialize %s frame: %v", frameType, err)
		return
	}
	if err := obs.conn.TrySend(data); err != nil {
		r.logger.Trace("dropped %s frame to observer %s: %v", frameType, obs.userID, err)
	}
}
