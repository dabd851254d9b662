package network

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/muster-live/muster/pkg/log"
	"github.com/muster-live/muster/pkg/queue"
	"github.com/muster-live/muster/pkg/rooms"
	"github.com/muster-live/muster/pkg/rooms/constants"
)

const (
	// writeTimeout bounds a single frame write to a slow client.
	writeTimeout = 5 * time.Second
)

// WSConn adapts a websocket connection to the coordinator's
// ObserverConn. Outbound frames go through a bounded queue drained by
// a writer goroutine, so a slow or dead client never blocks the
// coordinator and never affects delivery to other observers.
type WSConn struct {
	conn     *websocket.Conn
	outbound *queue.InMemoryQueue
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewWSConn wraps conn and starts its writer goroutine.
func NewWSConn(ctx context.Context, conn *websocket.Conn) *WSConn {
	ctx, cancel := context.WithCancel(ctx)
	c := &WSConn{
		conn:     conn,
		outbound: queue.NewInMemoryQueue(constants.ObserverSendBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
	go c.writeLoop()
	return c
}

// TrySend queues a frame for delivery. It fails instead of blocking
// when the client cannot keep up.
func (c *WSConn) TrySend(data []byte) error {
	select {
	case <-c.ctx.Done():
		return fmt.Errorf("connection is closed")
	default:
	}
	return c.outbound.Enqueue(data)
}

func (c *WSConn) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case item := <-c.outbound.Wait():
			data, ok := item.([]byte)
			if !ok {
				continue
			}
			writeCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Trace("websocket write failed: %v", err)
				c.cancel()
				return
			}
		}
	}
}

// Close tears down the writer goroutine and the connection. Frames
// still queued are dropped; delivery was best-effort anyway.
func (c *WSConn) Close() {
	c.cancel()
	c.outbound.ClearQueue()
	c.conn.Close(websocket.StatusNormalClosure, "")
}

// ServePushChannel upgrades the request to a websocket, attaches it to
// the room as an observer, and pumps inbound frames into the
// coordinator until the connection drops.
func ServePushChannel(w http.ResponseWriter, r *http.Request, room *rooms.Room, readLimit int64) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Rooms are joined by code, not origin; the code is the gate.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error("Failed to upgrade to WebSocket: %v", err)
		return
	}
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}

	ctx := r.Context()
	wsConn := NewWSConn(ctx, conn)
	defer wsConn.Close()

	obs, err := room.Attach(ctx, wsConn)
	if err != nil {
		log.Error("Failed to attach observer to room %s: %v", room.Code(), err)
		conn.Close(websocket.StatusInternalError, "failed to attach")
		return
	}
	defer room.Detach(obs)

	log.Debug("Observer %s connected to room %s", obs.UserID(), room.Code())

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.Trace("websocket read ended for room %s: %v", room.Code(), err)
			}
			return
		}
		if err := room.HandleFrame(ctx, obs, data); err != nil {
			log.Error("Failed to handle frame in room %s: %v", room.Code(), err)
		}
	}
}
