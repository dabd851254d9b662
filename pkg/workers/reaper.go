package workers

import (
	"context"
	"time"

	"github.com/muster-live/muster/pkg/log"
	"github.com/muster-live/muster/pkg/rooms"
)

type RoomReaperWorker struct {
	registry *rooms.Registry
	interval time.Duration
}

type NewRoomReaperWorkerOptions struct {
	Registry *rooms.Registry
	Interval time.Duration
}

// NewRoomReaperWorker creates a new RoomReaperWorker. The worker
// periodically drops coordinator instances that have expired with no
// members and no observers, so abandoned codes do not accumulate in
// the registry. Checking reapability runs the expiry wipe, so the
// sweep also deletes durable records nobody came back for.
func NewRoomReaperWorker(opts NewRoomReaperWorkerOptions) *RoomReaperWorker {
	return &RoomReaperWorker{
		registry: opts.Registry,
		interval: opts.Interval,
	}
}

func (w *RoomReaperWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *RoomReaperWorker) sweep() {
	reaped := 0
	for _, code := range w.registry.Codes() {
		if w.registry.RemoveIfReapable(code) {
			reaped++
		}
	}
	if reaped > 0 {
		log.Debug("Reaped %d idle room instances", reaped)
	}
}
