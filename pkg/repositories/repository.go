package repositories

import (
	"context"

	roomtypes "github.com/muster-live/muster/pkg/rooms/types"
)

// Repository is the durable per-room key/value store. A room's entire
// state is one record keyed by its code.
type Repository interface {
	Close(ctx context.Context) error
	// SaveRoom writes the full record for a room, replacing any
	// previous one.
	SaveRoom(ctx context.Context, code string, record *roomtypes.RoomRecord) error
	// LoadRoom reads the record for a room. It returns ErrNotFound if
	// no record exists.
	LoadRoom(ctx context.Context, code string) (*roomtypes.RoomRecord, error)
	// DeleteRoom removes the record for a room in full. Deleting a
	// missing record is not an error.
	DeleteRoom(ctx context.Context, code string) error
}
