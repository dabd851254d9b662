package repositories

import (
	"context"
	"sync"

	roomtypes "github.com/muster-live/muster/pkg/rooms/types"
)

// InMemoryRepository keeps records in a process-local map. It backs
// the default store mode and the tests. Records are stored through the
// same codec as the durable backends so all three round-trip
// identically.
type InMemoryRepository struct {
	lock    sync.RWMutex
	records map[string][]byte
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string][]byte),
	}
}

func (r *InMemoryRepository) Close(ctx context.Context) error {
	return nil
}

func (r *InMemoryRepository) SaveRoom(ctx context.Context, code string, record *roomtypes.RoomRecord) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	r.records[code] = data
	return nil
}

func (r *InMemoryRepository) LoadRoom(ctx context.Context, code string) (*roomtypes.RoomRecord, error) {
	r.lock.RLock()
	data, ok := r.records[code]
	r.lock.RUnlock()

	if !ok {
		return nil, &ErrNotFound{}
	}
	return decodeRecord(data)
}

func (r *InMemoryRepository) DeleteRoom(ctx context.Context, code string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.records, code)
	return nil
}

// Exists reports whether a record is currently stored for code.
// It is only used by tests.
func (r *InMemoryRepository) Exists(code string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	_, ok := r.records[code]
	return ok
}
