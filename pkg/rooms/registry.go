package rooms

import (
	"sync"
	"time"

	"github.com/muster-live/muster/pkg/log"
	"github.com/muster-live/muster/pkg/repositories"
)

// Registry maps room codes to coordinator instances. It holds no room
// state itself: resolving a code is pure routing. A code collision
// resolves to the existing instance.
type Registry struct {
	repository repositories.Repository
	ttl        time.Duration
	clock      func() time.Time
	logger     *log.Logger

	lock  sync.RWMutex
	rooms map[string]*Room
}

type NewRegistryOptions struct {
	Repository repositories.Repository
	TTL        time.Duration
	Clock      func() time.Time
	Logger     *log.Logger
}

func NewRegistry(opts NewRegistryOptions) *Registry {
	return &Registry{
		repository: opts.Repository,
		ttl:        opts.TTL,
		clock:      opts.Clock,
		logger:     opts.Logger,
		rooms:      make(map[string]*Room),
	}
}

// GetOrCreate resolves a code to its coordinator, creating one on
// first access. The instance hydrates lazily on its first operation.
func (reg *Registry) GetOrCreate(code string) *Room {
	reg.lock.RLock()
	room, ok := reg.rooms[code]
	reg.lock.RUnlock()
	if ok {
		return room
	}

	reg.lock.Lock()
	defer reg.lock.Unlock()
	if room, ok = reg.rooms[code]; ok {
		return room
	}
	room = NewRoom(NewRoomOptions{
		Code:       code,
		Repository: reg.repository,
		TTL:        reg.ttl,
		Clock:      reg.clock,
		Logger:     reg.logger,
	})
	reg.rooms[code] = room
	return room
}

// Codes returns the codes of all resident coordinator instances.
func (reg *Registry) Codes() []string {
	reg.lock.RLock()
	defer reg.lock.RUnlock()
	codes := make([]string, 0, len(reg.rooms))
	for code := range reg.rooms {
		codes = append(codes, code)
	}
	return codes
}

// Size returns the number of resident coordinator instances.
func (reg *Registry) Size() int {
	reg.lock.RLock()
	defer reg.lock.RUnlock()
	return len(reg.rooms)
}

// RemoveIfReapable drops the instance for code if it is expired,
// empty, and observer-free. It returns true if the instance was
// removed. The reapability check wipes the expired durable record as
// a side effect, so abandoned codes leave nothing behind.
func (reg *Registry) RemoveIfReapable(code string) bool {
	reg.lock.Lock()
	defer reg.lock.Unlock()

	room, ok := reg.rooms[code]
	if !ok || !room.Reapable() {
		return false
	}
	delete(reg.rooms, code)
	return true
}
