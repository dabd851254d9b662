package rooms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muster-live/muster/pkg/repositories"
	"github.com/muster-live/muster/pkg/rooms/types"
)

func newTestRegistry(ttl time.Duration) (*Registry, *fakeClock) {
	clock := newFakeClock()
	registry := NewRegistry(NewRegistryOptions{
		Repository: repositories.NewInMemoryRepository(),
		TTL:        ttl,
		Clock:      clock.Now,
	})
	return registry, clock
}

func TestRegistry_GetOrCreateReturnsSameInstance(t *testing.T) {
	registry, _ := newTestRegistry(time.Minute)

	first := registry.GetOrCreate("AAAAAA")
	second := registry.GetOrCreate("AAAAAA")
	other := registry.GetOrCreate("BBBBBB")

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, registry.Size())
	assert.ElementsMatch(t, []string{"AAAAAA", "BBBBBB"}, registry.Codes())
}

func TestRegistry_RemoveIfReapable(t *testing.T) {
	registry, clock := newTestRegistry(time.Minute)
	ctx := context.Background()

	room := registry.GetOrCreate("AAAAAA")
	joined, err := room.Join(ctx, types.JoinParams{UserID: "u1"})
	require.NoError(t, err)

	// A room with members keeps its expiry deadline and stays resident.
	assert.False(t, registry.RemoveIfReapable("AAAAAA"))
	assert.Equal(t, 1, registry.Size())

	require.NoError(t, room.Leave(ctx, "u1", joined.Token))
	assert.False(t, registry.RemoveIfReapable("AAAAAA"), "freshly touched room stays resident")

	clock.Advance(time.Minute)
	assert.True(t, registry.RemoveIfReapable("AAAAAA"))
	assert.Equal(t, 0, registry.Size())

	// Unknown code is a no-op.
	assert.False(t, registry.RemoveIfReapable("AAAAAA"))
}

func TestRegistry_ReapWipesAbandonedRecord(t *testing.T) {
	repo := repositories.NewInMemoryRepository()
	clock := newFakeClock()
	registry := NewRegistry(NewRegistryOptions{
		Repository: repo,
		TTL:        time.Minute,
		Clock:      clock.Now,
	})
	ctx := context.Background()

	room := registry.GetOrCreate("AAAAAA")
	joined, err := room.Join(ctx, types.JoinParams{UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, room.SetSettings(ctx, []types.Setting{{Key: "mode", Value: "ctf"}}))
	require.NoError(t, room.Leave(ctx, "u1", joined.Token))
	require.True(t, repo.Exists("AAAAAA"))

	// Nobody comes back. The reaper sweep must delete the record, not
	// just the resident instance.
	clock.Advance(time.Minute)
	assert.True(t, registry.RemoveIfReapable("AAAAAA"))
	assert.False(t, repo.Exists("AAAAAA"), "reaping must wipe the durable record")
}

func TestRegistry_ReapWipesRehydratedRecord(t *testing.T) {
	repo := repositories.NewInMemoryRepository()
	clock := newFakeClock()
	ctx := context.Background()

	// A record left behind by an earlier process: settings only, with
	// a deadline already in the past.
	require.NoError(t, repo.SaveRoom(ctx, "AAAAAA", &types.RoomRecord{
		Settings: []types.Setting{{Key: "mode", Value: "ctf"}},
		Deadline: clock.Now().UnixMilli() - time.Hour.Milliseconds(),
	}))

	registry := NewRegistry(NewRegistryOptions{
		Repository: repo,
		TTL:        time.Minute,
		Clock:      clock.Now,
	})
	room := registry.GetOrCreate("AAAAAA")

	// First touch hydrates the stale record.
	_, err := room.GetSettings(ctx)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	assert.True(t, registry.RemoveIfReapable("AAAAAA"))
	assert.False(t, repo.Exists("AAAAAA"))
}

func TestRegistry_ObserverBlocksReap(t *testing.T) {
	registry, clock := newTestRegistry(time.Minute)
	ctx := context.Background()

	room := registry.GetOrCreate("AAAAAA")
	conn := &fakeConn{}
	obs, err := room.Attach(ctx, conn)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	assert.False(t, registry.RemoveIfReapable("AAAAAA"), "connected observer pins the instance")

	room.Detach(obs)
	assert.True(t, registry.RemoveIfReapable("AAAAAA"))
}
