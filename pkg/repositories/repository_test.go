package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muster-live/muster/pkg/rooms/types"
)

func TestInMemoryRepository_RoundTrip(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	record := &types.RoomRecord{
		Members: map[string]*types.Member{
			"u1": {
				UserID:   "u1",
				Name:     "Alice",
				Token:    "tok-1",
				Location: &types.Location{Lat: 1.5, Lon: -2.25, TS: 1700000000000},
				Status:   types.Status{Team: "red", Role: "medic", Health: 80},
				Abilities: []types.AbilityEvent{
					{AbilityID: "flare", TS: 1700000000001},
				},
			},
		},
		Settings: []types.Setting{
			{Key: "mode", Value: "ctf"},
			{Key: "area", Value: "park"},
		},
		Deadline: 1700000300000,
	}

	require.NoError(t, repo.SaveRoom(ctx, "AAAAAA", record))

	loaded, err := repo.LoadRoom(ctx, "AAAAAA")
	require.NoError(t, err)
	assert.Equal(t, record, loaded)
	// Settings order is part of the record.
	assert.Equal(t, "mode", loaded.Settings[0].Key)
	assert.Equal(t, "area", loaded.Settings[1].Key)
}

func TestInMemoryRepository_NotFound(t *testing.T) {
	repo := NewInMemoryRepository()

	_, err := repo.LoadRoom(context.Background(), "NOSUCH")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestInMemoryRepository_Overwrite(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.SaveRoom(ctx, "AAAAAA", &types.RoomRecord{
		Members:  map[string]*types.Member{"u1": {UserID: "u1", Token: "t1"}},
		Deadline: 1,
	}))
	require.NoError(t, repo.SaveRoom(ctx, "AAAAAA", &types.RoomRecord{
		Members:  map[string]*types.Member{},
		Deadline: 2,
	}))

	loaded, err := repo.LoadRoom(ctx, "AAAAAA")
	require.NoError(t, err)
	assert.Empty(t, loaded.Members)
	assert.Equal(t, int64(2), loaded.Deadline)
}

func TestInMemoryRepository_DeleteIsIdempotent(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.SaveRoom(ctx, "AAAAAA", &types.RoomRecord{}))
	require.NoError(t, repo.DeleteRoom(ctx, "AAAAAA"))
	assert.False(t, repo.Exists("AAAAAA"))

	// Deleting an absent record is not an error.
	require.NoError(t, repo.DeleteRoom(ctx, "AAAAAA"))
	require.NoError(t, repo.DeleteRoom(ctx, "NOSUCH"))
}

func TestCodec_NilMapsNormalized(t *testing.T) {
	data, err := encodeRecord(&types.RoomRecord{})
	require.NoError(t, err)

	record, err := decodeRecord(data)
	require.NoError(t, err)
	assert.NotNil(t, record.Members, "decoded record must always have a usable member map")
	assert.Empty(t, record.Members)
}
