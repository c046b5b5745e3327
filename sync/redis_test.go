// ABOUTME: End-to-end engine test against the Redis cloud store on miniredis
// ABOUTME: Exercises promotion, cascade delete, and pull on a second device
package sync

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/harperreed/stakemap/cloud"
	"github.com/harperreed/stakemap/db"
	"github.com/harperreed/stakemap/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEngineAgainstRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := cloud.NewRedisStore("redis://"+mr.Addr(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	laptop := NewEngine(db.NewLocalStore(newMemBackend(), nil), store, nil, testOptions())
	t.Cleanup(laptop.Close)

	m := mustCreateMap(t, laptop, "Roadmap")
	var ids []string
	for _, name := range []string{"one", "two", "three"} {
		ids = append(ids, mustAddStakeholder(t, laptop, m.ID, name).ID)
	}

	result, err := laptop.HandleLogin(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ModePromotion, result.Mode)

	maps, err := store.FetchMaps(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, m.ID, maps[0].ID)
	assert.Equal(t, "u1", maps[0].OwnerID)
	list, err := store.FetchStakeholders(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	// A second device signing in pulls the same data.
	phoneLocal := db.NewLocalStore(newMemBackend(), nil)
	phone := NewEngine(phoneLocal, store, nil, testOptions())
	t.Cleanup(phone.Close)
	stale := mustCreateMap(t, phone, "Phone scratch")

	result, err = phone.HandleLogin(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, ModePull, result.Mode)
	assert.Equal(t, []string{m.ID}, mapIDs(phoneLocal.GetAllMaps()))
	assert.Len(t, phoneLocal.GetStakeholders(m.ID), 3)
	assert.Empty(t, phoneLocal.GetStakeholders(stale.ID))

	// Cascade delete from the laptop.
	require.NoError(t, laptop.DeleteMap(m.ID))
	laptop.Flush()

	maps, err = store.FetchMaps(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, maps)
	for _, id := range ids {
		assert.False(t, mr.Exists("stakeholders:"+id), "stakeholder %s survived the cascade", id)
	}
	assert.False(t, mr.Exists("maps:"+m.ID))
}

func TestEngineRedisOwnershipConflict(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := cloud.NewRedisStore("redis://"+mr.Addr(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	owned, err := models.NewMap(models.MapInput{Name: "Theirs", OwnerID: "u2"})
	require.NoError(t, err)
	require.NoError(t, store.PutMap(context.Background(), owned))

	// A local copy of someone else's map id cannot be promoted by u1.
	backend := newMemBackend()
	local := db.NewLocalStore(backend, nil)
	squatter := owned.Clone()
	squatter.OwnerID = ""
	require.NoError(t, local.SaveMaps([]*models.Map{squatter}))

	e := NewEngine(local, store, nil, testOptions())
	t.Cleanup(e.Close)
	result, err := e.HandleLogin(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, result.Partial)
	assert.ErrorIs(t, result.Failed[owned.ID], models.ErrAccessDenied)

	maps, err := store.FetchMaps(context.Background(), "u2")
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, "u2", maps[0].OwnerID)
}

func TestEngineRedisKeepsOthersMapsIntact(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := cloud.NewRedisStore("redis://"+mr.Addr(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	shared := NewEngine(db.NewLocalStore(newMemBackend(), nil), store, nil, testOptions())
	t.Cleanup(shared.Close)

	_, err = shared.HandleLogin(ctx, "alice")
	require.NoError(t, err)
	alices := mustCreateMap(t, shared, "Alice's")
	shared.HandleLogout()

	result, err := shared.HandleLogin(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, []string{alices.ID}, result.Skipped)

	_, err = shared.UpdateMap(alices.ID, func(m *models.Map) { m.Name = "bob was here" })
	assert.ErrorIs(t, err, models.ErrAccessDenied)
	assert.ErrorIs(t, shared.DeleteMap(alices.ID), models.ErrAccessDenied)
	shared.Flush()

	maps, err := store.FetchMaps(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, "Alice's", maps[0].Name)
	assert.Equal(t, "alice", maps[0].OwnerID)
	assert.True(t, mr.Exists("maps:"+alices.ID))
}
