package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harperreed/stakemap/db"
	"github.com/harperreed/stakemap/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedIn(t *testing.T, uid string) (*Engine, *db.LocalStore, *memCloud) {
	t.Helper()
	cloud := newMemCloud()
	e, local := setupEngine(t, cloud)
	_, err := e.HandleLogin(context.Background(), uid)
	require.NoError(t, err)
	return e, local, cloud
}

func TestCreateMapWhileSignedInIsOwnedAndMirrored(t *testing.T) {
	e, _, cloud := signedIn(t, "u1")

	m, err := e.CreateMap(models.MapInput{ID: "caller-id", Name: "  Board  ", OwnerID: "someone-else"})
	require.NoError(t, err)
	assert.NotEqual(t, "caller-id", m.ID)
	assert.Equal(t, "Board", m.Name)
	assert.Equal(t, "u1", m.OwnerID)

	e.Flush()
	got, ok := cloud.cloudMap(m.ID)
	require.True(t, ok)
	assert.Equal(t, "u1", got.OwnerID)
}

func TestCreateMapValidation(t *testing.T) {
	e, local := setupEngine(t, nil)

	_, err := e.CreateMap(models.MapInput{Name: "   "})
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, models.FieldName, verr.Field)
	assert.Empty(t, local.GetAllMaps())
}

func TestCreateMapLocalFailureIsReturned(t *testing.T) {
	backend := newMemBackend()
	backend.failSets = true
	cloud := newMemCloud()
	e := NewEngine(db.NewLocalStore(backend, nil), cloud, nil, testOptions())
	t.Cleanup(e.Close)

	_, err := e.CreateMap(models.MapInput{Name: "Nope"})
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	e.Flush()
	assert.Empty(t, cloud.Calls())
}

func TestUpdateMap(t *testing.T) {
	e, local, cloud := signedIn(t, "u1")
	m := mustCreateMap(t, e, "Before")
	time.Sleep(2 * time.Millisecond)

	updated, err := e.UpdateMap(m.ID, func(m *models.Map) {
		m.Name = "After"
		m.Description = "described"
		m.ID = "hijack"
		m.Created = time.Time{}
	})
	require.NoError(t, err)
	assert.Equal(t, m.ID, updated.ID)
	assert.Equal(t, m.Created, updated.Created)
	assert.True(t, updated.Updated.After(m.Updated))

	stored := local.GetAllMaps()[0]
	assert.Equal(t, "After", stored.Name)
	assert.Equal(t, "described", stored.Description)

	e.Flush()
	got, _ := cloud.cloudMap(m.ID)
	assert.Equal(t, "After", got.Name)
}

func TestUpdateMapRejectsOwnerChanges(t *testing.T) {
	e, local, _ := signedIn(t, "u1")
	m := mustCreateMap(t, e, "Owned")

	for _, owner := range []string{"", "u2"} {
		_, err := e.UpdateMap(m.ID, func(m *models.Map) { m.OwnerID = owner })
		assert.ErrorIs(t, err, models.ErrValidation, "owner %q", owner)
	}
	assert.Equal(t, "u1", local.GetAllMaps()[0].OwnerID)

	_, err := e.UpdateMap(m.ID, func(m *models.Map) { m.Name = "" })
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, "Owned", local.GetAllMaps()[0].Name)
}

func TestUpdateMissingMap(t *testing.T) {
	e, _ := setupEngine(t, nil)
	_, err := e.UpdateMap("missing", func(*models.Map) {})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, e.DeleteMap("missing"), models.ErrNotFound)
	_, err = e.GetMap("missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteMapCascades(t *testing.T) {
	e, local, cloud := signedIn(t, "u1")
	keep := mustCreateMap(t, e, "Keep")
	m := mustCreateMap(t, e, "M2")
	for _, name := range []string{"a", "b", "c"} {
		mustAddStakeholder(t, e, m.ID, name)
	}
	require.NoError(t, e.SetCurrentMap(m.ID))
	e.Flush()
	require.Len(t, cloud.cloudStakeholders(m.ID), 3)

	require.NoError(t, e.DeleteMap(m.ID))
	assert.Equal(t, []string{keep.ID}, mapIDs(local.GetAllMaps()))
	assert.Empty(t, local.GetStakeholders(m.ID))
	assert.Equal(t, "", local.GetCurrentMapID())

	e.Flush()
	_, ok := cloud.cloudMap(m.ID)
	assert.False(t, ok)
	assert.Empty(t, cloud.cloudStakeholders(m.ID))
	assert.Contains(t, cloud.Calls(), "delete map "+m.ID)
}

func TestAddStakeholder(t *testing.T) {
	e, local, cloud := signedIn(t, "u1")
	m := mustCreateMap(t, e, "Map")
	time.Sleep(2 * time.Millisecond)

	st, err := e.AddStakeholder(models.StakeholderInput{
		MapID:     m.ID,
		Name:      "Ada",
		Influence: models.Score(8),
		Impact:    models.Score(7),
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCategory, st.Category)
	assert.NotNil(t, st.Interactions)

	assert.True(t, local.GetAllMaps()[0].Updated.After(m.Updated), "adding a stakeholder touches the map")

	e.Flush()
	list := cloud.cloudStakeholders(m.ID)
	require.Len(t, list, 1)
	assert.Equal(t, "Ada", list[0].Name)
	got, _ := cloud.cloudMap(m.ID)
	assert.True(t, got.Updated.After(m.Updated))
}

func TestAddStakeholderErrors(t *testing.T) {
	e, local := setupEngine(t, nil)
	m := mustCreateMap(t, e, "Map")

	_, err := e.AddStakeholder(models.StakeholderInput{MapID: "nope", Name: "x"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	for _, score := range []int{0, 11} {
		_, err = e.AddStakeholder(models.StakeholderInput{MapID: m.ID, Name: "x", Influence: models.Score(score)})
		var verr *models.ValidationError
		require.True(t, errors.As(err, &verr), "score %d", score)
		assert.Equal(t, models.FieldInfluence, verr.Field)
	}
	assert.Empty(t, local.GetStakeholders(m.ID))
}

func TestUpdateStakeholderPreservesIdentity(t *testing.T) {
	e, local, _ := signedIn(t, "u1")
	m := mustCreateMap(t, e, "Map")
	st := mustAddStakeholder(t, e, m.ID, "Grace")
	_, err := e.AddInteraction(m.ID, st.ID, "coffee", time.Time{})
	require.NoError(t, err)

	updated, err := e.UpdateStakeholder(m.ID, st.ID, func(s *models.Stakeholder) {
		s.Name = "Grace H."
		s.Relationship = models.Score(9)
		s.Category = ""
		s.ID = "other"
		s.MapID = "other"
		s.Interactions = nil
	})
	require.NoError(t, err)
	assert.Equal(t, st.ID, updated.ID)
	assert.Equal(t, m.ID, updated.MapID)
	assert.Equal(t, models.DefaultCategory, updated.Category)
	require.Len(t, updated.Interactions, 1)

	quality, ok := updated.RelationshipQuality()
	require.True(t, ok)
	assert.Equal(t, "strong", quality)

	stored, err := e.GetStakeholder(m.ID, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace H.", stored.Name)
	assert.Len(t, local.GetStakeholders(m.ID), 1)

	_, err = e.UpdateStakeholder(m.ID, st.ID, func(s *models.Stakeholder) { s.Impact = models.Score(42) })
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = e.UpdateStakeholder(m.ID, "missing", func(*models.Stakeholder) {})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteStakeholder(t *testing.T) {
	e, local, cloud := signedIn(t, "u1")
	m := mustCreateMap(t, e, "Map")
	gone := mustAddStakeholder(t, e, m.ID, "gone")
	stays := mustAddStakeholder(t, e, m.ID, "stays")

	require.NoError(t, e.DeleteStakeholder(m.ID, gone.ID))
	list := local.GetStakeholders(m.ID)
	require.Len(t, list, 1)
	assert.Equal(t, stays.ID, list[0].ID)
	assert.ErrorIs(t, e.DeleteStakeholder(m.ID, gone.ID), models.ErrNotFound)

	e.Flush()
	cloudList := cloud.cloudStakeholders(m.ID)
	require.Len(t, cloudList, 1)
	assert.Equal(t, stays.ID, cloudList[0].ID)
}

func TestAddInteractionTouchesOnlyStakeholder(t *testing.T) {
	e, local, cloud := signedIn(t, "u1")
	m := mustCreateMap(t, e, "Map")
	st := mustAddStakeholder(t, e, m.ID, "Linus")
	e.Flush()
	mapUpdated := local.GetAllMaps()[0].Updated
	time.Sleep(2 * time.Millisecond)

	first, err := e.AddInteraction(m.ID, st.ID, "kickoff", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	second, err := e.AddInteraction(m.ID, st.ID, "follow-up", time.Time{})
	require.NoError(t, err)

	stored, err := e.GetStakeholder(m.ID, st.ID)
	require.NoError(t, err)
	require.Len(t, stored.Interactions, 2)
	assert.Equal(t, second.ID, stored.Interactions[0].ID)
	assert.Equal(t, first.ID, stored.Interactions[1].ID)
	assert.True(t, stored.Updated.After(st.Updated))
	assert.Equal(t, mapUpdated, local.GetAllMaps()[0].Updated)

	_, err = e.AddInteraction(m.ID, st.ID, "  ", time.Time{})
	assert.ErrorIs(t, err, models.ErrValidation)

	e.Flush()
	list := cloud.cloudStakeholders(m.ID)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Interactions, 2)
}

func TestMirrorFailureIsPublishedNotReturned(t *testing.T) {
	e, local, cloud := signedIn(t, "u1")
	events := recordEvents(e)
	cloud.mu.Lock()
	cloud.putErr = &models.StoreError{Op: "put map", Err: errors.New("timeout")}
	cloud.mu.Unlock()

	m, err := e.CreateMap(models.MapInput{Name: "Local wins"})
	require.NoError(t, err)
	e.Flush()

	failed := events.ofKind(EventMirrorFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "put map", failed[0].Op)
	assert.Equal(t, m.ID, failed[0].EntityID)
	assert.Equal(t, "u1", failed[0].UserID)
	assert.ErrorIs(t, failed[0].Err, models.ErrStoreUnavailable)

	require.Len(t, local.GetAllMaps(), 1, "local write is never rolled back")
}

func TestMirrorsRunInIssueOrder(t *testing.T) {
	e, _, cloud := signedIn(t, "u1")
	start := len(cloud.Calls())

	m := mustCreateMap(t, e, "Ordered")
	st := mustAddStakeholder(t, e, m.ID, "x")
	require.NoError(t, e.DeleteStakeholder(m.ID, st.ID))
	require.NoError(t, e.DeleteMap(m.ID))
	e.Flush()

	assert.Equal(t, []string{
		"put map " + m.ID,
		"put stakeholder " + st.ID,
		"put map " + m.ID,
		"delete stakeholder " + st.ID,
		"put map " + m.ID,
		"delete map " + m.ID,
	}, cloud.Calls()[start:])
}

func TestCurrentMapSelection(t *testing.T) {
	e, _ := setupEngine(t, nil)
	a := mustCreateMap(t, e, "A")
	b := mustCreateMap(t, e, "B")
	assert.Equal(t, a.ID, e.CurrentMapID(), "first map becomes current")

	require.NoError(t, e.SetCurrentMap(b.ID))
	assert.Equal(t, b.ID, e.CurrentMapID())
	assert.ErrorIs(t, e.SetCurrentMap("missing"), models.ErrNotFound)

	assert.Len(t, e.ListMaps(), 2)
	list, err := e.GetStakeholders(b.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = e.GetStakeholders("missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
