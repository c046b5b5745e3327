// ABOUTME: Map, stakeholder, and interaction mutations
// ABOUTME: Each writes the local store first and queues a cloud mirror when signed in
package sync

import (
	"context"
	"time"

	"github.com/harperreed/stakemap/cloud"
	"github.com/harperreed/stakemap/models"
)

// CreateMap adds a new map. The map is owned by the signed-in user, or
// anonymous otherwise. It becomes the current map when none is selected.
func (e *Engine) CreateMap(in models.MapInput) (*models.Map, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createMap(in)
}

func (e *Engine) createMap(in models.MapInput) (*models.Map, error) {
	in.ID = ""
	in.OwnerID, _ = e.authenticatedUser()

	m, err := models.NewMap(in)
	if err != nil {
		return nil, err
	}

	maps := append(e.local.GetAllMaps(), m)
	if err := e.local.SaveMaps(maps); err != nil {
		return nil, err
	}
	if e.local.GetCurrentMapID() == "" {
		if err := e.local.SetCurrentMapID(m.ID); err != nil {
			return nil, err
		}
	}

	e.mirrorMap(m)
	return m, nil
}

// UpdateMap applies fn to a copy of the map and saves the result. The id
// and creation time cannot change; the owner is managed by sign-in and an
// edit that changes it is rejected.
func (e *Engine) UpdateMap(id string, fn func(*models.Map)) (*models.Map, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	maps, current, err := e.findOwnedMap(id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	fn(next)
	if next.OwnerID != current.OwnerID {
		return nil, &models.ValidationError{Field: models.FieldOwnerID, Reason: "cannot be changed"}
	}
	next.ID = current.ID
	next.Created = current.Created
	next.Touch()
	if err := models.ValidateMap(next); err != nil {
		return nil, err
	}

	replaceMap(maps, next)
	if err := e.local.SaveMaps(maps); err != nil {
		return nil, err
	}

	e.mirrorMap(next)
	return next, nil
}

// DeleteMap removes a map and its stakeholders. The cloud delete cascades
// to the stakeholder documents. While signed in, maps owned by another user
// are rejected with AccessDeniedError; the same holds for every map-scoped
// mutation below.
func (e *Engine) DeleteMap(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, _, err := e.findOwnedMap(id); err != nil {
		return err
	}
	if err := e.local.DeleteMapAndStakeholders(id); err != nil {
		return err
	}
	if e.local.GetCurrentMapID() == id {
		if err := e.local.ClearCurrentMapID(); err != nil {
			return err
		}
	}

	e.enqueueMirror("delete map", id, func(ctx context.Context, s cloud.Store) error {
		return s.DeleteMap(ctx, id)
	})
	return nil
}

// AddStakeholder creates a stakeholder in in.MapID.
func (e *Engine) AddStakeholder(in models.StakeholderInput) (*models.Stakeholder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addStakeholder(in)
}

func (e *Engine) addStakeholder(in models.StakeholderInput) (*models.Stakeholder, error) {
	maps, m, err := e.findOwnedMap(in.MapID)
	if err != nil {
		return nil, err
	}

	in.ID = ""
	st, err := models.NewStakeholder(in)
	if err != nil {
		return nil, err
	}

	list := append(e.local.GetStakeholders(m.ID), st)
	if err := e.local.SaveStakeholders(m.ID, list); err != nil {
		return nil, err
	}
	if err := e.touchMap(maps, m); err != nil {
		return nil, err
	}

	e.mirrorStakeholder(st)
	e.mirrorMap(m)
	return st, nil
}

// UpdateStakeholder applies fn to a copy of the stakeholder and saves it.
// Identity, map membership, creation time, and the interaction log are
// preserved.
func (e *Engine) UpdateStakeholder(mapID, id string, fn func(*models.Stakeholder)) (*models.Stakeholder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	maps, m, err := e.findOwnedMap(mapID)
	if err != nil {
		return nil, err
	}
	list, current, err := e.findStakeholder(mapID, id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	fn(next)
	next.ID = current.ID
	next.MapID = current.MapID
	next.Created = current.Created
	next.Interactions = current.Interactions
	if next.Category == "" {
		next.Category = models.DefaultCategory
	}
	next.Touch()
	if err := models.ValidateStakeholder(next); err != nil {
		return nil, err
	}

	replaceStakeholder(list, next)
	if err := e.local.SaveStakeholders(mapID, list); err != nil {
		return nil, err
	}
	if err := e.touchMap(maps, m); err != nil {
		return nil, err
	}

	e.mirrorStakeholder(next)
	e.mirrorMap(m)
	return next, nil
}

// DeleteStakeholder removes a stakeholder from its map.
func (e *Engine) DeleteStakeholder(mapID, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	maps, m, err := e.findOwnedMap(mapID)
	if err != nil {
		return err
	}
	list, _, err := e.findStakeholder(mapID, id)
	if err != nil {
		return err
	}

	kept := make([]*models.Stakeholder, 0, len(list)-1)
	for _, st := range list {
		if st.ID != id {
			kept = append(kept, st)
		}
	}
	if err := e.local.SaveStakeholders(mapID, kept); err != nil {
		return err
	}
	if err := e.touchMap(maps, m); err != nil {
		return err
	}

	e.enqueueMirror("delete stakeholder", id, func(ctx context.Context, s cloud.Store) error {
		return s.DeleteStakeholder(ctx, id)
	})
	e.mirrorMap(m)
	return nil
}

// AddInteraction logs an interaction at the head of a stakeholder's
// history. Only the stakeholder's updated time changes.
func (e *Engine) AddInteraction(mapID, stakeholderID, text string, date time.Time) (*models.Interaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, _, err := e.findOwnedMap(mapID); err != nil {
		return nil, err
	}
	list, st, err := e.findStakeholder(mapID, stakeholderID)
	if err != nil {
		return nil, err
	}
	in, err := models.NewInteraction(text, date)
	if err != nil {
		return nil, err
	}

	st.PrependInteraction(*in)
	if err := e.local.SaveStakeholders(mapID, list); err != nil {
		return nil, err
	}

	e.mirrorStakeholder(st)
	return in, nil
}

// touchMap refreshes m.Updated in maps and saves the list.
func (e *Engine) touchMap(maps []*models.Map, m *models.Map) error {
	m.Touch()
	return e.local.SaveMaps(maps)
}

func replaceMap(maps []*models.Map, m *models.Map) {
	for i := range maps {
		if maps[i].ID == m.ID {
			maps[i] = m
			return
		}
	}
}

func replaceStakeholder(list []*models.Stakeholder, st *models.Stakeholder) {
	for i := range list {
		if list[i].ID == st.ID {
			list[i] = st
			return
		}
	}
}
