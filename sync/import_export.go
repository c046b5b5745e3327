// ABOUTME: JSON export and import of a single map with its stakeholders
// ABOUTME: Imports always mint fresh ids so a payload can be loaded any number of times
package sync

import (
	"encoding/json"
	"fmt"

	"github.com/harperreed/stakemap/models"
)

// ExportVersion is written into every export payload.
const ExportVersion = 1

// ExportPayload is the portable form of one map.
type ExportPayload struct {
	Version      int                   `json:"version"`
	Map          *models.Map           `json:"map"`
	Stakeholders []*models.Stakeholder `json:"stakeholders"`
}

// ParseExport decodes a payload produced by ExportData.
func ParseExport(data []byte) (*ExportPayload, error) {
	var p ExportPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	if p.Map == nil {
		return nil, &models.ValidationError{Field: "map", Reason: "is required"}
	}
	if p.Version > ExportVersion {
		return nil, &models.ValidationError{Field: "version", Reason: fmt.Sprintf("unsupported version %d", p.Version)}
	}
	return &p, nil
}

// ExportData returns a copy of mapID and its stakeholders.
func (e *Engine) ExportData(mapID string) (*ExportPayload, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, m, err := e.findMap(mapID)
	if err != nil {
		return nil, err
	}
	return &ExportPayload{
		Version:      ExportVersion,
		Map:          m,
		Stakeholders: e.local.GetStakeholders(mapID),
	}, nil
}

// ImportData loads p as a brand-new map. Map, stakeholder, and interaction
// ids in the payload are ignored. Nothing is written unless every entity
// in the payload is valid.
func (e *Engine) ImportData(p *ExportPayload) (*models.Map, error) {
	if p == nil || p.Map == nil {
		return nil, &models.ValidationError{Field: "map", Reason: "is required"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	owner, _ := e.authenticatedUser()
	m, err := models.NewMap(models.MapInput{
		Name:        p.Map.Name,
		Description: p.Map.Description,
		OwnerID:     owner,
	})
	if err != nil {
		return nil, err
	}

	list := make([]*models.Stakeholder, 0, len(p.Stakeholders))
	for _, src := range p.Stakeholders {
		st, err := importStakeholder(m.ID, src)
		if err != nil {
			return nil, err
		}
		list = append(list, st)
	}

	if err := e.local.SaveMaps(append(e.local.GetAllMaps(), m)); err != nil {
		return nil, err
	}
	if err := e.local.SaveStakeholders(m.ID, list); err != nil {
		return nil, err
	}
	if e.local.GetCurrentMapID() == "" {
		if err := e.local.SetCurrentMapID(m.ID); err != nil {
			return nil, err
		}
	}

	e.mirrorMap(m)
	for _, st := range list {
		e.mirrorStakeholder(st)
	}
	return m, nil
}

func importStakeholder(mapID string, src *models.Stakeholder) (*models.Stakeholder, error) {
	if src == nil {
		return nil, &models.ValidationError{Field: "stakeholders", Reason: "contains an empty entry"}
	}

	interactions := make([]models.Interaction, 0, len(src.Interactions))
	for _, old := range src.Interactions {
		in, err := models.NewInteraction(old.Text, old.Date)
		if err != nil {
			return nil, err
		}
		interactions = append(interactions, *in)
	}

	return models.NewStakeholder(models.StakeholderInput{
		MapID:         mapID,
		Name:          src.Name,
		Influence:     src.Influence,
		Impact:        src.Impact,
		Relationship:  src.Relationship,
		Category:      src.Category,
		Interests:     src.Interests,
		Contribution:  src.Contribution,
		Risk:          src.Risk,
		Communication: src.Communication,
		Strategy:      src.Strategy,
		Measurement:   src.Measurement,
		Interactions:  interactions,
	})
}
