// ABOUTME: Local store persisting maps, stakeholders, and the current map id
// ABOUTME: Reads degrade to empty results; writes return StoreError so callers can fail fast
package db

import (
	"encoding/json"
	"errors"

	"github.com/harperreed/stakemap/models"
	"go.uber.org/zap"
)

// Storage keys.
const (
	KeyMaps         = "maps"
	KeyCurrentMapID = "current_map_id"
	stakeholdersKey = "stakeholders_"
)

// StakeholdersKey returns the key holding a map's stakeholder array.
func StakeholdersKey(mapID string) string {
	return stakeholdersKey + mapID
}

// LocalStore is the on-device cache of maps and stakeholders. It is used by
// a single engine and is not safe for concurrent writers.
type LocalStore struct {
	backend Backend
	logger  *zap.Logger
}

func NewLocalStore(backend Backend, logger *zap.Logger) *LocalStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStore{backend: backend, logger: logger}
}

// Open opens a local store on the named backend under dataDir.
func Open(kind, dataDir string, logger *zap.Logger) (*LocalStore, error) {
	backend, err := OpenBackend(kind, dataDir)
	if err != nil {
		return nil, err
	}
	return NewLocalStore(backend, logger), nil
}

func (s *LocalStore) Close() error {
	return s.backend.Close()
}

// GetAllMaps returns every cached map in stored order.
func (s *LocalStore) GetAllMaps() []*models.Map {
	var maps []*models.Map
	if !s.readJSON(KeyMaps, &maps) || maps == nil {
		return []*models.Map{}
	}
	return maps
}

// SaveMaps replaces the cached map list.
func (s *LocalStore) SaveMaps(maps []*models.Map) error {
	if maps == nil {
		maps = []*models.Map{}
	}
	return s.writeJSON("save maps", KeyMaps, maps)
}

// GetStakeholders returns the cached stakeholders for a map.
func (s *LocalStore) GetStakeholders(mapID string) []*models.Stakeholder {
	var list []*models.Stakeholder
	if !s.readJSON(StakeholdersKey(mapID), &list) || list == nil {
		return []*models.Stakeholder{}
	}
	for _, st := range list {
		if st.Interactions == nil {
			st.Interactions = []models.Interaction{}
		}
	}
	return list
}

// SaveStakeholders replaces a map's cached stakeholder array.
func (s *LocalStore) SaveStakeholders(mapID string, list []*models.Stakeholder) error {
	if list == nil {
		list = []*models.Stakeholder{}
	}
	return s.writeJSON("save stakeholders", StakeholdersKey(mapID), list)
}

// GetCurrentMapID returns the selected map id, or "" when none is set.
func (s *LocalStore) GetCurrentMapID() string {
	data, err := s.backend.Get(KeyCurrentMapID)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.logger.Error("failed to read current map id", zap.Error(err))
		}
		return ""
	}
	return string(data)
}

func (s *LocalStore) SetCurrentMapID(id string) error {
	if err := s.backend.Set(KeyCurrentMapID, []byte(id)); err != nil {
		s.logger.Error("failed to write current map id", zap.String("map_id", id), zap.Error(err))
		return &models.StoreError{Op: "set current map", Err: err}
	}
	return nil
}

func (s *LocalStore) ClearCurrentMapID() error {
	if err := s.backend.Delete(KeyCurrentMapID); err != nil {
		s.logger.Error("failed to clear current map id", zap.Error(err))
		return &models.StoreError{Op: "clear current map", Err: err}
	}
	return nil
}

// DeleteMapAndStakeholders removes a map from the list and drops its
// stakeholder array. Deleting an unknown map is not an error.
func (s *LocalStore) DeleteMapAndStakeholders(mapID string) error {
	maps := s.GetAllMaps()
	kept := make([]*models.Map, 0, len(maps))
	for _, m := range maps {
		if m.ID != mapID {
			kept = append(kept, m)
		}
	}
	if err := s.SaveMaps(kept); err != nil {
		return err
	}
	if err := s.backend.Delete(StakeholdersKey(mapID)); err != nil {
		s.logger.Error("failed to delete stakeholders", zap.String("map_id", mapID), zap.Error(err))
		return &models.StoreError{Op: "delete stakeholders", Err: err}
	}
	return nil
}

// Reset drops every cached key.
func (s *LocalStore) Reset() error {
	if err := s.backend.DropAll(); err != nil {
		s.logger.Error("failed to reset local store", zap.Error(err))
		return &models.StoreError{Op: "reset", Err: err}
	}
	return nil
}

func (s *LocalStore) readJSON(key string, v interface{}) bool {
	data, err := s.backend.Get(key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.logger.Error("failed to read local key", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Error("failed to decode local key", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *LocalStore) writeJSON(op, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &models.StoreError{Op: op, Err: err}
	}
	if err := s.backend.Set(key, data); err != nil {
		s.logger.Error("failed to write local key", zap.String("key", key), zap.Error(err))
		return &models.StoreError{Op: op, Err: err}
	}
	return nil
}
