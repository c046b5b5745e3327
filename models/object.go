// ABOUTME: Document conversion for Map, Stakeholder, and Interaction
// ABOUTME: ToObject/FromObject round trip preserves id and created timestamps
package models

import (
	"fmt"
	"math"
	"time"
)

// Document field names shared by the local and cloud stores.
const (
	FieldID            = "id"
	FieldName          = "name"
	FieldDescription   = "description"
	FieldCreated       = "created"
	FieldUpdated       = "updated"
	FieldOwnerID       = "ownerId"
	FieldMapID         = "mapId"
	FieldInfluence     = "influence"
	FieldImpact        = "impact"
	FieldRelationship  = "relationship"
	FieldCategory      = "category"
	FieldInterests     = "interests"
	FieldContribution  = "contribution"
	FieldRisk          = "risk"
	FieldCommunication = "communication"
	FieldStrategy      = "strategy"
	FieldMeasurement   = "measurement"
	FieldInteractions  = "interactions"
	FieldDate          = "date"
	FieldText          = "text"
)

// ToObject converts the map to a plain document.
func (m *Map) ToObject() map[string]interface{} {
	obj := map[string]interface{}{
		FieldID:          m.ID,
		FieldName:        m.Name,
		FieldDescription: m.Description,
		FieldCreated:     formatTime(m.Created),
		FieldUpdated:     formatTime(m.Updated),
		FieldOwnerID:     nil,
	}
	if m.OwnerID != "" {
		obj[FieldOwnerID] = m.OwnerID
	}
	return obj
}

// MapFromObject rebuilds a map from a document. A present id or created
// timestamp is kept; missing ones are minted.
func MapFromObject(obj map[string]interface{}) (*Map, error) {
	m := &Map{
		ID:          stringField(obj, FieldID),
		Name:        stringField(obj, FieldName),
		Description: stringField(obj, FieldDescription),
		OwnerID:     stringField(obj, FieldOwnerID),
	}

	var err error
	if m.Created, err = timeField(obj, FieldCreated); err != nil {
		return nil, err
	}
	if m.Updated, err = timeField(obj, FieldUpdated); err != nil {
		return nil, err
	}
	fillIdentity(&m.ID, &m.Created, &m.Updated)

	if err := ValidateMap(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ToObject converts the stakeholder to a plain document.
func (s *Stakeholder) ToObject() map[string]interface{} {
	interactions := make([]interface{}, 0, len(s.Interactions))
	for i := range s.Interactions {
		interactions = append(interactions, s.Interactions[i].ToObject())
	}

	return map[string]interface{}{
		FieldID:            s.ID,
		FieldMapID:         s.MapID,
		FieldName:          s.Name,
		FieldInfluence:     scoreValue(s.Influence),
		FieldImpact:        scoreValue(s.Impact),
		FieldRelationship:  scoreValue(s.Relationship),
		FieldCategory:      s.Category,
		FieldInterests:     s.Interests,
		FieldContribution:  s.Contribution,
		FieldRisk:          s.Risk,
		FieldCommunication: s.Communication,
		FieldStrategy:      s.Strategy,
		FieldMeasurement:   s.Measurement,
		FieldInteractions:  interactions,
		FieldCreated:       formatTime(s.Created),
		FieldUpdated:       formatTime(s.Updated),
	}
}

// StakeholderFromObject rebuilds a stakeholder from a document and validates it.
func StakeholderFromObject(obj map[string]interface{}) (*Stakeholder, error) {
	s := &Stakeholder{
		ID:            stringField(obj, FieldID),
		MapID:         stringField(obj, FieldMapID),
		Name:          stringField(obj, FieldName),
		Category:      stringField(obj, FieldCategory),
		Interests:     stringField(obj, FieldInterests),
		Contribution:  stringField(obj, FieldContribution),
		Risk:          stringField(obj, FieldRisk),
		Communication: stringField(obj, FieldCommunication),
		Strategy:      stringField(obj, FieldStrategy),
		Measurement:   stringField(obj, FieldMeasurement),
		Interactions:  []Interaction{},
	}

	var err error
	if s.Influence, err = scoreField(obj, FieldInfluence); err != nil {
		return nil, err
	}
	if s.Impact, err = scoreField(obj, FieldImpact); err != nil {
		return nil, err
	}
	if s.Relationship, err = scoreField(obj, FieldRelationship); err != nil {
		return nil, err
	}
	if s.Created, err = timeField(obj, FieldCreated); err != nil {
		return nil, err
	}
	if s.Updated, err = timeField(obj, FieldUpdated); err != nil {
		return nil, err
	}
	fillIdentity(&s.ID, &s.Created, &s.Updated)
	if s.Category == "" {
		s.Category = DefaultCategory
	}

	switch raw := obj[FieldInteractions].(type) {
	case nil:
	case []interface{}:
		for _, item := range raw {
			io, ok := item.(map[string]interface{})
			if !ok {
				return nil, &ValidationError{Field: FieldInteractions, Reason: "must be a list of objects"}
			}
			in, err := InteractionFromObject(io)
			if err != nil {
				return nil, err
			}
			s.Interactions = append(s.Interactions, *in)
		}
	case []map[string]interface{}:
		for _, io := range raw {
			in, err := InteractionFromObject(io)
			if err != nil {
				return nil, err
			}
			s.Interactions = append(s.Interactions, *in)
		}
	default:
		return nil, &ValidationError{Field: FieldInteractions, Reason: "must be a list"}
	}

	if err := ValidateStakeholder(s); err != nil {
		return nil, err
	}
	return s, nil
}

// ToObject converts the interaction to a plain document.
func (in *Interaction) ToObject() map[string]interface{} {
	return map[string]interface{}{
		FieldID:   in.ID,
		FieldDate: formatTime(in.Date),
		FieldText: in.Text,
	}
}

// InteractionFromObject rebuilds an interaction from a document.
func InteractionFromObject(obj map[string]interface{}) (*Interaction, error) {
	date, err := timeField(obj, FieldDate)
	if err != nil {
		return nil, err
	}
	in := &Interaction{
		ID:   stringField(obj, FieldID),
		Date: date,
		Text: stringField(obj, FieldText),
	}
	if in.ID == "" {
		in.ID = NewID()
	}
	if in.Date.IsZero() {
		in.Date = now()
	}
	if err := ValidateInteraction(in); err != nil {
		return nil, err
	}
	return in, nil
}

func fillIdentity(id *string, created, updated *time.Time) {
	if *id == "" {
		*id = NewID()
	}
	if created.IsZero() {
		*created = now()
	}
	if updated.IsZero() {
		*updated = *created
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func stringField(obj map[string]interface{}, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}

func timeField(obj map[string]interface{}, key string) (time.Time, error) {
	switch v := obj[key].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v.UTC(), nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, &ValidationError{Field: key, Reason: "must be an RFC3339 timestamp"}
		}
		return t.UTC(), nil
	default:
		return time.Time{}, &ValidationError{Field: key, Reason: fmt.Sprintf("unexpected type %T", v)}
	}
}

func scoreValue(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// scoreField accepts the numeric shapes a decoded document can carry.
func scoreField(obj map[string]interface{}, key string) (*int, error) {
	var n int
	switch v := obj[key].(type) {
	case nil:
		return nil, nil
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return nil, &ValidationError{Field: key, Reason: "must be an integer"}
		}
		n = int(v)
	default:
		return nil, &ValidationError{Field: key, Reason: fmt.Sprintf("unexpected type %T", v)}
	}
	if n < MinScore || n > MaxScore {
		return nil, &ValidationError{Field: key, Reason: fmt.Sprintf("must be between %d and %d", MinScore, MaxScore)}
	}
	return &n, nil
}
