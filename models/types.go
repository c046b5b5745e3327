// ABOUTME: Data models for stakeholder maps
// ABOUTME: Defines Map, Stakeholder, and Interaction with constructors and derived accessors
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Score bounds for influence, impact, and relationship.
const (
	MinScore = 1
	MaxScore = 10
)

// DefaultCategory is assigned to stakeholders created without one.
const DefaultCategory = "other"

type Map struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	OwnerID     string    `json:"ownerId,omitempty"` // empty means anonymous, local-only
}

// IsAnonymous reports whether the map has never been promoted to an owner.
func (m *Map) IsAnonymous() bool {
	return m.OwnerID == ""
}

// Touch refreshes the updated timestamp.
func (m *Map) Touch() {
	m.Updated = now()
}

type Stakeholder struct {
	ID            string        `json:"id"`
	MapID         string        `json:"mapId" validate:"required"`
	Name          string        `json:"name" validate:"required"`
	Influence     *int          `json:"influence" validate:"omitempty,min=1,max=10"`
	Impact        *int          `json:"impact" validate:"omitempty,min=1,max=10"`
	Relationship  *int          `json:"relationship" validate:"omitempty,min=1,max=10"`
	Category      string        `json:"category"`
	Interests     string        `json:"interests"`
	Contribution  string        `json:"contribution"`
	Risk          string        `json:"risk"`
	Communication string        `json:"communication"`
	Strategy      string        `json:"strategy"`
	Measurement   string        `json:"measurement"`
	Interactions  []Interaction `json:"interactions"` // newest first
	Created       time.Time     `json:"created"`
	Updated       time.Time     `json:"updated"`
}

// Quadrant returns the engagement quadrant for the stakeholder's scores.
func (s *Stakeholder) Quadrant() (int, bool) {
	return Quadrant(s.Influence, s.Impact)
}

// RelationshipQuality returns the strength bucket for the relationship score.
func (s *Stakeholder) RelationshipQuality() (string, bool) {
	return RelationshipQuality(s.Relationship)
}

// Touch refreshes the updated timestamp.
func (s *Stakeholder) Touch() {
	s.Updated = now()
}

// PrependInteraction adds an interaction at the head of the list and touches the stakeholder.
func (s *Stakeholder) PrependInteraction(in Interaction) {
	s.Interactions = append([]Interaction{in}, s.Interactions...)
	s.Updated = now()
}

type Interaction struct {
	ID   string    `json:"id"`
	Date time.Time `json:"date"`
	Text string    `json:"text" validate:"required"`
}

// MapInput holds the caller-supplied fields for a new map.
type MapInput struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
}

// StakeholderInput holds the caller-supplied fields for a new stakeholder.
type StakeholderInput struct {
	ID            string
	MapID         string
	Name          string
	Influence     *int
	Impact        *int
	Relationship  *int
	Category      string
	Interests     string
	Contribution  string
	Risk          string
	Communication string
	Strategy      string
	Measurement   string
	Interactions  []Interaction
}

// NewID returns a new globally unique, time-ordered identifier.
func NewID() string {
	return ulid.Make().String()
}

// NewMap builds and validates a map, minting an id when none is given.
func NewMap(in MapInput) (*Map, error) {
	ts := now()
	m := &Map{
		ID:          in.ID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Created:     ts,
		Updated:     ts,
		OwnerID:     in.OwnerID,
	}
	if m.ID == "" {
		m.ID = NewID()
	}
	if err := ValidateMap(m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewStakeholder builds and validates a stakeholder, filling defaults.
func NewStakeholder(in StakeholderInput) (*Stakeholder, error) {
	ts := now()
	s := &Stakeholder{
		ID:            in.ID,
		MapID:         in.MapID,
		Name:          strings.TrimSpace(in.Name),
		Influence:     in.Influence,
		Impact:        in.Impact,
		Relationship:  in.Relationship,
		Category:      in.Category,
		Interests:     in.Interests,
		Contribution:  in.Contribution,
		Risk:          in.Risk,
		Communication: in.Communication,
		Strategy:      in.Strategy,
		Measurement:   in.Measurement,
		Interactions:  in.Interactions,
		Created:       ts,
		Updated:       ts,
	}
	if s.ID == "" {
		s.ID = NewID()
	}
	if s.Category == "" {
		s.Category = DefaultCategory
	}
	if s.Interactions == nil {
		s.Interactions = []Interaction{}
	}
	if err := ValidateStakeholder(s); err != nil {
		return nil, err
	}
	return s, nil
}

// NewInteraction builds an interaction dated now when date is zero.
func NewInteraction(text string, date time.Time) (*Interaction, error) {
	if date.IsZero() {
		date = now()
	}
	in := &Interaction{
		ID:   uuid.NewString(),
		Date: date.UTC(),
		Text: strings.TrimSpace(text),
	}
	if err := ValidateInteraction(in); err != nil {
		return nil, err
	}
	return in, nil
}

// Score is a convenience for building optional score fields.
func Score(v int) *int {
	return &v
}

func now() time.Time {
	return time.Now().UTC()
}

// Clone returns an independent copy of the map.
func (m *Map) Clone() *Map {
	cp := *m
	return &cp
}

// Clone returns a deep copy of the stakeholder.
func (s *Stakeholder) Clone() *Stakeholder {
	cp := *s
	cp.Influence = cloneScore(s.Influence)
	cp.Impact = cloneScore(s.Impact)
	cp.Relationship = cloneScore(s.Relationship)
	cp.Interactions = append([]Interaction(nil), s.Interactions...)
	if cp.Interactions == nil {
		cp.Interactions = []Interaction{}
	}
	return &cp
}

func cloneScore(v *int) *int {
	if v == nil {
		return nil
	}
	return Score(*v)
}
