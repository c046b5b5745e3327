// ABOUTME: Stakeholder MCP tool handlers
// ABOUTME: Implements list, add, update, delete, and add_interaction tools with derived quadrant fields
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/stakemap/models"
	"github.com/harperreed/stakemap/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type StakeholderHandlers struct {
	engine *sync.Engine
}

func NewStakeholderHandlers(engine *sync.Engine) *StakeholderHandlers {
	return &StakeholderHandlers{engine: engine}
}

type ListStakeholdersInput struct {
	MapID string `json:"map_id,omitempty" jsonschema:"Map ID (defaults to the current map)"`
}

// stakeholderFields is the editable part of a stakeholder shared by the
// add and update inputs.
type stakeholderFields struct {
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
}

type AddStakeholderInput struct {
	MapID         string `json:"map_id,omitempty" jsonschema:"Map ID (defaults to the current map)"`
	Name          string `json:"name" jsonschema:"Stakeholder name (required)"`
	Influence     *int   `json:"influence,omitempty" jsonschema:"Influence score 1-10"`
	Impact        *int   `json:"impact,omitempty" jsonschema:"Impact score 1-10"`
	Relationship  *int   `json:"relationship,omitempty" jsonschema:"Relationship score 1-10"`
	Category      string `json:"category,omitempty" jsonschema:"Category (defaults to other)"`
	Interests     string `json:"interests,omitempty" jsonschema:"What the stakeholder cares about"`
	Contribution  string `json:"contribution,omitempty" jsonschema:"What they contribute"`
	Risk          string `json:"risk,omitempty" jsonschema:"Risk they pose"`
	Communication string `json:"communication,omitempty" jsonschema:"Preferred communication"`
	Strategy      string `json:"strategy,omitempty" jsonschema:"Engagement strategy"`
	Measurement   string `json:"measurement,omitempty" jsonschema:"How success is measured"`
}

type UpdateStakeholderInput struct {
	MapID         string `json:"map_id,omitempty" jsonschema:"Map ID (defaults to the current map)"`
	StakeholderID string `json:"stakeholder_id" jsonschema:"Stakeholder ID (required)"`
	Name          string `json:"name,omitempty" jsonschema:"New name"`
	Influence     *int   `json:"influence,omitempty" jsonschema:"Influence score 1-10"`
	Impact        *int   `json:"impact,omitempty" jsonschema:"Impact score 1-10"`
	Relationship  *int   `json:"relationship,omitempty" jsonschema:"Relationship score 1-10"`
	Category      string `json:"category,omitempty" jsonschema:"Category (defaults to other)"`
	Interests     string `json:"interests,omitempty" jsonschema:"What the stakeholder cares about"`
	Contribution  string `json:"contribution,omitempty" jsonschema:"What they contribute"`
	Risk          string `json:"risk,omitempty" jsonschema:"Risk they pose"`
	Communication string `json:"communication,omitempty" jsonschema:"Preferred communication"`
	Strategy      string `json:"strategy,omitempty" jsonschema:"Engagement strategy"`
	Measurement   string `json:"measurement,omitempty" jsonschema:"How success is measured"`
	// ClearScores names scores to unset: influence, impact, relationship.
	ClearScores []string `json:"clear_scores,omitempty" jsonschema:"Scores to unset (influence, impact, relationship)"`
}

func (in AddStakeholderInput) fields() stakeholderFields {
	return stakeholderFields{
		Name: in.Name, Influence: in.Influence, Impact: in.Impact, Relationship: in.Relationship,
		Category: in.Category, Interests: in.Interests, Contribution: in.Contribution, Risk: in.Risk,
		Communication: in.Communication, Strategy: in.Strategy, Measurement: in.Measurement,
	}
}

func (in UpdateStakeholderInput) fields() stakeholderFields {
	return stakeholderFields{
		Name: in.Name, Influence: in.Influence, Impact: in.Impact, Relationship: in.Relationship,
		Category: in.Category, Interests: in.Interests, Contribution: in.Contribution, Risk: in.Risk,
		Communication: in.Communication, Strategy: in.Strategy, Measurement: in.Measurement,
	}
}

type DeleteStakeholderInput struct {
	MapID         string `json:"map_id,omitempty" jsonschema:"Map ID (defaults to the current map)"`
	StakeholderID string `json:"stakeholder_id" jsonschema:"Stakeholder ID (required)"`
}

type AddInteractionInput struct {
	MapID         string `json:"map_id,omitempty" jsonschema:"Map ID (defaults to the current map)"`
	StakeholderID string `json:"stakeholder_id" jsonschema:"Stakeholder ID (required)"`
	Text          string `json:"text" jsonschema:"What happened (required)"`
	Date          string `json:"date,omitempty" jsonschema:"When it happened, YYYY-MM-DD or RFC3339 (defaults to now)"`
}

type InteractionOutput struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Text string `json:"text"`
}

type StakeholderOutput struct {
	ID                  string              `json:"id"`
	MapID               string              `json:"map_id"`
	Name                string              `json:"name"`
	Influence           *int                `json:"influence,omitempty"`
	Impact              *int                `json:"impact,omitempty"`
	Relationship        *int                `json:"relationship,omitempty"`
	Quadrant            int                 `json:"quadrant,omitempty"`
	QuadrantLabel       string              `json:"quadrant_label,omitempty"`
	RelationshipQuality string              `json:"relationship_quality,omitempty"`
	Category            string              `json:"category"`
	Interests           string              `json:"interests,omitempty"`
	Contribution        string              `json:"contribution,omitempty"`
	Risk                string              `json:"risk,omitempty"`
	Communication       string              `json:"communication,omitempty"`
	Strategy            string              `json:"strategy,omitempty"`
	Measurement         string              `json:"measurement,omitempty"`
	Interactions        []InteractionOutput `json:"interactions"`
	CreatedAt           string              `json:"created_at"`
	UpdatedAt           string              `json:"updated_at"`
}

type ListStakeholdersOutput struct {
	MapID        string              `json:"map_id"`
	Stakeholders []StakeholderOutput `json:"stakeholders"`
}

func (h *StakeholderHandlers) ListStakeholders(_ context.Context, _ *mcp.CallToolRequest, input ListStakeholdersInput) (*mcp.CallToolResult, ListStakeholdersOutput, error) {
	mapID, err := resolveMapID(h.engine, input.MapID)
	if err != nil {
		return nil, ListStakeholdersOutput{}, err
	}

	list, err := h.engine.GetStakeholders(mapID)
	if err != nil {
		return nil, ListStakeholdersOutput{}, toolError("list stakeholders", err)
	}

	out := ListStakeholdersOutput{MapID: mapID, Stakeholders: make([]StakeholderOutput, 0, len(list))}
	for _, st := range list {
		out.Stakeholders = append(out.Stakeholders, stakeholderToOutput(st))
	}
	return nil, out, nil
}

func (h *StakeholderHandlers) AddStakeholder(_ context.Context, _ *mcp.CallToolRequest, input AddStakeholderInput) (*mcp.CallToolResult, StakeholderOutput, error) {
	mapID, err := resolveMapID(h.engine, input.MapID)
	if err != nil {
		return nil, StakeholderOutput{}, err
	}

	f := input.fields()
	st, err := h.engine.AddStakeholder(models.StakeholderInput{
		MapID:         mapID,
		Name:          f.Name,
		Influence:     f.Influence,
		Impact:        f.Impact,
		Relationship:  f.Relationship,
		Category:      f.Category,
		Interests:     f.Interests,
		Contribution:  f.Contribution,
		Risk:          f.Risk,
		Communication: f.Communication,
		Strategy:      f.Strategy,
		Measurement:   f.Measurement,
	})
	if err != nil {
		return nil, StakeholderOutput{}, toolError("add stakeholder", err)
	}
	return nil, stakeholderToOutput(st), nil
}

func (h *StakeholderHandlers) UpdateStakeholder(_ context.Context, _ *mcp.CallToolRequest, input UpdateStakeholderInput) (*mcp.CallToolResult, StakeholderOutput, error) {
	if input.StakeholderID == "" {
		return nil, StakeholderOutput{}, errors.New("stakeholder_id is required")
	}
	mapID, err := resolveMapID(h.engine, input.MapID)
	if err != nil {
		return nil, StakeholderOutput{}, err
	}
	for _, name := range input.ClearScores {
		switch name {
		case models.FieldInfluence, models.FieldImpact, models.FieldRelationship:
		default:
			return nil, StakeholderOutput{}, fmt.Errorf("unknown score %q in clear_scores", name)
		}
	}

	st, err := h.engine.UpdateStakeholder(mapID, input.StakeholderID, func(s *models.Stakeholder) {
		applyFields(s, input.fields())
		for _, name := range input.ClearScores {
			switch name {
			case models.FieldInfluence:
				s.Influence = nil
			case models.FieldImpact:
				s.Impact = nil
			case models.FieldRelationship:
				s.Relationship = nil
			}
		}
	})
	if err != nil {
		return nil, StakeholderOutput{}, toolError("update stakeholder", err)
	}
	return nil, stakeholderToOutput(st), nil
}

func (h *StakeholderHandlers) DeleteStakeholder(_ context.Context, _ *mcp.CallToolRequest, input DeleteStakeholderInput) (*mcp.CallToolResult, DeleteOutput, error) {
	if input.StakeholderID == "" {
		return nil, DeleteOutput{}, errors.New("stakeholder_id is required")
	}
	mapID, err := resolveMapID(h.engine, input.MapID)
	if err != nil {
		return nil, DeleteOutput{}, err
	}
	if err := h.engine.DeleteStakeholder(mapID, input.StakeholderID); err != nil {
		return nil, DeleteOutput{}, toolError("delete stakeholder", err)
	}
	return nil, DeleteOutput{ID: input.StakeholderID, Deleted: true}, nil
}

func (h *StakeholderHandlers) AddInteraction(_ context.Context, _ *mcp.CallToolRequest, input AddInteractionInput) (*mcp.CallToolResult, InteractionOutput, error) {
	if input.StakeholderID == "" {
		return nil, InteractionOutput{}, errors.New("stakeholder_id is required")
	}
	mapID, err := resolveMapID(h.engine, input.MapID)
	if err != nil {
		return nil, InteractionOutput{}, err
	}
	date, err := ParseDate(input.Date)
	if err != nil {
		return nil, InteractionOutput{}, err
	}

	in, err := h.engine.AddInteraction(mapID, input.StakeholderID, input.Text, date)
	if err != nil {
		return nil, InteractionOutput{}, toolError("add interaction", err)
	}
	return nil, interactionToOutput(*in), nil
}

// applyFields copies the non-empty fields of f onto s.
func applyFields(s *models.Stakeholder, f stakeholderFields) {
	if f.Name != "" {
		s.Name = f.Name
	}
	if f.Influence != nil {
		s.Influence = f.Influence
	}
	if f.Impact != nil {
		s.Impact = f.Impact
	}
	if f.Relationship != nil {
		s.Relationship = f.Relationship
	}
	setIfNotEmpty(&s.Category, f.Category)
	setIfNotEmpty(&s.Interests, f.Interests)
	setIfNotEmpty(&s.Contribution, f.Contribution)
	setIfNotEmpty(&s.Risk, f.Risk)
	setIfNotEmpty(&s.Communication, f.Communication)
	setIfNotEmpty(&s.Strategy, f.Strategy)
	setIfNotEmpty(&s.Measurement, f.Measurement)
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ParseDate accepts YYYY-MM-DD or RFC3339. Empty means now.
func ParseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC3339", v)
	}
	return t, nil
}

func stakeholderToOutput(st *models.Stakeholder) StakeholderOutput {
	out := StakeholderOutput{
		ID:            st.ID,
		MapID:         st.MapID,
		Name:          st.Name,
		Influence:     st.Influence,
		Impact:        st.Impact,
		Relationship:  st.Relationship,
		Category:      st.Category,
		Interests:     st.Interests,
		Contribution:  st.Contribution,
		Risk:          st.Risk,
		Communication: st.Communication,
		Strategy:      st.Strategy,
		Measurement:   st.Measurement,
		Interactions:  make([]InteractionOutput, 0, len(st.Interactions)),
		CreatedAt:     st.Created.Format(time.RFC3339),
		UpdatedAt:     st.Updated.Format(time.RFC3339),
	}
	if q, ok := st.Quadrant(); ok {
		out.Quadrant = q
		out.QuadrantLabel = models.QuadrantLabel(q)
	}
	if quality, ok := st.RelationshipQuality(); ok {
		out.RelationshipQuality = quality
	}
	for _, in := range st.Interactions {
		out.Interactions = append(out.Interactions, interactionToOutput(in))
	}
	return out
}

func interactionToOutput(in models.Interaction) InteractionOutput {
	return InteractionOutput{ID: in.ID, Date: in.Date.Format(time.RFC3339), Text: in.Text}
}
