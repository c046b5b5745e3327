// ABOUTME: Map MCP tool handlers
// ABOUTME: Implements list_maps, create_map, update_map, and delete_map tools
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/harperreed/stakemap/models"
	"github.com/harperreed/stakemap/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type MapHandlers struct {
	engine *sync.Engine
}

func NewMapHandlers(engine *sync.Engine) *MapHandlers {
	return &MapHandlers{engine: engine}
}

type ListMapsInput struct{}

type CreateMapInput struct {
	Name        string `json:"name" jsonschema:"Map name (required)"`
	Description string `json:"description,omitempty" jsonschema:"What the map is for"`
}

type UpdateMapInput struct {
	MapID       string  `json:"map_id" jsonschema:"ID of the map to update (required)"`
	Name        *string `json:"name,omitempty" jsonschema:"New name"`
	Description *string `json:"description,omitempty" jsonschema:"New description"`
}

type DeleteMapInput struct {
	MapID string `json:"map_id" jsonschema:"ID of the map to delete (required)"`
}

type MapOutput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	Current     bool   `json:"current"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type ListMapsOutput struct {
	Maps         []MapOutput `json:"maps"`
	CurrentMapID string      `json:"current_map_id,omitempty"`
}

type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func (h *MapHandlers) ListMaps(_ context.Context, _ *mcp.CallToolRequest, _ ListMapsInput) (*mcp.CallToolResult, ListMapsOutput, error) {
	current := h.engine.CurrentMapID()
	maps := h.engine.ListMaps()

	out := ListMapsOutput{Maps: make([]MapOutput, 0, len(maps)), CurrentMapID: current}
	for _, m := range maps {
		out.Maps = append(out.Maps, mapToOutput(m, current))
	}
	return nil, out, nil
}

func (h *MapHandlers) CreateMap(_ context.Context, _ *mcp.CallToolRequest, input CreateMapInput) (*mcp.CallToolResult, MapOutput, error) {
	m, err := h.engine.CreateMap(models.MapInput{Name: input.Name, Description: input.Description})
	if err != nil {
		return nil, MapOutput{}, toolError("create map", err)
	}
	return nil, mapToOutput(m, h.engine.CurrentMapID()), nil
}

func (h *MapHandlers) UpdateMap(_ context.Context, _ *mcp.CallToolRequest, input UpdateMapInput) (*mcp.CallToolResult, MapOutput, error) {
	if input.MapID == "" {
		return nil, MapOutput{}, errors.New("map_id is required")
	}

	m, err := h.engine.UpdateMap(input.MapID, func(m *models.Map) {
		if input.Name != nil {
			m.Name = *input.Name
		}
		if input.Description != nil {
			m.Description = *input.Description
		}
	})
	if err != nil {
		return nil, MapOutput{}, toolError("update map", err)
	}
	return nil, mapToOutput(m, h.engine.CurrentMapID()), nil
}

func (h *MapHandlers) DeleteMap(_ context.Context, _ *mcp.CallToolRequest, input DeleteMapInput) (*mcp.CallToolResult, DeleteOutput, error) {
	if input.MapID == "" {
		return nil, DeleteOutput{}, errors.New("map_id is required")
	}
	if err := h.engine.DeleteMap(input.MapID); err != nil {
		return nil, DeleteOutput{}, toolError("delete map", err)
	}
	return nil, DeleteOutput{ID: input.MapID, Deleted: true}, nil
}

func mapToOutput(m *models.Map, currentID string) MapOutput {
	return MapOutput{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		OwnerID:     m.OwnerID,
		Current:     m.ID == currentID,
		CreatedAt:   m.Created.Format(time.RFC3339),
		UpdatedAt:   m.Updated.Format(time.RFC3339),
	}
}
