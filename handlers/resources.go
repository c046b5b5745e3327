// ABOUTME: MCP resource handlers for exposing stakeholder maps
// ABOUTME: Provides read-only access to the map list and to one map with its stakeholders via URI
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/stakemap/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const resourceScheme = "stakemap://"

type ResourceHandlers struct {
	engine *sync.Engine
}

func NewResourceHandlers(engine *sync.Engine) *ResourceHandlers {
	return &ResourceHandlers{engine: engine}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(_ context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, resourceScheme), "/")
	if parts[0] != "maps" {
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}
	if len(parts) == 1 || parts[1] == "" {
		return h.readAllMaps(uri)
	}
	return h.readMap(uri, parts[1])
}

func (h *ResourceHandlers) readAllMaps(uri string) (*mcp.ReadResourceResult, error) {
	current := h.engine.CurrentMapID()
	maps := h.engine.ListMaps()
	out := make([]MapOutput, 0, len(maps))
	for _, m := range maps {
		out = append(out, mapToOutput(m, current))
	}
	return jsonResource(uri, out)
}

type mapDetail struct {
	Map          MapOutput           `json:"map"`
	Stakeholders []StakeholderOutput `json:"stakeholders"`
}

func (h *ResourceHandlers) readMap(uri, id string) (*mcp.ReadResourceResult, error) {
	m, err := h.engine.GetMap(id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch map: %w", err)
	}
	list, err := h.engine.GetStakeholders(id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stakeholders: %w", err)
	}

	detail := mapDetail{
		Map:          mapToOutput(m, h.engine.CurrentMapID()),
		Stakeholders: make([]StakeholderOutput, 0, len(list)),
	}
	for _, st := range list {
		detail.Stakeholders = append(detail.Stakeholders, stakeholderToOutput(st))
	}
	return jsonResource(uri, detail)
}

func jsonResource(uri string, v interface{}) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
