// ABOUTME: MCP server assembly for the stakeholder map tools and resources
// ABOUTME: Registers every tool handler against one engine and optional usage limiter
package handlers

import (
	"errors"
	"fmt"

	"github.com/harperreed/stakemap/sync"
	"github.com/harperreed/stakemap/usage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer builds an MCP server over engine. limiter may be nil.
func NewServer(engine *sync.Engine, limiter *usage.Limiter, version string) *mcp.Server {
	mapHandlers := NewMapHandlers(engine)
	stakeholderHandlers := NewStakeholderHandlers(engine)
	usageHandlers := NewUsageHandlers(engine, limiter)
	resourceHandlers := NewResourceHandlers(engine)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "stakemap",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_maps",
		Description: "List stakeholder maps and the currently selected map",
	}, mapHandlers.ListMaps)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_map",
		Description: "Create a new stakeholder map",
	}, mapHandlers.CreateMap)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_map",
		Description: "Rename a map or change its description",
	}, mapHandlers.UpdateMap)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_map",
		Description: "Delete a map and all of its stakeholders",
	}, mapHandlers.DeleteMap)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_stakeholders",
		Description: "List stakeholders in a map with their quadrant and relationship quality",
	}, stakeholderHandlers.ListStakeholders)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_stakeholder",
		Description: "Add a stakeholder with optional influence, impact, and relationship scores (1-10)",
	}, stakeholderHandlers.AddStakeholder)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_stakeholder",
		Description: "Update a stakeholder's scores or notes",
	}, stakeholderHandlers.UpdateStakeholder)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_stakeholder",
		Description: "Remove a stakeholder from a map",
	}, stakeholderHandlers.DeleteStakeholder)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_interaction",
		Description: "Log an interaction with a stakeholder",
	}, stakeholderHandlers.AddInteraction)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_ai_limit",
		Description: "Check how many AI recommendation calls remain this week",
	}, usageHandlers.CheckAILimit)

	server.AddResource(&mcp.Resource{
		URI:         resourceScheme + "maps",
		Name:        "maps",
		Description: "All stakeholder maps",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: resourceScheme + "maps/{id}",
		Name:        "map",
		Description: "One map with its stakeholders",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	return server
}

// resolveMapID falls back to the current map when id is empty.
func resolveMapID(engine *sync.Engine, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if current := engine.CurrentMapID(); current != "" {
		return current, nil
	}
	return "", errors.New("map_id is required when no map is selected")
}

func toolError(op string, err error) error {
	return fmt.Errorf("failed to %s: %w", op, err)
}
