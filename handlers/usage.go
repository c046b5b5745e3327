// ABOUTME: Usage quota MCP tool handler
// ABOUTME: Implements check_ai_limit for the signed-in user or an explicit user id
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/harperreed/stakemap/sync"
	"github.com/harperreed/stakemap/usage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type UsageHandlers struct {
	engine  *sync.Engine
	limiter *usage.Limiter
}

// NewUsageHandlers returns handlers for the quota tools. limiter may be nil
// when no cloud backend is configured.
func NewUsageHandlers(engine *sync.Engine, limiter *usage.Limiter) *UsageHandlers {
	return &UsageHandlers{engine: engine, limiter: limiter}
}

type CheckAILimitInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"User to check (defaults to the signed-in user)"`
}

type LimitOutput struct {
	UserID          string `json:"user_id"`
	HasReachedLimit bool   `json:"has_reached_limit"`
	CurrentUsage    int    `json:"current_usage"`
	Limit           int    `json:"limit,omitempty"`
	Unlimited       bool   `json:"unlimited"`
	ResetDate       string `json:"reset_date"`
}

func (h *UsageHandlers) CheckAILimit(ctx context.Context, _ *mcp.CallToolRequest, input CheckAILimitInput) (*mcp.CallToolResult, LimitOutput, error) {
	if h.limiter == nil {
		return nil, LimitOutput{}, errors.New("usage limits need a cloud backend")
	}
	uid := input.UserID
	if uid == "" {
		uid = h.engine.UserID()
	}
	if uid == "" {
		return nil, LimitOutput{}, errors.New("user_id is required when not signed in")
	}

	status := h.limiter.CheckLimit(ctx, uid)
	out := LimitOutput{
		UserID:          uid,
		HasReachedLimit: status.HasReachedLimit,
		CurrentUsage:    status.CurrentUsage,
		Unlimited:       status.Unlimited,
		ResetDate:       status.ResetDate.Format(time.RFC3339Nano),
	}
	if !status.Unlimited {
		out.Limit = status.Limit
	}
	return nil, out, nil
}
