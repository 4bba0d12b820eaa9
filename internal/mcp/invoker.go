package mcp

import (
	"context"
	"errors"
	"time"

	"appsignals/internal/policy"
)

type ToolInvoker struct {
	reg *ToolRegistry
	ctx ToolContext
}

func NewToolInvoker(reg *ToolRegistry, ctx ToolContext) *ToolInvoker {
	return &ToolInvoker{reg: reg, ctx: ctx}
}

func (i *ToolInvoker) Call(ctx context.Context, user policy.User, toolName string, args map[string]any) (ToolResult, error) {
	if i == nil || i.reg == nil {
		return ToolResult{Data: map[string]any{"error": "tool registry not available"}}, errors.New("tool registry not available")
	}
	spec, ok := i.reg.Get(toolName)
	if !ok {
		return ToolResult{Data: map[string]any{"error": "unknown tool: " + toolName}}, errors.New("unknown tool: " + toolName)
	}
	if i.ctx.Policy != nil {
		if err := i.ctx.Policy.AuthorizeTool(user, spec.ToolsetID, spec.Name); err != nil {
			logAudit(i.ctx, spec, user.ID, nil, "error", 0, err)
			return ToolResult{Data: map[string]any{"error": err.Error()}}, err
		}
	}
	started := time.Now()
	result, toolErr := spec.Handler(ctx, ToolRequest{Arguments: args, User: user, Context: i.ctx})
	outcome := "success"
	if toolErr != nil {
		outcome = "error"
	}
	logAudit(i.ctx, spec, user.ID, result.Metadata.Resources, outcome, time.Since(started), toolErr)
	return result, toolErr
}
