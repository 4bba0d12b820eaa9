package sdk

import (
	"appsignals/internal/aws"
	"appsignals/internal/mcp"
	"appsignals/internal/policy"
	"appsignals/internal/redact"
	"appsignals/internal/render"
	"appsignals/internal/sli"
)

// Core toolset interfaces and types.
type Toolset = mcp.Toolset

type ToolsetContext = mcp.ToolsetContext

type ToolSpec = mcp.ToolSpec

type ToolHandler = mcp.ToolHandler

type ToolSafety = mcp.ToolSafety

type ToolRequest = mcp.ToolRequest

type ToolResult = mcp.ToolResult

type ToolMetadata = mcp.ToolMetadata

type Registry = mcp.Registry

const (
	SafetyReadOnly = mcp.SafetyReadOnly
	SafetyWrite    = mcp.SafetyWrite
)

// Toolset registration for plugin discovery.
func RegisterToolset(id string, factory mcp.ToolsetFactory) error {
	return mcp.RegisterToolset(id, factory)
}

func MustRegisterToolset(id string, factory mcp.ToolsetFactory) {
	mcp.MustRegisterToolset(id, factory)
}

func RegisteredToolsets() []string {
	return mcp.RegisteredToolsets()
}

// Shared services and invoker.
type ServiceRegistry = mcp.ServiceRegistry

type ToolInvoker = mcp.ToolInvoker

// AWS client surfaces.
type SignalsAPI = aws.SignalsAPI

type CloudWatchAPI = aws.CloudWatchAPI

type LogsAPI = aws.LogsAPI

type XRayAPI = aws.XRayAPI

// SLI reporting.
type SLIConfig = sli.Config

type SLIReport = sli.Report

type Renderer = render.Renderer

type Redactor = redact.Redactor

// Policy helpers.
type User = policy.User

type Role = policy.Role

const RoleLocal = policy.RoleLocal
