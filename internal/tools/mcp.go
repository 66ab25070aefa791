package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// DefaultUserID is assumed when an MCP caller omits the userId
// argument, mirroring a single-user local setup.
const DefaultUserID = "default"

// UserContextFromArgs resolves the acting user and timezone from MCP
// request arguments. Missing userId falls back to DefaultUserID;
// missing timezone falls back to UTC. A malformed timezone is an
// error so dates are never silently resolved in the wrong zone.
func UserContextFromArgs(args map[string]any) (UserContext, error) {
	userID := DefaultUserID
	if v, ok := args["userId"].(string); ok && v != "" {
		userID = v
	}
	loc := time.UTC
	if v, ok := args["timezone"].(string); ok && v != "" {
		parsed, err := time.LoadLocation(v)
		if err != nil {
			return UserContext{}, fmt.Errorf("unknown timezone %q: %w", v, err)
		}
		loc = parsed
	}
	return UserContext{UserID: userID, Location: loc}, nil
}

// AddMCPTools registers every tool in the registry on an MCP server.
// Each schema gains userId and timezone arguments so stdio clients can
// act for a specific user; results are returned as JSON text.
func (r *Registry) AddMCPTools(srv *mcpserver.MCPServer) {
	for _, name := range r.order {
		def := r.defs[name]
		srv.AddTool(withUserArgs(def.Tool), r.mcpHandler(string(name)))
	}
}

// withUserArgs returns a copy of the tool schema extended with the
// shared userId and timezone arguments.
func withUserArgs(tool mcp.Tool) mcp.Tool {
	props := make(map[string]any, len(tool.InputSchema.Properties)+2)
	for k, v := range tool.InputSchema.Properties {
		props[k] = v
	}
	props["userId"] = map[string]any{
		"type":        "string",
		"description": "User whose calendar to act on; defaults to the local user",
	}
	props["timezone"] = map[string]any{
		"type":        "string",
		"description": "IANA timezone for dates and times, e.g. America/New_York; defaults to UTC",
	}
	tool.InputSchema.Properties = props
	return tool
}

func (r *Registry) mcpHandler(name string) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		uc, err := UserContextFromArgs(args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result := r.Execute(ctx, name, uc, args)
		payload, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encoding tool result: %w", err)
		}
		if !result.Success {
			return mcp.NewToolResultError(string(payload)), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}
