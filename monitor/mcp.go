package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Runner runs checks by target name. The process entrypoint implements it
// over the configured engines.
type Runner interface {
	// Targets lists the configured target names.
	Targets() []string
	// Run executes one target's check and returns its report.
	Run(ctx context.Context, target string) (*Report, error)
}

// RegisterMCP exposes the monitor as MCP tools on the given server:
// docveille_check runs one target and returns its report,
// docveille_targets lists the configured targets.
func RegisterMCP(srv *mcp.Server, runner Runner) {
	registerCheckTool(srv, runner)
	registerTargetsTool(srv, runner)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

type checkReq struct {
	Target string `json:"target"`
}

func registerCheckTool(srv *mcp.Server, runner Runner) {
	tool := &mcp.Tool{
		Name:        "docveille_check",
		Description: "Run one monitoring cycle for a target and return the change report (new/modified/deleted/unchanged sections).",
		InputSchema: inputSchema(map[string]any{
			"target": map[string]any{"type": "string", "description": "Configured target name"},
		}, []string{"target"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r checkReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}
		if r.Target == "" {
			var res mcp.CallToolResult
			res.SetError(errors.New("target is required"))
			return &res, nil
		}

		report, err := runner.Run(ctx, r.Target)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}
		return textResult(report)
	})
}

func registerTargetsTool(srv *mcp.Server, runner Runner) {
	tool := &mcp.Tool{
		Name:        "docveille_targets",
		Description: "List the configured documentation targets.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	srv.AddTool(tool, func(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return textResult(map[string]any{"targets": runner.Targets()})
	})
}

func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		var res mcp.CallToolResult
		res.SetError(fmt.Errorf("marshal: %w", err))
		return &res, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}
