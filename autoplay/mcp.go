package autoplay

import (
	"encoding/json"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/nextplay/kit"
)

// RegisterMCP registers the nextplay tools on an MCP server.
func RegisterMCP(srv *mcp.Server, ctl Controller, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	registerStatusTool(srv, ctl, logger)
	registerTriggerTool(srv, ctl, logger)
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

func registerStatusTool(srv *mcp.Server, ctl Controller, logger *slog.Logger) {
	tool := &mcp.Tool{
		Name:        "nextplay_status",
		Description: "List driven pages with in-flight state, last click time and play counters.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	decode := func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	}
	kit.RegisterMCPTool(srv, tool, statusEndpoint(ctl, logger), decode)
}

func registerTriggerTool(srv *mcp.Server, ctl Controller, logger *slog.Logger) {
	tool := &mcp.Tool{
		Name:        "nextplay_trigger",
		Description: "Evaluate a page now: click its next control if present and start playback.",
		InputSchema: inputSchema(map[string]any{
			"page_id": map[string]any{"type": "string", "description": "Configured page id"},
		}, []string{"page_id"}),
	}
	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r TriggerRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}
	kit.RegisterMCPTool(srv, tool, triggerEndpoint(ctl, logger), decode)
}
