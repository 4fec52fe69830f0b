package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/wirelight/mcp-go/protocol"
)

// ToolHandler executes a tool call. Arguments arrive as the decoded
// "arguments" object of the tools/call request.
type ToolHandler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Tool represents a callable function exposed via MCP.
type Tool struct {
	name        string
	description string
	handler     ToolHandler
}

// Name returns the tool name.
func (t *Tool) Name() string { return t.name }

// Description returns the tool description.
func (t *Tool) Description() string { return t.description }

// ToolBuilder provides a fluent API for building tools.
type ToolBuilder struct {
	tool   *Tool
	server *Server
}

// Tool starts building a new tool with the given name.
func (s *Server) Tool(name string) *ToolBuilder {
	return &ToolBuilder{
		tool:   &Tool{name: name},
		server: s,
	}
}

// Description sets the tool description.
func (b *ToolBuilder) Description(desc string) *ToolBuilder {
	b.tool.description = desc
	return b
}

// Handler sets the tool handler and registers the tool with the server.
func (b *ToolBuilder) Handler(fn ToolHandler) *ToolBuilder {
	b.tool.handler = fn
	b.server.registerTool(b.tool)
	return b
}

// Tools returns info about all registered tools.
func (s *Server) Tools() []ToolInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ToolInfo, 0, len(s.tools))
	for _, t := range s.tools {
		result = append(result, ToolInfo{
			Name:        t.name,
			Description: t.description,
		})
	}
	return result
}

// GetTool retrieves a tool by name.
func (s *Server) GetTool(name string) (*Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tools[name]
	return t, ok
}

func (s *Server) registerTool(t *Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[t.name] = t
}

func (s *Server) handleToolsList(_ context.Context, _ *protocol.Request) (map[string]any, error) {
	tools := s.Tools()
	list := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		list = append(list, map[string]any{
			"name":        t.Name,
			"description": t.Description,
		})
	}
	return map[string]any{"tools": list}, nil
}

func (s *Server) handleToolsCall(ctx context.Context, req *protocol.Request) (map[string]any, error) {
	name, ok := req.Params["name"].(string)
	if !ok || name == "" {
		return nil, protocol.NewInvalidParams("missing tool name")
	}

	tool, ok := s.GetTool(name)
	if !ok {
		return nil, protocol.NewToolError(fmt.Sprintf("tool %q not found", name))
	}

	args, _ := req.Params["arguments"].(map[string]any)

	result, err := tool.handler(ctx, args)
	if err != nil {
		// Protocol-level failures propagate as errors; tool execution
		// failures come back as an isError result so the client sees
		// the tool's own message.
		var perr *protocol.Error
		if errors.As(err, &perr) && perr.Code != protocol.CodeToolError {
			return nil, perr
		}
		return map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": err.Error()},
			},
			"isError": true,
		}, nil
	}

	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}
