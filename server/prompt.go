package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/wirelight/mcp-go/protocol"
)

// TextContent represents text content in a prompt message.
type TextContent struct {
	Type string `json:"type"` // Always "text"
	Text string `json:"text"`
}

// PromptMessage represents a message in a prompt result.
type PromptMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content any    `json:"content"`
}

// PromptResult is the result of getting a prompt.
type PromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// PromptArgument describes an argument for a prompt.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptHandler is the function signature for prompt handlers.
type PromptHandler func(ctx context.Context, args map[string]string) (*PromptResult, error)

// Prompt represents a prompt template exposed via MCP.
type Prompt struct {
	name        string
	description string
	arguments   []PromptArgument
	handler     PromptHandler
}

// PromptInfo represents metadata about a registered prompt.
type PromptInfo struct {
	Name        string
	Description string
	Arguments   []PromptArgument
}

// PromptBuilder provides a fluent API for building prompts.
type PromptBuilder struct {
	prompt *Prompt
	server *Server
}

// Prompt starts building a new prompt with the given name.
func (s *Server) Prompt(name string) *PromptBuilder {
	return &PromptBuilder{
		prompt: &Prompt{name: name},
		server: s,
	}
}

// Description sets the prompt description.
func (b *PromptBuilder) Description(desc string) *PromptBuilder {
	b.prompt.description = desc
	return b
}

// Argument adds an argument to the prompt.
func (b *PromptBuilder) Argument(name, description string, required bool) *PromptBuilder {
	b.prompt.arguments = append(b.prompt.arguments, PromptArgument{
		Name:        name,
		Description: description,
		Required:    required,
	})
	return b
}

// Handler sets the prompt handler function and registers the prompt.
func (b *PromptBuilder) Handler(fn PromptHandler) *PromptBuilder {
	b.prompt.handler = fn
	b.server.registerPrompt(b.prompt)
	return b
}

// Get executes the prompt handler with the given arguments. Required
// arguments are checked before the handler runs.
func (p *Prompt) Get(ctx context.Context, args map[string]string) (*PromptResult, error) {
	for _, arg := range p.arguments {
		if arg.Required {
			if args == nil || args[arg.Name] == "" {
				return nil, fmt.Errorf("missing required argument: %s", arg.Name)
			}
		}
	}
	return p.handler(ctx, args)
}

// Prompts returns info about all registered prompts.
func (s *Server) Prompts() []PromptInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]PromptInfo, 0, len(s.prompts))
	for _, p := range s.prompts {
		result = append(result, PromptInfo{
			Name:        p.name,
			Description: p.description,
			Arguments:   p.arguments,
		})
	}
	return result
}

// GetPrompt retrieves a prompt by name.
func (s *Server) GetPrompt(name string) (*Prompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[name]
	return p, ok
}

func (s *Server) registerPrompt(p *Prompt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[p.name] = p
}

func (s *Server) handlePromptsList(_ context.Context, _ *protocol.Request) (map[string]any, error) {
	prompts := s.Prompts()
	list := make([]map[string]any, 0, len(prompts))
	for _, p := range prompts {
		entry := map[string]any{"name": p.Name}
		if p.Description != "" {
			entry["description"] = p.Description
		}
		if len(p.Arguments) > 0 {
			entry["arguments"] = p.Arguments
		}
		list = append(list, entry)
	}
	return map[string]any{"prompts": list}, nil
}

func (s *Server) handlePromptsGet(ctx context.Context, req *protocol.Request) (map[string]any, error) {
	name, ok := req.Params["name"].(string)
	if !ok || name == "" {
		return nil, protocol.NewInvalidParams("missing prompt name")
	}

	prompt, ok := s.GetPrompt(name)
	if !ok {
		return nil, protocol.NewInvalidParams(fmt.Sprintf("prompt %q not found", name))
	}

	args := make(map[string]string)
	if raw, ok := req.Params["arguments"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				args[k] = s
			}
		}
	}

	result, err := prompt.Get(ctx, args)
	if err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, protocol.NewInvalidParams(err.Error())
	}

	messages := make([]map[string]any, 0, len(result.Messages))
	for _, m := range result.Messages {
		messages = append(messages, map[string]any{
			"role":    m.Role,
			"content": m.Content,
		})
	}

	out := map[string]any{"messages": messages}
	if result.Description != "" {
		out["description"] = result.Description
	}
	return out, nil
}
