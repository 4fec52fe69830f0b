package server

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/wirelight/mcp-go/protocol"
)

// ResourceContent represents the content returned by a resource read.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"` // Base64 encoded binary data
}

// ResourceHandler is the function signature for resource handlers.
// params holds the values captured from the URI template.
type ResourceHandler func(ctx context.Context, uri string, params map[string]string) (*ResourceContent, error)

// Resource represents a readable resource exposed via MCP. The URI
// template may contain {param} placeholders that match a single path
// segment each.
type Resource struct {
	uriTemplate string
	name        string
	description string
	mimeType    string
	handler     ResourceHandler

	uriRegex   *regexp.Regexp
	paramNames []string
}

// ResourceInfo represents metadata about a registered resource.
type ResourceInfo struct {
	URITemplate string
	Name        string
	Description string
	MimeType    string
}

// ResourceBuilder provides a fluent API for building resources.
type ResourceBuilder struct {
	resource *Resource
	server   *Server
	err      error
}

// Resource starts building a new resource with the given URI template.
func (s *Server) Resource(uriTemplate string) *ResourceBuilder {
	return &ResourceBuilder{
		resource: &Resource{uriTemplate: uriTemplate},
		server:   s,
	}
}

// Name sets an optional human-readable name for the resource.
func (b *ResourceBuilder) Name(name string) *ResourceBuilder {
	b.resource.name = name
	return b
}

// Description sets the resource description.
func (b *ResourceBuilder) Description(desc string) *ResourceBuilder {
	b.resource.description = desc
	return b
}

// MimeType sets the MIME type of the resource content.
func (b *ResourceBuilder) MimeType(mimeType string) *ResourceBuilder {
	b.resource.mimeType = mimeType
	return b
}

// Handler sets the resource handler function and registers the resource.
func (b *ResourceBuilder) Handler(fn ResourceHandler) *ResourceBuilder {
	if b.err != nil {
		return b
	}
	b.resource.handler = fn
	if err := b.resource.compileTemplate(); err != nil {
		b.err = err
		return b
	}
	b.server.registerResource(b.resource)
	return b
}

// Err returns the first error encountered while building, if any.
func (b *ResourceBuilder) Err() error { return b.err }

var templateParamRegex = regexp.MustCompile(`\{([^}]+)\}`)

// compileTemplate converts the URI template to a regex for matching.
func (r *Resource) compileTemplate() error {
	matches := templateParamRegex.FindAllStringSubmatch(r.uriTemplate, -1)
	r.paramNames = make([]string, 0, len(matches))
	for _, match := range matches {
		r.paramNames = append(r.paramNames, match[1])
	}

	pattern := regexp.QuoteMeta(r.uriTemplate)
	pattern = strings.ReplaceAll(pattern, `\{`, "{")
	pattern = strings.ReplaceAll(pattern, `\}`, "}")
	pattern = templateParamRegex.ReplaceAllString(pattern, `([^/]+)`)
	pattern = "^" + pattern + "$"

	var err error
	r.uriRegex, err = regexp.Compile(pattern)
	return err
}

// match matches a URI against the compiled template and extracts params.
func (r *Resource) match(uri string) (map[string]string, bool) {
	if r.uriRegex == nil {
		return nil, false
	}
	sub := r.uriRegex.FindStringSubmatch(uri)
	if sub == nil {
		return nil, false
	}
	params := make(map[string]string, len(r.paramNames))
	for i, name := range r.paramNames {
		if i+1 < len(sub) {
			params[name] = sub[i+1]
		}
	}
	return params, true
}

// Read executes the resource handler for the given URI.
func (r *Resource) Read(ctx context.Context, uri string) (*ResourceContent, error) {
	params, ok := r.match(uri)
	if !ok {
		return nil, fmt.Errorf("URI %q does not match template %q", uri, r.uriTemplate)
	}
	return r.handler(ctx, uri, params)
}

// Resources returns info about all registered resources.
func (s *Server) Resources() []ResourceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ResourceInfo, 0, len(s.resources))
	for _, r := range s.resources {
		result = append(result, ResourceInfo{
			URITemplate: r.uriTemplate,
			Name:        r.name,
			Description: r.description,
			MimeType:    r.mimeType,
		})
	}
	return result
}

// FindResourceForURI finds a registered resource matching the given URI.
func (s *Server) FindResourceForURI(uri string) (*Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.resources {
		if _, ok := r.match(uri); ok {
			return r, true
		}
	}
	return nil, false
}

func (s *Server) registerResource(r *Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[r.uriTemplate] = r
}

func (s *Server) handleResourcesList(_ context.Context, _ *protocol.Request) (map[string]any, error) {
	resources := s.Resources()
	list := make([]map[string]any, 0, len(resources))
	for _, r := range resources {
		entry := map[string]any{
			"uri":  r.URITemplate,
			"name": r.Name,
		}
		if r.Description != "" {
			entry["description"] = r.Description
		}
		if r.MimeType != "" {
			entry["mimeType"] = r.MimeType
		}
		list = append(list, entry)
	}
	return map[string]any{"resources": list}, nil
}

func (s *Server) handleResourcesRead(ctx context.Context, req *protocol.Request) (map[string]any, error) {
	uri, ok := req.Params["uri"].(string)
	if !ok || uri == "" {
		return nil, protocol.NewInvalidParams("missing uri")
	}

	resource, ok := s.FindResourceForURI(uri)
	if !ok {
		return nil, protocol.NewResourceError(fmt.Sprintf("resource %q not found", uri))
	}

	content, err := resource.Read(ctx, uri)
	if err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, protocol.NewResourceError(err.Error())
	}

	entry := map[string]any{"uri": content.URI}
	if entry["uri"] == "" {
		entry["uri"] = uri
	}
	if content.MimeType != "" {
		entry["mimeType"] = content.MimeType
	}
	if content.Blob != "" {
		entry["blob"] = content.Blob
	} else {
		entry["text"] = content.Text
	}
	return map[string]any{"contents": []map[string]any{entry}}, nil
}
