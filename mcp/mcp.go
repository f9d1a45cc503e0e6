// Package mcp implements a Model Context Protocol server (spec §4.J) on top
// of package jsonrpc: a method map covering initialize, ping, tools,
// resources, and prompts, mounted as a single POST/DELETE route.
package mcp

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/arvo-http/arvo/app"
	"github.com/arvo-http/arvo/ctx"
	"github.com/arvo-http/arvo/herror"
	"github.com/arvo-http/arvo/jsonrpc"
)

// NegotiatedVersion is the protocol version this server reports in
// initialize responses.
const NegotiatedVersion = "2025-06-18"

// SupportedVersions are the protocol version strings this server accepts
// on the mcp-protocol-version request header.
var SupportedVersions = map[string]bool{
	"2025-06-18": true,
	"2025-03-26": true,
}

// ServerInfo identifies this server in the initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title,omitempty"`
}

// Content is one block of a tool/prompt result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the wire shape returned by tools/call.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Tool describes one callable tool. Call receives the raw "arguments"
// member of the tools/call request.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema,omitempty"`
	Call        func(c ctx.Ctx, arguments json.RawMessage) (ToolResult, error) `json:"-"`
}

// Resource describes one readable resource.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	Read        func(c ctx.Ctx, uri string) (ToolResult, error) `json:"-"`
}

// Prompt describes one gettable prompt.
type Prompt struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Get         func(c ctx.Ctx, arguments json.RawMessage) (ToolResult, error) `json:"-"`
}

// lazy collections: an entry is either a resolved T or a func() (T, error)
// producing one; AddToolFunc/AddResourceFunc/AddPromptFunc register the latter.
type toolEntry struct {
	tool *Tool
	fn   func() (Tool, error)
}

type resourceEntry struct {
	resource *Resource
	fn       func() (Resource, error)
}

type promptEntry struct {
	prompt *Prompt
	fn     func() (Prompt, error)
}

// Option configures a Server at construction time.
type Option func(*Server)

// Server is an MCP server: a closed set of tools/resources/prompts exposed
// through the JSON-RPC 2.0 dispatcher.
type Server struct {
	info         ServerInfo
	instructions string

	mu        sync.Mutex
	tools     []toolEntry
	resources []resourceEntry
	prompts   []promptEntry

	resolved bool

	rpc *jsonrpc.Server
}

// WithInstructions attaches free-form instructions surfaced in initialize.
func WithInstructions(s string) Option {
	return func(srv *Server) { srv.instructions = s }
}

// NewServer creates an MCP server identifying itself with info.
func NewServer(info ServerInfo, opts ...Option) *Server {
	s := &Server{info: info, rpc: jsonrpc.NewServer()}
	for _, o := range opts {
		o(s)
	}
	s.registerMethods()
	return s
}

// AddTool registers a tool, resolved immediately.
func (s *Server) AddTool(t Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc := t
	s.tools = append(s.tools, toolEntry{tool: &tc})
	s.resolved = false
}

// AddToolFunc registers a tool produced lazily by fn, resolved once on
// first use and cached.
func (s *Server) AddToolFunc(fn func() (Tool, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = append(s.tools, toolEntry{fn: fn})
	s.resolved = false
}

// AddResource registers a resource, resolved immediately.
func (s *Server) AddResource(r Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc := r
	s.resources = append(s.resources, resourceEntry{resource: &rc})
	s.resolved = false
}

// AddResourceFunc registers a resource produced lazily by fn.
func (s *Server) AddResourceFunc(fn func() (Resource, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = append(s.resources, resourceEntry{fn: fn})
	s.resolved = false
}

// AddPrompt registers a prompt, resolved immediately.
func (s *Server) AddPrompt(p Prompt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc := p
	s.prompts = append(s.prompts, promptEntry{prompt: &pc})
	s.resolved = false
}

// AddPromptFunc registers a prompt produced lazily by fn.
func (s *Server) AddPromptFunc(fn func() (Prompt, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, promptEntry{fn: fn})
	s.resolved = false
}

func resolveTools(entries []toolEntry) ([]Tool, error) {
	out := make([]Tool, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.tool == nil {
			t, err := e.fn()
			if err != nil {
				return nil, err
			}
			e.tool = &t
		}
		out = append(out, *e.tool)
	}
	return out, nil
}

func resolveResources(entries []resourceEntry) ([]Resource, error) {
	out := make([]Resource, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.resource == nil {
			r, err := e.fn()
			if err != nil {
				return nil, err
			}
			e.resource = &r
		}
		out = append(out, *e.resource)
	}
	return out, nil
}

func resolvePrompts(entries []promptEntry) ([]Prompt, error) {
	out := make([]Prompt, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.prompt == nil {
			p, err := e.fn()
			if err != nil {
				return nil, err
			}
			e.prompt = &p
		}
		out = append(out, *e.prompt)
	}
	return out, nil
}

func (s *Server) allTools() ([]Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return resolveTools(s.tools)
}

func (s *Server) allResources() ([]Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return resolveResources(s.resources)
}

func (s *Server) allPrompts() ([]Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return resolvePrompts(s.prompts)
}

func (s *Server) findTool(name string) (*Tool, error) {
	tools, err := s.allTools()
	if err != nil {
		return nil, err
	}
	for i := range tools {
		if tools[i].Name == name {
			return &tools[i], nil
		}
	}
	return nil, nil
}

func (s *Server) findResource(uri string) (*Resource, error) {
	resources, err := s.allResources()
	if err != nil {
		return nil, err
	}
	for i := range resources {
		if resources[i].URI == uri {
			return &resources[i], nil
		}
	}
	return nil, nil
}

func (s *Server) findPrompt(name string) (*Prompt, error) {
	prompts, err := s.allPrompts()
	if err != nil {
		return nil, err
	}
	for i := range prompts {
		if prompts[i].Name == name {
			return &prompts[i], nil
		}
	}
	return nil, nil
}

// Handler returns the arvo route handler, accepting POST (JSON-RPC
// dispatch) and DELETE (session teardown); any other method is 405 with
// Allow: POST, DELETE.
func (s *Server) Handler() app.Handler {
	rpcHandler := s.rpc.Handler()
	return func(c ctx.Ctx) (any, error) {
		if v := c.Request().Header.Get("mcp-protocol-version"); v != "" && !SupportedVersions[v] {
			return nil, herror.BadRequest("unsupported protocol version")
		}
		switch c.Method() {
		case http.MethodPost:
			return rpcHandler(c)
		case http.MethodDelete:
			c.Status(http.StatusOK)
			return nil, nil
		default:
			return nil, herror.New(http.StatusMethodNotAllowed, "Method Not Allowed").
				WithHeader("Allow", "POST, DELETE")
		}
	}
}

func (s *Server) registerMethods() {
	s.rpc.Register("initialize", s.handleInitialize)
	s.rpc.Register("ping", s.handlePing)
	s.rpc.Register("notifications/initialized", s.handleInitialized)
	s.rpc.Register("tools/list", s.handleToolsList)
	s.rpc.Register("tools/call", s.handleToolsCall)
	s.rpc.Register("resources/list", s.handleResourcesList)
	s.rpc.Register("resources/read", s.handleResourcesRead)
	s.rpc.Register("prompts/list", s.handlePromptsList)
	s.rpc.Register("prompts/get", s.handlePromptsGet)
}

func (s *Server) handleInitialize(c ctx.Ctx, params json.RawMessage) (any, error) {
	tools, err := s.allTools()
	if err != nil {
		return nil, err
	}
	resources, err := s.allResources()
	if err != nil {
		return nil, err
	}
	prompts, err := s.allPrompts()
	if err != nil {
		return nil, err
	}

	capabilities := map[string]any{}
	if len(tools) > 0 {
		capabilities["tools"] = map[string]any{}
	}
	if len(resources) > 0 {
		capabilities["resources"] = map[string]any{}
	}
	if len(prompts) > 0 {
		capabilities["prompts"] = map[string]any{}
	}

	result := map[string]any{
		"protocolVersion": NegotiatedVersion,
		"serverInfo":      s.info,
		"capabilities":    capabilities,
	}
	if s.instructions != "" {
		result["instructions"] = s.instructions
	}
	return result, nil
}

func (s *Server) handlePing(c ctx.Ctx, params json.RawMessage) (any, error) {
	return map[string]any{}, nil
}

func (s *Server) handleInitialized(c ctx.Ctx, params json.RawMessage) (any, error) {
	return nil, nil
}

func (s *Server) handleToolsList(c ctx.Ctx, params json.RawMessage) (any, error) {
	tools, err := s.allTools()
	if err != nil {
		return nil, err
	}
	return map[string]any{"tools": tools}, nil
}

func (s *Server) handleResourcesList(c ctx.Ctx, params json.RawMessage) (any, error) {
	resources, err := s.allResources()
	if err != nil {
		return nil, err
	}
	return map[string]any{"resources": resources}, nil
}

func (s *Server) handlePromptsList(c ctx.Ctx, params json.RawMessage) (any, error) {
	prompts, err := s.allPrompts()
	if err != nil {
		return nil, err
	}
	return map[string]any{"prompts": prompts}, nil
}

type nameArguments struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleToolsCall(c ctx.Ctx, params json.RawMessage) (any, error) {
	var req nameArguments
	if err := json.Unmarshal(params, &req); err != nil || req.Name == "" {
		return nil, jsonrpc.NewError(jsonrpc.InvalidParams, "Invalid params")
	}
	tool, err := s.findTool(req.Name)
	if err != nil {
		return nil, err
	}
	if tool == nil {
		return nil, herror.NotFound("unknown tool: " + req.Name)
	}
	result, err := tool.Call(c, req.Arguments)
	if err != nil {
		return ToolResult{
			Content: []Content{{Type: "text", Text: err.Error()}},
			IsError: true,
		}, nil
	}
	return result, nil
}

type resourceURI struct {
	URI string `json:"uri"`
}

func (s *Server) handleResourcesRead(c ctx.Ctx, params json.RawMessage) (any, error) {
	var req resourceURI
	if err := json.Unmarshal(params, &req); err != nil || req.URI == "" {
		return nil, jsonrpc.NewError(jsonrpc.InvalidParams, "Invalid params")
	}
	resource, err := s.findResource(req.URI)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, herror.NotFound("unknown resource: " + req.URI)
	}
	return resource.Read(c, req.URI)
}

func (s *Server) handlePromptsGet(c ctx.Ctx, params json.RawMessage) (any, error) {
	var req nameArguments
	if err := json.Unmarshal(params, &req); err != nil || req.Name == "" {
		return nil, jsonrpc.NewError(jsonrpc.InvalidParams, "Invalid params")
	}
	prompt, err := s.findPrompt(req.Name)
	if err != nil {
		return nil, err
	}
	if prompt == nil {
		return nil, herror.NotFound("unknown prompt: " + req.Name)
	}
	return prompt.Get(c, req.Arguments)
}
