// Package jsonrpc implements the JSON-RPC 2.0 dispatcher (spec §4.I): a
// method map mounted as a normal arvo route, validating and routing single
// or batched requests and formatting JSON-RPC 2.0 responses.
package jsonrpc

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/arvo-http/arvo/app"
	"github.com/arvo-http/arvo/ctx"
	"github.com/arvo-http/arvo/herror"
)

// Reserved error codes from the JSON-RPC 2.0 spec, plus the custom
// server-error range this package consumes (-32000 to -32099).
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	errServerGeneric     = -32000
	errUnauthorized      = -32001
	errForbidden         = -32003
	errNotFound          = -32004
	errRequestTimeout    = -32008
	errConflict          = -32009
	errTooManyRequests   = -32029
)

const protocolVersion = "2.0"

// Error is a JSON-RPC error object. Handlers may return one directly to
// control the wire code and data precisely; any other error is mapped
// through mapError.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewError builds an Error with the given code and message.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string { return e.Message }

// Handler is a registered RPC method. c is the event the request arrived
// on (the HTTP Event for this transport); params is the raw "params"
// member, nil when absent.
type Handler func(c ctx.Ctx, params json.RawMessage) (any, error)

// Response is a single JSON-RPC 2.0 response object.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id"`
}

// Server holds a closed namespace of registered methods. The zero map
// lookup already has no prototype chain to escape; Dispatch additionally
// refuses any method starting with "rpc." regardless of registration.
type Server struct {
	mu      sync.RWMutex
	methods map[string]Handler
}

// NewServer creates an empty dispatcher.
func NewServer() *Server {
	return &Server{methods: map[string]Handler{}}
}

// Register adds or replaces the handler for name. Registering a name
// starting with "rpc." is allowed but never reachable: Dispatch rejects
// those methods before the map lookup.
func (s *Server) Register(name string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[name] = h
}

func (s *Server) lookup(name string) (Handler, bool) {
	if strings.HasPrefix(name, "rpc.") {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.methods[name]
	return h, ok
}

// Handler returns an arvo route handler that dispatches JSON-RPC requests
// arriving as the request body. Mount it on POST.
func (s *Server) Handler() app.Handler {
	return func(c ctx.Ctx) (any, error) {
		return s.serve(c)
	}
}

func (s *Server) serve(c ctx.Ctx) (any, error) {
	if c.Method() != http.MethodPost {
		return nil, herror.New(http.StatusMethodNotAllowed, "Method Not Allowed").WithHeader("Allow", http.MethodPost)
	}

	body, err := c.BodyBytes()
	if err != nil {
		return s.parseErrorResponse()
	}

	isBatch := false
	var items []json.RawMessage

	trimmed := strings.TrimSpace(string(body))
	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(body, &items); err != nil {
			return s.parseErrorResponse()
		}
		isBatch = true
	case strings.HasPrefix(trimmed, "{"):
		items = []json.RawMessage{body}
	default:
		return s.parseErrorResponse()
	}

	if isBatch && len(items) == 0 {
		c.Status(http.StatusOK)
		return errorResponse(nil, NewError(InvalidRequest, "Invalid Request")), nil
	}

	results := make([]*Response, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item json.RawMessage) {
			defer wg.Done()
			results[i] = s.dispatchOne(c, item)
		}(i, item)
	}
	wg.Wait()

	out := make([]Response, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}

	if len(out) == 0 {
		if isBatch {
			// spec §4.I step 10 / testable property 3: an all-notification
			// batch reports 202 Accepted with an empty body.
			c.Status(http.StatusAccepted)
		} else {
			c.Status(http.StatusNoContent)
		}
		return nil, nil
	}
	if !isBatch {
		c.Status(http.StatusOK)
		return out[0], nil
	}
	c.Status(http.StatusOK)
	return out, nil
}

func (s *Server) parseErrorResponse() (any, error) {
	return errorResponse(nil, NewError(ParseError, "Parse error")), nil
}

// dispatchOne validates and executes a single request/notification item.
// Returns nil for a notification that executed without producing a wire
// response.
func (s *Server) dispatchOne(c ctx.Ctx, item json.RawMessage) *Response {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return errorResponse(nil, NewError(InvalidRequest, "Invalid Request"))
	}

	idRaw, hasID := fields["id"]
	id := extractID(idRaw, hasID)

	version, ok := fields["jsonrpc"]
	if !ok || !validVersion(version) {
		return errorResponse(id, NewError(InvalidRequest, "Invalid Request"))
	}

	methodRaw, ok := fields["method"]
	var method string
	if !ok || json.Unmarshal(methodRaw, &method) != nil || method == "" {
		return errorResponse(id, NewError(InvalidRequest, "Invalid Request"))
	}

	if params, ok := fields["params"]; ok && !validParams(params) {
		return errorResponse(id, NewError(InvalidRequest, "Invalid Request"))
	}
	if hasID && !validID(idRaw) {
		return errorResponse(id, NewError(InvalidRequest, "Invalid Request"))
	}

	notification := !hasID

	h, ok := s.lookup(method)
	if !ok {
		if notification {
			return nil
		}
		return errorResponse(id, NewError(MethodNotFound, "Method not found"))
	}

	result, err := h(c, fields["params"])
	if notification {
		return nil
	}
	if err != nil {
		return errorResponse(id, mapError(err))
	}
	return &Response{JSONRPC: protocolVersion, Result: result, ID: id}
}

func errorResponse(id any, e *Error) *Response {
	return &Response{JSONRPC: protocolVersion, Error: e, ID: id}
}

func validVersion(raw json.RawMessage) bool {
	var v string
	if json.Unmarshal(raw, &v) != nil {
		return false
	}
	return v == protocolVersion
}

func validParams(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{")
}

// validID enforces the spec's id grammar: string, integer number (no
// fraction), or null.
func validID(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return true
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		return json.Unmarshal(raw, &s) == nil
	}
	if strings.Contains(trimmed, ".") {
		return false
	}
	var n json.Number
	return json.Unmarshal(raw, &n) == nil
}

// extractID returns the id value to echo back: nil when absent or
// malformed, otherwise the decoded string/number/null.
func extractID(raw json.RawMessage, present bool) any {
	if !present {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// mapError maps a handler error to a JSON-RPC error object per spec §4.I.
func mapError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	he := herror.Wrap(err)
	return &Error{Code: statusToCode(he.Status), Message: he.Error(), Data: errData(he)}
}

func errData(he *herror.Error) any {
	if he.Data != nil {
		return he.Data
	}
	return nil
}

func statusToCode(status int) int {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return InvalidParams
	case http.StatusUnauthorized:
		return errUnauthorized
	case http.StatusForbidden:
		return errForbidden
	case http.StatusNotFound:
		return errNotFound
	case http.StatusRequestTimeout:
		return errRequestTimeout
	case http.StatusConflict:
		return errConflict
	case http.StatusTooManyRequests:
		return errTooManyRequests
	}
	switch {
	case status >= 500:
		return InternalError
	case status >= 300:
		return errServerGeneric
	default:
		return errServerGeneric
	}
}
