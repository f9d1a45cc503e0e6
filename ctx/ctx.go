// Package ctx implements the Event (spec §3, §4.B): the per-request
// container that middleware and handlers use to read the incoming request
// and stage the response. An Event is owned exclusively by the router for
// the duration of one request; it is reset from a pool and returned after
// the response is projected.
package ctx

import (
	"context"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Reserved context-bag keys (spec §3).
const (
	KeyParams           = "params"
	KeyMiddlewareParams = "middlewareParams"
	KeyMatchedRoute     = "matchedRoute"
	KeySessions         = "sessions"
	KeyClientAddress    = "clientAddress"
	KeyBasicAuth        = "basicAuth"
)

// MatchedRoute is what's stored under KeyMatchedRoute: the resolved route
// pattern plus its opaque meta (returned verbatim for introspection).
type MatchedRoute struct {
	Method  string
	Pattern string
	Meta    any
}

// Ctx is the Event interface exposed to handlers and middleware.
//
// Not safe for concurrent writes to the underlying http.ResponseWriter from
// more than one goroutine at a time.
type Ctx interface {
	Request() *http.Request
	SetRequest(*http.Request)
	ResponseWriter() http.ResponseWriter
	SetResponseWriter(http.ResponseWriter)

	Context() context.Context
	Method() string
	Path() string
	URL() *url.URL
	Route() string
	Param(name string) string
	Params() map[string]string
	Query(key string) string

	ParamInt(name string, def ...int) int
	ParamInt64(name string, def ...int64) int64
	ParamUint(name string, def ...uint) uint
	ParamFloat64(name string, def ...float64) float64
	ParamBool(name string, def ...bool) bool

	QueryInt(key string, def ...int) int
	QueryInt64(key string, def ...int64) int64
	QueryUint(key string, def ...uint) uint
	QueryFloat64(key string, def ...float64) float64
	QueryBool(key string, def ...bool) bool

	ParamSafe(name string) string
	QuerySafe(key string) string
	ParamAlphaNum(name string) string
	QueryAlphaNum(key string) string
	ParamFilename(name string) string
	QueryFilename(key string) string

	// Response scratch (staged; the projector reads and merges these).
	Header(key, value string)
	Headers() http.Header
	Status(code int) Ctx
	StatusCode() int
	WroteHeader() bool

	// At-most-once body readers (spec invariant in §3).
	BodyText() (string, error)
	BodyBytes() ([]byte, error)
	BodyJSON(v any) error
	BodyForm() (url.Values, error)

	// Cookie helpers; see package cookie for the full merge/chunking layer.
	SetCookie(cookie *http.Cookie)
	GetCookie(name string) (*http.Cookie, error)
	ClearCookie(name string)

	// Binding helpers.
	BindJSON(v any, opts ...BindJSONOptions) error
	BindMap(v any, m map[string]any, opts ...BindJSONOptions) error
	BindForm(v any, opts ...BindJSONOptions) error
	BindQuery(v any, opts ...BindJSONOptions) error
	BindPath(v any, opts ...BindJSONOptions) error
	BindAny(v any, opts ...BindJSONOptions) error

	// Context bag.
	Get(key any, def ...any) any
	Set(key, value any) Ctx

	Clone() Ctx
}

// DefaultContext is the concrete Ctx implementation. Reused across requests
// via a sync.Pool owned by package app.
type DefaultContext struct {
	w      http.ResponseWriter
	r      *http.Request
	params map[string]string
	route  string

	status      int
	headers     http.Header
	wroteHeader bool
	jsonEscape  bool

	bodyRead  bool
	bodyBytes []byte
	bodyErr   error
	parsedURL *url.URL
}

// Reset prepares the context for a new request. Called by the router
// before dispatch; handlers and middleware should not call it.
func (c *DefaultContext) Reset(w http.ResponseWriter, r *http.Request, params map[string]string, route string) {
	c.w = w
	c.r = r
	c.params = params
	c.route = route
	c.status = 0
	c.headers = nil
	c.wroteHeader = false
	c.jsonEscape = true
	c.bodyRead = false
	c.bodyBytes = nil
	c.bodyErr = nil
	c.parsedURL = nil
}

// Finish runs per-request cleanup once the response has been projected.
func (c *DefaultContext) Finish() {}

func (c *DefaultContext) Request() *http.Request                 { return c.r }
func (c *DefaultContext) SetRequest(r *http.Request)              { c.r = r }
func (c *DefaultContext) ResponseWriter() http.ResponseWriter     { return c.w }
func (c *DefaultContext) SetResponseWriter(w http.ResponseWriter) { c.w = w }

func (c *DefaultContext) Context() context.Context { return c.r.Context() }

func (c *DefaultContext) Set(key, value any) Ctx {
	ctx := context.WithValue(c.Context(), key, value)
	c.SetRequest(c.Request().WithContext(ctx))
	return c
}

func (c *DefaultContext) Get(key any, def ...any) any {
	if v := c.Context().Value(key); v != nil {
		return v
	}
	if len(def) > 0 {
		return def[0]
	}
	return nil
}

func (c *DefaultContext) Method() string { return c.r.Method }
func (c *DefaultContext) Path() string   { return c.r.URL.Path }
func (c *DefaultContext) Route() string  { return c.route }

// URL lazily parses the absolute URL (scheme/host derived from the request)
// per spec §3.
func (c *DefaultContext) URL() *url.URL {
	if c.parsedURL != nil {
		return c.parsedURL
	}
	u := *c.r.URL
	if u.Host == "" {
		u.Host = c.r.Host
	}
	if u.Scheme == "" {
		if c.r.TLS != nil {
			u.Scheme = "https"
		} else {
			u.Scheme = "http"
		}
	}
	c.parsedURL = &u
	return c.parsedURL
}

// SetParams overwrites the path parameters captured for this request.
// Called by the router's terminal routing step once the matcher resolves
// a match; handlers and middleware should not call it.
func (c *DefaultContext) SetParams(params map[string]string) { c.params = params }

// SetRoute overwrites the matched route pattern surfaced by Route(). Same
// caller contract as SetParams.
func (c *DefaultContext) SetRoute(route string) { c.route = route }

func (c *DefaultContext) Param(name string) string { return c.params[name] }

func (c *DefaultContext) Params() map[string]string {
	out := make(map[string]string, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

func (c *DefaultContext) Query(key string) string { return c.r.URL.Query().Get(key) }

func (c *DefaultContext) ParamInt(name string, def ...int) int {
	return parseIntDefault(c.Param(name), def...)
}
func (c *DefaultContext) ParamInt64(name string, def ...int64) int64 {
	return parseInt64Default(c.Param(name), def...)
}
func (c *DefaultContext) ParamUint(name string, def ...uint) uint {
	return parseUintDefault(c.Param(name), def...)
}
func (c *DefaultContext) ParamFloat64(name string, def ...float64) float64 {
	return parseFloat64Default(c.Param(name), def...)
}
func (c *DefaultContext) ParamBool(name string, def ...bool) bool {
	return parseBoolDefault(c.Param(name), def...)
}

func (c *DefaultContext) QueryInt(key string, def ...int) int {
	return parseIntDefault(c.Query(key), def...)
}
func (c *DefaultContext) QueryInt64(key string, def ...int64) int64 {
	return parseInt64Default(c.Query(key), def...)
}
func (c *DefaultContext) QueryUint(key string, def ...uint) uint {
	return parseUintDefault(c.Query(key), def...)
}
func (c *DefaultContext) QueryFloat64(key string, def ...float64) float64 {
	return parseFloat64Default(c.Query(key), def...)
}
func (c *DefaultContext) QueryBool(key string, def ...bool) bool {
	return parseBoolDefault(c.Query(key), def...)
}

func parseIntDefault(s string, def ...int) int {
	fallback := 0
	if len(def) > 0 {
		fallback = def[0]
	}
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseInt(s, 10, 0)
	if err != nil {
		return fallback
	}
	return int(v)
}

func parseInt64Default(s string, def ...int64) int64 {
	var fallback int64
	if len(def) > 0 {
		fallback = def[0]
	}
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseUintDefault(s string, def ...uint) uint {
	var fallback uint
	if len(def) > 0 {
		fallback = def[0]
	}
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return fallback
	}
	return uint(v)
}

func parseFloat64Default(s string, def ...float64) float64 {
	var fallback float64
	if len(def) > 0 {
		fallback = def[0]
	}
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBoolDefault(s string, def ...bool) bool {
	fallback := false
	if len(def) > 0 {
		fallback = def[0]
	}
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return v
}

// Response scratch.

func (c *DefaultContext) Status(code int) Ctx {
	c.status = code
	return c
}

func (c *DefaultContext) StatusCode() int {
	if c.status != 0 {
		return c.status
	}
	if c.wroteHeader {
		return http.StatusOK
	}
	return 0
}

func (c *DefaultContext) Headers() http.Header {
	if c.headers == nil {
		c.headers = http.Header{}
	}
	return c.headers
}

func (c *DefaultContext) Header(key, value string) { c.Headers().Set(key, value) }

func (c *DefaultContext) WroteHeader() bool { return c.wroteHeader }

// MarkWritten is called by package response once it has flushed status and
// headers to the underlying writer, so later middleware can detect that a
// response is already in flight.
func (c *DefaultContext) MarkWritten() { c.wroteHeader = true }

// At-most-once body readers.

func (c *DefaultContext) BodyBytes() ([]byte, error) {
	if c.bodyRead {
		return c.bodyBytes, c.bodyErr
	}
	c.bodyRead = true
	if c.r.Body == nil {
		return nil, nil
	}
	defer c.r.Body.Close()
	b, err := io.ReadAll(c.r.Body)
	c.bodyBytes, c.bodyErr = b, err
	return b, err
}

func (c *DefaultContext) BodyText() (string, error) {
	b, err := c.BodyBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *DefaultContext) BodyJSON(v any) error {
	b, err := c.BodyBytes()
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return io.EOF
	}
	return json.Unmarshal(b, v)
}

func (c *DefaultContext) BodyForm() (url.Values, error) {
	b, err := c.BodyBytes()
	if err != nil {
		return nil, err
	}
	return url.ParseQuery(string(b))
}

// Cookies.

func (c *DefaultContext) SetCookie(cookie *http.Cookie) { http.SetCookie(c.w, cookie) }

func (c *DefaultContext) GetCookie(name string) (*http.Cookie, error) { return c.r.Cookie(name) }

func (c *DefaultContext) ClearCookie(name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func (c *DefaultContext) Clone() Ctx { cp := *c; return &cp }

// SetJSONEscapeHTML controls whether JSON bodies escape HTML characters.
func (c *DefaultContext) SetJSONEscapeHTML(escape bool) { c.jsonEscape = escape }

// JSONEscapeHTML reports the current escaping setting; read by package
// response when encoding JSON-serializable handler return values.
func (c *DefaultContext) JSONEscapeHTML() bool { return c.jsonEscape }

// Security-focused parameter and query helpers.

func (c *DefaultContext) ParamSafe(name string) string { return html.EscapeString(c.Param(name)) }
func (c *DefaultContext) QuerySafe(key string) string  { return html.EscapeString(c.Query(key)) }

func (c *DefaultContext) ParamAlphaNum(name string) string { return alphaNumOnly(c.Param(name)) }
func (c *DefaultContext) QueryAlphaNum(key string) string  { return alphaNumOnly(c.Query(key)) }

func alphaNumOnly(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c *DefaultContext) ParamFilename(name string) string { return safeFilename(c.Param(name)) }
func (c *DefaultContext) QueryFilename(key string) string  { return safeFilename(c.Query(key)) }

var filenameCharRegex = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func safeFilename(s string) string {
	if s == "" {
		return ""
	}
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		decoded = s
	}
	decoded = filenameCharRegex.ReplaceAllString(decoded, "")
	return strings.TrimLeft(decoded, ".")
}
