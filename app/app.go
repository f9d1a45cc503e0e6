// Package app implements the router engine (spec §4.E): route registration,
// the middleware chain runner, lifecycle hooks, sub-app mounting, and the
// net/http.Handler surface the engine exposes to its embedder.
package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/arvo-http/arvo/ctx"
	"github.com/arvo-http/arvo/herror"
	"github.com/arvo-http/arvo/logctx"
	"github.com/arvo-http/arvo/matcher"
	"github.com/arvo-http/arvo/response"
	"github.com/julienschmidt/httprouter"
)

// Handler is the function signature for route handlers and middleware after
// composition. It returns an arbitrary value for the response projector to
// render, and/or an error.
type Handler func(ctx.Ctx) (any, error)

// Middleware transforms a Handler, enabling composition of cross-cutting
// concerns. A middleware that never calls next short-circuits the chain;
// the spec's "undefined means continue, a value means short-circuit"
// semantics fall directly out of Go's decorator form.
type Middleware func(Handler) Handler

// ErrorHandler handles errors returned from handlers that the projector
// could not render (reserved for embedder overrides; the default path
// always goes through the projector).
type ErrorHandler func(ctx.Ctx, error)

// ErrorHook is an OnError callback. Per spec §4.K / §7, returning handled
// (the second value) true supplies a replacement value that is
// re-projected in place of the original error; handled false leaves the
// error untouched for the next hook (or the default JSON rendering if none
// handle it).
type ErrorHook func(ctx.Ctx, error) (replacement any, handled bool)

// HealthCheckFunc reports liveness; a non-nil error marks the service
// unhealthy.
type HealthCheckFunc func() error

// Plugin hangs lifecycle hooks off an App at registration time (spec §4.K).
// Register is called once, immediately, with the App being registered on —
// implementations typically call App.OnRequest/OnResponse/OnError or wrap
// App.Use with instrumentation.
type Plugin interface {
	Register(a *App)
}

// routeEntry is what's stored in the matcher's per-route payload.
type routeEntry struct {
	method  string
	pattern string
	meta    any
	handler Handler
}

// App is the engine: it owns the route index, the global middleware chain,
// lifecycle hooks, and a context pool for allocation-free dispatch.
type App struct {
	mu sync.RWMutex

	matcher    *matcher.Matcher
	interop    *httprouter.Router // HandleHTTP/Mount/Static surface only
	middleware []Middleware
	pool       sync.Pool

	onRequest  []func(ctx.Ctx)
	onResponse []func(ctx.Ctx, any, error)
	onError    []ErrorHook

	registeredPlugins map[string]bool

	OnErrorHandler ErrorHandler
	notFound       http.Handler

	logger     *slog.Logger
	healthPath string
	healthFunc HealthCheckFunc

	debug bool

	mountBase string // set on mounted sub-apps
}

// New creates an App with sensible defaults: a JSON structured logger, the
// spec-mandated JSON error envelope for 404/405 (no plain-text override
// installed), and the default error handler (spec §4.C's projector in
// debug-off mode).
func New() *App {
	a := &App{
		matcher:           matcher.New(),
		interop:           httprouter.New(),
		registeredPlugins: map[string]bool{},
	}
	a.pool.New = func() any { return &ctx.DefaultContext{} }
	a.interop.HandleMethodNotAllowed = true
	a.SetLogger(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	a.OnErrorHandler = defaultErrorHandler
	return a
}

// SetDebug toggles whether projected error bodies include a stack trace.
func (a *App) SetDebug(debug bool) { a.debug = debug }

// SetLogger sets the logger injected into every request's context.
func (a *App) SetLogger(l *slog.Logger) { a.logger = l }

// Logger returns the configured logger, or slog.Default if none was set.
func (a *App) Logger() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.Default()
}

// Use registers global middleware, applied to every route in registration
// order (outermost first).
func (a *App) Use(mw ...Middleware) {
	if len(mw) == 0 {
		return
	}
	a.mu.Lock()
	a.middleware = append(a.middleware, mw...)
	a.mu.Unlock()
}

// OnRequest registers a hook invoked with the Event before the middleware
// chain runs.
func (a *App) OnRequest(fn func(ctx.Ctx)) { a.onRequest = append(a.onRequest, fn) }

// OnResponse registers a hook invoked after the handler chain returns, with
// the raw (value, err) the projector is about to render.
func (a *App) OnResponse(fn func(ctx.Ctx, any, error)) { a.onResponse = append(a.onResponse, fn) }

// OnError registers a hook invoked whenever the handler chain returns a
// non-nil error, before projection. Per spec §4.K, fn may return a
// replacement value to re-project in place of the error; hooks run in
// registration order and the first to report handled=true wins, with
// remaining hooks (and the default error rendering) skipped.
func (a *App) OnError(fn ErrorHook) { a.onError = append(a.onError, fn) }

// Register registers a Plugin exactly once per (App, plugin type) pair;
// repeat registrations of the same concrete type are no-ops, matching the
// idempotent-registration rule tracing.Plugin relies on.
func (a *App) Register(p Plugin) {
	key := pluginKey(p)
	if a.registeredPlugins[key] {
		return
	}
	a.registeredPlugins[key] = true
	p.Register(a)
}

func pluginKey(p Plugin) string {
	return fmt.Sprintf("%T", p)
}

// SetErrorHandler overrides the error handler invoked when the projector
// itself cannot render a response (rare: only on write failures).
func (a *App) SetErrorHandler(h ErrorHandler) { a.OnErrorHandler = h }

// SetNotFoundHandler overrides the handler run when no route matches. When
// unset, a routing miss renders the spec's default JSON error envelope
// (herror.NotFound) like any other error.
func (a *App) SetNotFoundHandler(h http.Handler) { a.notFound = h }

// EnableHealthCheck registers a GET route at path rendering liveness as
// JSON; SetHealthCheck customizes the liveness probe itself.
func (a *App) EnableHealthCheck(path string) {
	a.healthPath = path
	a.GET(path, a.healthCheckHandler)
}

// SetHealthCheck installs a custom liveness probe used by the health route.
func (a *App) SetHealthCheck(fn HealthCheckFunc) { a.healthFunc = fn }

// HealthCheckPath returns the path registered by EnableHealthCheck, or "".
func (a *App) HealthCheckPath() string { return a.healthPath }

func (a *App) healthCheckHandler(c ctx.Ctx) (any, error) {
	status := "healthy"
	httpStatus := http.StatusOK
	if a.healthFunc != nil {
		if err := a.healthFunc(); err != nil {
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			a.Logger().Error("health check failed", "error", err)
		}
	}
	c.Status(httpStatus)
	return map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ServeHTTP implements http.Handler and is the per-request algorithm of
// spec §4.E: build the Event, run onRequest, run the global middleware
// chain whose terminal step is routing itself (route(), below) — so a
// routing miss is just another value/error flowing through the same
// chain matched routes use — then project the result.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r = r.WithContext(logctx.ContextWithLogger(r.Context(), a.Logger()))

	concrete := a.pool.Get().(*ctx.DefaultContext)
	concrete.Reset(w, r, map[string]string{}, "")

	for _, h := range a.onRequest {
		h(concrete)
	}

	value, err := a.globalChain()(concrete)

	for _, h := range a.onResponse {
		h(concrete, value, err)
	}
	if err != nil {
		for _, hook := range a.onError {
			if replacement, handled := hook(concrete, err); handled {
				value, err = replacement, nil
				break
			}
		}
	}

	var nf response.NotFoundHandler
	if a.notFound != nil {
		nf = a.projectNotFound
	}
	if perr := response.Project(concrete, value, err, response.Config{Debug: a.debug}, nf); perr != nil {
		if a.OnErrorHandler != nil {
			a.OnErrorHandler(concrete, perr)
		} else {
			a.Logger().Error("response projection failed", "error", perr)
		}
	}

	concrete.Finish()
	a.pool.Put(concrete)
}

// globalChain wraps route (the routing terminal) in the app's global
// middleware, outermost-registered first, snapshotting the slice under a
// read lock.
func (a *App) globalChain() Handler {
	a.mu.RLock()
	global := a.middleware
	a.mu.RUnlock()
	final := a.route
	for i := len(global) - 1; i >= 0; i-- {
		final = global[i](final)
	}
	return final
}

// paramSetter is implemented by ctx.DefaultContext; route uses it to
// populate path captures once the matcher resolves a match, the same
// optional-capability pattern package response uses for MarkWritten.
type paramSetter interface {
	SetParams(map[string]string)
	SetRoute(string)
}

// route is the terminal step of the global middleware chain: it resolves
// (method, path) against the typed route index, falls back to the
// httprouter-backed interop surface for mounted sub-apps and static file
// servers, and otherwise returns the not-found/method-not-allowed case as
// a normal value/error for response.Project to render (spec §4.C steps
// 3-4, §4.A's Allow-header rule) instead of special-casing it outside the
// pipeline.
func (a *App) route(c ctx.Ctx) (any, error) {
	r := c.Request()
	res, ok, methodNotAllowed := a.matcher.Lookup(r.Method, r.URL.Path)
	if ok {
		entry := res.Payload.(*routeEntry)
		if ps, ok := c.(paramSetter); ok {
			ps.SetParams(res.Params)
			ps.SetRoute(entry.pattern)
		}
		c.Set(ctx.KeyMatchedRoute, ctx.MatchedRoute{Method: entry.method, Pattern: entry.pattern, Meta: entry.meta})
		return entry.handler(c)
	}
	if methodNotAllowed {
		return nil, herror.MethodNotAllowed(a.matcher.AllowedMethods(r.URL.Path))
	}
	if found, h := a.interopLookup(r); found {
		h.ServeHTTP(c.ResponseWriter(), r)
		return response.Handled, nil
	}
	return response.NotFound, nil
}

func (a *App) interopLookup(r *http.Request) (bool, http.Handler) {
	h, params, _ := a.interop.Lookup(r.Method, r.URL.Path)
	if h == nil {
		return false, nil
	}
	return true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(w, r, params)
	})
}

func (a *App) projectNotFound(c ctx.Ctx) {
	a.notFound.ServeHTTP(c.ResponseWriter(), c.Request())
}

// defaultErrorHandler is the fallback ErrorHandler used when nothing else
// is configured; it's the last line of defense if the projector itself
// fails (e.g. the ResponseWriter errored mid-write).
func defaultErrorHandler(c ctx.Ctx, err error) {
	if c.WroteHeader() {
		return
	}
	he := herror.Wrap(err)
	c.Status(he.Status)
	_ = response.Project(c, nil, he, response.Config{}, nil)
}
