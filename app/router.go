package app

import "net/http"

// GET registers h for GET requests on path.
func (a *App) GET(path string, h Handler, mws ...Middleware) { a.handle(http.MethodGet, path, h, nil, mws...) }

// POST registers h for POST requests on path.
func (a *App) POST(path string, h Handler, mws ...Middleware) {
	a.handle(http.MethodPost, path, h, nil, mws...)
}

// PUT registers h for PUT requests on path.
func (a *App) PUT(path string, h Handler, mws ...Middleware) { a.handle(http.MethodPut, path, h, nil, mws...) }

// PATCH registers h for PATCH requests on path.
func (a *App) PATCH(path string, h Handler, mws ...Middleware) {
	a.handle(http.MethodPatch, path, h, nil, mws...)
}

// DELETE registers h for DELETE requests on path.
func (a *App) DELETE(path string, h Handler, mws ...Middleware) {
	a.handle(http.MethodDelete, path, h, nil, mws...)
}

// OPTIONS registers h for OPTIONS requests on path.
func (a *App) OPTIONS(path string, h Handler, mws ...Middleware) {
	a.handle(http.MethodOptions, path, h, nil, mws...)
}

// HEAD registers h for HEAD requests on path.
func (a *App) HEAD(path string, h Handler, mws ...Middleware) {
	a.handle(http.MethodHead, path, h, nil, mws...)
}

// ANY registers h for every common HTTP method on path.
func (a *App) ANY(path string, h Handler, mws ...Middleware) {
	for _, m := range commonMethods {
		a.handle(m, path, h, nil, mws...)
	}
}

// Handle registers h for an arbitrary method on path.
func (a *App) Handle(method, path string, h Handler, mws ...Middleware) {
	a.handle(method, path, h, nil, mws...)
}

// On is the spec-named alias for Handle, registering h for method on path
// with optional route metadata surfaced later via ctx.MatchedRoute.Meta.
func (a *App) On(method, path string, h Handler, meta any, mws ...Middleware) {
	a.handle(method, path, h, meta, mws...)
}

var commonMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
	http.MethodDelete, http.MethodOptions, http.MethodHead,
}

// handle composes the route's own (and any group's) middleware around h,
// right-to-left so the call order at runtime is outermost-registered
// first, handler last, and inserts the result into the route index. Global
// middleware (App.Use) is not baked in here: ServeHTTP wraps the whole
// routing step — lookup included — in the global chain per spec §4.E, so
// a miss (404/405) runs through it exactly like a matched route does.
func (a *App) handle(method, path string, h Handler, meta any, mws ...Middleware) {
	final := h
	for i := len(mws) - 1; i >= 0; i-- {
		final = mws[i](final)
	}

	entry := &routeEntry{method: method, pattern: path, meta: meta, handler: final}
	if err := a.matcher.Insert(method, path, entry); err != nil {
		panic(err)
	}
}
