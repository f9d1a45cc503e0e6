package app

import "net/http"

// Group organizes routes under a common URL prefix with shared middleware.
// Created via App.Group or Group.Group (nested groups inherit the parent's
// middleware, applied before the child's own).
type Group struct {
	app        *App
	prefix     string
	middleware []Middleware
}

// Group creates a route group rooted at prefix (joined onto the app root).
func (a *App) Group(prefix string, mw ...Middleware) *Group {
	return &Group{app: a, prefix: cleanPath(prefix), middleware: mw}
}

// Use appends middleware to the group, applied in the order added.
func (g *Group) Use(mw ...Middleware) { g.middleware = append(g.middleware, mw...) }

// Group creates a nested group inheriting this group's prefix and
// middleware, plus any additional middleware given.
func (g *Group) Group(prefix string, mw ...Middleware) *Group {
	child := &Group{app: g.app, prefix: joinPath(g.prefix, prefix)}
	child.middleware = append(child.middleware, g.middleware...)
	child.middleware = append(child.middleware, mw...)
	return child
}

func (g *Group) handle(method, p string, h Handler, mws ...Middleware) {
	all := append([]Middleware{}, g.middleware...)
	all = append(all, mws...)
	g.app.handle(method, joinPath(g.prefix, p), h, nil, all...)
}

// GET registers h for GET requests on the group's prefix+path.
func (g *Group) GET(p string, h Handler, mws ...Middleware) { g.handle(http.MethodGet, p, h, mws...) }

// POST registers h for POST requests on the group's prefix+path.
func (g *Group) POST(p string, h Handler, mws ...Middleware) { g.handle(http.MethodPost, p, h, mws...) }

// PUT registers h for PUT requests on the group's prefix+path.
func (g *Group) PUT(p string, h Handler, mws ...Middleware) { g.handle(http.MethodPut, p, h, mws...) }

// PATCH registers h for PATCH requests on the group's prefix+path.
func (g *Group) PATCH(p string, h Handler, mws ...Middleware) {
	g.handle(http.MethodPatch, p, h, mws...)
}

// DELETE registers h for DELETE requests on the group's prefix+path.
func (g *Group) DELETE(p string, h Handler, mws ...Middleware) {
	g.handle(http.MethodDelete, p, h, mws...)
}

// OPTIONS registers h for OPTIONS requests on the group's prefix+path.
func (g *Group) OPTIONS(p string, h Handler, mws ...Middleware) {
	g.handle(http.MethodOptions, p, h, mws...)
}

// HEAD registers h for HEAD requests on the group's prefix+path.
func (g *Group) HEAD(p string, h Handler, mws ...Middleware) { g.handle(http.MethodHead, p, h, mws...) }

// ANY registers h for every common HTTP method on the group's prefix+path.
func (g *Group) ANY(p string, h Handler, mws ...Middleware) {
	for _, m := range commonMethods {
		g.handle(m, p, h, mws...)
	}
}
