// Package arvo re-exports the engine's public surface so embedders can
// depend on a single import path.
package arvo

import (
	"github.com/arvo-http/arvo/app"
	"github.com/arvo-http/arvo/ctx"
)

// App is the router engine. Re-exported from app.App.
type App = app.App

// Group organizes routes under a shared prefix and middleware.
type Group = app.Group

// Handler is the route-handler/middleware-after-composition signature.
type Handler = app.Handler

// Middleware transforms a Handler.
type Middleware = app.Middleware

// ErrorHandler handles errors the projector could not render.
type ErrorHandler = app.ErrorHandler

// Plugin hangs lifecycle hooks off an App at registration time.
type Plugin = app.Plugin

// Ctx is the per-request Event.
type Ctx = ctx.Ctx

// New creates a new App with sensible defaults.
func New() *App { return app.New() }
