// Package tracing implements the tracing Plugin (spec §4.K/§6.K): a
// Register-once hook that wraps every route's middleware chain with an
// OTel span, without the engine itself depending on the OTel middleware
// package (app cannot import middleware, which already imports app).
package tracing

import (
	"github.com/arvo-http/arvo/app"
	"github.com/arvo-http/arvo/middleware"
)

// Config configures the tracing plugin; it's middleware.OTelConfig under a
// tracing-scoped name so callers don't need to import middleware directly
// just to register tracing.
type Config = middleware.OTelConfig

type plugin struct {
	cfg Config
}

// Register installs the OTel middleware as global app middleware. Called
// at most once per App by App.Register's idempotent-registration rule.
func (p plugin) Register(a *app.App) {
	a.Use(middleware.OTelWithConfig(p.cfg))
}

// Plugin returns an app.Plugin that wraps every registered route in an
// OTel span for serviceName. Pass additional Config fields via opts to
// customize span naming, attributes, filtering, or status mapping.
func Plugin(serviceName string, opts ...func(*Config)) app.Plugin {
	cfg := Config{ServiceName: serviceName}
	for _, opt := range opts {
		opt(&cfg)
	}
	return plugin{cfg: cfg}
}

// WithConfig builds a Plugin from a fully-populated Config, for callers
// who already have one (e.g. sharing it with a direct middleware.OTel
// registration elsewhere).
func WithConfig(cfg Config) app.Plugin {
	return plugin{cfg: cfg}
}
