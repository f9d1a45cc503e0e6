// Package middleware provides health check functionality for HTTP applications.
//
// RegisterHealthCheck wires a GET route that reports service health as JSON,
// optionally backed by a caller-supplied probe function (database ping,
// dependency check, etc).
package middleware

import (
	"net/http"
	"time"

	"github.com/arvo-http/arvo/app"
	"github.com/arvo-http/arvo/ctx"
)

// HealthCheckFunc probes a dependency and returns a non-nil error when the
// service should be reported unhealthy.
type HealthCheckFunc func() error

// HealthCheckConfig configures a health check endpoint.
type HealthCheckConfig struct {
	// Path is the route path the health check is served on. Default "/health".
	Path string
	// ServiceName is reported in the "service" field. Default "arvo".
	ServiceName string
	// HealthCheckFunc, when set, is invoked on every request; a returned
	// error marks the response unhealthy (503) with the error message
	// included in the body.
	HealthCheckFunc HealthCheckFunc
	// OnErrorFunc, when set, is invoked after a failed HealthCheckFunc call.
	OnErrorFunc func(c ctx.Ctx, err error)
	// OnSuccessFunc, when set, is invoked after a passing health check.
	OnSuccessFunc func(c ctx.Ctx)
}

// HealthCheckWithPath builds a HealthCheckConfig for path, optionally backed
// by fn (only the first function, if any, is used).
func HealthCheckWithPath(path string, fn ...HealthCheckFunc) HealthCheckConfig {
	cfg := HealthCheckConfig{Path: path, ServiceName: "arvo"}
	if len(fn) > 0 {
		cfg.HealthCheckFunc = fn[0]
	}
	return cfg
}

// RegisterHealthCheck registers cfg's health check endpoint on a.
//
// Example:
//
//	middleware.RegisterHealthCheck(app, middleware.HealthCheckConfig{
//		Path:        "/healthz",
//		ServiceName: "orders-api",
//		HealthCheckFunc: db.Ping,
//	})
func RegisterHealthCheck(a *app.App, cfg HealthCheckConfig) {
	if cfg.Path == "" {
		cfg.Path = "/health"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "arvo"
	}

	a.GET(cfg.Path, func(c ctx.Ctx) (any, error) {
		body := map[string]any{
			"service":   cfg.ServiceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		if cfg.HealthCheckFunc != nil {
			if err := cfg.HealthCheckFunc(); err != nil {
				if cfg.OnErrorFunc != nil {
					cfg.OnErrorFunc(c, err)
				}
				body["status"] = "unhealthy"
				body["error"] = err.Error()
				c.Status(http.StatusServiceUnavailable)
				return body, nil
			}
		}

		if cfg.OnSuccessFunc != nil {
			cfg.OnSuccessFunc(c)
		}
		body["status"] = "healthy"
		return body, nil
	})
}
