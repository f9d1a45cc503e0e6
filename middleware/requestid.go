package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/arvo-http/arvo/app"
	"github.com/arvo-http/arvo/ctx"
)

// RequestIDConfig configures the RequestID middleware.
type RequestIDConfig struct {
	Header string // response header name, default: X-Request-ID
}

type ridKey struct{}

// RequestID returns middleware that adds a unique request ID to each
// request/response. The request ID is set in the configured header and made
// available in the request context.
func RequestID(cfgs ...RequestIDConfig) app.Middleware {
	cfg := RequestIDConfig{Header: "X-Request-ID"}
	if len(cfgs) > 0 && cfgs[0].Header != "" {
		cfg.Header = cfgs[0].Header
	}
	return func(next app.Handler) app.Handler {
		return func(c ctx.Ctx) (any, error) {
			id := c.Request().Header.Get(cfg.Header)
			if id == "" {
				id = newID()
			}
			c.Header(cfg.Header, id)
			c.Set(ridKey{}, id)
			return next(c)
		}
	}
}

// RequestIDFromContext returns the request ID from the context, if available.
func RequestIDFromContext(ctxv context.Context) (string, bool) {
	v := ctxv.Value(ridKey{})
	if v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return "", false
}

func newID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
