package middleware

import (
	"fmt"

	"github.com/arvo-http/arvo/app"
	"github.com/arvo-http/arvo/ctx"
	"github.com/arvo-http/arvo/herror"
)

// RecoverConfig customizes panic recovery.
type RecoverConfig struct {
	// ErrorResponse renders the response for a recovered panic. If nil, a
	// default 500 herror.Error is returned for projection.
	ErrorResponse func(c ctx.Ctx, recovered any) (any, error)

	// OnPanic is called with the recovered value, for logging/metrics. It
	// runs in its own goroutine, which is not awaited, so it may finish after
	// ErrorResponse; a panic inside it is recovered.
	OnPanic func(c ctx.Ctx, recovered any)
}

// Recover returns middleware that recovers from panics in handlers and
// converts them into a 500 Internal Server Error, preventing a single
// handler panic from crashing the server.
func Recover(cfg ...RecoverConfig) app.Middleware {
	var c RecoverConfig
	if len(cfg) > 0 {
		c = cfg[0]
	}
	return func(next app.Handler) app.Handler {
		return func(c0 ctx.Ctx) (value any, err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if c.OnPanic != nil {
					go func() {
						defer func() { recover() }()
						c.OnPanic(c0, r)
					}()
				}
				if c.ErrorResponse != nil {
					value, err = c.ErrorResponse(c0, r)
					return
				}
				value, err = nil, herror.Internal(fmt.Sprintf("panic: %v", r))
			}()
			return next(c0)
		}
	}
}
