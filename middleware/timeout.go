package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/arvo-http/arvo/app"
	"github.com/arvo-http/arvo/ctx"
	"github.com/arvo-http/arvo/herror"
)

// TimeoutConfig configures the timeout middleware. Duration sets the
// timeout; OnTimeout is an optional callback invoked when a timeout occurs;
// ErrorResponse optionally overrides the default 504 response value.
type TimeoutConfig struct {
	Duration      time.Duration
	OnTimeout     func(ctx.Ctx)
	ErrorResponse func(ctx.Ctx) (any, error)
}

// Timeout returns middleware that bounds how long the rest of the chain may
// run. Unlike a write-through-ctx framework, arvo's handler return value
// isn't written to the wire until the projector runs after the whole chain
// returns -- so on a timeout we simply respond 504 and let the still-running
// goroutine's eventual result be discarded; it never reaches a client.
//
// The handler runs against a cloned Ctx so its header/status writes don't
// race with the timeout path's own response once we've given up on it.
func Timeout(cfg TimeoutConfig) app.Middleware {
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Second
	}
	return func(next app.Handler) app.Handler {
		return func(c ctx.Ctx) (any, error) {
			timeoutCtx, cancel := context.WithTimeout(c.Context(), cfg.Duration)
			defer cancel()

			handlerCtx := c.Clone()
			handlerCtx.SetRequest(c.Request().WithContext(timeoutCtx))

			type result struct {
				value any
				err   error
			}
			done := make(chan result, 1)
			go func() {
				v, err := next(handlerCtx)
				done <- result{v, err}
			}()

			select {
			case r := <-done:
				return r.value, r.err
			case <-timeoutCtx.Done():
				if cfg.OnTimeout != nil {
					cfg.OnTimeout(c)
				}
				if cfg.ErrorResponse != nil {
					return cfg.ErrorResponse(c)
				}
				return nil, herror.New(http.StatusGatewayTimeout, http.StatusText(http.StatusGatewayTimeout))
			}
		}
	}
}
