package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arvo-http/arvo/ctx"
	"github.com/stretchr/testify/assert"
)

func TestNestedGroupMiddlewareOrder(t *testing.T) {
	a := New()
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(c ctx.Ctx) (any, error) {
				order = append(order, name)
				return next(c)
			}
		}
	}

	api := a.Group("/api", mw("auth"))
	v1 := api.Group("/v1", mw("audit"))
	v1.GET("/users/:id", func(c ctx.Ctx) (any, error) {
		order = append(order, "handler")
		return "ok", nil
	}, mw("trace"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/7", nil)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"auth", "audit", "trace", "handler"}, order)
}

func TestGroupUseAddedLater(t *testing.T) {
	a := New()
	api := a.Group("/api")
	called := false
	api.GET("/ping", func(c ctx.Ctx) (any, error) { return "pong", nil })
	api.Use(func(next Handler) Handler {
		return func(c ctx.Ctx) (any, error) {
			called = true
			return next(c)
		}
	})
	api.GET("/me", func(c ctx.Ctx) (any, error) { return "me", nil })

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)

	assert.True(t, called)
	_ = rec
}
