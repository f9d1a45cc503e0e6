package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arvo-http/arvo/app"
	"github.com/arvo-http/arvo/ctx"
)

func TestRecoverMiddleware(t *testing.T) {
	a := app.New()
	a.Use(Recover())
	a.GET("/panic", func(c ctx.Ctx) (any, error) { panic("boom") })
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	a.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRecoverMiddlewareWithCustomErrorResponse(t *testing.T) {
	a := app.New()
	customErrorCalled := false
	a.Use(Recover(RecoverConfig{
		ErrorResponse: func(c ctx.Ctx, err any) (any, error) {
			customErrorCalled = true
			c.Status(http.StatusBadRequest)
			return "Custom error response", nil
		},
	}))
	a.GET("/panic", func(c ctx.Ctx) (any, error) { panic("test panic") })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	a.ServeHTTP(rec, req)

	if !customErrorCalled {
		t.Error("custom error response was not called")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec.Body.String() != "Custom error response" {
		t.Fatalf("expected 'Custom error response', got %q", rec.Body.String())
	}
}

func TestRecoverMiddlewareWithOnPanic(t *testing.T) {
	a := app.New()
	panicCalled := make(chan any, 1)

	a.Use(Recover(RecoverConfig{
		OnPanic: func(c ctx.Ctx, err any) {
			panicCalled <- err
		},
	}))
	a.GET("/panic", func(c ctx.Ctx) (any, error) { panic("test panic value") })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	a.ServeHTTP(rec, req)

	select {
	case v := <-panicCalled:
		if v != "test panic value" {
			t.Errorf("expected panic value 'test panic value', got %v", v)
		}
	case <-time.After(time.Second):
		t.Error("OnPanic callback was not called")
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRecoverMiddlewareWithPanicInCallback(t *testing.T) {
	a := app.New()
	a.Use(Recover(RecoverConfig{
		OnPanic: func(c ctx.Ctx, err any) {
			// This callback itself panics, but should be protected.
			panic("callback panic")
		},
	}))
	a.GET("/panic", func(c ctx.Ctx) (any, error) { panic("original panic") })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	a.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRecoverMiddlewareNoPanic(t *testing.T) {
	a := app.New()
	callbackCalled := false

	a.Use(Recover(RecoverConfig{
		OnPanic: func(c ctx.Ctx, err any) {
			callbackCalled = true
		},
	}))
	a.GET("/normal", func(c ctx.Ctx) (any, error) {
		return "normal response", nil
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/normal", nil)
	a.ServeHTTP(rec, req)

	if callbackCalled {
		t.Error("OnPanic callback should not be called for normal requests")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "normal response" {
		t.Fatalf("expected 'normal response', got %q", rec.Body.String())
	}
}
