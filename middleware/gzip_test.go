package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arvo-http/arvo/app"
	"github.com/arvo-http/arvo/ctx"
	"github.com/arvo-http/arvo/response"
)

func TestGzipMiddlewareCompressesWhenAccepted(t *testing.T) {
	a := app.New()
	a.Use(Gzip())
	a.GET("/", func(c ctx.Ctx) (any, error) { return strings.Repeat("x", 100), nil })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	a.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("no gzip header")
	}
	zr, err := gzip.NewReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	_, _ = io.ReadAll(zr)
	_ = zr.Close()
}

func TestGzipNotAppliedOnHEAD(t *testing.T) {
	a := app.New()
	a.Use(Gzip())
	a.HEAD("/x", func(c ctx.Ctx) (any, error) { return "", nil })
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodHead, "/x", nil)
	a.ServeHTTP(rec, req)
	if rec.Header().Get("Content-Encoding") == "gzip" {
		t.Fatalf("gzip should not be set for HEAD")
	}
}

func TestGzipNotAppliedWhenEncodingPreset(t *testing.T) {
	a := app.New()
	a.Use(Gzip())
	a.GET("/x", func(c ctx.Ctx) (any, error) {
		c.Header("Content-Encoding", "br")
		return "ok", nil
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	a.ServeHTTP(rec, req)
	if rec.Header().Get("Content-Encoding") == "gzip" {
		t.Fatalf("should not gzip when encoding preset")
	}
}

func TestGzipNotAppliedOnNoContentOrNotModified(t *testing.T) {
	a := app.New()
	a.Use(Gzip())
	a.GET("/n", func(c ctx.Ctx) (any, error) {
		c.ResponseWriter().WriteHeader(http.StatusNoContent)
		return response.Handled, nil
	})
	a.GET("/m", func(c ctx.Ctx) (any, error) {
		c.ResponseWriter().WriteHeader(http.StatusNotModified)
		return response.Handled, nil
	})
	for _, p := range []string{"/n", "/m"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, p, nil)
		req.Header.Set("Accept-Encoding", "gzip")
		a.ServeHTTP(rec, req)
		if rec.Header().Get("Content-Encoding") == "gzip" {
			t.Fatalf("should not gzip %s", p)
		}
	}
}

func TestGzipFlushBranch(t *testing.T) {
	a := app.New()
	a.Use(Gzip())
	a.GET("/f", func(c ctx.Ctx) (any, error) {
		// Write some data first so gzip writer is initialized.
		_, _ = c.ResponseWriter().Write([]byte("hello"))
		if f, ok := c.ResponseWriter().(http.Flusher); ok {
			f.Flush()
		}
		return response.Handled, nil
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/f", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	a.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
}

func TestGzipCloseWhenNoWriter(t *testing.T) {
	a := app.New()
	a.Use(Gzip())
	a.GET("/nowriter", func(c ctx.Ctx) (any, error) {
		// Don't write anything, Close should no-op.
		return nil, nil
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nowriter", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	a.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
}

func TestGzipCloseWithoutPutCallsClose(t *testing.T) {
	// Manually construct gzipResponseWriter to hit branch where put is nil but gz not nil.
	rec := httptest.NewRecorder()
	g := &gzipResponseWriter{rw: rec, level: gzip.DefaultCompression}
	g.WriteHeader(http.StatusOK) // sets useGzip and header
	// Manually create a gzip.Writer and assign without setting put.
	var buf bytes.Buffer
	zw, _ := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	g.gz = zw
	if err := g.Close(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestGzipNotAppliedWithoutAcceptEncoding(t *testing.T) {
	a := app.New()
	a.Use(Gzip())
	a.GET("/plain", func(c ctx.Ctx) (any, error) { return "hello", nil })
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/plain", nil)
	// no Accept-Encoding header
	a.ServeHTTP(rec, req)
	if rec.Header().Get("Content-Encoding") == "gzip" {
		t.Fatalf("should not gzip without Accept-Encoding")
	}
	if rec.Body.String() != "hello" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestGzipWithCustomLevelCompresses(t *testing.T) {
	a := app.New()
	a.Use(Gzip(GzipConfig{Level: gzip.BestSpeed}))
	a.GET("/lvl", func(c ctx.Ctx) (any, error) { return "xxxxxxxxxxxxxxxxxxxx", nil })
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/lvl", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	a.ServeHTTP(rec, req)
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding")
	}
	zr, err := gzip.NewReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("gzip reader err: %v", err)
	}
	_, _ = io.ReadAll(zr)
	_ = zr.Close()
}

func TestGzipAppliedWhenContentEncodingIdentity(t *testing.T) {
	a := app.New()
	a.Use(Gzip())
	a.GET("/id", func(c ctx.Ctx) (any, error) {
		c.Header("Content-Encoding", "identity")
		return "hello world", nil
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	a.ServeHTTP(rec, req)
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip despite identity preset, got %q", rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("gzip reader err: %v", err)
	}
	_, _ = io.ReadAll(zr)
	_ = zr.Close()
}

func TestGzipWriteHeaderCalledTwiceUsesFirst(t *testing.T) {
	a := app.New()
	a.Use(Gzip())
	a.GET("/tw", func(c ctx.Ctx) (any, error) {
		w := c.ResponseWriter()
		w.WriteHeader(http.StatusCreated)
		w.WriteHeader(http.StatusAccepted) // should be ignored
		_, _ = w.Write([]byte("data"))
		return response.Handled, nil
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tw", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	a.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 from first WriteHeader, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding")
	}
}
