package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/arvo-http/arvo/ctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHTTPInterop(t *testing.T) {
	a := New()
	a.HandleHTTP(http.MethodGet, "/legacy", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("legacy"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/legacy", nil)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)

	assert.Equal(t, "legacy", rec.Body.String())
}

func TestHandleHTTPInteropRunsGlobalMiddleware(t *testing.T) {
	a := New()
	var ranGlobal bool
	a.Use(func(next Handler) Handler {
		return func(c ctx.Ctx) (any, error) {
			ranGlobal = true
			return next(c)
		}
	})
	a.HandleHTTP(http.MethodGet, "/legacy", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("legacy"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/legacy", nil)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)

	assert.Equal(t, "legacy", rec.Body.String())
	assert.True(t, ranGlobal, "global middleware must wrap interop-mounted handlers too")
}

func TestMount(t *testing.T) {
	a := New()
	sub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mounted:" + r.URL.Path))
	})
	a.Mount("/ext/*filepath", sub)

	req := httptest.NewRequest(http.MethodGet, "/ext/anything", nil)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), "mounted:")
}

func TestStaticServesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi"), 0o644))

	a := New()
	a.Static("/assets", dir)

	req := httptest.NewRequest(http.MethodGet, "/assets/hello.txt", nil)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
}

func TestStaticDirsFirstMatchWins(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "only-b.txt"), []byte("from-b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dirA, "only-b.txt"), []byte("from-a"), 0o644))

	a := New()
	a.StaticDirs("/files", dirA, dirB)

	req := httptest.NewRequest(http.MethodGet, "/files/only-b.txt", nil)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)

	assert.Equal(t, "from-a", rec.Body.String())
}
