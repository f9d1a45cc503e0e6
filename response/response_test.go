package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arvo-http/arvo/ctx"
	"github.com/arvo-http/arvo/herror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCtx(method, path string) (ctx.Ctx, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	c := &ctx.DefaultContext{}
	c.Reset(rec, req, map[string]string{}, path)
	return c, rec
}

func TestProjectString(t *testing.T) {
	c, rec := newTestCtx(http.MethodGet, "/")
	err := Project(c, "hello", nil, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestProjectJSON(t *testing.T) {
	c, rec := newTestCtx(http.MethodGet, "/")
	err := Project(c, map[string]any{"ok": true}, nil, Config{}, nil)
	require.NoError(t, err)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, true, m["ok"])
}

func TestProjectNilBody(t *testing.T) {
	// spec §4.C / testable property 6: a nil return value still defaults
	// to 200 unless the handler set a status explicitly.
	c, rec := newTestCtx(http.MethodGet, "/")
	err := Project(c, nil, nil, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestProjectNilBodyRespectsExplicitStatus(t *testing.T) {
	c, rec := newTestCtx(http.MethodGet, "/")
	c.Status(http.StatusNoContent)
	err := Project(c, nil, nil, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestProjectHeadRequestElidesBody(t *testing.T) {
	// spec §4.C null-body rule / testable property 7: HEAD never carries a
	// body regardless of what the handler returned.
	c, rec := newTestCtx(http.MethodHead, "/")
	err := Project(c, map[string]any{"ok": true}, nil, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestProjectNullBodyStatusElidesBody(t *testing.T) {
	c, rec := newTestCtx(http.MethodGet, "/")
	c.Status(http.StatusNotModified)
	err := Project(c, "should not appear", nil, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestProjectError(t *testing.T) {
	c, rec := newTestCtx(http.MethodGet, "/")
	err := Project(c, nil, herror.NotFound("nope"), Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "nope", m["message"])
}

func TestProjectHandledSentinelNoOp(t *testing.T) {
	c, rec := newTestCtx(http.MethodGet, "/")
	err := Project(c, Handled, nil, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code) // recorder default, nothing written
	assert.Empty(t, rec.Body.String())
}

func TestProjectNotFoundSentinelCallsHook(t *testing.T) {
	c, rec := newTestCtx(http.MethodGet, "/missing")
	called := false
	err := Project(c, NotFound, nil, Config{}, func(c ctx.Ctx) {
		called = true
		_ = writeStatusOnly(c, http.StatusNotFound)
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProjectBlob(t *testing.T) {
	c, rec := newTestCtx(http.MethodGet, "/")
	err := Project(c, Blob{ContentType: "image/png", Data: []byte{1, 2, 3}}, nil, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{1, 2, 3}, rec.Body.Bytes())
}

func TestProjectBlobFilenameSetsContentDisposition(t *testing.T) {
	c, rec := newTestCtx(http.MethodGet, "/")
	err := Project(c, Blob{ContentType: "text/csv", Data: []byte("a,b"), Filename: "report Q1.csv"}, nil, Config{}, nil)
	require.NoError(t, err)
	cd := rec.Header().Get("Content-Disposition")
	assert.Contains(t, cd, `filename="report Q1.csv"`)
	assert.Contains(t, cd, "filename*=UTF-8''report%20Q1.csv")
}

func TestProjectStreamFilenameSetsContentDisposition(t *testing.T) {
	c, rec := newTestCtx(http.MethodGet, "/")
	err := Project(c, Stream{ContentType: "application/pdf", Reader: strings.NewReader("pdf"), Filename: "résumé.pdf"}, nil, Config{}, nil)
	require.NoError(t, err)
	cd := rec.Header().Get("Content-Disposition")
	assert.Contains(t, cd, `filename="r_sum_.pdf"`)
	assert.Contains(t, cd, "filename*=UTF-8''r%C3%A9sum%C3%A9.pdf")
}

func TestProjectExplicitStatus(t *testing.T) {
	c, rec := newTestCtx(http.MethodPost, "/")
	c.Status(http.StatusCreated)
	err := Project(c, map[string]any{"id": 1}, nil, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestProjectDebugStack(t *testing.T) {
	c, rec := newTestCtx(http.MethodGet, "/")
	he := herror.Internal("boom")
	he.Stack = []string{"frame1"}
	err := Project(c, nil, he, Config{Debug: true}, nil)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.NotEmpty(t, m["stack"])
}
