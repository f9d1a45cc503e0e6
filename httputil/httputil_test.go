package httputil

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arvo-http/arvo/ctx"
	"github.com/arvo-http/arvo/herror"
	"github.com/arvo-http/arvo/response"
	"github.com/stretchr/testify/assert"
)

func newCtx(t *testing.T, method, target string) ctx.Ctx {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	c := &ctx.DefaultContext{}
	c.Reset(httptest.NewRecorder(), req, nil, target)
	return c
}

func TestRedirectDefaultsTo302(t *testing.T) {
	c := newCtx(t, "GET", "/old")
	v, err := Redirect(c, "/new")
	assert.NoError(t, err)
	assert.Equal(t, response.Handled, v)
	assert.Equal(t, http.StatusFound, c.StatusCode())
	assert.Equal(t, "/new", c.Headers().Get("Location"))
}

func TestRedirectHonorsExplicitStatus(t *testing.T) {
	c := newCtx(t, "GET", "/old")
	_, err := Redirect(c, "/new", http.StatusMovedPermanently)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, c.StatusCode())
}

func TestRedirectRejectsNon3xxStatus(t *testing.T) {
	c := newCtx(t, "GET", "/old")
	_, err := Redirect(c, "/new", http.StatusOK)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusFound, c.StatusCode())
}

func TestMimeByExtensionKnownTypes(t *testing.T) {
	assert.Equal(t, "application/json", MimeByExtension("data.json"))
	assert.Contains(t, MimeByExtension("page.html"), "text/html")
}

func TestMimeByExtensionUnknownFallsBackToOctetStream(t *testing.T) {
	assert.Equal(t, "application/octet-stream", MimeByExtension("binary.xyz123"))
	assert.Equal(t, "application/octet-stream", MimeByExtension("noext"))
}

func TestCacheCheckETagMatch(t *testing.T) {
	c := newCtx(t, "GET", "/res")
	c.Request().Header.Set("If-None-Match", `"abc"`)
	hit := CacheCheck(c, `"abc"`, 0)
	assert.True(t, hit)
	assert.Equal(t, http.StatusNotModified, c.StatusCode())
}

func TestCacheCheckETagMismatch(t *testing.T) {
	c := newCtx(t, "GET", "/res")
	c.Request().Header.Set("If-None-Match", `"old"`)
	hit := CacheCheck(c, `"new"`, 0)
	assert.False(t, hit)
	assert.Equal(t, `"new"`, c.Headers().Get("ETag"))
}

func TestCacheCheckLastModified(t *testing.T) {
	c := newCtx(t, "GET", "/res")
	c.Request().Header.Set("If-Modified-Since", "Mon, 01 Jan 2024 00:00:00 GMT")
	hit := CacheCheck(c, "", 1704067200)
	assert.True(t, hit)
}

func TestBasicAuthValidCredentials(t *testing.T) {
	c := newCtx(t, "GET", "/secure")
	token := base64.StdEncoding.EncodeToString([]byte("alice:wonderland"))
	c.Request().Header.Set("Authorization", "Basic "+token)

	creds, err := BasicAuth(c)
	assert.NoError(t, err)
	assert.Equal(t, "alice", creds.Username)
	assert.Equal(t, "wonderland", creds.Password)

	stored := c.Get(ctx.KeyBasicAuth)
	assert.Equal(t, creds, stored)
}

func TestBasicAuthMissingHeader(t *testing.T) {
	c := newCtx(t, "GET", "/secure")
	_, err := BasicAuth(c)
	assert.Error(t, err)
	var he *herror.Error
	assert.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Status)
}

func TestBasicAuthMalformedBase64(t *testing.T) {
	c := newCtx(t, "GET", "/secure")
	c.Request().Header.Set("Authorization", "Basic not-base64!!")
	_, err := BasicAuth(c)
	assert.Error(t, err)
}

func TestBasicAuthMissingColon(t *testing.T) {
	c := newCtx(t, "GET", "/secure")
	token := base64.StdEncoding.EncodeToString([]byte("nopasswordhere"))
	c.Request().Header.Set("Authorization", "Basic "+token)
	_, err := BasicAuth(c)
	assert.Error(t, err)
}

func TestEqualCredentials(t *testing.T) {
	assert.True(t, EqualCredentials("secret", "secret"))
	assert.False(t, EqualCredentials("secret", "other"))
}

func TestParseContentLength(t *testing.T) {
	c := newCtx(t, "POST", "/upload")
	c.Request().ContentLength = 42
	assert.Equal(t, int64(42), ParseContentLength(c.Request()))

	c2 := newCtx(t, "POST", "/upload")
	c2.Request().ContentLength = -1
	assert.Equal(t, int64(-1), ParseContentLength(c2.Request()))
}
