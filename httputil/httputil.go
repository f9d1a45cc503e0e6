// Package httputil collects the small HTTP helpers that don't belong to
// routing, projection, or the error model on their own: redirects,
// conditional-GET cache checks, MIME sniffing by extension, and HTTP Basic
// auth parsing (spec §4.O).
package httputil

import (
	"crypto/subtle"
	"encoding/base64"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arvo-http/arvo/ctx"
	"github.com/arvo-http/arvo/herror"
	"github.com/arvo-http/arvo/response"
)

// Redirect writes a redirect response. status must be a 3xx code; it falls
// back to http.StatusFound if not.
func Redirect(c ctx.Ctx, url string, status ...int) (any, error) {
	code := http.StatusFound
	if len(status) > 0 && status[0] >= 300 && status[0] < 400 {
		code = status[0]
	}
	c.Header("Location", url)
	c.Status(code)
	return response.Handled, nil
}

// MimeByExtension returns the MIME type registered for the extension of
// name (as filepath.Ext sees it, so a bare extension needs its leading
// dot), falling back to "application/octet-stream" when unknown.
func MimeByExtension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return "application/octet-stream"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	if t, ok := extraMimeTypes[strings.ToLower(ext)]; ok {
		return t
	}
	return "application/octet-stream"
}

// extraMimeTypes covers common extensions the standard library's table
// omits on some platforms.
var extraMimeTypes = map[string]string{
	".json": "application/json",
	".md":   "text/markdown; charset=utf-8",
	".webp": "image/webp",
	".wasm": "application/wasm",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
}

// CacheCheck implements conditional-GET 304 handling against an ETag and/or
// Last-Modified value computed by the caller. It returns true, with the 304
// status staged on c but nothing written yet, when the request's validators
// show the resource is unchanged; a nil handler result then projects as a
// bodiless 304. When etag is
// non-empty it's also set as the response's ETag header so the next
// request can match it.
func CacheCheck(c ctx.Ctx, etag string, lastModified int64) bool {
	if etag != "" {
		c.Header("ETag", etag)
		if inm := c.Request().Header.Get("If-None-Match"); inm != "" && matchesETag(inm, etag) {
			c.Status(http.StatusNotModified)
			return true
		}
	}
	if lastModified > 0 {
		if ims := c.Request().Header.Get("If-Modified-Since"); ims != "" {
			if t, err := http.ParseTime(ims); err == nil && lastModified <= t.Unix() {
				c.Status(http.StatusNotModified)
				return true
			}
		}
	}
	return false
}

func matchesETag(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}

// BasicAuthCredentials is what's stored under ctx.KeyBasicAuth once parsed.
type BasicAuthCredentials struct {
	Username string
	Password string
}

// BasicAuth parses the request's Authorization: Basic header, storing the
// result under ctx.KeyBasicAuth on success. It returns herror.Unauthorized
// when the header is absent or malformed.
func BasicAuth(c ctx.Ctx) (BasicAuthCredentials, error) {
	header := c.Request().Header.Get("Authorization")
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return BasicAuthCredentials{}, herror.Unauthorized("missing basic auth credentials").
			WithHeader("WWW-Authenticate", `Basic realm="restricted"`)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return BasicAuthCredentials{}, herror.Unauthorized("malformed basic auth header")
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return BasicAuthCredentials{}, herror.Unauthorized("malformed basic auth header")
	}
	creds := BasicAuthCredentials{Username: user, Password: pass}
	c.Set(ctx.KeyBasicAuth, creds)
	return creds, nil
}

// EqualCredentials compares two basic-auth secrets in constant time, the
// way a BasicAuth-checking handler should compare against known values.
func EqualCredentials(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ParseContentLength reads and validates the Content-Length header,
// returning -1 when absent or malformed.
func ParseContentLength(r *http.Request) int64 {
	if r.ContentLength >= 0 {
		return r.ContentLength
	}
	v := r.Header.Get("Content-Length")
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
