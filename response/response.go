// Package response implements the projector (spec §4.C): it takes whatever
// a handler returned — a value, an error, both, or neither — and turns it
// into a concrete HTTP response written through a ctx.Ctx.
package response

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/arvo-http/arvo/ctx"
	"github.com/arvo-http/arvo/herror"
)

// Config tunes projector behavior; the zero value is production-safe
// (Debug off, no stack traces leaked to clients).
type Config struct {
	// Debug includes herror.Error.Stack in the JSON error body when true.
	Debug bool
}

// Handled is returned by a handler to say "I already wrote the response
// myself (streaming, manual headers, etc); don't project anything".
type handledSentinel struct{}

// Handled is the sentinel value a handler returns when it has written its
// own response and the projector should do nothing further.
var Handled = handledSentinel{}

// NotFoundSentinel signals the projector to run the engine's configured
// not-found handler instead of rendering value/err directly.
type notFoundSentinel struct{}

// NotFound is the sentinel a handler returns to defer to the engine's
// not-found handling.
var NotFound = notFoundSentinel{}

// Blob is a response body with an explicit content type, for handlers that
// need to control the MIME type of a raw byte payload (spec §4.C). When
// Filename is set, the response carries a Content-Disposition header naming
// it as a download.
type Blob struct {
	ContentType string
	Data        []byte
	Filename    string
}

// Stream is a response body read directly from r and copied to the client;
// Close is called (if non-nil) once the copy finishes. Filename behaves as
// on Blob.
type Stream struct {
	ContentType string
	Reader      io.Reader
	Closer      io.Closer
	Filename    string
}

// contentDisposition renders the spec §4.C blob/stream row: an ASCII-safe
// filename="…" fallback plus the RFC 5987 filename*=UTF-8''… form so clients
// that understand it get the exact (possibly non-ASCII) name.
func contentDisposition(filename string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' || r > 0x7e {
			return '_'
		}
		return r
	}, filename)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback, url.PathEscape(filename))
}

// NotFoundHandler is invoked when a handler returns response.NotFound.
type NotFoundHandler func(c ctx.Ctx)

// Project dispatches value/err to a concrete HTTP response written through
// c, following the precedence order of spec §4.C:
//
//  1. err != nil: render as a structured error (herror.Error or wrapped).
//  2. value is the Handled sentinel: do nothing, the handler already wrote.
//  3. value is the NotFound sentinel: call notFound (or 404 if nil).
//  4. value is nil: null-body rule — write status with no body.
//  5. value is a Blob/Stream: write with the given content type.
//  6. value is a string: write as text/plain.
//  7. value is []byte: write as application/octet-stream.
//  8. value is a fmt.Stringer: write String() as text/plain.
//  9. otherwise: JSON-encode the value.
func Project(c ctx.Ctx, value any, err error, cfg Config, notFound NotFoundHandler) error {
	if err != nil {
		return projectError(c, err, cfg)
	}

	switch v := value.(type) {
	case handledSentinel:
		return nil
	case notFoundSentinel:
		if notFound != nil {
			notFound(c)
			return nil
		}
		return projectError(c, herror.NotFound("Not Found"), cfg)
	case nil:
		return writeStatusOnly(c, statusOrDefault(c, http.StatusOK))
	case Blob:
		return writeBlob(c, v)
	case Stream:
		return writeStream(c, v)
	case []byte:
		return writeBlob(c, Blob{ContentType: "application/octet-stream", Data: v})
	case string:
		return writeBlob(c, Blob{ContentType: "text/plain; charset=utf-8", Data: []byte(v)})
	case fmt.Stringer:
		return writeBlob(c, Blob{ContentType: "text/plain; charset=utf-8", Data: []byte(v.String())})
	default:
		return writeJSON(c, v)
	}
}

func statusOrDefault(c ctx.Ctx, def int) int {
	if sc := c.StatusCode(); sc != 0 {
		return sc
	}
	return def
}

func flushHeaders(c ctx.Ctx, status int) {
	w := c.ResponseWriter()
	hdr := w.Header()
	for k, vals := range c.Headers() {
		for i, v := range vals {
			if i == 0 && k != "Set-Cookie" {
				hdr.Set(k, v)
			} else {
				hdr.Add(k, v)
			}
		}
	}
	w.WriteHeader(status)
	if dc, ok := c.(interface{ MarkWritten() }); ok {
		dc.MarkWritten()
	}
}

// elideBody implements the spec §4.C null-body rule: HEAD requests and a
// fixed set of statuses never carry a body regardless of what the handler
// returned.
func elideBody(c ctx.Ctx, status int) bool {
	if c.Method() == http.MethodHead {
		return true
	}
	switch status {
	case 100, 101, 102, 204, 205, 304:
		return true
	}
	return false
}

func writeStatusOnly(c ctx.Ctx, status int) error {
	if c.WroteHeader() {
		return nil
	}
	flushHeaders(c, status)
	return nil
}

func writeBlob(c ctx.Ctx, b Blob) error {
	if c.WroteHeader() {
		return nil
	}
	status := statusOrDefault(c, http.StatusOK)
	if elideBody(c, status) {
		flushHeaders(c, status)
		return nil
	}
	if b.ContentType != "" && c.Headers().Get("Content-Type") == "" {
		c.Header("Content-Type", b.ContentType)
	}
	if b.Filename != "" && c.Headers().Get("Content-Disposition") == "" {
		c.Header("Content-Disposition", contentDisposition(b.Filename))
	}
	c.Header("Content-Length", strconv.Itoa(len(b.Data)))
	flushHeaders(c, status)
	_, err := c.ResponseWriter().Write(b.Data)
	return err
}

func writeStream(c ctx.Ctx, s Stream) error {
	if c.WroteHeader() {
		return nil
	}
	status := statusOrDefault(c, http.StatusOK)
	if elideBody(c, status) {
		flushHeaders(c, status)
		if s.Closer != nil {
			_ = s.Closer.Close()
		}
		return nil
	}
	if s.ContentType != "" && c.Headers().Get("Content-Type") == "" {
		c.Header("Content-Type", s.ContentType)
	}
	if s.Filename != "" && c.Headers().Get("Content-Disposition") == "" {
		c.Header("Content-Disposition", contentDisposition(s.Filename))
	}
	flushHeaders(c, status)
	defer func() {
		if s.Closer != nil {
			_ = s.Closer.Close()
		}
	}()
	_, err := io.Copy(c.ResponseWriter(), s.Reader)
	return err
}

func writeJSON(c ctx.Ctx, v any) error {
	if c.WroteHeader() {
		return nil
	}
	if status := statusOrDefault(c, http.StatusOK); elideBody(c, status) {
		flushHeaders(c, status)
		return nil
	}
	if c.Headers().Get("Content-Type") == "" {
		c.Header("Content-Type", "application/json; charset=utf-8")
	}
	flushHeaders(c, statusOrDefault(c, http.StatusOK))
	enc := json.NewEncoder(c.ResponseWriter())
	if dc, ok := c.(interface{ JSONEscapeHTML() bool }); ok {
		enc.SetEscapeHTML(dc.JSONEscapeHTML())
	}
	return enc.Encode(v)
}

func projectError(c ctx.Ctx, err error, cfg Config) error {
	he := herror.Wrap(err)
	for k, vals := range he.Headers {
		for _, v := range vals {
			c.Headers().Add(k, v)
		}
	}
	c.Status(he.Status)
	return writeJSON(c, he.ToJSON(cfg.Debug))
}
