// Package bodylimit implements the body-size guard (spec §4.H): comparing
// a declared or streaming request body length against a limit without
// fully buffering it.
package bodylimit

import (
	"bytes"
	"io"

	"github.com/arvo-http/arvo/ctx"
)

// IsBodySizeWithin reports whether c's request body is within limit bytes.
// When Content-Length is present it's checked directly (no read at all).
// Otherwise it streams up to limit+1 bytes through a LimitReader and
// reports false the moment that extra byte is observed, without ever
// buffering the rest of the body; the consumed prefix is stitched back in
// front of the unread remainder, so a later BodyBytes/BodyJSON read still
// sees the whole body.
//
// A non-positive limit means unlimited: IsBodySizeWithin always reports
// true and never touches the request.
func IsBodySizeWithin(limit int64, c ctx.Ctx) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	r := c.Request()
	if r.ContentLength >= 0 {
		return r.ContentLength <= limit, nil
	}

	if r.Body == nil {
		return true, nil
	}

	peek := make([]byte, limit+1)
	n, err := io.ReadFull(r.Body, peek)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}

	within := int64(n) <= limit
	already := append([]byte(nil), peek[:n]...)
	r.Body = struct {
		io.Reader
		io.Closer
	}{
		Reader: io.MultiReader(bytes.NewReader(already), r.Body),
		Closer: r.Body,
	}
	return within, nil
}
