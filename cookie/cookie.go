// Package cookie implements the cookie layer (spec §4.F): parsing the
// request Cookie header, merging outgoing Set-Cookie headers by distinct
// cookie key, and chunking oversized cookie values across companion
// cookies.
package cookie

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/arvo-http/arvo/ctx"
)

// DefaultMaxChunkSize is the per-chunk byte ceiling (spec §4.F, §6):
// cookie values over this size are split across name.C1..Cn companions.
const DefaultMaxChunkSize = 4050

// Parse reads the request's Cookie header into a name->value map. Per spec
// §4.F, a duplicate name resolves to the first occurrence.
func Parse(header string) map[string]string {
	out := map[string]string{}
	if header == "" {
		return out
	}
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if _, exists := out[name]; exists {
			continue
		}
		if unquoted, err := strconv.Unquote(value); err == nil {
			value = unquoted
		}
		out[name] = value
	}
	return out
}

// Key is the "distinct cookie key" of spec §3: the (name, domain, path)
// tuple outgoing cookies are merged by. Domain defaults to "" and path
// defaults to "/" when unset, matching the spec's fallback rule.
type Key struct {
	Name   string
	Domain string
	Path   string
}

func keyOf(c *http.Cookie) Key {
	path := c.Path
	if path == "" {
		path = "/"
	}
	return Key{Name: c.Name, Domain: c.Domain, Path: path}
}

// Set appends cookie to the event's response headers, replacing any
// previously staged Set-Cookie entry that shares the same distinct key
// (spec §4.F, testable property 4). Path defaults to "/" when unset.
func Set(c ctx.Ctx, cookie *http.Cookie) {
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	merge(c, cookie)
}

// Delete stages a cookie deletion: an empty value with a negative MaxAge,
// which net/http serializes as "Max-Age=0" and which instructs the client
// to expire it immediately.
func Delete(c ctx.Ctx, name string, attrs ...*http.Cookie) {
	del := &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1}
	if len(attrs) > 0 && attrs[0] != nil {
		del.Domain = attrs[0].Domain
		if attrs[0].Path != "" {
			del.Path = attrs[0].Path
		}
	}
	merge(c, del)
}

// merge implements the distinct-key replace-or-append rule directly against
// the event's staged headers, since http.Header has no notion of cookie
// identity beyond the literal Set-Cookie string.
func merge(c ctx.Ctx, cookie *http.Cookie) {
	target := keyOf(cookie)
	serialized := cookie.String()

	existing := c.Headers().Values("Set-Cookie")
	rebuilt := make([]string, 0, len(existing)+1)
	replaced := false
	for _, raw := range existing {
		if keyOfRaw(raw) == target {
			rebuilt = append(rebuilt, serialized)
			replaced = true
			continue
		}
		rebuilt = append(rebuilt, raw)
	}
	if !replaced {
		rebuilt = append(rebuilt, serialized)
	}

	c.Headers().Del("Set-Cookie")
	for _, v := range rebuilt {
		c.Headers().Add("Set-Cookie", v)
	}
}

// keyOfRaw recovers the distinct key from a serialized Set-Cookie header
// value, so merge can compare staged headers without re-parsing every
// attribute into an http.Cookie.
func keyOfRaw(raw string) Key {
	parts := strings.Split(raw, ";")
	if len(parts) == 0 {
		return Key{}
	}
	name, _, _ := strings.Cut(strings.TrimSpace(parts[0]), "=")
	k := Key{Name: strings.TrimSpace(name), Path: "/"}
	for _, attr := range parts[1:] {
		attr = strings.TrimSpace(attr)
		lower := strings.ToLower(attr)
		switch {
		case strings.HasPrefix(lower, "domain="):
			k.Domain = attr[len("Domain="):]
		case strings.HasPrefix(lower, "path="):
			k.Path = attr[len("Path="):]
		}
	}
	return k
}

// SetChunked stages value across one or more companion cookies when it
// exceeds maxChunk bytes (spec §4.F, §6). The main cookie's value becomes
// "chunks.<N>"; companions are named "<name>.C1".."<name>.CN". Pass 0 for
// maxChunk to use DefaultMaxChunkSize.
func SetChunked(c ctx.Ctx, name, value string, maxChunk int, template *http.Cookie) {
	if maxChunk <= 0 {
		maxChunk = DefaultMaxChunkSize
	}
	if len(value) <= maxChunk {
		cookie := cloneTemplate(template, name, value)
		Set(c, cookie)
		deleteStaleChunks(c, name, 0, template)
		return
	}

	n := (len(value) + maxChunk - 1) / maxChunk
	main := cloneTemplate(template, name, fmt.Sprintf("chunks.%d", n))
	Set(c, main)

	for i := 0; i < n; i++ {
		start := i * maxChunk
		end := start + maxChunk
		if end > len(value) {
			end = len(value)
		}
		chunkName := fmt.Sprintf("%s.C%d", name, i+1)
		Set(c, cloneTemplate(template, chunkName, value[start:end]))
	}
	deleteStaleChunks(c, name, n, template)
}

// deleteStaleChunks removes companion cookies left over from a previous,
// larger chunk count (spec §4.F: "previous .Ck (k > newN) are explicitly
// deleted").
func deleteStaleChunks(c ctx.Ctx, name string, newN int, template *http.Cookie) {
	prevRaw, err := c.GetCookie(name)
	if err != nil || prevRaw == nil {
		return
	}
	n, ok := parseChunkCount(prevRaw.Value)
	if !ok {
		return
	}
	for k := newN + 1; k <= n; k++ {
		Delete(c, fmt.Sprintf("%s.C%d", name, k), template)
	}
}

func cloneTemplate(template *http.Cookie, name, value string) *http.Cookie {
	var out http.Cookie
	if template != nil {
		out = *template
	}
	out.Name = name
	out.Value = value
	if out.Path == "" {
		out.Path = "/"
	}
	return &out
}

// GetChunked reassembles a value previously written with SetChunked, reading
// the companion cookies directly off the incoming request. Returns ok=false
// if name isn't present, or if it's present but not chunked (caller should
// fall back to the plain cookie value in that case).
func GetChunked(c ctx.Ctx, name string) (value string, ok bool) {
	main, err := c.GetCookie(name)
	if err != nil || main == nil {
		return "", false
	}
	n, isChunked := parseChunkCount(main.Value)
	if !isChunked {
		return "", false
	}
	var b strings.Builder
	for i := 1; i <= n; i++ {
		part, err := c.GetCookie(fmt.Sprintf("%s.C%d", name, i))
		if err != nil || part == nil {
			// Malformed sequence: missing companion (spec §4.F failure
			// semantics) yields undefined -- reported here as not-ok.
			return "", false
		}
		b.WriteString(part.Value)
	}
	return b.String(), true
}

// parseChunkCount parses the "chunks.<N>" wire format (spec §6); N must be a
// positive decimal integer, otherwise the value is treated as a plain,
// unchunked cookie.
func parseChunkCount(value string) (int, bool) {
	rest, ok := strings.CutPrefix(value, "chunks.")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
