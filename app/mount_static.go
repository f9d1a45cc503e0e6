package app

import (
	"net/http"
	"os"
	"strings"
)

// HandleHTTP mounts a net/http.Handler on a specific HTTP method and path,
// for interoperability with standard library handlers and third-party
// routers that don't speak the engine's Handler contract.
func (a *App) HandleHTTP(method, path string, h http.Handler) { a.interop.Handler(method, path, h) }

// Mount mounts h for every common HTTP method under path.
func (a *App) Mount(path string, h http.Handler) {
	for _, m := range commonMethods {
		a.interop.Handler(m, path, h)
	}
}

// MountApp delegates every request under base to sub, the way a reverse
// proxy would, but in-process: sub sees the request with base stripped from
// its path, and its own route index runs independently. Sub's hooks and middleware apply only to
// requests routed through it.
func (a *App) MountApp(base string, sub *App) {
	sub.mountBase = cleanPath(base)
	prefix := cleanPath(base)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	handler := http.StripPrefix(strings.TrimSuffix(prefix, "/"), sub)
	for _, m := range commonMethods {
		a.interop.Handler(m, prefix+"*filepath", handler)
	}
}

// Static serves files from dir under prefix for GET/HEAD requests.
func (a *App) Static(prefix, dir string) { a.StaticDirs(prefix, dir) }

// StaticDirs serves files from multiple directories under the same prefix,
// first existing file wins, directories searched in order.
func (a *App) StaticDirs(prefix string, dirs ...string) {
	prefix = cleanPath(prefix)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	mfs := multiFS{}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		mfs = append(mfs, http.Dir(d))
	}
	if len(mfs) == 0 {
		return
	}
	fs := http.FileServer(mfs)
	h := http.StripPrefix(prefix, fs)
	a.interop.Handler(http.MethodGet, prefix+"*filepath", h)
	a.interop.Handler(http.MethodHead, prefix+"*filepath", h)
}

// multiFS is an http.FileSystem that tries multiple underlying filesystems
// in order; the first successful Open wins.
type multiFS []http.FileSystem

func (m multiFS) Open(name string) (http.File, error) {
	var lastErr error
	for _, fs := range m {
		f, err := fs.Open(name)
		if err == nil {
			return f, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = os.ErrNotExist
	}
	return nil, lastErr
}
