// Package herror implements the structured HTTP error model (spec §3, §4.L,
// §7): a status-bearing error value that carries an optional message,
// extra headers, structured data, a cause, and an "unhandled" flag used by
// the response projector to decide whether to log a stack trace.
package herror

import (
	"fmt"
	"net/http"
	"strings"
)

// Error is the structured HTTP error carried through the engine. It
// implements the standard error interface and errors.Unwrap via Cause.
type Error struct {
	Status     int
	StatusText string
	Message    string
	Headers    http.Header
	Data       any
	Cause      error
	Unhandled  bool
	Stack      []string
}

// New constructs an Error, sanitizing status.
func New(status int, message string) *Error {
	return &Error{Status: sanitizeStatus(status), Message: message}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(status int, format string, args ...any) *Error {
	return New(status, fmt.Sprintf(format, args...))
}

// Wrap builds an Error from an arbitrary error, tagging it unhandled and
// defaulting to 500 Internal Server Error. This is the "non-HTTP error"
// branch of the response projector (spec §4.C step 4).
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if he, ok := err.(*Error); ok {
		return he
	}
	return &Error{
		Status:    http.StatusInternalServerError,
		Message:   err.Error(),
		Cause:     err,
		Unhandled: true,
	}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// WithHeader returns e with an additional response header set. Mutates and
// returns the receiver for chaining.
func (e *Error) WithHeader(key, value string) *Error {
	if e.Headers == nil {
		e.Headers = http.Header{}
	}
	e.Headers.Set(key, value)
	return e
}

// WithData attaches structured data (surfaced as the JSON body's "data"
// field).
func (e *Error) WithData(data any) *Error {
	e.Data = data
	return e
}

// WithStatusText sets a sanitized status text (CR/LF stripped to prevent
// header injection via a user-supplied string).
func (e *Error) WithStatusText(text string) *Error {
	e.StatusText = sanitizeStatusText(text)
	return e
}

// JSON is the wire shape from spec §6: {status, statusText?, message, data?, stack?}.
type JSON struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText,omitempty"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	Stack      []string `json:"stack,omitempty"`
}

// ToJSON renders the wire shape. Stack is included only when debug is true,
// per spec §4.L ("toJSON omits stack; projector attaches stack only in
// debug mode").
func (e *Error) ToJSON(debug bool) JSON {
	st := e.StatusText
	if st == "" {
		st = http.StatusText(e.Status)
	}
	out := JSON{Status: e.Status, StatusText: st, Message: e.Error(), Data: e.Data}
	if debug {
		out.Stack = e.Stack
	}
	return out
}

// sanitizeStatus clamps to the 200-599 range, defaulting to 500.
func sanitizeStatus(status int) int {
	if status < 200 || status > 599 {
		return http.StatusInternalServerError
	}
	return status
}

// sanitizeStatusText strips CR/LF to prevent response-splitting/header
// injection via a user-supplied status text.
func sanitizeStatusText(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}

// Convenience constructors for the error kinds enumerated in spec §7.

func BadRequest(message string) *Error    { return New(http.StatusBadRequest, message) }
func Unauthorized(message string) *Error  { return New(http.StatusUnauthorized, message) }
func Forbidden(message string) *Error     { return New(http.StatusForbidden, message) }
func NotFound(message string) *Error      { return New(http.StatusNotFound, message) }
func Conflict(message string) *Error      { return New(http.StatusConflict, message) }
func Timeout(message string) *Error       { return New(http.StatusRequestTimeout, message) }
func TooManyRequests(message string) *Error {
	return New(http.StatusTooManyRequests, message)
}
func PayloadTooLarge(message string) *Error {
	return New(http.StatusRequestEntityTooLarge, message)
}
func Internal(message string) *Error { return New(http.StatusInternalServerError, message) }

// MethodNotAllowed builds the 405 with the Allow header spec §4.A mandates.
func MethodNotAllowed(allowed []string) *Error {
	return New(http.StatusMethodNotAllowed, "Method Not Allowed").
		WithHeader("Allow", strings.Join(allowed, ", "))
}

// Validation builds the 400 "Validation failed" error spec §4.G mandates,
// with data.issues set to the provided issue list.
func Validation(issues any) *Error {
	e := New(http.StatusBadRequest, "Validation failed")
	e.WithStatusText("Validation failed")
	e.Data = map[string]any{"issues": issues}
	return e
}
