// Package ws implements the WebSocket upgrade surface (spec §4.N): a
// handler that, left untouched by any wrapping middleware, reports 426
// Upgrade Required while carrying the caller's hooks for whichever adapter
// wants to perform the actual handshake. The engine itself never manages a
// long-lived connection past that hand-off.
package ws

import (
	"net/http"

	"github.com/arvo-http/arvo/app"
	"github.com/arvo-http/arvo/ctx"
	"github.com/gorilla/websocket"
)

// Hooks are invoked by whatever adapter performs the real upgrade. None are
// required; a nil hook is simply skipped.
type Hooks struct {
	OnOpen    func(c ctx.Ctx, conn *websocket.Conn)
	OnMessage func(c ctx.Ctx, conn *websocket.Conn, messageType int, data []byte) error
	OnClose   func(c ctx.Ctx, conn *websocket.Conn, err error)
	OnError   func(c ctx.Ctx, conn *websocket.Conn, err error)
}

// Upgrade is the marker value a ws.Define handler returns. Middleware
// wrapping the route can type-assert for it and perform the handshake
// before the response projector ever sees it; left alone, it renders as
// plain-text "Upgrade Required" under the 426 status Define already set.
type Upgrade struct {
	Hooks Hooks
}

func (Upgrade) String() string { return "Upgrade Required" }

// Define returns a route handler for a WebSocket endpoint. Mount it on GET.
func Define(hooks Hooks) app.Handler {
	return func(c ctx.Ctx) (any, error) {
		c.Status(http.StatusUpgradeRequired)
		c.Header("Upgrade", "websocket")
		c.Header("Connection", "Upgrade")
		return Upgrade{Hooks: hooks}, nil
	}
}

// Upgrader performs the actual handshake with gorilla/websocket and runs
// an Upgrade's hooks for the lifetime of the connection. It's a reference
// adapter, not part of the engine: embedders may swap in their own.
type Upgrader struct {
	websocket.Upgrader
}

// NewUpgrader builds an Upgrader with permissive origin checking; set
// CheckOrigin on the embedded websocket.Upgrader to restrict it.
func NewUpgrader() *Upgrader {
	return &Upgrader{Upgrader: websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}}
}

// Serve performs the handshake for u and runs its hooks until the
// connection closes or a read/write fails. Intended to be called from
// middleware wrapping a ws.Define route once it observes an Upgrade
// return value, in place of letting the 426 through:
//
//	func(next app.Handler) app.Handler {
//		return func(c ctx.Ctx) (any, error) {
//			v, err := next(c)
//			if u, ok := v.(ws.Upgrade); ok {
//				return response.Handled, upgrader.Serve(c, u)
//			}
//			return v, err
//		}
//	}
func (up *Upgrader) Serve(c ctx.Ctx, u Upgrade) error {
	if !websocket.IsWebSocketUpgrade(c.Request()) {
		return nil
	}
	conn, err := up.Upgrade(c.ResponseWriter(), c.Request(), nil)
	if err != nil {
		return nil
	}
	defer conn.Close()

	if u.Hooks.OnOpen != nil {
		u.Hooks.OnOpen(c, conn)
	}
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if u.Hooks.OnClose != nil {
				u.Hooks.OnClose(c, conn, err)
			}
			return nil
		}
		if u.Hooks.OnMessage == nil {
			continue
		}
		if err := u.Hooks.OnMessage(c, conn, mt, msg); err != nil {
			if u.Hooks.OnError != nil {
				u.Hooks.OnError(c, conn, err)
			}
			return nil
		}
	}
}
