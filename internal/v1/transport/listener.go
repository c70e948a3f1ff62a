package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/auth"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/logging"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/ratelimit"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/room"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/router"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/signaling"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/types"
)

// Listener upgrades HTTP requests to WebSocket connections and drives each
// one's read loop against a Router.
type Listener struct {
	allowedOrigins []string
	router         *router.Router
	rooms          *room.Registry
	limiter        *ratelimit.MessageLimiter
	identity       auth.IdentityProvider
	upgrader       websocket.Upgrader
}

// New constructs a Listener. allowedOrigins may contain "*" to allow any
// origin, per 4.M step 2.
func New(r *router.Router, rooms *room.Registry, limiter *ratelimit.MessageLimiter, identity auth.IdentityProvider, allowedOrigins []string) *Listener {
	l := &Listener{allowedOrigins: allowedOrigins, router: r, rooms: rooms, limiter: limiter, identity: identity}
	l.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     l.checkOrigin,
	}
	return l
}

// extractToken pulls a bearer token from the Sec-WebSocket-Protocol header
// (preferred, since query strings end up in access logs) or the "token"
// query parameter, matching the teacher's hub_helpers.go priority order.
func extractToken(r *http.Request) string {
	if proto := r.Header.Get("Sec-WebSocket-Protocol"); proto != "" {
		for _, p := range strings.Split(proto, ",") {
			p = strings.TrimSpace(p)
			if p != "" && p != "access_token" {
				return p
			}
		}
	}
	return r.URL.Query().Get("token")
}

func (l *Listener) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // same-host / non-browser clients
	}
	for _, allowed := range l.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeWs handles GET /ws: the 4.M upgrade handshake.
func (l *Listener) ServeWs(c *gin.Context) {
	if c.Request.URL.Path != "/ws" {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	if !l.checkOrigin(c.Request) {
		metrics.WSRejectedOrigin.Inc()
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	var claims *auth.CustomClaims
	if token := extractToken(c.Request); token != "" {
		var err error
		claims, err = l.identity.ValidateToken(token)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
	}

	ws, err := l.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(ws)
	if claims != nil && claims.Subject != "" {
		conn.SetUserID(types.UserID(claims.Subject))
	}
	go conn.writePump()
	l.readPump(conn)
}

// readPump reads frames off the socket until it closes, handing each one to
// the Router. Runs on the calling goroutine (ServeWs's), matching the
// teacher's client.go pattern of one pump per goroutine plus the caller's.
func (l *Listener) readPump(conn *Conn) {
	defer func() {
		signaling.Leave(l.rooms, conn)
		l.router.Forget(conn.SocketID())
		l.limiter.Release(string(conn.UserID()))
		conn.closeSend()
	}()

	conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		l.handleFrame(conn, data)
	}
}

// handleFrame runs one frame through the Router with its own panic
// isolation: a handler panic is reported to the sender as an internal_error
// and the read loop continues, rather than tearing down the connection
// (4.K: "the connection stays open").
func (l *Listener) handleFrame(conn *Conn, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error(context.Background(), "recovered panic handling frame", zap.Any("panic", r))
			conn.Send(router.ErrorMsg(types.ErrInternal, "internal error", ""))
		}
	}()
	l.router.HandleFrame(context.Background(), conn, data)
}
