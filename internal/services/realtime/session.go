package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"
)

const (
	writeWait       = 10 * time.Second
	pingPeriod      = 30 * time.Second
	identifyTimeout = 5 * time.Second
	maxMessageSize  = 4096
)

// Conn is the part of a websocket connection a session drives.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

// RoleLookup resolves the current role behind a connection key.
type RoleLookup interface {
	RoleForConnectionKey(ctx context.Context, key string) (string, error)
}

// LoginState reports pending invalidations.
type LoginState interface {
	IsRequired(ctx context.Context, key string, hasPrefix bool) (bool, error)
}

// Greeter identifies connections and runs their read and write loops.
type Greeter struct {
	hub        *Hub
	roles      RoleLookup
	logins     LoginState
	logger     *zap.Logger
	now        func() time.Time
	pingPeriod time.Duration
}

// NewGreeter wires a greeter to the hub and its lookups.
func NewGreeter(hub *Hub, roles RoleLookup, logins LoginState, logger *zap.Logger) *Greeter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Greeter{
		hub:        hub,
		roles:      roles,
		logins:     logins,
		logger:     logger,
		now:        time.Now,
		pingPeriod: pingPeriod,
	}
}

// Identify registers c under key and sends the welcome, followed by the
// login-required notice when the account has to sign in again. The welcome is
// queued together with the registration so no push can overtake it. Lookup
// failures are logged; the welcome is sent regardless.
func (g *Greeter) Identify(ctx context.Context, c *Client, key string) {
	role, err := g.roles.RoleForConnectionKey(ctx, key)
	if err != nil {
		g.logger.Warn("role lookup failed", zap.String("key", key), zap.Error(err))
	}
	g.hub.RegisterAndSend(c, key, Welcome(key, role, g.now()))

	required, err := g.logins.IsRequired(ctx, key, true)
	if err != nil {
		g.logger.Warn("login required lookup failed", zap.String("key", key), zap.Error(err))
	}
	if required {
		g.hub.Send(c, LoginRequired())
	}
}

// Serve runs one connection until the peer disconnects, the client is closed
// or ctx is done. The connection is unregistered and closed on return.
func (g *Greeter) Serve(ctx context.Context, conn Conn) {
	c := g.hub.NewClient()
	conn.SetReadLimit(maxMessageSize)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		g.writeLoop(ctx, conn, c)
	}()

	g.readLoop(ctx, conn, c)
	g.hub.Unregister(c)
	<-writerDone
}

func (g *Greeter) readLoop(ctx context.Context, conn Conn, c *Client) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Debug("realtime read failed", zap.Error(err))
			}
			return
		}
		var in Inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			g.logger.Debug("ignoring malformed realtime message", zap.Error(err))
			continue
		}
		if in.Event != EventMessage || in.Data.Email == "" {
			continue
		}
		idCtx, cancel := context.WithTimeout(ctx, identifyTimeout)
		g.Identify(idCtx, c, in.Data.Email)
		cancel()
	}
}

func (g *Greeter) writeLoop(ctx context.Context, conn Conn, c *Client) {
	ticker := time.NewTicker(g.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = conn.Close()
	}()

	for {
		select {
		case frame := <-c.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}
