package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"arena/internal/config"
	"arena/internal/game"
	"arena/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 64
)

var (
	errConnClosed    = errors.New("connection closed")
	errSendQueueFull = errors.New("send queue full")
)

var knownInboundEvent = map[string]bool{
	protocol.EventJoinGame:    true,
	protocol.EventPlayerMove:  true,
	protocol.EventShootPlayer: true,
	protocol.EventRespawn:     true,
	protocol.EventScoreUpdate: true,
}

// GameHub is the part of the game hub the transport talks to.
// *game.Hub implements it; tests use a fake.
type GameHub interface {
	Join(ctx context.Context, conn game.Conn, name, userRef string) error
	Move(ctx context.Context, id string, m protocol.PlayerMove) error
	Shoot(ctx context.Context, shooterID, targetID string) error
	Respawn(ctx context.Context, id string, req protocol.RespawnRequest) error
	UpdateScore(ctx context.Context, id string, score int) error
	Leave(ctx context.Context, id string) error
	Roster(ctx context.Context) (protocol.Roster, error)
	MaxPlayers() int
}

// ============================================================================
// Connection
// ============================================================================

// wsConn adapts a gorilla connection to game.Conn. Send only enqueues; the
// write pump owns every write to the socket.
type wsConn struct {
	id   string
	ip   string
	ws   *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn, ip string) *wsConn {
	return &wsConn{
		id:   uuid.NewString(),
		ip:   ip,
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

func (c *wsConn) ID() string {
	return c.id
}

// Send never blocks. A full queue means the client is not keeping up and the
// caller drops the connection.
func (c *wsConn) Send(msg []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return errSendQueueFull
	}
}

// Close asks the write pump to flush what is queued and close the socket.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			// Flush frames queued before Close (e.g. maxPlayersReached).
			for {
				select {
				case msg := <-c.send:
					if err := c.write(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

func (c *wsConn) write(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}

// ============================================================================
// Gateway
// ============================================================================

// GatewayConfig holds the WebSocket gateway dependencies
type GatewayConfig struct {
	Hub      GameHub
	Sessions *SessionManager // nil: no session lookup
	// AuthEnabled makes the session the only source of a player's user ref.
	// When false the joinGame userId is trusted.
	AuthEnabled bool
	Origins     *OriginPolicy
	Limits      config.LimitsConfig
}

// Gateway upgrades HTTP requests and pumps frames between sockets and the hub
type Gateway struct {
	ctx      context.Context
	hub      GameHub
	sessions *SessionManager
	auth     bool
	limits   config.LimitsConfig
	upgrader websocket.Upgrader

	wsLimiter *WebSocketRateLimiter
	active    atomic.Int64
}

// NewGateway creates a gateway. ctx bounds every hub call made on behalf of a
// connection; it should outlive individual requests.
func NewGateway(ctx context.Context, cfg GatewayConfig) *Gateway {
	defaults := config.DefaultLimits()
	if cfg.Limits.MaxConnections <= 0 {
		cfg.Limits.MaxConnections = defaults.MaxConnections
	}
	if cfg.Limits.MaxPerIP <= 0 {
		cfg.Limits.MaxPerIP = defaults.MaxPerIP
	}
	if cfg.Limits.MessagesPerSec <= 0 {
		cfg.Limits.MessagesPerSec = defaults.MessagesPerSec
	}
	if cfg.Limits.MessageBurst <= 0 {
		cfg.Limits.MessageBurst = defaults.MessageBurst
	}
	origins := cfg.Origins
	if origins == nil {
		origins = NewOriginPolicy(nil)
	}

	g := &Gateway{
		ctx:       ctx,
		hub:       cfg.Hub,
		sessions:  cfg.Sessions,
		auth:      cfg.AuthEnabled,
		limits:    cfg.Limits,
		wsLimiter: NewWebSocketRateLimiter(cfg.Limits.MaxPerIP),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origins.Allow(origin) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return g
}

// ConnectionCount returns the number of open sockets
func (g *Gateway) ConnectionCount() int {
	return int(g.active.Load())
}

// HandleWebSocket serves one connection for its whole lifetime. The read loop
// runs on the request goroutine.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if n := g.active.Add(1); n > int64(g.limits.MaxConnections) {
		g.active.Add(-1)
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", n-1)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	defer func() {
		UpdateWSConnections(int(g.active.Add(-1)))
	}()

	if !g.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}
	defer g.wsLimiter.Release(ip)

	session := g.sessions.ValidateSession(r)

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	UpdateWSConnections(g.ConnectionCount())

	conn := newWSConn(ws, ip)
	log.Printf("📱 Client %s connected from %s (%d total)", conn.id, ip, g.ConnectionCount())

	go conn.writePump()
	g.readPump(conn, session)
}

func (g *Gateway) readPump(c *wsConn, session *Session) {
	defer func() {
		c.Close()
		if err := g.hub.Leave(g.ctx, c.id); err != nil && !errors.Is(err, game.ErrHubStopped) && g.ctx.Err() == nil {
			log.Printf("⚠️ Leave for %s failed: %v", c.id, err)
		}
		log.Printf("📱 Client %s disconnected", c.id)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	limiter := rate.NewLimiter(rate.Limit(g.limits.MessagesPerSec), g.limits.MessageBurst)

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️ WebSocket read error for %s: %v", c.id, err)
			}
			return
		}

		if !limiter.Allow() {
			RecordInbound("rate_limited")
			continue
		}

		env, err := protocol.DecodeEnvelope(msg)
		if err != nil {
			RecordInbound("invalid")
			continue
		}

		if err := g.dispatch(c, session, env); err != nil {
			switch {
			case errors.Is(err, game.ErrCapacityExceeded), errors.Is(err, game.ErrJoinFailed):
				// The hub has already closed the connection.
				return
			case errors.Is(err, game.ErrHubStopped), errors.Is(err, context.Canceled):
				return
			default:
				RecordInbound("invalid")
			}
		}
	}
}

// dispatch decodes one inbound event and forwards it to the hub. Malformed
// payloads and unknown events are dropped.
func (g *Gateway) dispatch(c *wsConn, session *Session, env protocol.Envelope) error {
	if !knownInboundEvent[env.Event] {
		RecordInbound("unknown")
		return nil
	}
	RecordInbound(env.Event)

	switch env.Event {
	case protocol.EventJoinGame:
		p, err := protocol.DecodePayload[protocol.JoinGame](env)
		if err != nil {
			return err
		}
		return g.hub.Join(g.ctx, c, p.Name, g.userRef(session, string(p.UserID)))

	case protocol.EventPlayerMove:
		p, err := protocol.DecodePayload[protocol.PlayerMove](env)
		if err != nil {
			return err
		}
		return g.hub.Move(g.ctx, c.id, p)

	case protocol.EventShootPlayer:
		p, err := protocol.DecodePayload[protocol.ShootPlayer](env)
		if err != nil {
			return err
		}
		return g.hub.Shoot(g.ctx, c.id, p.TargetID)

	case protocol.EventRespawn:
		p, err := protocol.DecodePayload[protocol.RespawnRequest](env)
		if err != nil {
			return err
		}
		return g.hub.Respawn(g.ctx, c.id, p)

	case protocol.EventScoreUpdate:
		p, err := protocol.DecodePayload[protocol.ScoreUpdate](env)
		if err != nil {
			return err
		}
		return g.hub.UpdateScore(g.ctx, c.id, p.Score)
	}
	return nil
}

// userRef picks the account a player's stats are credited to.
func (g *Gateway) userRef(session *Session, claimed string) string {
	if session != nil {
		return session.UserID
	}
	if !g.auth {
		return claimed
	}
	return ""
}
